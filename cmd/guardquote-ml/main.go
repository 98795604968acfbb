// GuardQuote ML - Security quote pricing and risk prediction.
// Copyright (c) 2026 GuardQuote
// Licensed under the Apache License 2.0

package main

import (
	"os"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
