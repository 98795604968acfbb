package bus

import (
	"errors"
	"fmt"

	"github.com/guardquote/ml-engine/internal/domain"
)

// New creates the event bus described by cfg: "channel" for a single
// process, "nats" for a cluster.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus is closed")
