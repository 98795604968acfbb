package quote

import (
	"context"

	"github.com/guardquote/ml-engine/internal/domain"
)

// Health is the liveness summary reported by every transport.
type Health struct {
	Status       string `json:"status"`
	ModelLoaded  bool   `json:"model_loaded"`
	ModelVersion string `json:"model_version"`
	Mode         string `json:"mode"` // "model" or "fallback"
}

// Health reports liveness. The service is healthy whenever it can answer,
// including in fallback mode.
func (s *Service) Health() Health {
	info := s.predictor.Info()
	h := Health{
		Status:       "healthy",
		ModelLoaded:  info.Loaded,
		ModelVersion: s.predictor.Version(),
		Mode:         string(domain.PathFallback),
	}
	if info.Loaded {
		h.Mode = string(domain.PathModel)
	}
	return h
}

// Readiness pings each configured backing component. The map holds "ok" or
// the error text per component; ready is false if any ping failed.
func (s *Service) Readiness(ctx context.Context) (components map[string]string, ready bool) {
	components = make(map[string]string)
	ready = true

	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			components[name] = err.Error()
			ready = false
			return
		}
		components[name] = "ok"
	}

	if s.repo != nil {
		check("repository", s.repo.Ping)
	}
	if s.cache != nil {
		check("cache", s.cache.Ping)
	}
	if s.bus != nil {
		check("event_bus", s.bus.Ping)
	}
	return components, ready
}
