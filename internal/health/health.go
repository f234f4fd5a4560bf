// Package health tracks component liveness for the /api/health endpoint.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Checker is implemented by component-level checkers.
type Checker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// Pinger is the probe a checker runs against its component.
type Pinger interface {
	HealthPing(ctx context.Context) error
}

// PingerFunc adapts a plain ping function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) HealthPing(ctx context.Context) error { return f(ctx) }

// StoreChecker periodically pings the database and caches the outcome so the
// health endpoint never touches the store on the request path.
type StoreChecker struct {
	name    string
	pinger  Pinger
	healthy atomic.Int32
	log     zerolog.Logger
}

func NewStoreChecker(name string, p Pinger, log zerolog.Logger) *StoreChecker {
	return &StoreChecker{name: name, pinger: p, log: log}
}

func (c *StoreChecker) Name() string    { return c.name }
func (c *StoreChecker) IsHealthy() bool { return c.healthy.Load() == 1 }

// Start probes on a ticker until ctx is canceled. Logs only on transitions.
func (c *StoreChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := int32(-1)
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.pinger.HealthPing(pctx)
		cancel()
		cur := int32(1)
		if err != nil {
			cur = 0
		}
		c.healthy.Store(cur)
		if cur != prev {
			if cur == 1 {
				c.log.Info().Str("checker", c.name).Msg("health: UP")
			} else {
				c.log.Error().Err(err).Str("checker", c.name).Msg("health: DOWN")
			}
			prev = cur
		}
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

// Service aggregates component checkers into one flag.
type Service struct {
	deps []Checker
}

func NewService(deps ...Checker) *Service { return &Service{deps: deps} }

func (s *Service) IsHealthy() bool {
	for _, c := range s.deps {
		if !c.IsHealthy() {
			return false
		}
	}
	return true
}
