// Package sweeper reclaims expired pending actions and dialogue slots.
// Readers already treat expired rows as absent, so the sweep is pure space
// reclamation and safe to run at any cadence.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/masarif/masarif-backend/internal/store"
)

// Config controls the sweep cadence.
type Config struct {
	Interval time.Duration
}

type Sweeper struct {
	store store.Store
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

func New(s store.Store, cfg Config, log zerolog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Sweeper{
		store: s,
		cfg:   cfg,
		log:   log.With().Str("component", "sweeper").Logger(),
		now:   time.Now,
	}
}

// Run sweeps on a ticker until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.cfg.Interval).Msg("sweeper starting")
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				// log and keep ticking; a failed sweep retries next cycle
				s.log.Error().Err(err).Msg("sweep cycle")
			}
		}
	}
}

// SweepOnce deletes everything past its expiry. Idempotent; racing with an
// in-flight confirm is harmless because confirm re-checks expiry itself.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	now := s.now().UTC()
	pendings, err := s.store.Pendings().SweepExpired(ctx, now)
	if err != nil {
		return err
	}
	dialogues, err := s.store.Dialogues().SweepExpired(ctx, now)
	if err != nil {
		return err
	}
	if pendings > 0 || dialogues > 0 {
		s.log.Info().
			Int64("pendingActions", pendings).
			Int64("dialogueStates", dialogues).
			Msg("expired records swept")
	}
	return nil
}
