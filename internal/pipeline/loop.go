// Package pipeline hosts the three long-running poll loops: ingestion,
// processing, verification. They never share memory; all coordination goes
// through the record store's status column.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Loop runs one cycle function on a fixed interval until the context is
// cancelled. Cancellation is cooperative: it is honored at the top of each
// cycle and during the inter-cycle sleep, never mid-item.
type Loop struct {
	name     string
	interval time.Duration
	cycle    func(ctx context.Context) error
}

func NewLoop(name string, interval time.Duration, cycle func(ctx context.Context) error) *Loop {
	return &Loop{name: name, interval: interval, cycle: cycle}
}

// Run blocks until ctx is cancelled. A failed cycle is logged and the loop
// waits out the interval before trying again; only cancellation stops it.
func (l *Loop) Run(ctx context.Context) error {
	log.Info().Str("loop", l.name).Dur("interval", l.interval).Msg("starting poll loop")

	for {
		if ctx.Err() != nil {
			log.Info().Str("loop", l.name).Msg("poll loop stopped")
			return nil
		}

		if err := l.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				log.Info().Str("loop", l.name).Msg("poll loop stopped")
				return nil
			}
			log.Error().Err(err).Str("loop", l.name).
				Dur("retry_in", l.interval).Msg("cycle failed, will retry next interval")
		}

		select {
		case <-ctx.Done():
			log.Info().Str("loop", l.name).Msg("poll loop stopped")
			return nil
		case <-time.After(l.interval):
		}
	}
}
