package workflow

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Watch runs a batch after initialDelay and then once per pollInterval
// until ctx is cancelled. onSummary, if set, receives every run's summary.
// A failed run is logged and the next tick tries again.
func (o *Orchestrator) Watch(ctx context.Context, initialDelay, pollInterval time.Duration, onSummary func(*Summary)) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(initialDelay):
	}

	runOnce := func() {
		summary, err := o.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Monitor: run failed")
		}
		if summary != nil && onSummary != nil {
			onSummary(summary)
		}
	}

	log.Info().Dur("interval", pollInterval).Msg("Monitor: initial run")
	runOnce()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Monitor: stopping")
			return
		case <-ticker.C:
			log.Debug().Msg("Monitor: checking for new messages")
			runOnce()
		}
	}
}
