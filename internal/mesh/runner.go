package mesh

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultInterval = time.Hour

// Runner drives the engine on a fixed wall-clock interval. A failed
// pass is logged and the loop waits for the next interval; the loop
// itself only stops on context cancellation.
type Runner struct {
	engine   *Engine
	interval time.Duration
}

func NewRunner(engine *Engine, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{engine: engine, interval: interval}
}

// Run executes passes back to back until ctx is cancelled. It always
// returns nil on cancellation; per-pass errors never escape the loop.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := r.engine.RunPass(ctx); err != nil {
			log.Error().Msgf("mesh.runner pass failed: %v", err)
		}
		log.Info().Msgf("mesh.runner sleeping interval=%s", r.interval)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.interval):
		}
	}
}
