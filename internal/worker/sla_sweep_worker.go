package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// Sweeper runs one SLA sweep.
type Sweeper interface {
	RunSweep(ctx context.Context) service.SweepResult
}

// SLASweepConfig controls the in-process sweep loop.
type SLASweepConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// StartSLASweepWorker runs the sweep every Interval until ctx is done. It
// returns a channel that is closed once the loop has stopped. A zero
// interval disables the loop; scheduling is then left to an external cron.
func StartSLASweepWorker(ctx context.Context, sweeper Sweeper, clk clock.Clock, cfg SLASweepConfig, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if sweeper == nil || cfg.Interval <= 0 {
		close(done)
		return done
	}
	if clk == nil {
		clk = clock.Real()
	}

	ticker := clk.NewTicker(cfg.Interval)
	logger.Info("sla sweep worker started", zap.Duration("interval", cfg.Interval))

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info("sla sweep worker stopped")
				return
			case <-ticker.C:
				runSweep(ctx, sweeper, cfg.Timeout, logger)
			}
		}
	}()
	return done
}

func runSweep(ctx context.Context, sweeper Sweeper, timeout time.Duration, logger *zap.Logger) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	result := sweeper.RunSweep(ctx)
	if len(result.Errors) > 0 {
		logger.Warn("sla sweep finished with errors", zap.Strings("errors", result.Errors))
	}
}
