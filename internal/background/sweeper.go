package background

import (
	"context"
	"log/slog"
	"time"
)

// Task is one unit of periodic maintenance: expired counter removal,
// session deactivation, stale MFA failure pruning. The count is whatever
// the task considers "items swept".
type Task interface {
	Name() string
	Sweep(ctx context.Context) (int64, error)
}

// TaskFunc adapts a function to the Task interface
type TaskFunc struct {
	TaskName string
	Fn       func(ctx context.Context) (int64, error)
}

func (t TaskFunc) Name() string { return t.TaskName }

func (t TaskFunc) Sweep(ctx context.Context) (int64, error) { return t.Fn(ctx) }

// Sweeper periodically runs maintenance tasks. A failing task is logged
// and retried on the next tick; it never stops the sweeper or the other
// tasks.
type Sweeper struct {
	tasks    []Task
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweeper creates a new sweeper over the given tasks
func NewSweeper(logger *slog.Logger, interval time.Duration, tasks ...Task) *Sweeper {
	return &Sweeper{
		tasks:    tasks,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep loop. It blocks until Stop is called or
// the context is cancelled; run it in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.SweepNow(ctx)

	for {
		select {
		case <-ticker.C:
			s.SweepNow(ctx)
		case <-s.stopCh:
			s.logger.Info("sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("sweeper context cancelled")
			return
		}
	}
}

// SweepNow runs every task once. Exposed for deterministic use in tests
// and admin tooling.
func (s *Sweeper) SweepNow(ctx context.Context) {
	for _, task := range s.tasks {
		sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)

		swept, err := task.Sweep(sweepCtx)
		cancel()

		if err != nil {
			s.logger.Error("sweep task failed",
				slog.String("task", task.Name()),
				slog.Any("error", err))
			continue
		}

		if swept > 0 {
			s.logger.Info("sweep task completed",
				slog.String("task", task.Name()),
				slog.Int64("items_swept", swept))
		}
	}
}

// Stop signals the sweeper to stop
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
