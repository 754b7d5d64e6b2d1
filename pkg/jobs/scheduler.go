package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Enqueuer accepts jobs for asynchronous processing.
type Enqueuer interface {
	Enqueue(job Job) error
}

// Ticker periodically enqueues a job of a fixed type.
type Ticker struct {
	jobType  string
	interval time.Duration
	queue    Enqueuer
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewTicker constructs a ticker that enqueues jobType every interval.
func NewTicker(jobType string, interval time.Duration, queue Enqueuer, logger *zap.Logger) *Ticker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ticker{jobType: jobType, interval: interval, queue: queue, logger: logger}
}

// Start launches the ticker loop. When runImmediately is set the first job is
// enqueued without waiting for the first interval.
func (t *Ticker) Start(ctx context.Context, runImmediately bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if runImmediately {
			t.fire()
		}
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.fire()
			}
		}
	}()
	t.logger.Sugar().Infow("ticker started", "job_type", t.jobType, "interval", t.interval.String())
}

// Stop halts the ticker loop and waits for it to exit.
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	t.wg.Wait()
}

func (t *Ticker) fire() {
	if err := t.queue.Enqueue(Job{Type: t.jobType}); err != nil {
		t.logger.Sugar().Warnw("failed to enqueue scheduled job", "job_type", t.jobType, "error", err)
	}
}
