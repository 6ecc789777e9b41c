// Package worker runs webhook processing jobs on a bounded pool so HTTP
// handlers can acknowledge fast and never block on downstream work.
package worker

import (
	"context"
	"sync"
	"time"

	xerrors "syncbridge-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Job is one unit of deferred work.
type Job struct {
	ID   string
	Name string
	Run  func(ctx context.Context) error
}

type Pool struct {
	workers    int
	jobs       chan Job
	jobTimeout time.Duration
	logger     *zap.Logger

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once

	// mu orders Enqueue sends against the queue close in Stop.
	mu      sync.RWMutex
	stopped bool
}

func NewPool(workers, queueSize int, jobTimeout time.Duration, logger *zap.Logger) *Pool {
	return &Pool{
		workers:    workers,
		jobs:       make(chan Job, queueSize),
		jobTimeout: jobTimeout,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Start launches the worker goroutines. ctx cancellation drains nothing;
// call Stop for a graceful drain.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workers))
}

// Enqueue submits a job without blocking. A full queue returns
// xerrors.ErrQueueFull so the caller can shed load; so does a stopped
// pool, since requests admitted mid-shutdown have nowhere to run.
func (p *Pool) Enqueue(name string, run func(ctx context.Context) error) (string, error) {
	job := Job{
		ID:   ulid.Make().String(),
		Name: name,
		Run:  run,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.logger.Warn("pool stopped, job rejected", zap.String("job", name))
		return "", xerrors.ErrQueueFull
	}

	select {
	case p.jobs <- job:
		return job.ID, nil
	default:
		p.logger.Warn("worker queue full, job rejected", zap.String("job", name))
		return "", xerrors.ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight jobs to finish. Enqueue
// calls arriving after Stop are rejected instead of hitting the closed
// channel.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.stop)
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.run(ctx, id, job)
	}
}

func (p *Pool) run(ctx context.Context, workerID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				zap.Int("worker", workerID),
				zap.String("job_id", job.ID),
				zap.String("job", job.Name),
				zap.Any("panic", r),
			)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(jobCtx); err != nil {
		p.logger.Error("job failed",
			zap.Int("worker", workerID),
			zap.String("job_id", job.ID),
			zap.String("job", job.Name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("job done",
		zap.Int("worker", workerID),
		zap.String("job_id", job.ID),
		zap.String("job", job.Name),
		zap.Duration("took", time.Since(start)),
	)
}

// RunJanitor ticks at the given interval and enqueues the purge function,
// typically the idempotency-ledger GC. Blocks until ctx is cancelled or the
// pool is stopped; run it in its own goroutine.
func (p *Pool) RunJanitor(ctx context.Context, interval time.Duration, purge func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			if _, err := p.Enqueue("ledger_gc", purge); err != nil {
				p.logger.Warn("janitor enqueue skipped", zap.Error(err))
			}
		}
	}
}
