package workerpool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull is returned by Submit when the job could not be queued.
var ErrQueueFull = errors.New("worker pool queue full")

type Job func(ctx context.Context)

type WorkerPool struct {
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewWorkerPool(ctx context.Context, workerCount int, queueSize int, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if workerCount < 1 {
		workerCount = 1
	}

	pool := &WorkerPool{
		queue:  make(chan Job, queueSize),
		logger: logger,
	}

	for range workerCount {
		pool.wg.Add(1)
		go pool.worker(ctx)
	}

	return pool
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("worker received shutdown signal")
			return
		case job, ok := <-p.queue:
			if !ok {
				// queue closed
				return
			}
			job(ctx)
		}
	}
}

// Submit queues a job without blocking.
func (p *WorkerPool) Submit(job Job) error {
	select {
	case p.queue <- job:
		return nil
	default:
		p.logger.Warn("worker pool queue full, job dropped")
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for
// ctx to end.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	close(p.queue)

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out")
		return ctx.Err()
	case <-done:
		p.logger.Debug("worker pool shutdown complete")
		return nil
	}
}

// WithRetry runs job up to retries times, waiting delay between attempts. The
// last error, if any, is passed to onFailure.
func WithRetry(logger *slog.Logger, retries int, delay time.Duration, job func(ctx context.Context) error, onFailure func(error)) Job {
	return func(ctx context.Context) {
		var err error
		for i := range retries {
			if ctx.Err() != nil {
				logger.Debug("job canceled before execution")
				err = ctx.Err()
				break
			}

			if err = job(ctx); err == nil {
				return // success
			}
			logger.Warn("job failed", "attempt", i+1, "retries", retries, "error", err)

			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
		if err != nil && onFailure != nil {
			onFailure(err)
		}
	}
}
