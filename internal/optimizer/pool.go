package optimizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coproportal/imageopt/pkg/metrics"
)

var (
	// ErrPoolBusy is returned when the worker pool queue is at capacity
	ErrPoolBusy = errors.New("worker pool is busy, please retry later")
	// ErrPoolClosed is returned after Stop
	ErrPoolClosed = errors.New("worker pool is stopped")
)

// Job is a queued optimization
type Job struct {
	ctx    context.Context
	opt    *Optimizer
	Source Source
	Result chan<- JobResult
}

// JobResult is the outcome of a job
type JobResult struct {
	Result *Result
	Err    error
}

// WorkerPool bounds how many optimizations run at once. Jobs share nothing
// but the Optimizer, which is stateless.
type WorkerPool struct {
	optimizer *Optimizer
	jobs      chan Job
	workers   int
	active    atomic.Int64

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	once     sync.Once
	stopOnce sync.Once
}

// NewWorkerPool creates a pool with the given number of workers and a queue
// twice that size
func NewWorkerPool(opt *Optimizer, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		optimizer: opt,
		jobs:      make(chan Job, workers*2),
		workers:   workers,
	}
}

// Start starts the worker goroutines; later calls are no-ops
func (p *WorkerPool) Start() {
	p.once.Do(func() {
		log.Info().Int("workers", p.workers).Msg("starting worker pool")
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		var result JobResult
		if err := job.ctx.Err(); err != nil {
			// caller gave up while the job was queued
			result.Err = err
		} else {
			p.active.Add(1)
			p.updateMetrics()
			opt := job.opt
			if opt == nil {
				opt = p.optimizer
			}
			result.Result, result.Err = opt.Optimize(job.ctx, job.Source)
			p.active.Add(-1)
		}
		p.updateMetrics()

		select {
		case job.Result <- result:
		default:
			log.Warn().Int("worker", id).Msg("result channel full or closed")
		}
	}
}

// Submit queues src and waits for its result. It returns ErrPoolBusy at once
// when the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, src Source) (*Result, error) {
	return p.SubmitWith(ctx, nil, src)
}

// SubmitWith is Submit with a per-job optimizer, typically one derived with
// Optimizer.WithOptions. A nil opt uses the pool's optimizer.
func (p *WorkerPool) SubmitWith(ctx context.Context, opt *Optimizer, src Source) (*Result, error) {
	p.Start()

	resultChan := make(chan JobResult, 1)
	job := Job{ctx: ctx, opt: opt, Source: src, Result: resultChan}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	select {
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, ctx.Err()
	case p.jobs <- job:
		p.mu.RUnlock()
	default:
		p.mu.RUnlock()
		return nil, ErrPoolBusy
	}
	p.updateMetrics()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		return result.Result, result.Err
	}
}

// SubmitWithRetry retries Submit while the pool is busy, backing off linearly
func (p *WorkerPool) SubmitWithRetry(ctx context.Context, src Source, maxRetries int) (*Result, error) {
	return p.SubmitWithRetryWith(ctx, nil, src, maxRetries)
}

// SubmitWithRetryWith is SubmitWithRetry with a per-job optimizer
func (p *WorkerPool) SubmitWithRetryWith(ctx context.Context, opt *Optimizer, src Source, maxRetries int) (*Result, error) {
	lastErr := ErrPoolBusy
	for i := 0; i < maxRetries; i++ {
		result, err := p.SubmitWith(ctx, opt, src)
		if !errors.Is(err, ErrPoolBusy) {
			return result, err
		}
		lastErr = err

		waitTime := time.Duration(i+1) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}
	return nil, lastErr
}

// Stop drains queued jobs and waits for the workers to exit
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
		log.Info().Msg("worker pool stopped")
	})
}

// Stats returns the number of running and queued jobs
func (p *WorkerPool) Stats() (active, queued int) {
	return int(p.active.Load()), len(p.jobs)
}

func (p *WorkerPool) updateMetrics() {
	active, queued := p.Stats()
	metrics.UpdateWorkerPoolMetrics(queued, active)
}
