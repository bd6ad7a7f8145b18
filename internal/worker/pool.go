// Package worker provides the concurrency layer for batch claim
// analysis: a bounded worker pool, a claim-id batch runner, and a
// per-series rate limiter for timeline writes.
package worker

import (
	"context"
	"sync"
)

// Job is one schedulable unit of claim analysis
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome a job reports back to the pool
type Result interface {
	GetError() error
}

// Pool runs jobs across a fixed number of goroutines. The zero value is
// not usable; construct with NewPool and call Start before Submit.
type Pool struct {
	workers   int
	jobs      chan Job
	results   chan Result
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool of the given size; sizes below one are raised
// to one so a misconfigured batch still makes progress
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		// Buffered so submitters rarely block on a busy pool
		jobs:    make(chan Job, workers*2),
		results: make(chan Result, workers*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			res := job.Execute(p.ctx)
			select {
			case p.results <- res:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. After Shutdown it returns without queuing and
// never blocks.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobs <- job:
	}
}

// Wait closes the queue, drains every outstanding job, and returns all
// results. Call once, after the last Submit.
func (p *Pool) Wait() []Result {
	close(p.jobs)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result
	for res := range p.results {
		results = append(results, res)
	}
	return results
}

// Shutdown cancels in-flight jobs and stops the workers without
// draining the queue
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
