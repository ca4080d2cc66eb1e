package executor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/arosnov/schedhook/internal/domain"
)

// submission pairs a Run with the Target it fires against, the unit
// the Scheduler hands off to the pool.
type submission struct {
	run    *domain.Run
	target *domain.Target
}

// Pool bounds how many Runs execute concurrently, replacing the
// teacher's per-batch sync.WaitGroup (Worker.processBatch) with a
// long-lived fixed-size goroutine set fed by a channel, since the
// Scheduler now pushes work one Run at a time instead of the worker
// pulling a claimed batch.
type Pool struct {
	exec   *Executor
	submit chan submission
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewPool starts size worker goroutines, each looping on Run() calls
// until Close stops accepting new submissions and the queue drains.
func NewPool(exec *Executor, size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		exec:   exec,
		submit: make(chan submission, size*4),
		logger: logger.With("component", "executor_pool"),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for s := range p.submit {
		p.exec.Run(context.Background(), s.run, s.target)
	}
}

// Submit hands a fired Run to the pool. Blocks if every worker is busy
// and the queue is full — this is the backpressure the Scheduler's
// single event loop feels when the pool is saturated.
func (p *Pool) Submit(run *domain.Run, target *domain.Target) {
	p.submit <- submission{run: run, target: target}
}

// Close stops accepting submissions and waits for in-flight and
// queued Runs to finish.
func (p *Pool) Close() {
	close(p.submit)
	p.wg.Wait()
}
