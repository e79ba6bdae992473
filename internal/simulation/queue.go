package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrQueueClosed is returned by Enqueue after Stop.
var ErrQueueClosed = errors.New("task queue closed")

// Task asks for one simulation to be computed.
type Task struct {
	UserID       string
	SimulationID string
}

// TaskQueue accepts compute tasks for asynchronous execution.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
}

// Handler processes one task. It owns its own error handling.
type Handler func(ctx context.Context, task Task)

// WorkerPool runs tasks on a fixed number of goroutines fed by a buffered
// channel. Tasks still queued at Stop are drained before it returns;
// anything lost to a crash is picked up again by RecoverRunning.
type WorkerPool struct {
	workers int
	tasks   chan Task
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool creates a pool. Call Start to begin processing.
func NewWorkerPool(workers, queueSize int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan Task, queueSize),
		logger:  logger.With("component", "worker_pool"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers with the given handler. It may be called once.
func (p *WorkerPool) Start(handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i, handler)
	}
}

func (p *WorkerPool) run(id int, handler Handler) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.handle(id, handler, task)
	}
}

func (p *WorkerPool) handle(id int, handler Handler, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				"worker", id,
				"simulation_id", task.SimulationID,
				"user_id", task.UserID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	handler(p.ctx, task)
}

// Enqueue submits a task, blocking while the buffer is full.
func (p *WorkerPool) Enqueue(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrQueueClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new tasks, lets the workers drain the buffer and waits for
// them. If ctx expires first, in-flight handlers see their context cancelled.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
