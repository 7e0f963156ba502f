package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one unit of outbound side work (an email, an alert). Tasks run
// detached from the request that produced them; their failure is logged and
// never surfaced to that request.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskQueue is the boundary the auth core enqueues notifications through.
// Tests assert on "task enqueued" instead of actual delivery.
type TaskQueue interface {
	Enqueue(task Task) bool
}

// Dispatcher is a bounded in-process queue with a single worker goroutine.
// Enqueue never blocks: when the buffer is full the task is dropped with a
// log line, because no login may ever wait on an email.
type Dispatcher struct {
	tasks       chan Task
	logger      *slog.Logger
	taskTimeout time.Duration
	wg          sync.WaitGroup
}

func NewDispatcher(buffer int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		tasks:       make(chan Task, buffer),
		logger:      logger,
		taskTimeout: 30 * time.Second,
	}
}

// Start launches the worker. It drains until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case task := <-d.tasks:
				d.run(ctx, task)
			case <-ctx.Done():
				d.logger.Info("notification dispatcher stopped")
				return
			}
		}
	}()
}

// Enqueue hands a task to the worker. Returns false when the task was
// dropped because the queue is full.
func (d *Dispatcher) Enqueue(task Task) bool {
	select {
	case d.tasks <- task:
		return true
	default:
		d.logger.Warn("notification queue full, task dropped", slog.String("task", task.Name))
		return false
	}
}

// Wait blocks until the worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	taskCtx, cancel := context.WithTimeout(ctx, d.taskTimeout)
	defer cancel()

	if err := task.Run(taskCtx); err != nil {
		d.logger.Error("notification task failed",
			slog.String("task", task.Name),
			slog.Any("error", err))
	}
}
