// Package tasks runs detached background work, one task at a time, and
// keeps its status queryable by ID.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrQueueFull = errors.New("task queue is full")
	ErrClosed    = errors.New("task queue is closed")
	ErrNotFound  = errors.New("task not found")
)

// Func is the work of a task; its result is reported with the status
type Func func(ctx context.Context) (any, error)

// Task is a snapshot of a task's state
type Task struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     Status     `json:"status"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Done reports whether the task reached a final state
func (t Task) Done() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

type entry struct {
	task Task
	fn   Func
	done chan struct{}
}

// Queue executes submitted tasks sequentially on a single worker
type Queue struct {
	mu         sync.RWMutex
	tasks      map[string]*entry
	order      []string
	jobs       chan *entry
	stop       chan struct{}
	wg         sync.WaitGroup
	closed     bool
	timeout    time.Duration
	maxHistory int
	logger     *slog.Logger
}

// NewQueue starts a worker. size bounds pending tasks; timeout bounds each
// task's run (zero means none).
func NewQueue(size int, timeout time.Duration, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		tasks:      make(map[string]*entry),
		jobs:       make(chan *entry, size),
		stop:       make(chan struct{}),
		timeout:    timeout,
		maxHistory: 200,
		logger:     logger,
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Submit enqueues fn and returns its queued snapshot
func (q *Queue) Submit(name string, fn Func) (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Task{}, ErrClosed
	}

	e := &entry{
		task: Task{
			ID:        uuid.NewString(),
			Name:      name,
			Status:    StatusQueued,
			CreatedAt: time.Now(),
		},
		fn:   fn,
		done: make(chan struct{}),
	}

	select {
	case q.jobs <- e:
	default:
		return Task{}, ErrQueueFull
	}

	q.tasks[e.task.ID] = e
	q.order = append(q.order, e.task.ID)
	q.prune()

	q.logger.Info("task queued", "task_id", e.task.ID, "name", name)
	return e.task, nil
}

// Get returns the current snapshot of a task
func (q *Queue) Get(id string) (Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	e, ok := q.tasks[id]
	if !ok {
		return Task{}, false
	}
	return e.task, true
}

// Wait blocks until the task finishes or ctx is done
func (q *Queue) Wait(ctx context.Context, id string) (Task, error) {
	q.mu.RLock()
	e, ok := q.tasks[id]
	q.mu.RUnlock()
	if !ok {
		return Task{}, ErrNotFound
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}

	task, _ := q.Get(id)
	return task, nil
}

// Close stops accepting tasks, waits for the running one, and fails
// whatever is still queued.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	q.mu.Unlock()

	q.wg.Wait()

	for {
		select {
		case e := <-q.jobs:
			q.finish(e, nil, ErrClosed)
		default:
			return
		}
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stop:
			return
		default:
		}

		select {
		case <-q.stop:
			return
		case e := <-q.jobs:
			q.run(e)
		}
	}
}

func (q *Queue) run(e *entry) {
	q.mu.Lock()
	now := time.Now()
	e.task.Status = StatusRunning
	e.task.StartedAt = &now
	q.mu.Unlock()

	log := q.logger.With("task_id", e.task.ID, "name", e.task.Name)
	log.Info("task started")

	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	result, err := q.call(ctx, e.fn)
	q.finish(e, result, err)

	if err != nil {
		log.Error("task failed", "error", err, "duration", time.Since(now))
		return
	}
	log.Info("task completed", "duration", time.Since(now))
}

func (q *Queue) call(ctx context.Context, fn Func) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (q *Queue) finish(e *entry, result any, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	e.task.FinishedAt = &now
	if err != nil {
		e.task.Status = StatusFailed
		e.task.Error = err.Error()
	} else {
		e.task.Status = StatusCompleted
		e.task.Result = result
	}
	close(e.done)
}

// prune forgets the oldest finished tasks beyond maxHistory. Callers hold mu.
func (q *Queue) prune() {
	excess := len(q.order) - q.maxHistory
	if excess <= 0 {
		return
	}
	kept := q.order[:0]
	for _, id := range q.order {
		if excess > 0 && q.tasks[id].task.Done() {
			delete(q.tasks, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}
