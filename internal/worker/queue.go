package worker

import (
	"context"
	"errors"
	"log"

	"github.com/mohammad-safakhou/headliner/internal/agent"
	"github.com/mohammad-safakhou/headliner/internal/telemetry"
)

// Triggers recorded with every run.
const (
	TriggerScheduled   = "scheduled"
	TriggerInteractive = "interactive"
	TriggerManual      = "manual"
)

var (
	ErrQueueFull = errors.New("run queue is full")
	ErrStopped   = errors.New("run queue stopped")
)

// Request asks for one agent run.
type Request struct {
	ID        string
	Trigger   string
	SessionID string
	Prompt    string
}

// Result is the outcome of a run. Err is set when State is failed.
type Result struct {
	RunID string
	Reply string
	State agent.State
	Steps int
	Err   error
}

// Handler executes a run.
type Handler interface {
	Process(ctx context.Context, req Request) Result
}

type job struct {
	req   Request
	reply chan Result
}

// Queue serializes all runs through a single worker, so the browser and the
// conversation are never used by two runs at once.
type Queue struct {
	jobs    chan job
	handler Handler
	logger  *log.Logger
	metrics *telemetry.Metrics
	done    chan struct{}
}

type QueueOption func(*Queue)

func WithQueueLogger(l *log.Logger) QueueOption { return func(q *Queue) { q.logger = l } }

func WithQueueMetrics(m *telemetry.Metrics) QueueOption { return func(q *Queue) { q.metrics = m } }

func NewQueue(handler Handler, capacity int, opts ...QueueOption) *Queue {
	if capacity <= 0 {
		capacity = 16
	}
	q := &Queue{
		jobs:    make(chan job, capacity),
		handler: handler,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = log.New(log.Writer(), "[WORKER] ", log.LstdFlags)
	}
	return q
}

// Run drains the queue until ctx is cancelled. Requests still buffered at
// that point are dropped.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Printf("worker started")
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			q.logger.Printf("worker stopping: %v", ctx.Err())
			return nil
		case j := <-q.jobs:
			q.metrics.QueueDepth(len(q.jobs))
			res := q.handler.Process(ctx, j.req)
			if j.reply != nil {
				j.reply <- res
			}
		}
	}
}

func (q *Queue) push(j job) error {
	select {
	case <-q.done:
		return ErrStopped
	default:
	}
	select {
	case q.jobs <- j:
		q.metrics.QueueDepth(len(q.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// Enqueue schedules a run without waiting for it.
func (q *Queue) Enqueue(req Request) error {
	return q.push(job{req: req})
}

// Submit schedules a run and waits for its result. If ctx ends first the
// caller stops waiting but the run still completes.
func (q *Queue) Submit(ctx context.Context, req Request) (Result, error) {
	reply := make(chan Result, 1)
	if err := q.push(job{req: req, reply: reply}); err != nil {
		return Result{}, err
	}
	select {
	case res := <-reply:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-q.done:
		return Result{}, ErrStopped
	}
}
