package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/headliner/internal/agent"
)

type handlerFunc func(ctx context.Context, req Request) Result

func (f handlerFunc) Process(ctx context.Context, req Request) Result { return f(ctx, req) }

func TestQueueSerializesRuns(t *testing.T) {
	var active, maxActive int32
	h := handlerFunc(func(ctx context.Context, req Request) Result {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return Result{Reply: req.Prompt, State: agent.StateFinalAnswer}
	})
	q := NewQueue(h, 8, WithQueueLogger(quiet))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := q.Submit(context.Background(), Request{Prompt: "hi"})
			if err != nil || res.Reply != "hi" {
				t.Errorf("Submit = %+v, %v", res, err)
			}
		}()
	}
	wg.Wait()
	if maxActive != 1 {
		t.Fatalf("runs overlapped: %d at once", maxActive)
	}
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(handlerFunc(func(ctx context.Context, req Request) Result { return Result{} }), 1, WithQueueLogger(quiet))
	if err := q.Enqueue(Request{}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if err := q.Enqueue(Request{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if _, err := q.Submit(context.Background(), Request{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull from Submit, got %v", err)
	}
}

func TestSubmitReturnsRunError(t *testing.T) {
	boom := errors.New("boom")
	q := NewQueue(handlerFunc(func(ctx context.Context, req Request) Result {
		return Result{State: agent.StateFailed, Err: boom}
	}), 1, WithQueueLogger(quiet))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	res, err := q.Submit(context.Background(), Request{})
	if !errors.Is(err, boom) || res.State != agent.StateFailed {
		t.Fatalf("Submit = %+v, %v", res, err)
	}
}

func TestQueueStopped(t *testing.T) {
	q := NewQueue(handlerFunc(func(ctx context.Context, req Request) Result { return Result{} }), 1, WithQueueLogger(quiet))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- q.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := q.Enqueue(Request{}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestSubmitCallerGivesUp(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue(handlerFunc(func(ctx context.Context, req Request) Result {
		<-release
		return Result{}
	}), 2, WithQueueLogger(quiet))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer close(release)

	wctx, wcancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer wcancel()
	if _, err := q.Submit(wctx, Request{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}
