package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/mohammad-safakhou/headliner/internal/telemetry"
)

// Job is a named cron-triggered callback.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context)
}

// Clock is the time source; tests substitute a manual one.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Locker grants a fire to one replica only.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Scheduler fires one job whenever its cron rule comes due. Fires missed while
// the process was idle or down are not replayed.
type Scheduler struct {
	job      Job
	expr     *cronexpr.Expression
	clock    Clock
	interval time.Duration
	loc      *time.Location
	locker   Locker
	logger   *log.Logger
	metrics  *telemetry.Metrics

	mu   sync.Mutex
	next time.Time
}

type Option func(*Scheduler)

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithInterval sets how often the idle loop checks the clock.
func WithInterval(d time.Duration) Option { return func(s *Scheduler) { s.interval = d } }

func WithLocation(loc *time.Location) Option { return func(s *Scheduler) { s.loc = loc } }

func WithLocker(l Locker) Option { return func(s *Scheduler) { s.locker = l } }

func WithLogger(l *log.Logger) Option { return func(s *Scheduler) { s.logger = l } }

func WithMetrics(m *telemetry.Metrics) Option { return func(s *Scheduler) { s.metrics = m } }

func New(job Job, opts ...Option) (*Scheduler, error) {
	if job.Run == nil {
		return nil, errors.New("scheduler: job run func required")
	}
	expr, err := cronexpr.Parse(job.Spec)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse cron %q: %w", job.Spec, err)
	}
	s := &Scheduler{
		job:      job,
		expr:     expr,
		clock:    systemClock{},
		interval: 30 * time.Second,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}
	s.next = s.expr.Next(s.now())
	return s, nil
}

func (s *Scheduler) now() time.Time { return s.clock.Now().In(s.loc) }

// Next is the upcoming fire time.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Start idles until ctx is done, checking for a due fire every interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Printf("job %s scheduled (%s), next run at %s", s.job.Name, s.job.Spec, s.Next().Format(time.RFC3339))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("job %s stopped", s.job.Name)
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs the job if its fire time has been reached and reports whether it ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	now := s.now()
	s.mu.Lock()
	if now.Before(s.next) {
		s.mu.Unlock()
		return false
	}
	fireAt := s.next
	s.next = s.expr.Next(now)
	next := s.next
	s.mu.Unlock()

	if s.locker != nil {
		key := fmt.Sprintf("sched:lock:%s:%d", s.job.Name, fireAt.Unix())
		ok, err := s.locker.Acquire(ctx, key, time.Hour)
		if err != nil {
			s.logger.Printf("job %s lock error: %v", s.job.Name, err)
			return false
		}
		if !ok {
			s.logger.Printf("job %s fire at %s taken by another replica", s.job.Name, fireAt.Format(time.RFC3339))
			return false
		}
	}

	s.logger.Printf("starting job %s: %s", s.job.Name, now.Format(time.RFC3339))
	s.metrics.SchedulerFired()
	s.run(ctx)
	s.logger.Printf("job %s next run at %s", s.job.Name, next.Format(time.RFC3339))
	return true
}

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("job %s panicked: %v\n%s", s.job.Name, r, debug.Stack())
		}
	}()
	s.job.Run(ctx)
}
