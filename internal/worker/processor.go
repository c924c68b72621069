package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/headliner/internal/agent"
	"github.com/mohammad-safakhou/headliner/internal/browser"
	"github.com/mohammad-safakhou/headliner/internal/store"
	"github.com/mohammad-safakhou/headliner/internal/telemetry"
	"github.com/mohammad-safakhou/headliner/session"
	"github.com/mohammad-safakhou/headliner/tools"
	browsertools "github.com/mohammad-safakhou/headliner/tools/browser"
	telegramtool "github.com/mohammad-safakhou/headliner/tools/telegram"
)

// SessionOpener starts a fresh browser tab.
type SessionOpener func(ctx context.Context) (browser.Session, error)

// LauncherOpener adapts a Launcher to a SessionOpener.
func LauncherOpener(l *browser.Launcher) SessionOpener {
	return func(ctx context.Context) (browser.Session, error) {
		s, err := l.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Options tune the agent every run is given.
type Options struct {
	MaxSteps     int
	SystemPrompt string
	MaxChars     int
}

// Processor executes the headline routine and interactive turns.
type Processor struct {
	logger   *log.Logger
	llm      agent.LLM
	sessions session.Store
	runs     store.RunLog
	open     SessionOpener
	notifier telegramtool.Deliverer
	metrics  *telemetry.Metrics
	opts     Options
}

func NewProcessor(logger *log.Logger, llm agent.LLM, sessions session.Store, runs store.RunLog, open SessionOpener, notifier telegramtool.Deliverer, metrics *telemetry.Metrics, opts Options) *Processor {
	if logger == nil {
		logger = log.New(log.Writer(), "[WORKER] ", log.LstdFlags)
	}
	if runs == nil {
		runs = store.NopRunLog{}
	}
	return &Processor{
		logger:   logger,
		llm:      llm,
		sessions: sessions,
		runs:     runs,
		open:     open,
		notifier: notifier,
		metrics:  metrics,
		opts:     opts,
	}
}

func runStatus(state agent.State) string {
	switch state {
	case agent.StateFinalAnswer:
		return store.RunStatusSucceeded
	case agent.StateGaveUp:
		return store.RunStatusGaveUp
	default:
		return store.RunStatusFailed
	}
}

// Process runs the agent once for req. Errors are reported in Result.Err and
// logged; nothing here panics the worker.
func (p *Processor) Process(ctx context.Context, req Request) Result {
	start := time.Now()
	if req.Trigger == "" {
		req.Trigger = TriggerInteractive
	}

	runID, err := p.runs.CreateRun(ctx, req.Trigger, req.SessionID, req.Prompt)
	if err != nil {
		p.logger.Printf("record run start: %v", err)
		runID = req.ID
	}

	page := &lazySession{open: p.open}
	defer func() {
		if err := page.Close(); err != nil {
			p.logger.Printf("run %s: close browser: %v", runID, err)
		}
	}()

	res := Result{RunID: runID}
	registry, err := p.registry(page)
	if err != nil {
		res.State = agent.StateFailed
		res.Err = err
		return p.finish(ctx, req, res, start)
	}

	ag := agent.New(p.llm, registry,
		agent.WithMaxSteps(p.opts.MaxSteps),
		agent.WithSystemPrompt(p.opts.SystemPrompt),
		agent.WithMetrics(p.metrics),
	)
	out, err := ag.Run(ctx, session.Bind(p.sessions, req.SessionID), req.Prompt)
	res.Reply = out.Reply
	res.State = out.State
	res.Steps = out.Steps
	res.Err = err
	return p.finish(ctx, req, res, start)
}

func (p *Processor) registry(page browser.Session) (*tools.Registry, error) {
	list := browsertools.Tools(page, p.opts.MaxChars)
	if p.notifier != nil {
		list = append(list, telegramtool.Tool(p.notifier))
	}
	return tools.NewRegistry(list...)
}

func (p *Processor) finish(ctx context.Context, req Request, res Result, start time.Time) Result {
	status := runStatus(res.State)
	var errMsg *string
	if res.Err != nil {
		msg := res.Err.Error()
		errMsg = &msg
		p.logger.Printf("%s run %s failed after %d steps: %v", req.Trigger, res.RunID, res.Steps, res.Err)
	} else {
		p.logger.Printf("%s run %s finished: %s in %d steps", req.Trigger, res.RunID, res.State, res.Steps)
	}
	// the run record is written even when the caller's context is gone
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.runs.FinishRun(fctx, res.RunID, status, res.Reply, res.Steps, errMsg); err != nil {
		p.logger.Printf("record run %s finish: %v", res.RunID, err)
	}
	p.metrics.RunFinished(req.Trigger, status, time.Since(start))
	return res
}

// lazySession opens the browser on the first navigation, so chat turns that
// never browse do not start a tab.
type lazySession struct {
	open SessionOpener

	mu sync.Mutex
	s  browser.Session
}

func (l *lazySession) Navigate(ctx context.Context, url string) (browser.Page, error) {
	l.mu.Lock()
	if l.s == nil {
		if l.open == nil {
			l.mu.Unlock()
			return browser.Page{}, errors.New("browser not available")
		}
		s, err := l.open(ctx)
		if err != nil {
			l.mu.Unlock()
			return browser.Page{}, fmt.Errorf("open browser: %w", err)
		}
		l.s = s
	}
	s := l.s
	l.mu.Unlock()
	return s.Navigate(ctx, url)
}

func (l *lazySession) Snapshot(ctx context.Context) (browser.Snapshot, error) {
	l.mu.Lock()
	s := l.s
	l.mu.Unlock()
	if s == nil {
		return browser.Snapshot{}, browser.ErrNoPage
	}
	return s.Snapshot(ctx)
}

func (l *lazySession) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.s == nil {
		return nil
	}
	err := l.s.Close()
	l.s = nil
	return err
}
