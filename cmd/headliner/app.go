package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/headliner/config"
	"github.com/mohammad-safakhou/headliner/internal/browser"
	"github.com/mohammad-safakhou/headliner/internal/notifier"
	"github.com/mohammad-safakhou/headliner/internal/store"
	"github.com/mohammad-safakhou/headliner/internal/telemetry"
	"github.com/mohammad-safakhou/headliner/internal/worker"
	"github.com/mohammad-safakhou/headliner/provider"
	"github.com/mohammad-safakhou/headliner/session"
	"github.com/mohammad-safakhou/headliner/session/inmemory"
	redis_session "github.com/mohammad-safakhou/headliner/session/redis"
)

// app holds the shared dependencies of serve and run.
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	rdb      *redis.Client
	history  *store.Store
	sessions session.Store
	launcher *browser.Launcher
	notifier *notifier.Telegram
	queue    *worker.Queue
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if cfg.Telemetry.Enabled {
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := telemetry.NewMetrics(a.registry)
		if err != nil {
			return nil, err
		}
		a.metrics = m
	}

	a.sessions = inmemory.NewInMemorySessionStore()
	if cfg.Storage.Redis.Enabled() {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:        cfg.Storage.Redis.Addr(),
			Password:    cfg.Storage.Redis.Password,
			DB:          cfg.Storage.Redis.DB,
			DialTimeout: cfg.Storage.Redis.Timeout,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
		a.sessions = redis_session.NewRedisSessionStore(a.rdb, cfg.Storage.Redis.KeyPrefix)
	}

	var runs store.RunLog = store.NopRunLog{}
	if cfg.Storage.Postgres.Enabled() {
		st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.history = st
		runs = st
	}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	a.notifier = notifier.New(cfg.Telegram, notifier.WithMetrics(a.metrics))
	if !a.notifier.Configured() {
		log.Printf("telegram credentials not set, notifications will be skipped")
	}
	a.launcher = browser.NewLauncher(cfg.Browser, nil)

	proc := worker.NewProcessor(nil, llm, a.sessions, runs, worker.LauncherOpener(a.launcher), a.notifier, a.metrics, worker.Options{
		MaxSteps:     cfg.Agent.MaxSteps,
		SystemPrompt: cfg.Agent.SystemPrompt,
		MaxChars:     cfg.Browser.MaxChars,
	})
	a.queue = worker.NewQueue(proc, cfg.Queue.Capacity, worker.WithQueueMetrics(a.metrics))
	ok = true
	return a, nil
}

// dailyRequest builds the headline routine, optionally for another site or prompt.
func (a *app) dailyRequest(site, prompt string) (worker.Request, error) {
	if site == "" {
		site = a.cfg.Schedule.Site
	}
	if prompt == "" {
		prompt = a.cfg.Schedule.Prompt
	}
	text, err := worker.RenderPrompt(prompt, worker.PromptData{
		Site:      site,
		Headlines: a.cfg.Schedule.Headlines,
		Language:  a.cfg.Schedule.Language,
	})
	if err != nil {
		return worker.Request{}, err
	}
	return worker.Request{
		ID:        uuid.NewString(),
		Trigger:   worker.TriggerScheduled,
		SessionID: a.cfg.Schedule.SessionID,
		Prompt:    text,
	}, nil
}

func (a *app) Close() {
	if a.launcher != nil {
		if err := a.launcher.Close(); err != nil {
			log.Printf("close browser: %v", err)
		}
	}
	if a.history != nil {
		_ = a.history.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
