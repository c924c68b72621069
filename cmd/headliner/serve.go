package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/headliner/config"
	"github.com/mohammad-safakhou/headliner/internal/scheduler"
	srv "github.com/mohammad-safakhou/headliner/internal/server"
	"github.com/mohammad-safakhou/headliner/internal/worker"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API, the daily scheduler and the run worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := srv.Deps{
		Runner:         a.queue,
		Sessions:       a.sessions,
		SessionID:      cfg.Agent.SessionID,
		Daily:          func() (worker.Request, error) { return a.dailyRequest("", "") },
		Metrics:        promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if a.history != nil {
		deps.Runs = a.history
	}
	e := srv.New(deps)

	// Everything that can fail is built before the first goroutine starts.
	sched, err := a.newDailyScheduler()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.queue.Run(gctx) })
	g.Go(func() error { return srv.Serve(gctx, e, cfg.Server.Address) })
	if sched != nil {
		log.Printf("daily headlines scheduled %q, next at %s", cfg.Schedule.Cron, sched.Next().Format("2006-01-02 15:04 MST"))
		g.Go(func() error { return sched.Start(gctx) })
	}

	return g.Wait()
}

// newDailyScheduler builds the headline job, nil when scheduling is disabled.
func (a *app) newDailyScheduler() (*scheduler.Scheduler, error) {
	if !a.cfg.Schedule.Enabled {
		return nil, nil
	}
	loc, err := a.cfg.General.Location()
	if err != nil {
		return nil, err
	}
	opts := []scheduler.Option{
		scheduler.WithInterval(a.cfg.Schedule.PollInterval),
		scheduler.WithLocation(loc),
		scheduler.WithMetrics(a.metrics),
	}
	if a.rdb != nil {
		opts = append(opts, scheduler.WithLocker(scheduler.RedisLocker{Client: a.rdb}))
	}
	return scheduler.New(scheduler.Job{
		Name: "daily-headlines",
		Spec: a.cfg.Schedule.Cron,
		Run: func(ctx context.Context) {
			req, err := a.dailyRequest("", "")
			if err != nil {
				log.Printf("daily headlines: %v", err)
				return
			}
			if err := a.queue.Enqueue(req); err != nil {
				log.Printf("daily headlines not queued: %v", err)
			}
		},
	}, opts...)
}
