package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/headliner/config"
	"github.com/mohammad-safakhou/headliner/internal/worker"
)

func runCMD() *cobra.Command {
	var cfgPath, site, prompt string
	var run = &cobra.Command{
		Use:   "run",
		Short: "Run the daily headline routine once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := a.dailyRequest(site, prompt)
			if err != nil {
				return err
			}
			req.Trigger = worker.TriggerManual

			qctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() { _ = a.queue.Run(qctx) }()

			res, err := a.queue.Submit(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d steps)\n%s\n", res.RunID, res.State, res.Steps, res.Reply)
			return nil
		},
	}
	run.Flags().StringVar(&site, "site", "", "news site to read (overrides schedule.site)")
	run.Flags().StringVar(&prompt, "prompt", "", "prompt template (overrides schedule.prompt)")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return run
}
