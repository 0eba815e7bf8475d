package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tkilaker/curator/internal/scheduler"
	"github.com/tkilaker/curator/internal/server"
	"github.com/tkilaker/curator/internal/tasks"
)

func serveCmd() *cobra.Command {
	var portFlag int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard, API and RSS server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if portFlag > 0 {
				a.cfg.Port = portFlag
			}

			queue := tasks.NewQueue(a.cfg.TaskQueueSize, a.cfg.TaskTimeout, a.logger.With("component", "tasks"))
			defer queue.Close()

			sched := scheduler.New(a.cfg.ScheduleInterval, a.runPass, a.logger.With("component", "scheduler"))
			sched.Start(ctx)
			defer sched.Stop()

			srv := server.New(server.Deps{
				DB:       a.db,
				Registry: a.registry,
				Pipeline: a.pipeline,
				Analyzer: a.analyzer,
				Tasks:    queue,
			}, a.cfg, a.logger)

			addr := fmt.Sprintf(":%d", a.cfg.Port)
			a.logger.Info("server starting", "url", "http://localhost"+addr)
			return srv.Start(ctx, addr)
		},
	}
	cmd.Flags().IntVar(&portFlag, "port", 0, "Listen port (overrides PORT)")
	return cmd
}
