package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/foreman/internal/conflict"
	"github.com/zulandar/foreman/internal/notify"
	"github.com/zulandar/foreman/internal/planner"
	"github.com/zulandar/foreman/internal/server"
	"github.com/zulandar/foreman/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API",
		Long: `Starts the HTTP API with live websocket and SSE updates.

Conflicts at or above notify.min_severity are alerted to the configured
Slack, Discord and GitHub destinations, and the schedule digest is sent on
notify.digest.cron.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	ws, err := openWorkspace(ctx, configPath)
	if err != nil {
		return err
	}
	notifiers, err := buildNotifiers(ctx, ws.cfg)
	if err != nil {
		return err
	}

	var opts planner.Options
	if len(notifiers) > 0 {
		opts.Watcher = &notify.Watcher{
			Notifier:    notifiers,
			Project:     ws.project.Name,
			MinSeverity: conflict.Severity(ws.cfg.Notify.MinSeverity),
		}
	}
	pl := ws.planner(ctx, opts)
	defer pl.Close()

	fmt.Fprintf(out, "Loaded %d tasks for %s\n", len(pl.Snapshot().Tasks), ws.project.Name)
	fmt.Fprintf(out, "Alerts: %s\n", describeNotifiers(notifiers))

	if expr := ws.cfg.Notify.Digest.Cron; expr != "" && len(notifiers) > 0 {
		sched := &notify.Scheduler{
			Cron:     expr,
			Build:    digestBuilder(pl, ws.cfg.Perspective()),
			Notifier: notifiers,
		}
		go func() {
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("serve: digest: %v", err)
			}
		}()
		fmt.Fprintf(out, "Digest: %s\n", expr)
	}

	if port <= 0 {
		port = ws.cfg.Server.Port
	}
	return server.Start(ctx, server.StartOpts{
		Planner: pl,
		Port:    port,
		Out:     out,
		Stats:   &store.Feedback{DB: ws.db},
	})
}

func newDigestCmd() *cobra.Command {
	var (
		configPath string
		send       bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print or send the schedule digest",
		Long:  "Summarises task status, overdue and upcoming work, conflicts and the critical path. With --send, posts it to the configured destinations.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, configPath, send)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&send, "send", false, "send to the configured notification destinations")
	return cmd
}

func runDigest(cmd *cobra.Command, configPath string, send bool) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	ws, err := openWorkspace(ctx, configPath)
	if err != nil {
		return err
	}
	pl := ws.planner(ctx, planner.Options{})
	defer pl.Close()

	build := digestBuilder(pl, ws.cfg.Perspective())

	if send {
		notifiers, err := buildNotifiers(ctx, ws.cfg)
		if err != nil {
			return err
		}
		if len(notifiers) == 0 {
			return fmt.Errorf("no notification destinations configured")
		}
		sched := &notify.Scheduler{Cron: ws.cfg.Notify.Digest.Cron, Build: build, Notifier: notifiers}
		if err := sched.RunOnce(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "Digest sent to %s\n", describeNotifiers(notifiers))
		return nil
	}

	a, ok, err := build(ctx, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "No tasks scheduled.")
		return nil
	}
	fmt.Fprintln(out, a.Title)
	fmt.Fprintln(out, strings.Repeat("=", len(a.Title)))
	fmt.Fprintln(out, a.Body)
	for _, f := range a.Fields {
		fmt.Fprintf(out, "%s: %s\n", f.Name, f.Value)
	}
	return nil
}
