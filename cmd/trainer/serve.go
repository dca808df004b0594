package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zulandar/trainer/internal/dashboard"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the trainer HTTP API",
		Long:  "Serves the trainer state machine, topic catalog and history over HTTP with a server-sent event stream.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides dashboard.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx, cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if !cmd.Flags().Changed("port") {
		port = a.cfg.Dashboard.Port
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return dashboard.Start(ctx, dashboard.StartOpts{
		Controller:     a.ctrl,
		Port:           port,
		User:           userContext(a.cfg),
		FinishScore:    a.cfg.Scoring.Finish,
		FinishNowScore: a.cfg.Scoring.FinishNow,
		DigestCron:     a.cfg.Dashboard.DigestCron,
		Logger:         a.log,
		Out:            cmd.OutOrStdout(),
	})
}
