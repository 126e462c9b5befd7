// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citecheck/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the audit as an HTTP service",
	Long: `Serve exposes the audit over HTTP:

  GET  /health        liveness check
  POST /check         audit {"citations": [...]} and return the report
  GET  /report.json   the most recent report

The service shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :8080)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditor, closeCache, err := buildAuditor(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing cache: %v\n", err)
		}
	}()

	return server.New(auditor, cfg.Server).ListenAndServe(ctx, cfg.Server.Addr)
}
