package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/preflight-agent/internal/processing"
	"github.com/jonathan/preflight-agent/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the preflight wizard, job status and compliance checks as REST endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, true, false)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.ServerAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	deps := server.Deps{
		Orchestrator: a.orch,
		Processor:    a.client,
		Compliance: &processing.ComplianceRunner{
			Orchestrator: a.orch,
			Client:       a.client,
			Interval:     a.cfg.PollInterval(),
			Timeout:      a.cfg.JobTimeout(),
		},
		Logger: a.logger,
	}
	// A nil *db.DB must not end up in the interfaces.
	if a.history != nil {
		deps.History = a.history
		deps.Audit = a.history
	} else {
		a.logger.Warn("no database configured; job history and session audit are disabled")
	}

	srv, err := server.New(server.Config{
		Addr:         addr,
		CORSOrigins:  a.cfg.CORSOrigins,
		WorkDir:      a.cfg.WorkDir,
		PollInterval: a.cfg.PollInterval(),
		JobTimeout:   a.cfg.JobTimeout(),
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
