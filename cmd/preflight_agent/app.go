package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonathan/preflight-agent/internal/config"
	"github.com/jonathan/preflight-agent/internal/db"
	"github.com/jonathan/preflight-agent/internal/jobs"
	"github.com/jonathan/preflight-agent/internal/observability"
	"github.com/jonathan/preflight-agent/internal/processing"
	"github.com/spf13/cobra"
)

// app bundles the collaborators every command needs.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	printer *observability.Printer
	client  *processing.Client
	orch    *jobs.Orchestrator
	history *db.DB
}

// loadConfig resolves config file, environment and root flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if apiURL != "" {
		cfg.APIBaseURL = apiURL
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	cfg.Verbose = cfg.Verbose || verbose
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newApp wires logger, Processing API client and orchestrator. When withHistory
// is set and a database URL is configured, job snapshots are recorded there.
// quiet drops time and level from text logs.
func newApp(cmd *cobra.Command, withHistory, quiet bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cmd.ErrOrStderr(), observability.LoggerOptions{
		Format:  cfg.LogFormat,
		Verbose: cfg.Verbose,
		Quiet:   quiet,
	})
	printer := observability.NewPrinter(cmd.OutOrStdout())

	client, err := processing.NewClient(processing.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.HTTPTimeout(),
		UserAgent: cfg.UserAgent,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, printer: printer, client: client}
	opts := []jobs.Option{jobs.WithLogger(logger), jobs.WithNotifier(printer)}
	if withHistory && cfg.DatabaseURL != "" {
		history, err := openHistory(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.history = history
		opts = append(opts, jobs.WithRecorder(history))
	}
	a.orch = jobs.New(client, opts...)
	return a, nil
}

// openHistory connects to the job history database and applies the schema.
func openHistory(ctx context.Context, databaseURL string) (*db.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to job history database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func (a *app) Close() {
	if a.history != nil {
		a.history.Close()
	}
}

// ensureParentDir creates the directory an output file will be written to.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
