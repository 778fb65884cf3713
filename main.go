package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/vasterlake/enron-email-analytics/internal/config"
	"github.com/vasterlake/enron-email-analytics/internal/pipeline"
	"github.com/vasterlake/enron-email-analytics/internal/source"
	"github.com/vasterlake/enron-email-analytics/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "enron-etl",
		Short: "Load a raw email corpus export into a normalized SQLite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger := setupLogger(cfg)
			slog.SetDefault(logger)

			return run(cmd, cfg, logger)
		},
	}
	rootCmd.SilenceUsage = true

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, cfg config.Config, logger *slog.Logger) error {
	logger.Info("starting ingestion",
		"source", cfg.SourcePath, "db", cfg.DBPath, "batchSize", cfg.BatchSize)

	reader, err := source.Open(cfg.SourcePath, cfg.HasHeader)
	if err != nil {
		return err
	}
	defer reader.Close()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	showProgress := cfg.LogFormat == "text" && cfg.LogLevel == "info"
	if _, err := pipeline.New(st, reader, cfg.BatchSize, logger).
		WithProgress(showProgress).
		Run(ctx); err != nil {
		return err
	}

	counts, err := st.Counts()
	if err != nil {
		return err
	}
	logger.Info("database totals",
		"persons", counts.Persons, "domains", counts.Domains,
		"emails", counts.Emails, "recipients", counts.Recipients)

	return nil
}

func setupLogger(cfg config.Config) *slog.Logger {
	var handler slog.Handler
	level := parseLevel(cfg.LogLevel)

	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
