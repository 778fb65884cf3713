package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Config captures all options required to run the ETL. Flags take
// precedence; environment variables (and an optional .env file) supply
// the defaults.
type Config struct {
	SourcePath string `env:"ETL_SOURCE_PATH"`
	HasHeader  bool   `env:"ETL_HAS_HEADER" envDefault:"true"`
	BatchSize  int    `env:"ETL_BATCH_SIZE" envDefault:"50000"`
	DBPath     string `env:"ETL_DB_PATH" envDefault:"db/enron.db"`
	LogLevel   string `env:"ETL_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"ETL_LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// FromEnv loads defaults from the environment, reading a .env file if one
// exists.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// RegisterFlags attaches all CLI flags to the provided command, seeded
// with the environment defaults.
func RegisterFlags(cmd *cobra.Command) error {
	defaults, err := FromEnv()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	flags.String("source", defaults.SourcePath, "Path to the CSV export of raw messages (columns: file, message)")
	flags.Bool("has-header", defaults.HasHeader, "First row of the CSV is a column header")
	flags.Int("batch-size", defaults.BatchSize, "Records per commit batch")
	flags.String("db", defaults.DBPath, "Path of the SQLite database to create")
	flags.String("log-level", defaults.LogLevel, "Logging level: debug, info, warn, error")
	flags.String("log-format", defaults.LogFormat, `Log output format: "text" or "json"`)

	if defaults.SourcePath == "" {
		if err := cmd.MarkFlagRequired("source"); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with
// validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	sourcePath, err := flags.GetString("source")
	if err != nil {
		return Config{}, err
	}
	hasHeader, err := flags.GetBool("has-header")
	if err != nil {
		return Config{}, err
	}
	batchSize, err := flags.GetInt("batch-size")
	if err != nil {
		return Config{}, err
	}
	dbPath, err := flags.GetString("db")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return Config{}, err
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		SourcePath: sourcePath,
		HasHeader:  hasHeader,
		BatchSize:  batchSize,
		DBPath:     dbPath,
		LogLevel:   logLevel,
		LogFormat:  strings.ToLower(logFormat),
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.SourcePath == "" {
		return fmt.Errorf("--source is required (or set ETL_SOURCE_PATH)")
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("--db must not be empty")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("--batch-size must be positive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid --log-format: %s", cfg.LogFormat)
	}

	return nil
}
