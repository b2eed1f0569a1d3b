package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/bher20/avoidedcost/internal/config"
	"github.com/bher20/avoidedcost/internal/engine"
	"github.com/bher20/avoidedcost/internal/migrate"
	"github.com/bher20/avoidedcost/internal/storage"
)

type app struct {
	cfg        config.Config
	configPath string

	// flag overrides
	dbDriver  string
	dbDSN     string
	logLevel  string
	logFormat string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("avoidedcost failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "avoidedcost",
		Short:         "TRC and PAC benefit calculations from avoided-cost data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", os.Getenv("AVOIDEDCOST_CONFIG"), "YAML config file")
	f.StringVar(&a.dbDriver, "db-driver", "", "storage driver: memory, sqlite, postgres or postgrespool")
	f.StringVar(&a.dbDSN, "db-dsn", "", "storage DSN")
	f.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&a.logFormat, "log-format", "", "text or json")

	root.AddCommand(
		a.runCmd(),
		a.loadCmd(),
		a.resetCmd(),
		a.migrateCmd(),
		a.serveCmd(),
		a.workerCmd(),
		a.tokenCmd(),
		utilitiesCmd(),
	)
	return root
}

// init resolves configuration: defaults, then the config file, then the
// environment (.env included), then flags.
func (a *app) init(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db-driver") {
		cfg.DBDriver = a.dbDriver
	}
	if flags.Changed("db-dsn") {
		cfg.DBDSN = a.dbDSN
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	a.cfg = cfg
	initLogging(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func initLogging(level, format string) {
	switch strings.ToLower(format) {
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slogLevel(level),
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				switch a.Key {
				case slog.LevelKey:
					a.Key = "severity"
				case slog.MessageKey:
					a.Key = "message"
				}
				return a
			},
		})))
	default:
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:   slogLevel(level),
			NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
		})))
	}
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// openStorage applies the SQL migrations when enabled and opens the backend.
func (a *app) openStorage(ctx context.Context) (storage.Storage, error) {
	if a.cfg.AutoMigrate && a.cfg.DBDriver != "memory" {
		if err := migrate.Up(ctx, a.cfg.DBDriver, a.cfg.DBDSN); err != nil {
			return nil, fmt.Errorf("auto-migration: %w", err)
		}
	}
	return storage.Open(ctx, storage.Config{Driver: a.cfg.DBDriver, DSN: a.cfg.DBDSN})
}

func (a *app) engineOptions() (engine.Options, error) {
	adj, err := a.cfg.ThermsAdjustments()
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Concurrency:      a.cfg.Concurrency,
		ContinueOnError:  a.cfg.ContinueOnError,
		Adjustments:      adj,
		JoinOnValueCurve: a.cfg.JoinOnValueCurve,
	}, nil
}
