package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"academicbooks/aggregator/internal/books"
	"academicbooks/aggregator/internal/cache"
	"academicbooks/aggregator/internal/config"
	"academicbooks/aggregator/internal/database"
	"academicbooks/aggregator/internal/ingest"
	"academicbooks/aggregator/internal/server"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func usage() {
	fmt.Println("Usage: aggregator [command] [options]")
	fmt.Println("Commands: import, cleanup, start, server")
	fmt.Println("\nFor command-specific options, use: aggregator [command] -h")
}

func main() {
	cfg := config.DefaultConfig()

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	addCommonFlags(importCmd, cfg)
	var importUniversity string
	importCmd.StringVar(&importUniversity, "university", "",
		"Import only the named university (default: all configured)")

	cleanupCmd := flag.NewFlagSet("cleanup", flag.ExitOnError)
	addCommonFlags(cleanupCmd, cfg)

	startCmd := flag.NewFlagSet("start", flag.ExitOnError)
	addCommonFlags(startCmd, cfg)
	startCmd.StringVar(&cfg.Schedule, "schedule", config.GetEnvString("AGGREGATOR_SCHEDULE", config.DefaultSchedule),
		"Cron expression for periodic imports (env: AGGREGATOR_SCHEDULE)")

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	addCommonFlags(serverCmd, cfg)
	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("AGGREGATOR_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: AGGREGATOR_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("AGGREGATOR_PORT", config.DefaultServerPort),
		"Port to listen on (env: AGGREGATOR_PORT)")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "import":
		importCmd.Parse(os.Args[2:])
		zerolog.SetGlobalLevel(cfg.LogLevel)
		err = runImport(cfg, importUniversity)

	case "cleanup":
		cleanupCmd.Parse(os.Args[2:])
		zerolog.SetGlobalLevel(cfg.LogLevel)
		err = runCleanup(cfg)

	case "start":
		startCmd.Parse(os.Args[2:])
		zerolog.SetGlobalLevel(cfg.LogLevel)
		err = runStart(cfg)

	case "server":
		serverCmd.Parse(os.Args[2:])
		zerolog.SetGlobalLevel(cfg.LogLevel)
		err = runServer(cfg)

	case "-h", "--help", "help":
		usage()
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

// addCommonFlags registers the flags every subcommand shares, with
// environment fallbacks resolved at registration time.
func addCommonFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.DBPath, "db", config.GetEnvString("AGGREGATOR_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: AGGREGATOR_DB_PATH)")
	fs.StringVar(&cfg.SourcesPath, "sources", config.GetEnvString("AGGREGATOR_SOURCES_PATH", config.DefaultSourcesPath),
		"Path to the YAML sources file (env: AGGREGATOR_SOURCES_PATH)")
	fs.Func("log-level", "Log level: debug, info, warn, error (env: AGGREGATOR_LOG_LEVEL)", func(s string) error {
		level, err := zerolog.ParseLevel(s)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
		return nil
	})
	cfg.LogLevel = config.GetEnvLogLevel("AGGREGATOR_LOG_LEVEL", cfg.LogLevel)
}

func openAll(cfg *config.Config) (*database.DB, *config.Sources, *ingest.Engine, error) {
	sources, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load sources: %w", err)
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	engine := ingest.NewEngine(db, sources, ingest.Options{
		FetchTimeout: cfg.FetchTimeout,
	})
	return db, sources, engine, nil
}

// runImport runs a single import pass: all universities, or just one.
func runImport(cfg *config.Config, university string) error {
	db, _, engine, err := openAll(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if university != "" {
		return engine.ImportUniversity(ctx, university)
	}
	return engine.ImportAll(ctx)
}

// runCleanup runs the duplicate sweep once and exits.
func runCleanup(cfg *config.Config) error {
	db, _, engine, err := openAll(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	removed, err := engine.CleanupDuplicates(ctx)
	if err != nil {
		return err
	}
	log.Info().Int64("removed", removed).Msg("Cleanup completed")
	return nil
}

// runStart runs an immediate import, then keeps importing on the configured
// cron schedule until a termination signal arrives. Each import is followed
// by a duplicate sweep.
func runStart(cfg *config.Config) error {
	db, _, engine, err := openAll(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	runCycle := func() {
		cycleCtx, cycleCancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cycleCancel()

		start := time.Now()
		if err := engine.ImportAll(cycleCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Msg("Import cycle failed")
		}
		if _, err := engine.CleanupDuplicates(cycleCtx); err != nil {
			log.Error().Err(err).Msg("Post-import cleanup failed")
		}
		log.Info().Dur("duration", time.Since(start)).Msg("Import cycle finished")
	}

	log.Info().Str("schedule", cfg.Schedule).Msg("Running in scheduled mode")
	runCycle()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Schedule, runCycle); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	scheduler.Start()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, stopping scheduler")

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(time.Minute):
		log.Warn().Msg("Scheduler stop timed out")
	}
	return nil
}

// runServer starts the HTTP API with the import pipeline and book service
// wired in.
func runServer(cfg *config.Config) error {
	db, sources, engine, err := openAll(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	bookClient := books.NewClient(cfg.FetchTimeout, cfg.GoogleBooksAPIKey)
	bookCache := cache.New(db, cfg.CacheTTL)
	bookSvc := books.NewService(db, bookClient, bookCache, sources, cfg.WorkerCount)

	return server.RunServer(db, cfg.ListenAddr(), log.Logger, cfg.APIKey, engine, bookSvc, sources)
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
