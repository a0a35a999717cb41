package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/dvloznov/statement-insights/internal/anomaly"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/infra"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/scanner"
)

func main() {
	configPath := flag.String("config", os.Getenv("STATEMENT_INSIGHTS_CONFIG"), "Path to YAML config (or set STATEMENT_INSIGHTS_CONFIG env)")
	once := flag.Bool("once", false, "Run a single scan and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnvironment(*configPath)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Invalid log level")
	}
	log := logger.NewJSON(os.Stdout, level)

	if len(cfg.Worker.Users) == 0 {
		log.Fatal().Msg("No users configured under worker.users")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	st, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open store")
	}
	defer st.Close()

	scan := scanner.New(anomaly.NewEngine(st), cfg.Worker.Users, cfg.AnomalyOptions(), log)

	if *once {
		if _, err := scan.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Scan finished with errors")
			os.Exit(1)
		}
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(scanner.CronLogger(log))))
	if _, err := scan.Schedule(ctx, c, cfg.Worker.Schedule); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule anomaly scans")
	}
	c.Start()

	log.Info().
		Str("schedule", cfg.Worker.Schedule).
		Strs("users", cfg.Worker.Users).
		Msg("Worker service started, waiting for scheduled scans...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Wait for a running scan before the store is closed.
	<-c.Stop().Done()
	cancel()

	log.Info().Msg("Worker service exited")
}
