package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/anomaly"
	"github.com/dvloznov/statement-insights/internal/api"
	"github.com/dvloznov/statement-insights/internal/api/handlers"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/gcsuploader"
	"github.com/dvloznov/statement-insights/internal/infra"
	"github.com/dvloznov/statement-insights/internal/insights"
	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/jobs/inmemory"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/pipeline"
)

func main() {
	configPath := flag.String("config", os.Getenv("STATEMENT_INSIGHTS_CONFIG"), "Path to YAML config (or set STATEMENT_INSIGHTS_CONFIG env)")
	port := flag.String("port", "", "HTTP server port (overrides config)")
	flag.Parse()

	// Amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.LoadFromEnvironment(*configPath)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Invalid log level")
	}
	log := logger.NewJSON(os.Stdout, level)

	ctx := context.Background()

	st, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open store")
	}
	defer st.Close()

	service := pipeline.NewService(st, st, pipeline.NewCategorizer(cfg.CategoryRules()))
	engine := anomaly.NewEngine(st)
	advisor := insights.NewService(st, engine,
		insights.WithAnomalyOptions(cfg.AnomalyOptions()),
		insights.WithModel(openModel(ctx, cfg.Insights, log)))

	// Asynchronous imports need somewhere to fetch statements from.
	var (
		storage  gcsuploader.StorageService
		jobQueue *inmemory.Queue
		jobStore = inmemory.NewStore()
	)
	if cfg.Storage.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - import jobs will be disabled")
	} else {
		gcsClient, err := gcsuploader.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS client")
		}
		defer gcsClient.Close()
		storage = gcsClient
		jobQueue = inmemory.NewQueue(cfg.Server.QueueCapacity, jobStore)
	}

	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	var publisher jobs.Publisher
	if jobQueue != nil {
		publisher = jobQueue
		handler := jobs.NewImportHandler(storage, service)
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, handler); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job worker")
		}
	}

	router := api.NewRouter(api.Handlers{
		Statements: handlers.NewStatementsHandler(service, publisher, storage, cfg.Storage.Bucket, cfg.ImportOptions(), log),
		Anomalies:  handlers.NewAnomaliesHandler(engine, cfg.AnomalyOptions(), log),
		Insights:   handlers.NewInsightsHandler(advisor, log),
		Jobs:       handlers.NewJobsHandler(jobStore, log),
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("backend", cfg.Store.Backend).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight imports finish before the store is closed.
	if jobQueue != nil {
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// openModel returns the Gemini model when an API key is configured. A nil
// model leaves the insights service on its deterministic fallback.
func openModel(ctx context.Context, cfg config.InsightsConfig, log zerolog.Logger) insights.Model {
	if cfg.APIKey == "" {
		log.Info().Msg("No Gemini API key configured - using fallback insights")
		return nil
	}
	model, err := insights.NewGeminiModel(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable - using fallback insights")
		return nil
	}
	log.Info().Str("model", cfg.Model).Msg("Gemini insights enabled")
	return model
}
