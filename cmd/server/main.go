// Package main provides the entry point for the paper digest service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scholardigest/paper-digest-service/internal/catalog"
	"github.com/scholardigest/paper-digest-service/internal/config"
	"github.com/scholardigest/paper-digest-service/internal/database"
	"github.com/scholardigest/paper-digest-service/internal/generator"
	"github.com/scholardigest/paper-digest-service/internal/llm"
	"github.com/scholardigest/paper-digest-service/internal/observability"
	"github.com/scholardigest/paper-digest-service/internal/pdfextract"
	"github.com/scholardigest/paper-digest-service/internal/repository"
	"github.com/scholardigest/paper-digest-service/internal/selection"
	httpserver "github.com/scholardigest/paper-digest-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper-digest-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	paperRepo := repository.NewPgPaperRepository(db)
	metrics := observability.NewMetrics("paperdigest")

	// Build pipeline collaborators.
	catalogClient := catalog.New(catalog.Config{
		BaseURL:    cfg.Catalog.BaseURL,
		Timeout:    cfg.Catalog.Timeout,
		RateLimit:  cfg.Catalog.RateLimit,
		MaxResults: cfg.Catalog.MaxResults,
		MaxRetries: cfg.Catalog.MaxRetries,
		RetryDelay: cfg.Catalog.RetryDelay,
		Metrics:    metrics,
	})

	downloader := pdfextract.NewDownloader(pdfextract.DownloaderConfig{
		Timeout: cfg.PDF.Timeout,
		MaxSize: cfg.PDF.MaxSizeBytes,
	})
	extractor := pdfextract.NewExtractor(downloader, cfg.PDF.CacheDir, cfg.PDF.MaxPages, metrics)

	summarizer := llm.NewOpenAISummarizer(llm.OpenAIConfig{
		APIKey:  cfg.LLM.OpenAI.APIKey,
		Model:   cfg.LLM.OpenAI.Model,
		BaseURL: cfg.LLM.OpenAI.BaseURL,
		Metrics: metrics,
	}, cfg.LLM.Temperature, cfg.LLM.Timeout, cfg.LLM.MaxRetries, cfg.LLM.MaxInputChars)

	categories := cfg.Pipeline.DomainCategories()
	statusStore := generator.NewStatusStore(categories)

	gen := generator.New(generator.Config{
		PapersPerCategory:   cfg.Pipeline.PapersPerCategory,
		OverfetchFactor:     cfg.Pipeline.OverfetchFactor,
		LookbackDays:        cfg.Catalog.LookbackDays,
		CategoryConcurrency: cfg.Pipeline.CategoryConcurrency,
		PaperConcurrency:    cfg.Pipeline.PaperConcurrency,
		Categories:          categories,
	}, generator.Deps{
		Catalog:    catalogClient,
		Selector:   selection.NewPolicy(nil),
		Extractor:  extractor,
		Summarizer: summarizer,
		Repo:       paperRepo,
		Status:     statusStore,
		Metrics:    metrics,
		Logger:     logger,
	})

	httpCfg := httpserver.Config{
		Address:      cfg.Server.HTTPAddress(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
	}
	httpSrv := httpserver.NewServer(httpCfg, gen, paperRepo, categories, db, logger)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("address", httpCfg.Address).Msg("HTTP API server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("paper-digest-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper-digest-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	// Let in-flight generation runs finish before the pool closes.
	done := make(chan struct{})
	go func() {
		gen.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info().Msg("generation runs drained")
	case <-shutdownCtx.Done():
		logger.Warn().Msg("shutdown timeout reached with generation runs in flight")
	}

	logger.Info().Msg("paper-digest-service shutdown complete")
	return nil
}
