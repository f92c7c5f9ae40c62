package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/carelinkhq/medcall/internal/call_service/app"
	"github.com/carelinkhq/medcall/internal/call_service/provider"
	callRepoImpl "github.com/carelinkhq/medcall/internal/call_service/repository/postgres"
	"github.com/carelinkhq/medcall/internal/call_service/transcription"
	callhttp "github.com/carelinkhq/medcall/internal/call_service/transport/http"
	"github.com/carelinkhq/medcall/internal/platform/config"
	"github.com/carelinkhq/medcall/internal/platform/database"
	"github.com/carelinkhq/medcall/internal/platform/logger"
	"github.com/carelinkhq/medcall/internal/platform/messagebroker"
)

const serviceName = "call_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Call service starting...", "port", cfg.ServerPort)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	dbPool, err := database.NewDBPool(rootCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL database")

	// Lifecycle events are best-effort; the service runs degraded without
	// a broker rather than refusing to start.
	var events app.EventPublisher
	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Warn("NATS unavailable, lifecycle events disabled", "error", err)
	} else {
		defer natsClient.Close()
		events = natsClient
		appLogger.Info("Connected to NATS")
	}

	notifier := provider.NewTwilioProvider(appLogger, cfg.TwilioAPIURL, cfg.TwilioAccountSID, cfg.TwilioAuthToken, nil)

	retryPolicy := transcription.DefaultRetryPolicy()
	if cfg.TranscriptionMaxRetries >= 0 {
		retryPolicy.MaxRetries = cfg.TranscriptionMaxRetries
	}
	fetcher := transcription.NewHTTPFetcher(
		appLogger, cfg.STTAPIURL, cfg.STTAPIKey,
		cfg.TwilioAccountSID, cfg.TwilioAuthToken,
		retryPolicy, nil,
	)

	callRepo := callRepoImpl.NewPgCallRepository(dbPool, appLogger)

	callbacks := app.CallbackURLs{
		Answer:    cfg.PublicBaseURL + "/api/call/voice",
		Status:    cfg.PublicBaseURL + "/api/call/status",
		Recording: cfg.PublicBaseURL + "/api/call/webhook/recording",
	}
	callService := app.NewCallAppService(
		callRepo, notifier, fetcher, events, appLogger,
		callbacks, cfg.TwilioPhoneNumber, cfg.RecordingSettleDelay(),
	)

	validate := validator.New()
	callHandler := callhttp.NewCallHandler(callService, appLogger, validate)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	callHandler.RegisterRoutes(router)

	// The recording webhook blocks on the settle delay plus the full retry
	// budget; each transcription attempt is two HTTP requests (download,
	// then transcribe).
	webhookTimeout := cfg.RecordingSettleDelay() +
		retryPolicy.WorstCase(2*transcription.DefaultHTTPTimeout) +
		5*time.Second

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: webhookTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, gCtx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server for webhooks starting", "address", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("Metrics HTTP server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics HTTP server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		stopSignal := make(chan os.Signal, 1)
		signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-stopSignal:
			appLogger.Info("Shutdown signal received", "signal", sig.String())
		case <-gCtx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server shutdown error", "error", err)
		}
		rootCancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Call service shut down gracefully.")
}
