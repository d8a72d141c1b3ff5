package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/api"
	"github.com/spacesedan/feedbackflow/internal/clients"
	"github.com/spacesedan/feedbackflow/internal/clients/kafka_client"
	"github.com/spacesedan/feedbackflow/internal/db"
	"github.com/spacesedan/feedbackflow/internal/engine"
	"github.com/spacesedan/feedbackflow/internal/feedback"
	"github.com/spacesedan/feedbackflow/internal/logging"
	"github.com/spacesedan/feedbackflow/internal/monitoring"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()
	eng, err := engine.Build(cfg, metrics)
	if err != nil {
		slog.Error("[Main] Failed to build engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer eng.Close()

	store, err := newStore(ctx, cfg)
	if err != nil {
		slog.Error("[Main] Failed to create feedback store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var publisher api.UploadPublisher
	if cfg.AsyncUploads {
		producer, err := kafka_client.NewProducer(ctx, cfg.Kafka, kafka_client.TransactionalID("api"))
		if err != nil {
			slog.Error("[Main] Failed to create Kafka producer", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer producer.Close()
		publisher = producer
	}

	if cfg.Engine.WarmupOnStart {
		go monitoring.MonitorModelHealth(ctx, eng, cfg.Monitor.ModelCheckInterval, metrics)
	}

	svc := feedback.NewService(eng, store, metrics)
	mux := http.NewServeMux()
	api.NewHTTPHandler(svc, eng, publisher, metrics.Handler()).RegisterHTTPHandlers("/api/", mux)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("[Main] HTTP server listening", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] HTTP server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[Main] Shutting down API gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[Main] HTTP shutdown incomplete", slog.String("error", err.Error()))
	}
}

func newStore(ctx context.Context, cfg config.Config) (db.Store, error) {
	if cfg.StoreBackend == config.StoreMemory {
		slog.Warn("[Main] Using in-memory feedback store, records are lost on restart")
		return db.NewMemoryStore(), nil
	}
	client, err := clients.NewDynamoDBClient(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	return db.NewDynamoStore(client, cfg.AWS.FeedbackTable), nil
}
