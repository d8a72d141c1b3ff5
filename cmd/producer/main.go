package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/clients"
	"github.com/spacesedan/feedbackflow/internal/clients/kafka_client"
	"github.com/spacesedan/feedbackflow/internal/logging"
	"github.com/spacesedan/feedbackflow/internal/producer"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()
	cfg := config.Load()

	if cfg.Fb.PageID == "" {
		slog.Error("[Main] FACEBOOK_PAGE_ID is not set")
		os.Exit(1)
	}

	interval := cfg.Fb.FetchEvery
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var kafkaProducer *kafka_client.Producer
	for {
		p, err := kafka_client.NewProducer(ctx, cfg.Kafka, kafka_client.TransactionalID("facebook"))
		if err == nil {
			kafkaProducer = p
			break
		}

		slog.Warn("[Main] Kafka init failed, retrying...", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
	defer kafkaProducer.Close()

	valkey, err := clients.NewValkeyClient(cfg.Valkey)
	if err != nil {
		slog.Error("[Main] Failed to connect to Valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer valkey.Close()

	fetcher := producer.NewFacebookFetcher(
		clients.NewFacebookClient(cfg.Fb),
		valkey,
		kafkaProducer,
		cfg.Fb.PageID,
		2*interval,
	)

	run := func() {
		if _, err := fetcher.FetchAndPublish(ctx); err != nil {
			slog.Error("[Main] Facebook fetch failed", slog.String("error", err.Error()))
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			slog.Info("[Main] Shutting down producer gracefully...")
			return
		}
	}
}
