package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/clients"
	"github.com/spacesedan/feedbackflow/internal/clients/kafka_client"
	"github.com/spacesedan/feedbackflow/internal/consumers"
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

	dynamo, err := clients.NewDynamoDBClient(ctx, cfg.AWS)
	if err != nil {
		slog.Error("[Main] Failed to create DynamoDB client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	svc := feedback.NewService(eng, db.NewDynamoStore(dynamo, cfg.AWS.FeedbackTable), metrics)

	go monitoring.MonitorModelHealth(ctx, eng, cfg.Monitor.ModelCheckInterval, metrics)

	topic := cfg.Kafka.UploadTopic
	if topic == "" {
		topic = kafka_client.KAFKA_TOPIC_FEEDBACK_UPLOADS
	}
	kafka_client.RegisterConsumer(topic, consumers.StartUploadConsumer(svc))

	if err := kafka_client.StartConsumer(ctx, cfg.Kafka); err != nil {
		slog.Error("[Main] Failed to start consumer",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
}
