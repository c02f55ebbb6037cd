package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/JoeShih716/go-craft-ledger/internal/app/audit"
	mongo_adapter "github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/out/mongodb"
	rabbitmq_adapter "github.com/JoeShih716/go-craft-ledger/internal/app/core/adapter/out/rabbitmq"
	"github.com/JoeShih716/go-craft-ledger/internal/config"
	"github.com/JoeShih716/go-craft-ledger/pkg/logger"
)

const configPath = "config/config.yaml"

func main() {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log).With().Str("service", "audit_worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("audit worker exited with error")
	}
	log.Info().Msg("audit worker exited")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.RabbitMQ.URL == "" {
		return errors.New("rabbitmq url is required")
	}

	// 1. MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Error().Err(err).Msg("failed to disconnect mongodb")
		}
	}()
	if err := client.Ping(connectCtx, nil); err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}
	repo := mongo_adapter.NewAuditRepository(client, cfg.Mongo.Database, cfg.Mongo.Collection)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		return err
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	// 2. RabbitMQ
	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := rabbitmq_adapter.DeclareTopology(ch, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, cfg.RabbitMQ.BindingKey); err != nil {
		return err
	}
	// 一次只拿 10 筆，處理完再拿
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	msgs, err := ch.Consume(
		cfg.RabbitMQ.Queue, // queue
		"audit_worker",     // consumer
		false,              // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("audit worker started, waiting for messages")
	return audit.NewWorker(repo, log).Run(ctx, msgs)
}
