package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"spendwise/internal/amqp"
	"spendwise/internal/backup/cloud"
	"spendwise/internal/cli"
	"spendwise/internal/log"
	"spendwise/internal/mirror"
	"spendwise/internal/worker"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	logger.Info("Starting spendwise-worker")

	if cfg.AMQPURL == "" {
		err := errors.New("AMQP_URL is required")
		logger.Error("Configuration validation failed", log.FieldError, err)
		return err
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	// The worker reads ledgers straight from the shared database.
	stores := cli.InitBackend(ctx, logger, cfg)
	defer stores.Close()

	var m worker.Mirror
	if cfg.MongoURI != "" {
		client, err := mirror.Connect(ctx, cfg.MongoURI, logger)
		if err != nil {
			logger.Error("Failed to connect to Mongo", log.FieldError, err)
			return err
		}
		defer disconnect(client, cfg.ShutdownTimeout, logger)
		m = mirror.NewMongoRepository(mirror.NewMongoProvider(client, cfg.MongoDatabase))
		logger.Info("Mongo mirror enabled", "database", cfg.MongoDatabase)
	} else {
		logger.Info("Mongo mirror disabled - no MONGO_URI provided")
	}

	var uploader worker.Uploader
	switch {
	case !cfg.CloudEnabled():
		logger.Info("Cloud auto-backup disabled - no GCS_BUCKET provided")
	case !cfg.AutoBackup:
		logger.Info("Cloud auto-backup disabled by AUTO_BACKUP")
	default:
		gcs, err := cloud.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			logger.Error("Failed to initialize cloud backup", log.FieldError, err, "bucket", cfg.GCSBucket)
			return err
		}
		defer gcs.Close()
		uploader = cloud.NewManager(gcs, logger)
		logger.Info("Cloud auto-backup enabled", "bucket", cfg.GCSBucket)
	}

	if m == nil && uploader == nil {
		logger.Warn("No sync targets configured; messages will be acknowledged without work")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return err
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(stores.Ledger, m, uploader, logger)

	// Catch up on changes published while the worker was down.
	owners, err := stores.Ledger.Owners(ctx)
	if err != nil {
		logger.Error("Failed to list owners for startup resync", log.FieldError, err)
	} else if err := syncWorker.Resync(ctx, owners); err != nil {
		logger.Error("Startup resync incomplete", log.FieldError, err)
	}

	logger.Info("Consuming transaction changes", "queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumeWithRetry(ctx, syncWorker.HandleTransactionChanged); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		return fmt.Errorf("consume: %w", err)
	}

	logger.Info("Worker shutdown complete")
	return nil
}

func disconnect(client *mongo.Client, timeout time.Duration, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn("Mongo disconnect failed", log.FieldError, err)
	}
}
