package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"spendwise/internal/amqp"
	"spendwise/internal/auth"
	"spendwise/internal/backup/cloud"
	"spendwise/internal/budget"
	"spendwise/internal/cache"
	"spendwise/internal/cli"
	apphttp "spendwise/internal/http"
	"spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/services"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return err
	}
	loc := cli.Location(logger, cfg)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	stores := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()

	// Change announcements are optional; the API works without a broker.
	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	var cloudManager *cloud.Manager
	if cfg.CloudEnabled() {
		gcs, err := cloud.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			logger.Error("Failed to initialize cloud backup", log.FieldError, err, "bucket", cfg.GCSBucket)
			return err
		}
		defer gcs.Close()
		cloudManager = cloud.NewManager(gcs, logger)
		logger.Info("Cloud backup enabled", "bucket", cfg.GCSBucket)
	}

	caches := cache.NewManager()
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	queue := services.NewWriteQueue(logger)
	owners := auth.ContextOwner{}

	ledger := services.NewTransactionService(stores.Ledger, owners, services.TransactionServiceOptions{
		Queue:     queue,
		Publisher: publisher,
		Location:  loc,
		Logger:    logger,
	})
	tracker := budget.NewTracker(stores.Budgets, budget.SystemClock)
	svc := apphttp.Services{
		Ledger: ledger,
		Dashboard: services.NewDashboardService(ledger, tracker, services.DashboardOptions{
			CacheSize: cfg.CacheSize,
			CacheTTL:  cfg.CacheTTL,
			Manager:   caches,
			Logger:    logger,
		}),
		Budget: services.NewBudgetService(tracker, owners, ledger.Revisions(), logger),
		Backup: services.NewBackupService(ledger, cloudManager, logger),
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("Failed to initialize token verifier", log.FieldError, err)
		return err
	}

	limiter, closeLimiter := newLimiter(cfg.RateLimit, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	defer closeLimiter()

	srv := apphttp.NewServer(svc, apphttp.Options{
		Addr:          ":" + cfg.Port,
		Tokens:        tokens,
		Limiter:       limiter,
		AllowedOrigin: cfg.AllowedOrigin,
		Ready: func(ctx context.Context) error {
			_, err := stores.Ledger.Owners(ctx)
			return err
		},
		Logger: logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting spendwise server", "port", cfg.Port, "backend", cfg.DataBackend, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cli.RunCleanup(logger, cfg.ShutdownTimeout, func(ctx context.Context) error {
			err := srv.Shutdown(ctx)
			// queued writes finish before the stores close
			queue.Close()
			return err
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// newLimiter picks the shared Redis limiter when Redis is configured so
// several replicas enforce one budget per owner.
func newLimiter(perMinute int, addr, password string, db int, logger *log.Logger) (ratelimit.Allower, func()) {
	if perMinute <= 0 {
		return nil, func() {}
	}
	if addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
		logger.Info("Rate limiting writes through redis", "addr", addr, "per_minute", perMinute)
		return ratelimit.NewRedisLimiter(client, perMinute, time.Minute, logger), func() { _ = client.Close() }
	}
	logger.Info("Rate limiting writes in process", "per_minute", perMinute)
	return ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: perMinute, CleanupInterval: 5 * time.Minute}), func() {}
}
