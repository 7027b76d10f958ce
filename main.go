package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kendall-kelly/cosmetics-store-api/config"
	"github.com/kendall-kelly/cosmetics-store-api/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	shutdownTimeout        = 15 * time.Second
	rateLimitCleanupPeriod = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled or the server fails. Everything it
// opens is released before it returns.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting cosmetics store API server...",
		zap.String("env", cfg.GoEnv),
		zap.String("env_file", cfg.EnvFile))

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if err := config.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database migration completed successfully")

	closeServices, err := initServices(ctx, cfg, db, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer closeServices()

	rt := setupRouter(cfg, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           rt.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server is running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(rateLimitCleanupPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				rt.authLimiter.Cleanup()
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// initServices builds the storage, messaging and domain services and registers them
// for the handlers. The returned func releases their connections.
func initServices(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *zap.Logger) (func(), error) {
	var closers []func() error

	var guests services.CartStore = services.NewMemoryCartStore()
	redisClient, err := config.ConnectRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		guests = services.NewRedisCartStore(redisClient)
		closers = append(closers, redisClient.Close)
		logger.Info("Guest carts stored in redis", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Info("REDIS_ADDR not set, guest carts kept in memory")
	}

	storage, err := services.InitS3Service(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.UsesS3() {
		logger.Info("Uploads stored in S3", zap.String("bucket", cfg.AWSS3Bucket))
	} else {
		logger.Info("Uploads stored on local disk", zap.String("dir", cfg.UploadDir))
	}
	images := services.InitImageService(storage)

	var events services.EventPublisher = services.NoopEventPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		events = services.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		logger.Info("Publishing order events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaOrderTopic))
	}
	closers = append(closers, events.Close)

	notifier := services.NewCartNotifier()
	services.SetCartService(services.NewCartService(db, services.NewDBCartStore(db), guests, notifier, logger.Named("cart")))
	services.SetOrderService(services.NewOrderService(db, images, events, notifier, logger.Named("orders")))
	services.SetCustomerService(services.NewCustomerService(db))
	services.SetProductService(services.NewProductService(db))
	services.SetAdminService(services.NewAdminService(db))
	services.InitAuthProvider(cfg)

	return func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("failed to close service", zap.Error(err))
			}
		}
	}, nil
}
