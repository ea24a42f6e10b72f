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

	"github.com/senyabanana/hospital-service/internal/db"
	"github.com/senyabanana/hospital-service/internal/handlers"
	"github.com/senyabanana/hospital-service/internal/metrics"
	"github.com/senyabanana/hospital-service/internal/middleware"
	"github.com/senyabanana/hospital-service/internal/repository"
	"github.com/senyabanana/hospital-service/internal/repository/memory"
	"github.com/senyabanana/hospital-service/internal/router"
	"github.com/senyabanana/hospital-service/internal/router/config"
	"github.com/senyabanana/hospital-service/internal/scoring"
	"github.com/senyabanana/hospital-service/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// repositories - набор хранилищ, выбранных по STORAGE_DRIVER.
type repositories struct {
	tenders  repository.TenderRepository
	numbers  repository.TenderNumberGenerator
	bids     repository.BidRepository
	vehicles repository.VehicleRepository
	bookings repository.BookingRepository
}

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	var repos repositories
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store := memory.NewStore()
		repos = repositories{tenders: store, numbers: store, bids: store, vehicles: store, bookings: store}
		logger.Warn("using in-memory storage, data will be lost on restart")
	default:
		if err := db.RunMigrations(cfg.MigrationURL, cfg.PostgresConn); err != nil {
			return err
		}
		logger.Info("db migrated successfully")

		dbPool, err := db.InitDb(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer dbPool.Close()

		repos = repositories{
			tenders:  repository.NewPostgresTenderRepository(dbPool),
			numbers:  repository.NewPostgresTenderNumberGenerator(dbPool),
			bids:     repository.NewPostgresBidRepository(dbPool),
			vehicles: repository.NewPostgresVehicleRepository(dbPool),
			bookings: repository.NewPostgresBookingRepository(dbPool),
		}
	}
	if cfg.TenderNumberSource == config.NumberSourceRedis {
		repos.numbers = repository.NewRedisTenderNumberGenerator(redisClient)
	}

	model, err := scoring.ParseModel(cfg.ScoringModel)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	tenderService := services.NewTenderService(repos.tenders, repos.numbers, m, cfg.DefaultCurrency)
	bidService := services.NewBidService(repos.bids, repos.tenders, m, model)
	vehicleService := services.NewVehicleService(repos.vehicles)
	dispatchService := services.NewDispatchService(repos.bookings, m)

	auth := middleware.NewAuthenticator(cfg.JWTSecret)
	mux := router.InitRoutes(auth, router.Handlers{
		Tender:  handlers.NewTenderHandler(tenderService, logger, cfg.RequestTimeout),
		Bid:     handlers.NewBidHandler(bidService, logger, cfg.RequestTimeout),
		Vehicle: handlers.NewVehicleHandler(vehicleService, logger, cfg.RequestTimeout),
		Booking: handlers.NewBookingHandler(dispatchService, logger, cfg.RequestTimeout),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	limiter, err := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustedProxies, m)
	if err != nil {
		return fmt.Errorf("configure rate limiter: %w", err)
	}
	handler := middleware.Chain(mux,
		middleware.Recover(logger),
		middleware.RequestLogger(logger),
		middleware.Instrument(m),
		limiter.Middleware,
	)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server is listening", zap.String("addr", cfg.ServerAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
