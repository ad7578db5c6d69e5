package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/MinhajJamraiz/natours/internal/auth"
	"github.com/MinhajJamraiz/natours/internal/config"
	"github.com/MinhajJamraiz/natours/internal/email"
	"github.com/MinhajJamraiz/natours/internal/event"
	handler "github.com/MinhajJamraiz/natours/internal/handler/http"
	"github.com/MinhajJamraiz/natours/internal/lock"
	"github.com/MinhajJamraiz/natours/internal/payment"
	"github.com/MinhajJamraiz/natours/internal/service"
	"github.com/MinhajJamraiz/natours/internal/store"
	"github.com/MinhajJamraiz/natours/pkg/database"
	"github.com/MinhajJamraiz/natours/pkg/health"
	pkgkafka "github.com/MinhajJamraiz/natours/pkg/kafka"
	"github.com/MinhajJamraiz/natours/pkg/middleware"
	"github.com/MinhajJamraiz/natours/pkg/tracing"
)

// App wires together all dependencies and runs the natours server.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.Handle
	redis      *redis.Client
	producer   *pkgkafka.Producer
	tracer     tracing.Shutdown
	httpServer *http.Server
	// stop ends background work started for the router.
	stop context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracer, err := tracing.Setup(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	a.tracer = tracer

	database.SetSlowQueryLogging(cfg.SlowQuery, logger)

	// Document store, migrated on open for PostgreSQL.
	a.store, err = store.Open(ctx, cfg.Store(), prometheus.DefaultRegisterer, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Rating recomputes serialize through Redis when several replicas run.
	var locker lock.Locker = lock.NewKeyedMutex()
	if redisCfg := cfg.Redis(); redisCfg.Enabled() {
		a.redis, err = database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		locker = lock.NewRedisLocker(a.redis, cfg.RedisLockTTL, 0, logger)
		logger.Info("using redis rating lock", slog.Duration("ttl", cfg.RedisLockTTL))
	}

	var events event.Publisher = event.Nop{}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			WriteTimeout: 10 * time.Second,
		}, logger)
		events = event.NewProducer(a.producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	var mailer email.Sender = email.NewLogSender(logger)
	if smtpCfg := cfg.SMTP(); smtpCfg.Enabled() {
		mailer = email.NewSMTPSender(smtpCfg, logger)
	}
	mailer = email.NewBreakerSender(mailer, email.DefaultBreakerConfig(), logger)

	// Build the dependency graph.
	svcs := service.New(service.Deps{
		Store:    a.store,
		Locker:   locker,
		Events:   events,
		Mailer:   mailer,
		Payments: payment.NewMockProvider(cfg.BaseURL),
		Tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry),
		Query:    cfg.Query(),
		User:     service.UserConfig{BcryptCost: cfg.BcryptCost, BaseURL: cfg.BaseURL, ResetTokenTTL: cfg.ResetTokenTTL},
		BaseURL:  cfg.BaseURL,
		Logger:   logger,
	})

	// Health checks.
	healthHandler := health.NewHandler(2 * time.Second)
	healthHandler.Critical("store", a.store.Ping)
	if a.redis != nil {
		healthHandler.Critical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.Optional("kafka", a.producer.Ping)
	}

	// HTTP router.
	routerCtx, stop := context.WithCancel(context.Background())
	a.stop = stop
	router := handler.NewRouter(routerCtx, svcs, healthHandler, handler.Config{
		ServiceName: cfg.ServiceName,
		Production:  cfg.IsProduction(),
		Cookie: handler.CookieConfig{
			TTL:    cfg.JWTCookieExpiry,
			Secure: cfg.IsProduction(),
		},
		RateLimit: middleware.RateLimitConfig{
			Requests:   cfg.RateLimit,
			Window:     cfg.RateLimitWindow,
			TrustProxy: cfg.IsProduction(),
		},
		CORS: middleware.CORSConfig{
			Origins: cfg.CORSOrigins,
			MaxAge:  cfg.CORSMaxAge,
		},
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// Handler returns the HTTP handler of the server.
func (a *App) Handler() http.Handler { return a.httpServer.Handler }

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("store", a.cfg.StoreDriver),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.close()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.tracer != nil {
		if err := a.tracer(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracer = nil
	}
	a.close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// close releases the clients opened by NewApp.
func (a *App) close() {
	if a.stop != nil {
		a.stop()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
	if a.tracer != nil {
		_ = a.tracer(context.Background())
		a.tracer = nil
	}
}
