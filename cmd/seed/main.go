// Command seed populates the configured store with sample tours, users and
// reviews.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MinhajJamraiz/natours/internal/auth"
	"github.com/MinhajJamraiz/natours/internal/config"
	"github.com/MinhajJamraiz/natours/internal/payment"
	"github.com/MinhajJamraiz/natours/internal/seed"
	"github.com/MinhajJamraiz/natours/internal/service"
	"github.com/MinhajJamraiz/natours/internal/store"
	"github.com/MinhajJamraiz/natours/pkg/logger"
)

func main() {
	opts := seed.DefaultOptions()
	flag.IntVar(&opts.Tours, "tours", opts.Tours, "number of tours")
	flag.IntVar(&opts.Users, "users", opts.Users, "number of users")
	flag.IntVar(&opts.ReviewsPerTour, "reviews", opts.ReviewsPerTour, "reviews per tour")
	flag.Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	flag.IntVar(&opts.Concurrency, "concurrency", opts.Concurrency, "parallel review writes")
	flag.StringVar(&opts.Password, "password", opts.Password, "password of every seeded user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		Service:     cfg.ServiceName + "-seed",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	if cfg.StoreDriver == store.DriverMemory {
		log.Warn("seeding the memory store, data is lost on exit")
	}

	if err := run(cfg, opts, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts seed.Options, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h, err := store.Open(ctx, cfg.Store(), prometheus.NewRegistry(), log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer h.Close()

	svcs := service.New(service.Deps{
		Store:    h,
		Payments: payment.NewMockProvider(cfg.BaseURL),
		Tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry),
		Query:    cfg.Query(),
		User:     service.UserConfig{BcryptCost: cfg.BcryptCost, BaseURL: cfg.BaseURL},
		BaseURL:  cfg.BaseURL,
		Logger:   log,
	})

	_, err = seed.Run(ctx, svcs, opts, log)
	return err
}
