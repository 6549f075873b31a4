package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/cmd/colococtl/cli"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/app"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/fx"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/cache"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/db"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/pricing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "colococtl: load config: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	rounding, err := pricing.NewRoundingPolicy(cfg.PriceRounding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "colococtl: %v\n", err)
		os.Exit(1)
	}

	deps := cli.Deps{
		Rounding: rounding,
		Rates: func(ctx context.Context) (cli.RateStore, func(), error) {
			pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
			if err != nil {
				return nil, nil, err
			}
			redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				logger.Warn("redis unavailable, fx cache not invalidated", slog.Any("error", err))
				redisClient = nil
			}
			resolver := fx.NewResolver(fx.NewRepository(pool), fx.NewCache(redisClient, cfg.FXCacheTTL), logger)
			return resolver, func() {
				if redisClient != nil {
					_ = redisClient.Close()
				}
				pool.Close()
			}, nil
		},
		Jobs: func(ctx context.Context) (cli.JobQueue, func(), error) {
			queue, err := cli.NewAsynqQueue(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
			if err != nil {
				return nil, nil, err
			}
			return queue, func() { _ = queue.Close() }, nil
		},
	}

	root := cli.NewRootCommand(deps, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
