// Command grantstub is a development grant server. It verifies signed
// grant requests, rejects replayed transactions with duplicate_order and
// answers with the consumables configured for each product.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/iapkit/pkg/config"
	"github.com/dmitrymomot/iapkit/pkg/httpserver"
	"github.com/dmitrymomot/iapkit/pkg/logger"
	"github.com/dmitrymomot/iapkit/pkg/ratelimiter"
	"github.com/dmitrymomot/iapkit/pkg/redis"
	"github.com/dmitrymomot/iapkit/pkg/requestid"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg stubConfig
	config.MustLoad(&cfg)
	log := logger.New(
		logger.WithEnvironment(cfg.Env, "grantstub"),
		logger.WithContextExtractors(requestid.LogExtractor),
	)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("grantstub stopped", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg stubConfig, log *slog.Logger) error {
	var hcfg httpserver.Config
	if err := config.Load(&hcfg); err != nil {
		return err
	}
	var lcfg ratelimiter.Config
	if err := config.Load(&lcfg); err != nil {
		return err
	}

	limits := ratelimiter.NewMemoryStore()
	defer limits.Close()
	limiter, err := ratelimiter.NewBucket(limits, lcfg)
	if err != nil {
		return err
	}

	var (
		orders orderStore = newMemoryOrders()
		checks []httpserver.Check
	)
	if cfg.RedisURL != "" {
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return err
		}
		defer client.Close()
		orders = newRedisOrders(client, cfg.OrderTTL)
		checks = append(checks, httpserver.Check{Name: "redis", Func: redis.Healthcheck(client)})
	}

	srv := httpserver.New(hcfg, httpserver.WithLogger(log))
	return srv.Run(ctx, newServer(cfg, orders, limiter, log).routes(checks...))
}
