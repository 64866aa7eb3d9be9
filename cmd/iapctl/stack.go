package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dmitrymomot/iapkit/pkg/analytics"
	"github.com/dmitrymomot/iapkit/pkg/billing"
	"github.com/dmitrymomot/iapkit/pkg/catalog"
	"github.com/dmitrymomot/iapkit/pkg/config"
	"github.com/dmitrymomot/iapkit/pkg/events"
	"github.com/dmitrymomot/iapkit/pkg/grant"
	"github.com/dmitrymomot/iapkit/pkg/grantlog"
	"github.com/dmitrymomot/iapkit/pkg/httpserver"
	"github.com/dmitrymomot/iapkit/pkg/logger"
	"github.com/dmitrymomot/iapkit/pkg/nats"
	"github.com/dmitrymomot/iapkit/pkg/pg"
	"github.com/dmitrymomot/iapkit/pkg/purchase"
	"github.com/dmitrymomot/iapkit/pkg/redis"
	"github.com/dmitrymomot/iapkit/pkg/requestid"
)

const (
	storeMemory = "memory"
	storePaddle = "paddle"
)

// appConfig selects the optional infrastructure. Empty URLs keep the
// in-process defaults.
type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	RedisURL string `env:"REDIS_URL"`
	NATSURL  string `env:"NATS_URL"`
	PGURL    string `env:"PG_CONN_URL"`
}

var defaultPacks = []catalog.Pack{
	{PackID: "coins_100", ItemType: "coins", ItemValue: 100, ItemName: "Pile of coins", InStore: true, PriceValue: 0.99},
	{PackID: "coins_550", ItemType: "coins", ItemValue: 550, ItemName: "Bag of coins", Tag: "popular", InStore: true, PriceValue: 4.99},
	{PackID: "coins_1200", ItemType: "coins", ItemValue: 1200, ItemName: "Chest of coins", Tag: "best_value", InStore: true, PriceValue: 9.99},
	{PackID: "no_ads", ItemType: "no_ads", ItemValue: 1, ItemName: "Remove ads", InStore: true, PriceValue: 2.99},
}

type stack struct {
	log      *slog.Logger
	cfg      purchase.Config
	ctrl     *purchase.Controller
	notifier *events.Notifier
	memory   *billing.Memory
	paddle   *billing.Paddle
	checks   []httpserver.Check

	ready    chan error
	closers  []func()
	closeOne sync.Once
}

func newLogger(f *rootFlags, env string) *slog.Logger {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	format := logger.FormatText
	if strings.EqualFold(f.logFormat, string(logger.FormatJSON)) {
		format = logger.FormatJSON
	}
	return logger.New(
		logger.WithEnvironment(env, "iapctl"),
		logger.WithLevel(level),
		logger.WithFormat(format),
		logger.WithOutput(os.Stderr),
		logger.WithContextExtractors(requestid.LogExtractor),
	)
}

// buildStack wires the controller. out receives checkout links from the
// Paddle backend.
func buildStack(ctx context.Context, f *rootFlags, out io.Writer, opts ...purchase.Option) (*stack, error) {
	var app appConfig
	if err := config.Load(&app); err != nil {
		return nil, err
	}
	var cfg purchase.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	var gcfg grant.Config
	if err := config.Load(&gcfg); err != nil {
		return nil, err
	}

	cfg.IsDebug = cfg.IsDebug || f.verbose

	s := &stack{
		log:   newLogger(f, app.Env),
		cfg:   cfg,
		ready: make(chan error, 1),
	}
	s.notifier = events.NewNotifier(events.WithLogger(s.log))
	s.notifier.Subscribe(events.PackageFetchSuccess, func(context.Context, events.Event) { s.signalReady(nil) })
	s.notifier.Subscribe(events.PackageFetchFail, func(_ context.Context, e events.Event) {
		s.signalReady(fmt.Errorf("catalog refresh failed: %v", e.Payload))
	})

	sinks := []analytics.Sink{analytics.NewSlogSink(s.log, slog.LevelDebug)}
	if app.NATSURL != "" {
		sink, err := s.connectNATS(ctx, cfg.UserID)
		if err != nil {
			s.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	loader, err := s.loader(ctx, f, app)
	if err != nil {
		s.Close()
		return nil, err
	}

	grants, err := s.grantLog(ctx, app, cfg.UserID)
	if err != nil {
		s.Close()
		return nil, err
	}

	backend, err := s.backend(ctx, f, loader, out)
	if err != nil {
		s.Close()
		return nil, err
	}

	sender := grant.NewClient(append(grant.FromConfig(gcfg), grant.WithLogger(s.log))...)
	base := []purchase.Option{
		purchase.WithLogger(s.log),
		purchase.WithNotifier(s.notifier),
		purchase.WithAnalytics(analytics.Multi(sinks...)),
		purchase.WithLoader(loader),
		purchase.WithGrantLog(grants),
	}
	s.ctrl = purchase.New(cfg, backend, sender, append(base, opts...)...)
	return s, nil
}

func (s *stack) signalReady(err error) {
	select {
	case s.ready <- err:
	default:
	}
}

// waitReady blocks until the first catalog refresh finishes.
func (s *stack) waitReady(ctx context.Context) error {
	if s.ctrl.PackagesReady() {
		return nil
	}
	select {
	case err := <-s.ready:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for catalog (sdk state %s): %w", s.ctrl.SDKState(), ctx.Err())
	}
}

func (s *stack) connectNATS(ctx context.Context, userID string) (analytics.Sink, error) {
	var ncfg nats.Config
	if err := config.Load(&ncfg); err != nil {
		return nil, err
	}
	conn, err := nats.Connect(ctx, ncfg, s.log)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = conn.Drain() })
	s.checks = append(s.checks, httpserver.Check{Name: "nats", Func: nats.Healthcheck(conn)})

	events.NewNATSForwarder(conn, ncfg.EventsSubject, s.log).Attach(s.notifier)
	return analytics.NewNATSSink(conn, ncfg.MetricsSubject,
		analytics.WithUserID(userID),
		analytics.WithLogger(s.log),
	), nil
}

func (s *stack) loader(ctx context.Context, f *rootFlags, app appConfig) (catalog.Loader, error) {
	switch {
	case app.PGURL != "":
		var pcfg pg.Config
		if err := config.Load(&pcfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pcfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.checks = append(s.checks, httpserver.Check{Name: "postgres", Func: pg.Healthcheck(pool)})
		return catalog.NewPostgresLoader(pool), nil
	case f.catalogPath != "":
		return catalog.NewYAMLFileLoader(f.catalogPath), nil
	default:
		return catalog.MemoryLoader(defaultPacks), nil
	}
}

func (s *stack) grantLog(ctx context.Context, app appConfig, userID string) (grantlog.Log, error) {
	if app.RedisURL == "" {
		return grantlog.NewMemoryLog(), nil
	}
	var rcfg redis.Config
	if err := config.Load(&rcfg); err != nil {
		return nil, err
	}
	var lcfg grantlog.RedisConfig
	if err := config.Load(&lcfg); err != nil {
		return nil, err
	}
	client, err := redis.Connect(ctx, rcfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = client.Close() })
	s.checks = append(s.checks, httpserver.Check{Name: "redis", Func: redis.Healthcheck(client)})
	return grantlog.NewRedisLog(client, userID, lcfg), nil
}

func (s *stack) backend(ctx context.Context, f *rootFlags, loader catalog.Loader, out io.Writer) (billing.Backend, error) {
	switch f.store {
	case storePaddle:
		var pcfg billing.PaddleConfig
		if err := config.Load(&pcfg); err != nil {
			return nil, err
		}
		p, err := billing.NewPaddle(pcfg,
			billing.WithPaddleLogger(s.log),
			billing.WithCheckoutHandler(func(_ context.Context, packID, url string) {
				fmt.Fprintf(out, "checkout %s: %s\n", packID, url)
			}),
		)
		if err != nil {
			return nil, err
		}
		s.paddle = p
		return p, nil
	case storeMemory, "":
		packs, err := loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		products := make([]billing.Product, 0, len(packs))
		for _, p := range packs {
			if !p.InStore || p.PriceValue <= 0 {
				continue
			}
			products = append(products, billing.Product{
				ID:           p.PackID,
				Title:        p.ItemName,
				Price:        billing.FormatPrice(p.PriceValue, f.currency),
				PriceValue:   p.PriceValue,
				CurrencyCode: f.currency,
			})
		}
		s.memory = billing.NewMemory(products...)
		return s.memory, nil
	default:
		return nil, fmt.Errorf("unknown store %q", f.store)
	}
}

// Close shuts the controller down and releases connections.
func (s *stack) Close() {
	s.closeOne.Do(func() {
		if s.ctrl != nil {
			_ = s.ctrl.Close()
		}
		for i := len(s.closers) - 1; i >= 0; i-- {
			s.closers[i]()
		}
	})
}

var errMemoryOnly = errors.New("command requires --store=memory")
