package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dealer-pricing/internal/alerting"
	"dealer-pricing/internal/config"
	"dealer-pricing/internal/fetcher"
	"dealer-pricing/internal/httpapi"
	"dealer-pricing/internal/pricing"
	"dealer-pricing/internal/rulescache"
	"dealer-pricing/internal/scheduler"
	"dealer-pricing/internal/service"
	"dealer-pricing/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// handle bundles what one command needs; Close releases it.
type handle struct {
	Store   *storage.Store
	Rules   *rulescache.Cache
	Service *service.Service
}

func (h *handle) Close() {
	if h.Store != nil {
		h.Store.Close()
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, error) {
	if a.Config.Database.DSN == "" {
		return nil, nil
	}
	pool, err := storage.NewPool(ctx, a.Config.Database, a.Config.App.Name)
	if err != nil {
		return nil, err
	}
	return storage.NewStore(pool), nil
}

func (a *App) newComparableSource(store *storage.Store) fetcher.ComparableSource {
	cfg := a.Config.Comparables
	if cfg.Source == config.SourceHTTP {
		return fetcher.NewListings(fetcher.ListingsOptions{
			BaseURL:   cfg.BaseURL,
			APIToken:  cfg.APIToken,
			Timeout:   cfg.RequestTimeout,
			UserAgent: cfg.UserAgent,
			RPS:       cfg.RateLimitRPS,
			Burst:     cfg.RateLimitBurst,
			Retries:   2,
		}, a.Logger)
	}
	if store == nil {
		return nil
	}
	return store
}

// newNotifier fans out to every configured channel. It returns nil when no
// channel is usable.
func (a *App) newNotifier() alerting.Notifier {
	var out alerting.Multi
	for _, ch := range a.Config.Alerting.Channels {
		switch ch {
		case "telegram":
			cfg := a.Config.Alerting.Telegram
			if !cfg.Enabled {
				a.Logger.Warn().Msg("telegram channel listed but alerting.telegram.enabled is false")
				continue
			}
			out = append(out, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
		case "log":
			out = append(out, alerting.NewLogNotifier(a.Logger))
		default:
			a.Logger.Warn().Str("channel", ch).Msg("unknown alert channel ignored")
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// open wires the service against the configured backends. sched may be nil.
func (a *App) open(ctx context.Context) (*handle, error) {
	return a.openWith(ctx, a.Config, nil)
}

func (a *App) openWith(ctx context.Context, cfg *config.Config, sched *scheduler.Scheduler) (*handle, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; inventory, rules and persistence disabled")
	}

	var rulesStore storage.RulesStore
	deps := service.Deps{
		Engine:    pricing.NewEngine(cfg.Engine),
		Scheduler: sched,
	}
	if src := a.newComparableSource(store); src != nil {
		deps.Comparables = src
	}
	if store != nil {
		rulesStore = store
		deps.Vehicles = store
		deps.RulesStore = store
		deps.Suggestions = store
		deps.Alerts = store
		deps.Locker = store
	}
	if cfg.Alerting.Enabled {
		if n := a.newNotifier(); n != nil {
			deps.Notifier = n
		}
	}

	cache := rulescache.New(rulesStore, cfg.RulesCache.TTL, cfg.RulesCache.CleanupInterval, a.Logger)
	deps.Rules = cache

	svc, err := service.New(cfg, deps, a.Logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &handle{Store: store, Rules: cache, Service: svc}, nil
}

func (a *App) newScheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(scheduler.Options{
		Cron:         a.Config.Reprice.Cron,
		Interval:     a.Config.Reprice.Interval,
		AlignToStart: a.Config.Reprice.AlignToBucket,
		StartupDelay: a.Config.Reprice.StartupDelay,
	}, a.Logger)
}

// Run executes the long-running scheduled repricing service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}
	h, err := a.openWith(ctx, a.Config, sched)
	if err != nil {
		return err
	}
	defer h.Close()

	a.Logger.Info().Str("cron", a.Config.Reprice.Cron).Dur("interval", a.Config.Reprice.Interval).Msg("starting repricing service")
	err = h.Service.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("repricing service stopped")
	return nil
}

// Serve runs the HTTP API and, when withScheduler is set, the repricing loop
// alongside it.
func (a *App) Serve(ctx context.Context, withScheduler bool) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sched *scheduler.Scheduler
	if withScheduler {
		var err error
		if sched, err = a.newScheduler(); err != nil {
			return err
		}
	}
	h, err := a.openWith(ctx, a.Config, sched)
	if err != nil {
		return err
	}
	defer h.Close()

	var health httpapi.Pinger
	if h.Store != nil {
		health = h.Store
	}
	server := httpapi.New(a.Config.HTTP, h.Service, health, a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Listen(gctx) })
	if withScheduler {
		g.Go(func() error { return h.Service.Run(gctx) })
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve: %w", err)
	}
	a.Logger.Info().Msg("http server stopped")
	return nil
}
