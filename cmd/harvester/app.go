package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/marketplace-harvester/internal/browser"
	"github.com/maltedev/marketplace-harvester/internal/config"
	"github.com/maltedev/marketplace-harvester/internal/events"
	"github.com/maltedev/marketplace-harvester/internal/metrics"
	"github.com/maltedev/marketplace-harvester/internal/ratelimit"
	"github.com/maltedev/marketplace-harvester/internal/scraper"
	"github.com/maltedev/marketplace-harvester/internal/storage"
	"github.com/maltedev/marketplace-harvester/pkg/logger"
)

// app carries what every subcommand needs after startup.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger.New(cfg.Logging.Level, cfg.Logging.Format),
		metrics: metrics.New(),
	}, nil
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	db := a.cfg.Database
	switch db.Driver {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "file":
		return storage.NewFileStore(db.FilePath)
	default:
		store, err := storage.NewPostgresStore(ctx, storage.PostgresConfig{
			DSN:      db.DSN(),
			MaxConns: db.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil
	}
}

// redisDeps returns the resume store and event publisher. Without a Redis
// address cursors go to the resume file and events are dropped.
func (a *app) redisDeps(ctx context.Context) (storage.ResumeStore, events.Publisher, func(), error) {
	rc := a.cfg.Redis
	if rc.Addr == "" {
		a.logger.Info("redis not configured, resume cursors kept in file", "file", a.cfg.Files.ResumeFile)
		resume, err := storage.NewFileResumeStore(a.cfg.Files.ResumeFile)
		if err != nil {
			return nil, nil, nil, err
		}
		return resume, events.NopPublisher{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			a.logger.Error("failed to close redis client", "error", err)
		}
	}
	return storage.NewRedisResumeStore(client, rc.ResumeKey),
		events.NewStreamPublisher(client, rc.Stream, a.logger),
		closeFn, nil
}

func (a *app) launcher() scraper.LaunchFunc {
	bc := a.cfg.Browser
	opts := browser.DefaultOptions()
	opts.Engine = bc.Engine
	opts.Headless = bc.Headless
	opts.Timeout = bc.Timeout
	opts.ViewportWidth = bc.ViewportWidth
	opts.ViewportHeight = bc.ViewportHeight
	opts.AcceptLanguage = bc.AcceptLanguage
	opts.TimezoneID = bc.TimezoneID
	opts.Locale = bc.Locale
	opts.ProxyServer = bc.ProxyServer
	opts.ExtraHeaders["Accept-Language"] = bc.AcceptLanguage

	return func(userAgent string) (scraper.BrowserSession, error) {
		b, err := browser.New(opts.WithUserAgent(userAgent))
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func (a *app) pacer() *ratelimit.AdaptiveRateLimiter {
	sc := a.cfg.Scraper
	return ratelimit.NewAdaptiveRateLimiter(sc.TileDelayMin, sc.TileDelayMax, sc.TileDelayCeiling)
}

func (a *app) timing() scraper.Timing {
	sc := a.cfg.Scraper
	t := scraper.DefaultTiming()
	t.PollInterval = sc.PollInterval
	t.PredicateTimeout = sc.PredicateTimeout
	t.ChallengeCeiling = sc.ChallengeCeiling
	t.ResultsTimeout = sc.ResultsTimeout
	t.SettleDelay = sc.SettleDelay
	t.MaxLoginAttempts = sc.MaxLoginAttempts
	return t
}
