package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/bridge"
	"github.com/MrEthical07/goGuard/foreground"
	"github.com/MrEthical07/goGuard/internal/config"
	"github.com/MrEthical07/goGuard/internal/logging"
	promexport "github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/server"
	"github.com/MrEthical07/goGuard/storage"
	"github.com/MrEthical07/goGuard/storage/boltstore"
	"github.com/MrEthical07/goGuard/storage/memory"
	"github.com/MrEthical07/goGuard/storage/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the guard daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Logging())
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	auditSink, closeAudit, err := openAudit(cfg.Audit)
	if err != nil {
		return err
	}
	defer closeAudit()

	feed := foreground.NewFeed(cfg.Feed.Capacity)
	var source goGuard.EventSource = feed
	if cfg.Feed.UseXprop {
		source = foreground.WithFallback(feed, foreground.NewXProp(nil))
	}
	hub := bridge.NewHub(feed, bridge.Options{Logger: logger})
	defer hub.Close()

	engine, err := goGuard.New().
		WithConfig(engineCfg).
		WithStore(store).
		WithEventSource(source).
		WithPresenter(hub).
		WithSuspender(hub).
		WithChallengeProvider(hub).
		WithAuditSink(auditSink).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()
	hub.Attach(engine)

	exporter, err := promexport.NewExporter(engine)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	api := server.New(engine, store,
		server.WithAgentHandler(hub),
		server.WithMetricsHandler(exporter.Handler()),
		server.WithAdminToken(cfg.AdminToken),
		server.WithLogger(logger),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		return api.Listen(gctx, cfg.Listen)
	})
	g.Go(func() error {
		return hub.KeepAlive(gctx, 0)
	})

	logger.Info("goguard serving",
		zap.String("listen", cfg.Listen),
		zap.String("store", cfg.Store.Backend),
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, func(), error) {
	var (
		store storage.Store
		done  = func() {}
	)
	switch cfg.Backend {
	case config.BackendBolt:
		bs, err := boltstore.NewFromFile(cfg.BoltPath, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt store: %w", err)
		}
		store = bs
		done = func() { _ = bs.Close() }
	case config.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		store = redisstore.NewStore(client, cfg.RedisPrefix)
		done = func() { _ = client.Close() }
	default:
		store = memory.New()
	}

	if len(cfg.Locked) > 0 {
		if err := seedLocked(ctx, store, cfg.Locked); err != nil {
			done()
			return nil, nil, err
		}
	}
	return store, done, nil
}

// seedLocked adds the configured apps without removing ones added at runtime.
func seedLocked(ctx context.Context, store storage.Registry, apps []string) error {
	apps, err := storage.Normalize(apps)
	if err != nil {
		return fmt.Errorf("seed locked apps: %w", err)
	}
	for _, app := range apps {
		if err := store.Add(ctx, app); err != nil {
			return fmt.Errorf("seed locked app %q: %w", app, err)
		}
	}
	return nil
}

func openAudit(cfg config.AuditConfig) (goGuard.AuditSink, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}
	var (
		w       io.Writer = os.Stderr
		closeFn           = func() {}
	)
	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit log: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	return goGuard.NewJSONWriterSink(w), closeFn, nil
}
