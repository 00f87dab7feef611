// Command tilld serves a till over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/till"
	"github.com/xraph/till/api"
	archive "github.com/xraph/till/archive/mongo"
	audithook "github.com/xraph/till/audit_hook"
	cache "github.com/xraph/till/cache/redis"
	"github.com/xraph/till/events/amqp"
	"github.com/xraph/till/lock/redislock"
	"github.com/xraph/till/notify"
	"github.com/xraph/till/observability"
	"github.com/xraph/till/seed"
	"github.com/xraph/till/store"
	"github.com/xraph/till/store/memory"
	"github.com/xraph/till/store/postgres"
	"github.com/xraph/till/store/sqlite"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tilld exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []till.Option{
		till.WithLogger(logger),
		till.WithCurrency(cfg.Currency),
		till.WithMaxQuantity(cfg.MaxQuantity),
		till.WithMaxPaymentMultiple(cfg.MaxPaymentMultiple),
		till.WithMaxPieces(cfg.MaxPieces),
		till.WithLockTimeout(cfg.LockTimeout),
		till.WithPluginTimeout(cfg.PluginTimeout),
		till.WithPlugin(audithook.New(auditLog(logger), audithook.WithLogger(logger))),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts = append(opts, till.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))))

	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		redisClient = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		opts = append(opts, till.WithLocker(redislock.New(redisClient, redislock.WithLogger(logger))))
	}

	if cfg.MongoURI != "" {
		a, err := archive.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, archive.WithLogger(logger))
		if err != nil {
			return err
		}
		opts = append(opts, till.WithPlugin(a))
	}

	if cfg.AMQPURL != "" {
		pub, err := amqp.Dial(cfg.AMQPURL, amqp.WithExchange(cfg.AMQPExchange), amqp.WithLogger(logger))
		if err != nil {
			return err
		}
		opts = append(opts, till.WithPlugin(pub))
	}

	if cfg.SMTPAddr != "" {
		mailer := &notify.SMTPMailer{Addr: cfg.SMTPAddr, Username: cfg.SMTPUsername, Password: cfg.SMTPPassword}
		opts = append(opts, till.WithPlugin(notify.New(mailer, notify.WithFrom(cfg.MailFrom), notify.WithLogger(logger))))
	}

	t := till.New(st, opts...)

	handlerOpts := []api.Option{api.WithLogger(logger)}
	if redisClient != nil {
		pc := cache.New(redisClient, t, cache.WithTTL(cfg.CacheTTL), cache.WithLogger(logger))
		if err := t.Plugins().Register(pc); err != nil {
			return err
		}
		handlerOpts = append(handlerOpts, api.WithProductReader(pc))
	}

	if err := t.Start(ctx); err != nil {
		_ = st.Close()
		return err
	}
	defer func() {
		if err := t.Stop(); err != nil {
			logger.Warn("till stop", "error", err)
		}
	}()

	if cfg.Seed {
		if err := seed.Load(ctx, t, logger); err != nil {
			return err
		}
	}

	app := api.New(t, handlerOpts...).App()
	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		return app.Listen(cfg.HTTPAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.New(ctx, cfg.PostgresDSN)
	default:
		return sqlite.Open(cfg.SQLitePath)
	}
}

// auditLog writes the audit trail as structured log lines.
func auditLog(logger *slog.Logger) audithook.Recorder {
	trail := logger.WithGroup("audit")
	return audithook.RecorderFunc(func(ctx context.Context, e *audithook.AuditEvent) error {
		trail.InfoContext(ctx, e.Action,
			"resource", e.Resource,
			"resource_id", e.ResourceID,
			"category", e.Category,
			"outcome", e.Outcome,
			"severity", e.Severity,
			"reason", e.Reason,
			"metadata", e.Metadata,
		)
		return nil
	})
}
