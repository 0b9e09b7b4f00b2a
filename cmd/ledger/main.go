package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/subosito/gotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Spok95/scm-ledger/internal/api"
	"github.com/Spok95/scm-ledger/internal/config"
	"github.com/Spok95/scm-ledger/internal/domain/catalog"
	"github.com/Spok95/scm-ledger/internal/domain/inventory"
	"github.com/Spok95/scm-ledger/internal/domain/notify"
	"github.com/Spok95/scm-ledger/internal/infra/db"
	httpx "github.com/Spok95/scm-ledger/internal/infra/http"
	"github.com/Spok95/scm-ledger/internal/infra/logger"
	"github.com/Spok95/scm-ledger/internal/infra/metrics"
	"github.com/Spok95/scm-ledger/internal/infra/queue"
	"github.com/Spok95/scm-ledger/internal/infra/telegram"
)

func main() {
	cfgPath := flag.String("config", "config/example.yaml", "path to YAML config")
	flag.Parse()

	_ = gotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.App.Env)

	if err := run(cfg, log); err != nil {
		log.Error("ledger stopped", "err", err)
		os.Exit(1)
	}
	log.Info("graceful shutdown complete")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	opts := inventory.Options{LockWait: cfg.Ledger.LockWait, DeliverTimeout: cfg.Ledger.DeliverTimeout, Metrics: m}

	var (
		store inventory.Store
		names *catalog.Repo
	)
	switch cfg.Ledger.Storage {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on exit")
		store = inventory.NewMemStore()
	default:
		if err := db.Migrate(cfg.Postgres.DSN); err != nil {
			return err
		}
		log.Info("migrations applied")

		pool, err := db.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		log.Info("db connected")

		store = inventory.NewPGStore(pool, cfg.Postgres.LockTimeout)
		names = catalog.NewRepo(pool)
		opts.Resolver = names
	}

	var channels []notify.Channel
	var listeners []inventory.Listener

	if cfg.Redis.URL != "" {
		rdb, err := queue.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		pub := queue.NewPublisher(rdb, cfg.Redis.StockQueue, cfg.Redis.AlertQueue)
		listeners = append(listeners, pub)
		channels = append(channels, pub)
		log.Info("redis queue enabled", "stock_queue", cfg.Redis.StockQueue, "alert_queue", cfg.Redis.AlertQueue)
	}

	if cfg.Telegram.Token != "" {
		tg, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.AdminChatID, cfg.Telegram.Recipients, log)
		if err != nil {
			return err
		}
		channels = append(channels, tg)
	}

	// Каталог нужен диспетчеру только для названий; nil-указатель не передаём.
	var describer notify.Describer
	var apiDescriber api.Describer
	if names != nil {
		describer, apiDescriber = names, names
	}

	monitor := inventory.NewMonitor(notify.NewDispatcher(log, describer, channels...), log)
	monitor.OnAlert(m.LowStockAlert)
	listeners = append([]inventory.Listener{monitor}, listeners...)
	opts.Listeners = listeners

	engine := inventory.NewEngine(store, log, opts)
	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, api.NewHandler(engine, apiDescriber, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server started", "addr", cfg.HTTP.Addr, "storage", cfg.Ledger.Storage)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// После HTTP новых движений нет: дослать уведомления до закрытия Redis и пула.
		return errors.Join(err, engine.Close(shutdownCtx))
	})
	return g.Wait()
}
