package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helios-ledger/config"
	"helios-ledger/controllers"
	"helios-ledger/database"
	"helios-ledger/interfaces"
	"helios-ledger/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:   "helios-ledger",
		Usage:  "trade ledger aggregation service",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "rebuild",
				Usage: "re-derive the daily snapshots of one source",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Value: string(interfaces.SourceLive),
						Usage: "live or backtest",
					},
				},
				Action: rebuild,
			},
			{
				Name:   "seed",
				Usage:  "load the demonstration markets, optimization runs and backtest trades into the database",
				Action: seed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime is the assembled data layer shared by every command
type runtime struct {
	cfg     *config.Config
	logger  *logrus.Logger
	store   *database.LedgerStorage // nil without a database
	data    interfaces.DataSource
	locker  services.RebuildLocker
	closers []func() error
}

func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:    cfg,
		logger: log,
		locker: services.NewLocalRebuildLocker(),
	}

	fixtures, err := database.NewFixtureStore(time.Now())
	if err != nil {
		return nil, err
	}

	if cfg.HasDatabase() {
		store, err := database.NewLedgerStorage(cfg.DatabaseDriver, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		rt.store = store
		rt.data = database.NewFallbackSource(store, fixtures, log)
		rt.closers = append(rt.closers, store.Close)
	} else {
		log.Warn("DATABASE_URL not set, serving demonstration data and refusing trade writes")
		rt.data = fixtures
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(c.Context).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		rt.locker = services.NewRedisRebuildLocker(rdb, "helios:rebuild", 30*time.Second)
		rt.closers = append(rt.closers, rdb.Close)
		log.Info("Snapshot rebuilds serialized through Redis")
	}

	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.WithError(err).Warn("Error during shutdown")
		}
	}
}

// rebuilder returns nil when no database is configured
func (rt *runtime) rebuilder() *services.SnapshotRebuilder {
	if rt.store == nil {
		return nil
	}
	return services.NewSnapshotRebuilder(
		rt.store,
		rt.locker,
		rt.cfg.StartingBalance,
		rt.cfg.SessionStart,
		rt.cfg.RebuildLockTimeout,
		rt.logger,
	)
}

func serve(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	embargo := services.NewEmbargo(rt.cfg.LiveEmbargo)

	// A nil *LedgerStorage must not become a non-nil interface value.
	var ledgerStore interfaces.LedgerStore
	var pinger services.Pinger
	if rt.store != nil {
		ledgerStore = rt.store
		pinger = rt.store
	}
	if rt.cfg.WebhookSecret == "" {
		rt.logger.Warn("WEBHOOK_SECRET not set, every trade webhook will be rejected")
	}

	ingestion := services.NewIngestionService(ledgerStore, rt.rebuilder(), rt.cfg.WebhookSecret, rt.logger)
	ledgerController := controllers.NewLedgerController(
		ingestion,
		services.NewLedgerQueryService(rt.data, embargo),
		rt.logger,
	)
	analyticsController := controllers.NewAnalyticsController(
		services.NewEquityService(rt.data, embargo, rt.logger),
		services.NewPerformanceService(rt.data, embargo, rt.logger),
		services.NewOptimizationService(rt.data),
		rt.logger,
	)
	systemController := controllers.NewSystemController(
		rt.data,
		services.NewHealthService(rt.data, pinger, embargo, rt.logger),
		rt.logger,
	)

	server := &http.Server{
		Addr:              ":" + rt.cfg.Port,
		Handler:           controllers.NewRouter(ledgerController, analyticsController, systemController, rt.logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		rt.logger.WithField("addr", server.Addr).Info("Ledger API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	rt.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func rebuild(c *cli.Context) error {
	source, err := interfaces.ParseSource(c.String("source"))
	if err != nil {
		return err
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	rebuilder := rt.rebuilder()
	if rebuilder == nil {
		return services.ErrNotConfigured
	}

	result, err := rebuilder.Rebuild(c.Context, source)
	if err != nil {
		return err
	}

	rt.logger.WithFields(logrus.Fields{
		"source":        result.Source,
		"snapshots":     result.Snapshots,
		"final_balance": result.FinalBalance,
	}).Info("Rebuild complete")
	return nil
}

func seed(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.store == nil {
		return services.ErrNotConfigured
	}

	fixtures, err := database.NewFixtureStore(time.Now())
	if err != nil {
		return err
	}
	seeder := services.NewSeeder(rt.store, fixtures, rt.rebuilder(), rt.logger)
	return seeder.Seed(c.Context)
}
