package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/vendorr/vendorr-edge/api/controllers"
	"github.com/vendorr/vendorr-edge/api/routes"
	"github.com/vendorr/vendorr-edge/internal/cart"
	"github.com/vendorr/vendorr-edge/internal/checkout"
	"github.com/vendorr/vendorr-edge/internal/controller"
	"github.com/vendorr/vendorr-edge/internal/cron"
	"github.com/vendorr/vendorr-edge/internal/notifications"
	"github.com/vendorr/vendorr-edge/internal/offline"
	"github.com/vendorr/vendorr-edge/internal/pending"
	"github.com/vendorr/vendorr-edge/pkg/config"
	"github.com/vendorr/vendorr-edge/pkg/db"
	"github.com/vendorr/vendorr-edge/pkg/idempotency"
	"github.com/vendorr/vendorr-edge/pkg/instance"
	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/metrics"
	"github.com/vendorr/vendorr-edge/pkg/migrate"
	"github.com/vendorr/vendorr-edge/pkg/pubsub"
	"github.com/vendorr/vendorr-edge/pkg/redis"
	"github.com/vendorr/vendorr-edge/pkg/storage/bolt"
	"github.com/vendorr/vendorr-edge/pkg/vendorrapi"
)

const (
	serviceName     = "vendorr-edge"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"kind":       cfg.Service.Kind,
		"generation": cfg.Cache.Generation,
		"instance":   instance.GetID(),
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cacheMetrics := metrics.NewCacheMetrics(reg)
	syncMetrics := metrics.NewSyncMetrics(reg)
	jobMetrics := metrics.NewJobMetrics(reg)

	pingers := map[string]controllers.Pinger{}

	var boltStore *bolt.Store
	if usesBackend(cfg, config.BackendBolt) {
		boltStore, err = bolt.Open(cfg.Cache.BoltPath)
		requireResource(ctx, logg, "bolt store", err)
		defer closeResource(ctx, logg, "bolt store", boltStore.Close)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer closeResource(ctx, logg, "redis", redisClient.Close)
		pingers["redis"] = redisClient
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer closeResource(ctx, logg, "database", dbClient.Close)
	pingers["database"] = dbClient

	requireResource(ctx, logg, "migrations", migrate.MaybeRun(ctx, cfg, logg, dbClient))

	api, err := vendorrapi.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	requireResource(ctx, logg, "backend client", err)

	upstream, err := offline.NewUpstream(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, cacheMetrics)
	requireResource(ctx, logg, "upstream", err)

	var cacheStore offline.Store
	if cfg.Cache.UsesRedis() {
		cacheStore = offline.NewRedisStore(redisClient)
	} else {
		cacheStore = offline.NewBoltStore(boltStore)
	}
	lifecycle, err := offline.NewLifecycle(cacheStore, upstream, offline.LifecycleConfig{
		Generation:    cfg.Cache.Generation,
		Manifest:      cfg.Cache.Manifest(),
		AutoTakeOver:  cfg.Cache.AutoTakeOver,
		MaxEntryBytes: cfg.Cache.MaxEntryBytes,
	}, logg)
	requireResource(ctx, logg, "cache lifecycle", err)
	if err := lifecycle.Start(ctx); err != nil {
		// the previous generation (if any) keeps serving; the connectivity job
		// and SKIP_WAITING retry the install
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "cache generation install failed")
	}

	interceptor := offline.NewInterceptor(lifecycle, upstream, offline.InterceptorConfig{
		APIPrefix:     cfg.Cache.APIPrefix,
		OfflinePage:   cfg.Cache.OfflinePage,
		MaxEntryBytes: cfg.Cache.MaxEntryBytes,
	}, cacheMetrics, logg)

	var idemStore redis.IdempotencyStore = idempotency.NewMemoryStore()
	if redisClient != nil {
		idemStore = redisClient
	}
	idem, err := idempotency.NewManager(idemStore, cfg.Eventing.PushIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	inbox, err := notifications.NewService(notifications.ServiceParams{
		Repo:        notifications.NewRepository(dbClient.DB()),
		Backend:     api,
		Idempotency: idem,
		Metrics:     syncMetrics,
		Logger:      logg,
	})
	requireResource(ctx, logg, "notifications service", err)

	queue, err := pending.NewService(pending.ServiceParams{
		Repo:      pending.NewRepository(dbClient.DB()),
		Submitter: api,
		Reporter:  inbox,
		Metrics:   syncMetrics,
		Logger:    logg,
		BatchSize: cfg.Sync.ReplayBatchSize,
	})
	requireResource(ctx, logg, "pending service", err)

	var cartStore cart.Store
	if cfg.Cart.UsesRedis() {
		cartStore = cart.NewRedisStore(redisClient, cfg.Cart.StorageKey)
	} else {
		cartStore = cart.NewBoltStore(boltStore, cfg.Cart.StorageKey)
	}
	carts, err := cart.NewSessions(cartStore, logg, cart.SessionLimits{
		MaxSessions: cfg.Cart.MaxSessions,
		IdleTTL:     cfg.Cart.IdleTTL,
	})
	requireResource(ctx, logg, "cart sessions", err)
	defer closeResource(ctx, logg, "cart sessions", func() error { return carts.Close(ctx) })

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Carts:           carts,
		API:             api,
		Queue:           queue,
		Logger:          logg,
		TaxRate:         cfg.Checkout.TaxRate,
		PaymentMethod:   cfg.Checkout.PaymentMethod,
		MaxReceiptBytes: int64(cfg.Checkout.MaxReceiptMB) << 20,
	})
	requireResource(ctx, logg, "checkout service", err)

	ctrl, err := controller.New(controller.Params{
		Lifecycle:   lifecycle,
		Replayer:    queue,
		Inbox:       inbox,
		Metrics:     syncMetrics,
		Logger:      logg,
		MailboxSize: cfg.Sync.MailboxSize,
		SyncToken:   cfg.Realtime.Token,
	})
	requireResource(ctx, logg, "controller", err)

	connectivity, err := cron.NewConnectivityJob(cron.ConnectivityJobParams{
		Prober:     api,
		Dispatcher: ctrl,
		Cache:      lifecycle,
		Logger:     logg,
		Interval:   cfg.Sync.ProbeInterval,
	})
	requireResource(ctx, logg, "connectivity job", err)
	notificationSync, err := cron.NewNotificationSyncJob(ctrl, connectivity, cfg.Sync.NotificationSyncInterval)
	requireResource(ctx, logg, "notification sync job", err)
	cartSweep, err := cron.NewCartSweepJob(carts, logg, cfg.Cart.SweepInterval)
	requireResource(ctx, logg, "cart sweep job", err)

	locks := cron.LocalLocks()
	if redisClient != nil {
		locks = cron.RedisLocks(redisClient, cfg.Sync.LockTTL)
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(connectivity, notificationSync, cartSweep),
		Locks:    locks,
		Metrics:  jobMetrics,
	})
	requireResource(ctx, logg, "scheduler", err)

	var realtime *notifications.Realtime
	if cfg.Realtime.Enabled() {
		realtime, err = notifications.NewRealtime(notifications.RealtimeConfig{
			URL:            cfg.Realtime.URL,
			Token:          cfg.Realtime.Token,
			Heartbeat:      cfg.Realtime.Heartbeat,
			ReconnectDelay: cfg.Realtime.ReconnectDelay,
		}, inbox, logg)
		requireResource(ctx, logg, "realtime channel", err)
	}

	var consumer *notifications.Consumer
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer closeResource(ctx, logg, "pubsub", psClient.Close)
		pingers["pubsub"] = psClient
		consumer, err = notifications.NewConsumer(inbox, psClient.PushSubscription(), logg)
		requireResource(ctx, logg, "push consumer", err)
	}

	addr := ":" + listenPort(cfg)
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			Gatherer:    reg,
			Cache:       lifecycle,
			Pingers:     pingers,
			Carts:       carts,
			Checkout:    checkoutSvc,
			Bus:         ctrl,
			Inbox:       inbox,
			Interceptor: interceptor,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return ctrl.Run(groupCtx) })
	group.Go(func() error { return scheduler.Run(groupCtx) })
	if realtime != nil {
		group.Go(func() error { return realtime.Run(groupCtx) })
	}
	if consumer != nil {
		group.Go(func() error { return consumer.Run(groupCtx) })
	}
	group.Go(func() error {
		logg.Info(logg.WithField(groupCtx, "addr", addr), "edge listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "edge stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "edge stopped")
}

func usesBackend(cfg *config.Config, backend string) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Cache.Backend), backend) || strings.EqualFold(strings.TrimSpace(cfg.Cart.Backend), backend)
}

func listenPort(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return cfg.App.Port
}

func closeResource(ctx context.Context, logg *logger.Logger, resource string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, fmt.Sprintf("error closing %s", resource), err)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
