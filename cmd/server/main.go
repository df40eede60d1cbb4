package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travel-backend/internal/auth"
	"travel-backend/internal/cache"
	"travel-backend/internal/config"
	"travel-backend/internal/database"
	"travel-backend/internal/db"
	"travel-backend/internal/dispatch"
	"travel-backend/internal/events"
	"travel-backend/internal/handlers"
	"travel-backend/internal/health"
	h "travel-backend/internal/http"
	"travel-backend/internal/logger"
	"travel-backend/internal/middleware"
	"travel-backend/internal/repositories"
	"travel-backend/internal/scheduler"
	"travel-backend/internal/services"
	"travel-backend/internal/storage"
	"travel-backend/internal/store"
	"travel-backend/internal/store/memory"
	"travel-backend/internal/timeutil"
	"travel-backend/internal/whatsapp"
	"travel-backend/migrations"

	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	configPath := flag.String("config", config.DefaultPath, "Path to config.yaml")
	storeKind := flag.String("store", "postgres", "Persistence: postgres or memory")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *storeKind, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, storeKind string, log *zap.Logger) error {
	if err := timeutil.Configure(cfg.Timezone); err != nil {
		log.Warn("unknown timezone, keeping default", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecker := health.NewHealthChecker()

	// Persistence
	var st store.Store
	switch storeKind {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		st = memory.New()
	case "postgres":
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		log.Info("connected to database", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))

		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = database.NewMigrator(pool, migrations.FS, log).RunMigrations(migrateCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		healthChecker.Add("postgres", true, pool)
		st = repositories.NewStore(pool)
	default:
		return fmt.Errorf("unknown store %q (postgres or memory)", storeKind)
	}

	// Webhook dedupe - Redis when configured, otherwise process-local
	var dedupe cache.Deduper
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, using in-memory dedupe", zap.Error(err))
		} else {
			defer client.Close()
			dedupe = cache.NewRedisDeduper(client, "travel:webhook:")
			healthChecker.Add("redis", false, health.PingFunc(cache.Ping(client)))
			log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}
	if dedupe == nil {
		dedupe = cache.NewMemoryDeduper(5 * time.Minute)
	}
	defer dedupe.Close()

	// Domain events
	var publisher events.Publisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers)
		log.Info("publishing events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		publisher = events.NewLogPublisher(log)
	}
	defer publisher.Close()

	// Voucher archive
	var objects services.ObjectStore
	r2, err := storage.NewR2Store(ctx, cfg)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		log.Info("object storage disabled; voucher archive unavailable")
	case err != nil:
		log.Warn("object storage unavailable", zap.Error(err))
	default:
		objects = r2
		healthChecker.Add("object_storage", false, r2)
	}

	providers := whatsapp.NewRegistry(cfg, nil)
	if len(providers) == 0 {
		log.Warn("no whatsapp provider configured; sends will be rejected")
	} else {
		log.Info("whatsapp providers configured", zap.Strings("providers", providers.Names()), zap.String("default", cfg.WhatsApp.Provider))
	}

	// Services
	countryCode := cfg.WhatsApp.DefaultCountryCode
	balanceService := services.NewBalanceService(st, publisher, log)
	accountService := services.NewAccountService(st, balanceService)
	ledgerService := services.NewLedgerService(st, balanceService, log)
	transferService := services.NewTransferService(st, balanceService, publisher, log)
	voucherService := services.NewVoucherService(st, objects, time.Duration(cfg.Storage.PresignTTLMinutes)*time.Minute, log)
	exportService := services.NewExportService(st)
	customerService := services.NewCustomerService(st, countryCode)
	messagingService := services.NewMessagingService(st, providers, cfg.WhatsApp.Provider, log)
	webhookService := services.NewWebhookService(st, dedupe, time.Duration(cfg.WhatsApp.DedupeTTLMinutes)*time.Minute, countryCode, log)

	// Campaign dispatch runs detached from requests; ctx cancellation stops running campaigns
	hub := dispatch.NewHub()
	dispatcher := dispatch.NewDispatcher(st, providers, publisher, hub, log)
	runs := dispatch.NewManager(ctx, dispatcher)
	campaignService := services.NewCampaignService(st, runs, cfg.WhatsApp.Provider, cfg.Dispatch.RatePerMinute, countryCode, log)

	// Nightly reconciliation
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(balanceService, cfg.Scheduler.ReconcileSchedule, log)
		if err := sched.Start(); err != nil {
			return err
		}
		defer func() { <-sched.Stop().Done() }()
	}

	// HTTP
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, cfg.JWT.SessionCookie)
	router := h.NewRouter(
		handlers.NewAccountHandler(accountService, balanceService, log),
		handlers.NewLedgerHandler(ledgerService, voucherService, exportService, log),
		handlers.NewTransferHandler(transferService, log),
		handlers.NewCustomerHandler(customerService, messagingService, log),
		handlers.NewCampaignHandler(campaignService, runs, hub, log),
		handlers.NewAdminHandler(balanceService, log),
		handlers.NewWebhookHandler(webhookService, handlers.WebhookSecrets{
			PublicURL:       cfg.Server.PublicURL,
			TwilioAuthToken: cfg.WhatsApp.Twilio.AuthToken,
			MetaAppSecret:   cfg.WhatsApp.Meta.AppSecret,
			MetaVerifyToken: cfg.WhatsApp.Meta.VerifyToken,
		}, log),
		handlers.NewHealthHandler(healthChecker),
		authMiddleware,
		log,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           h.Wrap(router, middleware.NewCORS(cfg), log),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	// running campaigns observe ctx and stop after the current send
	runs.Wait()
	return nil
}
