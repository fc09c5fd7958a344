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

	"github.com/procost/enquiry-api/docs"
	"github.com/procost/enquiry-api/internal/config"
	"github.com/procost/enquiry-api/internal/database"
	"github.com/procost/enquiry-api/internal/datawarehouse"
	"github.com/procost/enquiry-api/internal/extraction"
	"github.com/procost/enquiry-api/internal/http/handler"
	"github.com/procost/enquiry-api/internal/http/middleware"
	"github.com/procost/enquiry-api/internal/http/router"
	"github.com/procost/enquiry-api/internal/jobs"
	"github.com/procost/enquiry-api/internal/lock"
	"github.com/procost/enquiry-api/internal/logger"
	"github.com/procost/enquiry-api/internal/pricing"
	"github.com/procost/enquiry-api/internal/repository"
	"github.com/procost/enquiry-api/internal/service"
	"github.com/procost/enquiry-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// @title Procost Enquiry API
// @version 1.0
// @description Inbound seafood enquiry threading, conversation tracking and quote pricing

// @contact.name API Support
// @contact.email support@procost.io

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Shared secret for the webhook and API routes

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if host := os.Getenv("SWAGGER_HOST"); host != "" {
		docs.SwaggerInfo.Host = host
	} else {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		// Postgres schemas come from goose migrations, see cmd/migrate
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
	}

	var dwClient *datawarehouse.Client
	if cfg.DataWarehouse.Enabled {
		dwClient, err = datawarehouse.NewClient(&cfg.DataWarehouse, log)
		if err != nil {
			log.Warn("Data warehouse connection failed, continuing without it", zap.Error(err))
			dwClient = nil
		}
	}

	catalog, snapshot, err := buildCatalog(ctx, cfg, db, dwClient, logger.Named(log, logger.ComponentCatalog))
	if err != nil {
		return err
	}
	pricingLog := logger.Named(log, logger.ComponentPricing)
	engine := pricing.NewEngine(catalog, cfg.Pricing.LookupTimeoutDuration(), pricingLog)

	locker, closeLocker := buildLocker(cfg, log)
	defer closeLocker()

	var archive *storage.EmailArchive
	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(&cfg.Storage, log)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		archive = storage.NewEmailArchive(store)
		log.Info("Raw email archive enabled", zap.String("mode", cfg.Storage.Mode))
	}

	clock := service.SystemClock{}
	numberSequences := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), clock, log)
	var sequencer service.Sequencer = numberSequences
	if cfg.Quotes.Numbering == "clock" {
		sequencer = service.NewClockSequencer(clock)
	}

	customerRepo := repository.NewCustomerRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	eventRepo := repository.NewConversationEventRepository(db)
	emailRepo := repository.NewInboundEmailRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)

	concurrency := service.ConcurrencyOptions{
		LockTimeout: cfg.Ingestion.LockTimeoutDuration(),
		MaxRetries:  cfg.Ingestion.MaxRetries,
		RetryDelay:  cfg.Ingestion.RetryDelayDuration(),
	}

	ingestionLog := logger.Named(log, logger.ComponentIngestion)
	enquiryLog := logger.Named(log, logger.ComponentEnquiries)
	quoteLog := logger.Named(log, logger.ComponentQuotes)

	customerService := service.NewCustomerService(customerRepo, enquiryLog)
	ingestionService := service.NewIngestionService(
		db, customerService, conversationRepo, eventRepo, emailRepo,
		extraction.NewGuarded(buildExtractor(cfg, logger.Named(log, logger.ComponentExtraction)), cfg.Extraction.TimeoutDuration(), ingestionLog),
		locker, sequencer, archive, clock,
		concurrency,
		ingestionLog,
	)
	conversationService := service.NewConversationService(db, conversationRepo, eventRepo, customerRepo, locker, clock,
		concurrency, enquiryLog)
	emailService := service.NewEmailService(emailRepo, conversationRepo, ingestionService, ingestionLog)
	quoteService := service.NewQuoteService(db, quoteRepo, conversationRepo, eventRepo, engine, sequencer, locker, clock,
		service.QuoteOptions{
			Prefix:       cfg.Quotes.Prefix,
			Currency:     cfg.Quotes.Currency,
			ValidityDays: cfg.Quotes.ValidityDays,
			FactoryID:    cfg.Pricing.DefaultFactoryID,
			Concurrency:  concurrency,
		}, quoteLog)
	pricingService := service.NewPricingService(engine, cfg.Quotes.Currency, cfg.Pricing.DefaultFactoryID, pricingLog)

	var catalogStatus handler.CatalogStatus
	if snapshot != nil {
		catalogStatus = snapshot
	}

	rt := router.NewRouter(cfg, logger.Named(log, logger.ComponentHTTP), middleware.NewRateLimiter(&cfg.RateLimit, log), router.Handlers{
		Health:       handler.NewHealthHandler(db, dwClient, catalogStatus, log),
		Webhook:      handler.NewWebhookHandler(ingestionService, log),
		Conversation: handler.NewConversationHandler(conversationService, log),
		Customer:     handler.NewCustomerHandler(customerService, log),
		Quote:        handler.NewQuoteHandler(quoteService, log),
		Email:        handler.NewEmailHandler(emailService, log),
		Pricing:      handler.NewPricingHandler(pricingService, log),
	})

	var scheduler *jobs.Scheduler
	if snapshot != nil && cfg.Catalog.RefreshCron != "" {
		jobsLog := logger.Named(log, logger.ComponentJobs)
		scheduler = jobs.NewScheduler(cfg.Catalog.RefreshTimeoutDuration(), jobsLog)
		if err := scheduler.Add(cfg.Catalog.RefreshCron, jobs.NewCatalogRefreshJob(snapshot, jobsLog)); err != nil {
			log.Error("Failed to register catalog refresh job", zap.Error(err))
			scheduler = nil
		} else {
			scheduler.Start()
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if err := dwClient.Close(); err != nil {
			log.Warn("Error closing data warehouse connection", zap.Error(err))
		}
		log.Info("Server stopped gracefully")
	}

	return nil
}

// buildCatalog picks the rate source and wraps it. A snapshot serves lookups
// from memory; otherwise every lookup goes to the source behind a breaker.
func buildCatalog(ctx context.Context, cfg *config.Config, db *gorm.DB, dw *datawarehouse.Client, log *zap.Logger) (pricing.Catalog, *pricing.SnapshotCatalog, error) {
	var source interface {
		pricing.Catalog
		pricing.Loader
	}

	switch cfg.Catalog.Source {
	case "warehouse":
		if !dw.IsEnabled() {
			return nil, nil, fmt.Errorf("catalog source is warehouse but the data warehouse is not available")
		}
		source = dw
	case "", "database":
		source = repository.NewRateRepository(db)
	default:
		return nil, nil, fmt.Errorf("unsupported catalog source %q", cfg.Catalog.Source)
	}

	log.Info("Rate catalog configured",
		zap.String("source", cfg.Catalog.Source),
		zap.Bool("snapshot", cfg.Catalog.Snapshot))

	if !cfg.Catalog.Snapshot {
		return pricing.Guard(source, pricing.GuardSettings{
			Name:                "rate-catalog",
			ConsecutiveFailures: uint32(cfg.Pricing.BreakerFailures),
			OpenTimeout:         cfg.Pricing.BreakerTimeoutDuration(),
		}, log), nil, nil
	}

	snapshot := pricing.NewSnapshotCatalog(source, log)
	loadCtx, cancel := context.WithTimeout(ctx, cfg.Catalog.RefreshTimeoutDuration())
	defer cancel()
	if err := snapshot.Refresh(loadCtx); err != nil {
		// Readiness reports the missing snapshot until a refresh succeeds
		log.Error("Initial rate catalog load failed", zap.Error(err))
	}
	return snapshot, snapshot, nil
}

// buildLocker uses redis when an address is configured
func buildLocker(cfg *config.Config, log *zap.Logger) (lock.Locker, func()) {
	if cfg.Redis.Addr == "" {
		log.Info("Using in-process thread lock")
		return lock.NewLocal(), func() {}
	}

	client := lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	log.Info("Using redis thread lock", zap.String("addr", cfg.Redis.Addr))
	locker := lock.NewRedis(client, lock.RedisOptions{
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       cfg.Redis.LockTTLDuration(),
	}, log)
	return locker, func() {
		if err := client.Close(); err != nil {
			log.Warn("Error closing redis client", zap.Error(err))
		}
	}
}

// buildExtractor selects the line item extractor
func buildExtractor(cfg *config.Config, log *zap.Logger) extraction.Extractor {
	useOpenAI := false
	switch cfg.Extraction.Provider {
	case "openai":
		useOpenAI = true
	case "heuristic":
	default:
		useOpenAI = cfg.OpenAI.APIKey != ""
	}

	if !useOpenAI {
		log.Info("Using heuristic line item extractor")
		return extraction.NewHeuristicExtractor()
	}
	if cfg.OpenAI.APIKey == "" {
		log.Warn("OpenAI extractor selected without an API key, falling back to heuristic extraction")
		return extraction.NewHeuristicExtractor()
	}

	log.Info("Using OpenAI line item extractor", zap.String("model", cfg.OpenAI.Model))
	return extraction.NewOpenAIExtractor(
		extraction.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL),
		extraction.OpenAIOptions{
			Model:           cfg.OpenAI.Model,
			MaxTokens:       cfg.OpenAI.MaxTokens,
			Temperature:     float32(cfg.OpenAI.Temperature),
			BreakerFailures: uint32(cfg.Extraction.BreakerFailures),
			BreakerTimeout:  cfg.Extraction.BreakerTimeoutDuration(),
		},
		log,
	)
}
