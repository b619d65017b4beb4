package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	budgetapp "github.com/casehub/backend/internal/application/budget"
	caseapp "github.com/casehub/backend/internal/application/casework"
	eventapp "github.com/casehub/backend/internal/application/event"
	ledgerapp "github.com/casehub/backend/internal/application/ledger"
	programapp "github.com/casehub/backend/internal/application/program"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/casehub/backend/internal/infrastructure/auth"
	"github.com/casehub/backend/internal/infrastructure/cache"
	"github.com/casehub/backend/internal/infrastructure/config"
	"github.com/casehub/backend/internal/infrastructure/event"
	"github.com/casehub/backend/internal/infrastructure/export"
	"github.com/casehub/backend/internal/infrastructure/locking"
	"github.com/casehub/backend/internal/infrastructure/logger"
	"github.com/casehub/backend/internal/infrastructure/persistence"
	"github.com/casehub/backend/internal/infrastructure/scheduler"
	"github.com/casehub/backend/internal/infrastructure/storage"
	"github.com/casehub/backend/internal/infrastructure/telemetry"
	"github.com/casehub/backend/internal/interfaces/http/handler"
	"github.com/casehub/backend/internal/interfaces/http/middleware"
	"github.com/casehub/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			CaseHub Backend API
//	@version		1.0
//	@description	Invoice ledger, budgets, cases and programs for case management.

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	// The OTLP log pipeline must exist before the logger so its core can be teed in
	logProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry)
	if err != nil {
		panic("Failed to initialize log exporter: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.NewWithCores(logCfg, logProvider.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting CaseHub backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	providers, err := telemetry.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	meter := providers.Meter.Meter(telemetry.MeterName)

	// Database with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithSQL(cfg.Telemetry.DBLogFullSQL))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", db.Driver()))

	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, db.Driver(), log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate schema", zap.Error(err))
		}
		log.Info("Schema auto-migrated")
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		if _, err := telemetry.RegisterPoolMetrics(meter, sqlDB); err != nil {
			log.Warn("Failed to register pool metrics", zap.Error(err))
		}
	}
	if _, err := telemetry.RegisterReceivableMetrics(meter,
		telemetry.NewGormReceivableStatsProvider(db.DB), log); err != nil {
		log.Warn("Failed to register receivable metrics", zap.Error(err))
	}

	defaultCurrency, err := valueobject.ParseCurrency(cfg.Ledger.DefaultCurrency)
	if err != nil {
		log.Fatal("Invalid default currency", zap.Error(err))
	}

	// Repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	budgetRepo := persistence.NewGormBudgetRepository(db.DB)
	caseRepo := persistence.NewGormCaseRepository(db.DB)
	programRepo := persistence.NewGormProgramRepository(db.DB)
	numbers := persistence.NewGormNumberGenerator(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Event bus. In outbox mode services write events next to their data
	// and the processor relays them; otherwise they publish directly.
	bus := event.NewInMemoryEventBus(log, event.WithMetrics(providers.Metrics))
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	var publisher shared.EventPublisher = bus
	var processor *event.OutboxProcessor
	if cfg.IsOutboxDelivery() {
		serializer := event.NewEventSerializer()
		publisher = event.NewOutboxPublisher(outboxRepo, serializer, log)
		processor = event.NewOutboxProcessor(outboxRepo, bus, serializer, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  cfg.Event.CleanupInterval,
		}, log)
		log.Info("Event delivery through outbox", zap.Int("batch_size", cfg.Event.BatchSize))
	}

	idempotencyStore, err := cache.NewIdempotencyStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		_ = idempotencyStore.Close()
	}()

	// One lock table shared by every service and projection, so a projection
	// never interleaves with a request touching the same program
	locks := locking.NewKeyedMutex(locking.WithWaitTimeout(cfg.Ledger.LockTimeout))

	// Application services
	invoiceService := ledgerapp.NewInvoiceService(invoiceRepo, numbers, log,
		ledgerapp.WithLocks(locks),
		ledgerapp.WithMetrics(providers.Metrics),
		ledgerapp.WithDefaultCurrency(defaultCurrency),
		ledgerapp.WithSweepBatchSize(cfg.Scheduler.OverdueSweepBatch),
	)
	budgetService := budgetapp.NewBudgetService(budgetRepo, publisher, log,
		budgetapp.WithLocks(locks),
		budgetapp.WithDefaultCurrency(defaultCurrency),
	)
	caseService := caseapp.NewCaseService(caseRepo, numbers, publisher, log,
		caseapp.WithLocks(locks),
	)
	programService := programapp.NewProgramService(programRepo, publisher, log,
		programapp.WithLocks(locks),
		programapp.WithDefaultCurrency(defaultCurrency),
	)

	exportService, closeExports := newExportService(ctx, cfg, invoiceService, log)
	defer closeExports()

	// Projections keep denormalized program fields in step with budgets and cases
	budgetProjection := programapp.NewProgramBudgetProjection(programRepo, locks, log)
	for _, eventType := range budgetProjection.EventTypes() {
		bus.Subscribe(string(eventType), budgetProjection)
	}
	caseCountProjection := programapp.NewProgramCaseCountProjection(programRepo, locks, log)
	caseCount := event.NewIdempotentHandler("program-case-count", caseCountProjection, idempotencyStore, log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Idempotency.TTL,
			Enabled: cfg.Idempotency.Enabled,
		}),
	)
	for _, eventType := range caseCountProjection.EventTypes() {
		bus.Subscribe(string(eventType), caseCount)
	}

	if processor != nil {
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	sweeper := scheduler.NewOverdueSweeper(invoiceService, log, scheduler.OverdueSweeperConfig{
		Enabled:    cfg.Scheduler.Enabled,
		Interval:   cfg.Scheduler.OverdueSweepInterval,
		Timeout:    cfg.Scheduler.JobTimeout,
		RunOnStart: true,
	})
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start overdue sweeper", zap.Error(err))
	}

	// Handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, exportService)
	budgetHandler := handler.NewBudgetHandler(budgetService)
	caseHandler := handler.NewCaseHandler(caseService)
	programHandler := handler.NewProgramHandler(programService)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.Pinger{
		"database": db,
	})
	var outboxHandler *handler.OutboxHandler
	if cfg.IsOutboxDelivery() {
		outboxHandler = handler.NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, log))
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Tracing - Root span per request
	// 3. Recovery - Catch panics
	// 4. Logger - Log requests
	// 5. Metrics and profiling labels
	// 6. Security headers, CORS, body limit
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, providers.Tracer.IsEnabled()))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if providers.Meter.IsEnabled() {
		engine.Use(middleware.HTTPMetrics(meter))
	}
	engine.Use(middleware.Profiling(providers.Profiler.IsEnabled()))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health probes sit outside the API group and need no actor
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	if cfg.HTTP.AuthEnabled {
		jwtConfig := middleware.DefaultJWTConfig(auth.NewJWTService(cfg.JWT))
		jwtConfig.Logger = log
		r.Use(middleware.JWTAuthMiddleware(jwtConfig))
	} else {
		log.Warn("Authentication disabled, actors are taken from the " + middleware.ActorHeader + " header")
		r.Use(middleware.HeaderActorMiddleware())
	}
	r.Use(middleware.TracingAttributeInjector())

	r.Register(router.LedgerRoutes(invoiceHandler, budgetHandler))
	r.Register(router.CaseRoutes(caseHandler))
	r.Register(router.ProgramRoutes(programHandler))
	r.Register(router.SystemRoutes(systemHandler, outboxHandler))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Warn("Overdue sweeper did not stop cleanly", zap.Error(err))
	}
	if processor != nil {
		if err := processor.Stop(shutdownCtx); err != nil {
			log.Warn("Outbox processor did not stop cleanly", zap.Error(err))
		}
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("Telemetry shutdown failed", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx, log); err != nil {
		log.Warn("Log exporter shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newExportService wires CSV export, the headless Chrome PDF renderer and
// link storage. S3 is used when configured, else an in-process store whose
// links only this instance can resolve.
func newExportService(
	ctx context.Context,
	cfg *config.Config,
	invoices *ledgerapp.InvoiceService,
	log *zap.Logger,
) (*ledgerapp.ExportService, func()) {
	opts := []ledgerapp.ExportServiceOption{}
	closeFn := func() {}

	renderer, err := export.NewPDFRenderer(export.PDFConfig{
		ChromePath: cfg.Export.ChromePath,
		Timeout:    cfg.Export.PDFTimeout,
		NoSandbox:  cfg.App.Env != "development",
		Logger:     log,
	})
	if err != nil {
		log.Warn("PDF export unavailable", zap.Error(err))
	} else {
		opts = append(opts, ledgerapp.WithRenderer(renderer))
		closeFn = func() {
			_ = renderer.Close()
		}
	}

	if cfg.Storage.Enabled {
		objects, err := storage.NewS3ObjectStorage(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration))
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := objects.EnsureBucket(ensureCtx); err != nil {
			log.Fatal("Failed to prepare export bucket", zap.Error(err))
		}
		opts = append(opts, ledgerapp.WithStorage(objects, cfg.Storage.PresignExpiration))
		log.Info("Exports stored in S3", zap.String("bucket", objects.GetBucket()))
	} else {
		opts = append(opts, ledgerapp.WithStorage(storage.NewMemoryObjectStorage(), time.Hour))
	}

	return ledgerapp.NewExportService(invoices, export.NewCSVWriter(), log, opts...), closeFn
}
