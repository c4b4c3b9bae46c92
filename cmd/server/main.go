package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	receivingapp "github.com/pharmaerp/receiving/internal/application/receiving"
	"github.com/pharmaerp/receiving/internal/domain/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/cache"
	"github.com/pharmaerp/receiving/internal/infrastructure/collaborator"
	"github.com/pharmaerp/receiving/internal/infrastructure/config"
	"github.com/pharmaerp/receiving/internal/infrastructure/event"
	"github.com/pharmaerp/receiving/internal/infrastructure/logger"
	"github.com/pharmaerp/receiving/internal/infrastructure/messaging"
	"github.com/pharmaerp/receiving/internal/infrastructure/migration"
	"github.com/pharmaerp/receiving/internal/infrastructure/persistence"
	"github.com/pharmaerp/receiving/internal/infrastructure/storage"
	"github.com/pharmaerp/receiving/internal/infrastructure/telemetry"
	"github.com/pharmaerp/receiving/internal/interfaces/http/handler"
	"github.com/pharmaerp/receiving/internal/interfaces/http/router"
	"github.com/pharmaerp/receiving/internal/interfaces/rpc"
)

//	@title			Goods Receipt API
//	@version		1.0
//	@description	Records deliveries against purchase orders and moves them through QC.
//	@BasePath		/api/v1

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry providers; each is a no-op when disabled
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if loggerProvider.IsEnabled() {
		// rebuild with the OTEL bridge teed behind stdout
		otelCore := telemetry.NewZapOTELCore(cfg.Telemetry.ServiceName, loggerProvider, logger.ParseLevel(cfg.Log.Level))
		if log, err = logger.New(logCfg, otelCore); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiler.Enabled,
		ServerAddress:     cfg.Profiler.ServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Profiler.BasicAuthUser,
		BasicAuthPassword: cfg.Profiler.BasicAuthPassword,
		ProfileCPU:        true,
		ProfileAlloc:      true,
		ProfileInuse:      true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiler.Enabled && cfg.Profiler.SpanProfiles {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles not enabled", zap.Error(err))
		}
	}

	log.Info("Starting goods receipt service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.GormLevel))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", db.DriverName()))

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Warn("Database tracing not registered", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		sqlDB, err := db.DB.DB()
		if err != nil {
			log.Fatal("Failed to get sql.DB for migrations", zap.Error(err))
		}
		if err := migration.Run(sqlDB, cfg.Database.Driver, cfg.Database.MigrationsPath, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Redis backs the RPC transport, the event stream and idempotency.
	// Without any of those it is optional.
	needsRedis := cfg.RPC.Enabled ||
		cfg.Event.StreamRelayEnabled ||
		cfg.Collaborators.PurchaseOrderTransport == config.TransportRPC
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		if needsRedis {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		log.Warn("Redis unavailable, continuing without it", zap.Error(err))
		redisClient = nil
	}

	// Metrics
	meter := meterProvider.Meter("receiving")
	receivingMetrics, err := telemetry.NewReceivingMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create receiving metrics", zap.Error(err))
	}

	// Events
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	outboxPublisher := event.NewOutboxPublisher(serializer)

	// Repositories and read models
	receiptRepo := persistence.NewGormGoodsReceiptRepository(db.DB)
	receivedQuery := persistence.NewReceivedQuantityQuery(db.DB)

	poReader, err := newPurchaseOrderReader(cfg, db, redisClient)
	if err != nil {
		log.Fatal("Failed to set up purchase order access", zap.Error(err))
	}
	log.Info("Purchase order access configured",
		zap.String("transport", cfg.Collaborators.PurchaseOrderTransport))

	gateway := receivingapp.NewPurchaseOrderGateway(poReader,
		cfg.Collaborators.RequireTimeout, cfg.Collaborators.EnrichTimeout)
	gateway.SetMetrics(receivingMetrics)

	receiptService := receivingapp.NewGoodsReceiptService(receiptRepo, receivedQuery, gateway)
	receiptService.SetMetrics(receivingMetrics)

	// Subscribers
	eventBus := event.NewInMemoryEventBus(log)
	idempotencyStore := cache.NewIdempotencyStore(redisClient, log)
	defer func() {
		_ = idempotencyStore.Close()
	}()
	idempotencyOpts := []event.IdempotentHandlerOption{
		event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.Event.IdempotencyTTL, Enabled: true}),
		event.WithIdempotencyStats(&event.IdempotencyStats{}),
	}

	qcHandler := receivingapp.NewQCSamplingHandler(log)
	eventBus.Subscribe(qcHandler)

	archive, err := newArchive(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to set up receipt archive", zap.Error(err))
	}
	archiveHandler := receivingapp.NewReceiptArchiveHandler(receiptRepo, archive, log)
	eventBus.Subscribe(event.NewIdempotentHandler(archiveHandler, idempotencyStore, log, idempotencyOpts...))

	if cfg.Event.StreamRelayEnabled {
		relay := event.NewStreamRelay(redisClient, serializer, cfg.Event.Stream, cfg.Event.StreamMaxLen, log)
		eventBus.Subscribe(event.NewIdempotentHandler(relay, idempotencyStore, log, idempotencyOpts...))
		log.Info("Event stream relay enabled", zap.String("stream", cfg.Event.Stream))
	} else {
		log.Warn("Event stream relay disabled, QC sampling is only audited locally")
	}

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	var outboxProcessor *event.OutboxProcessor
	if cfg.Event.ProcessorEnabled {
		outboxConfig := event.DefaultOutboxProcessorConfig()
		outboxConfig.BatchSize = cfg.Event.BatchSize
		outboxConfig.PollInterval = cfg.Event.PollInterval
		outboxConfig.MaxRetries = cfg.Event.MaxRetries
		outboxConfig.CleanupEnabled = cfg.Event.CleanupEnabled
		outboxConfig.CleanupRetention = cfg.Event.CleanupRetention

		receiptRepo.SetOutboxEventSaver(outboxPublisher)
		outboxProcessor = event.NewOutboxProcessor(outboxRepo, eventBus, serializer, outboxConfig, log)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		log.Info("Outbox processor started",
			zap.Int("batch_size", outboxConfig.BatchSize),
			zap.Duration("poll_interval", outboxConfig.PollInterval),
		)
	} else {
		// nothing drains the outbox, so hand events straight to the bus
		receiptService.SetEventPublisher(eventBus)
		log.Warn("Outbox processor disabled, publishing events in-process")
	}

	// RPC surface
	var rpcServer *messaging.Server
	if cfg.RPC.Enabled {
		rpcServer = messaging.NewServer(redisClient, messaging.ServerConfig{
			Queue:          cfg.RPC.Queue,
			Workers:        cfg.RPC.Workers,
			RequestTimeout: cfg.RPC.RequestTimeout,
			PollTimeout:    cfg.RPC.PollTimeout,
			ReplyTTL:       cfg.RPC.ReplyTTL,
		}, rpc.NewGoodsReceiptRoutes(receiptService), log)
		if err := rpcServer.Start(ctx); err != nil {
			log.Fatal("Failed to start RPC server", zap.Error(err))
		}
		log.Info("RPC server started",
			zap.String("queue", cfg.RPC.Queue),
			zap.Int("workers", cfg.RPC.Workers),
		)
	}

	// HTTP surface
	var srv *http.Server
	if cfg.HTTP.Enabled {
		if cfg.App.Env == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		httpMeter := meter
		if !meterProvider.IsEnabled() {
			httpMeter = nil
		}
		engine, err := router.NewEngine(cfg.HTTP, router.EngineOptions{
			Logger:          log,
			Meter:           httpMeter,
			ServiceName:     cfg.Telemetry.ServiceName,
			TracingEnabled:  tracerProvider.IsEnabled(),
			ProfilerEnabled: profiler.IsEnabled(),
		})
		if err != nil {
			log.Fatal("Failed to build HTTP engine", zap.Error(err))
		}

		checks := map[string]handler.PingFunc{"database": db.Ping}
		if redisClient != nil {
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
		handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, checks).RegisterRoutes(engine)

		router.NewRouter(engine, router.WithAPIVersion("v1")).
			Register(handler.NewGoodsReceiptHandler(receiptService).Routes()).
			Setup()

		srv = &http.Server{
			Addr:           ":" + cfg.App.Port,
			Handler:        engine,
			ReadTimeout:    cfg.HTTP.ReadTimeout,
			WriteTimeout:   cfg.HTTP.WriteTimeout,
			IdleTimeout:    cfg.HTTP.IdleTimeout,
			MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
		}
		go func() {
			log.Info("HTTP server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("Failed to start HTTP server", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown: stop intake first, then drain background work,
	// then release connections and flush telemetry.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server forced to shutdown", zap.Error(err))
		}
	}
	if rpcServer != nil {
		if err := rpcServer.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping RPC server", zap.Error(err))
		}
	}
	if outboxProcessor != nil {
		if err := outboxProcessor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newPurchaseOrderReader reads procurement tables directly in shared-database
// mode, or calls the procurement service over the Redis RPC queue
func newPurchaseOrderReader(cfg *config.Config, db *persistence.Database, redisClient *redis.Client) (receiving.PurchaseOrderReader, error) {
	switch cfg.Collaborators.PurchaseOrderTransport {
	case config.TransportRPC:
		client := messaging.NewClient(redisClient)
		return collaborator.NewPurchaseOrderClient(client, cfg.Collaborators.PurchaseOrderQueue), nil
	default:
		return persistence.NewPurchaseOrderQueryFromDatabase(db)
	}
}

func newArchive(ctx context.Context, cfg *config.Config, log *zap.Logger) (receivingapp.ReceiptArchiver, error) {
	if !cfg.Storage.ArchiveEnabled {
		log.Info("S3 archive disabled, keeping receipt snapshots in memory")
		return storage.NewMemoryArchive(), nil
	}
	return storage.NewS3Archive(ctx, &cfg.Storage, storage.WithLogger(log))
}
