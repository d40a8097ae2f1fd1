package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	"courier/internal/carrier"
	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/dedup"
	"courier/internal/diagnostics"
	"courier/internal/fragment"
	"courier/internal/identity"
	"courier/internal/ingest"
	"courier/internal/logger"
	"courier/internal/normalize"
	"courier/internal/routing"
	"courier/internal/signature"
	"courier/internal/workflow"
	"courier/pkg/bootstrap"
	"courier/pkg/health"
	"courier/pkg/metrics"
	"courier/pkg/middleware"
	"courier/pkg/migrations"
	"courier/pkg/ratelimit"
	"courier/pkg/tracing"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const serviceName = "ingestion-service"

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector

	redis       *redis.Client
	postgresDB  *sql.DB
	mongoClient *mongo.Client
	diagStore   *diagnostics.Store

	fragments  *fragment.Service
	ruleEngine *workflow.RuleEngine

	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterIngestionMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}
	if a.Config.Admin.RateLimit.Enabled {
		metrics.RegisterAdminMetrics()
	}

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.postgresDB = db

	if a.Config.Database.RunMigrations {
		if err := bootstrap.RunMigrations(db, "file://migrations/postgres", a.Logger); err != nil {
			return err
		}
	}

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "MongoDB initialization failed, WABA rerouting and diagnostics disabled",
			"error", err,
		)
	} else if mongoClient != nil {
		a.mongoClient = mongoClient
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		mongoDB := mongoClient.Database(dbName)
		if err := migrations.EnsureMongoCollections(ctx, mongoDB); err != nil {
			a.Logger.WarnwCtx(ctx, "MongoDB index setup failed", "error", err)
		}
		a.diagStore = diagnostics.NewStore(mongoDB, a.Logger)
	}

	return nil
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())

	validators, err := a.buildValidators()
	if err != nil {
		return err
	}
	adapters := a.buildAdapters()

	evaluator := workflow.NewHTTPEvaluator(a.Config.Workflow, a.Config.CircuitBreaker, a.Logger)
	ruleRepo := workflow.NewRuleRepository(a.postgresDB)
	ruleEngine, err := workflow.NewRuleEngine(
		ruleRepo,
		a.Config.Carriers.OrgID,
		a.Config.Workflow.PreRouting,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to build rule engine: %w", err)
	}
	a.ruleEngine = ruleEngine

	var wfDiag workflow.DiagnosticsRecorder
	var ingestDiag ingest.DiagnosticsRecorder
	var fragDiag fragment.DiagnosticsRecorder
	var routingDiag routing.DiagnosticsRecorder
	if a.diagStore != nil {
		wfDiag = a.diagStore
		ingestDiag = a.diagStore
		fragDiag = a.diagStore
		routingDiag = a.diagStore
	}

	engine := workflow.NewEngine(evaluator, ruleEngine, wfDiag, a.Logger)

	dedupSvc := dedup.NewService(dedup.NewRepository(a.redis), a.Config.Deduplication, a.Logger)
	a.fragments = fragment.NewService(fragment.NewRepository(a.redis), fragDiag, a.Config.Fragments, a.Logger)
	identitySvc := identity.NewService(identity.NewRepository(a.postgresDB), a.redis, a.Logger)

	var wabaRepo routing.WabaRepository
	if a.mongoClient != nil {
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		wabaRepo = routing.NewWabaRepository(a.mongoClient.Database(dbName))
	}
	forwarder := routing.NewForwarder(a.Config.Routing, a.Logger)
	msgRouter := routing.NewRouter(wabaRepo, routing.NewChannelRepository(a.postgresDB), forwarder, routingDiag, a.Logger)

	pipeline := ingest.NewPipeline(
		dedupSvc,
		a.fragments,
		normalize.New(a.Config.Carriers.OrgID),
		identitySvc,
		engine,
		msgRouter,
		a.Producer,
		ingestDiag,
		a.Config.Broker.Kafka,
		a.Logger,
	)

	webhookHandler := ingest.NewHandler(validators, adapters, pipeline, msgRouter, a.Logger)
	webhookHandler.RegisterRoutes(router)

	var adminMW []gin.HandlerFunc
	if a.Config.Admin.RateLimit.Enabled {
		adminMW = append(adminMW, ratelimit.RateLimitMiddleware(ratelimit.RateLimitConfig{
			RPS:             a.Config.Admin.RateLimit.RPS,
			Burst:           a.Config.Admin.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.Admin.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.Admin.RateLimit.MaxAge) * time.Second,
		}))
	}

	if wabaRepo != nil {
		adminHandler := routing.NewHandler(wabaRepo, a.Config.Admin.Token, a.Logger)
		adminHandler.RegisterRoutes(router, adminMW...)
	}

	rulesHandler := workflow.NewRulesHandler(ruleRepo, ruleEngine, a.Config.Admin.Token, a.Logger)
	rulesHandler.RegisterRoutes(router, adminMW...)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewRedisChecker(a.redis))
	healthRegistry.Register(health.NewPostgreSQLChecker(a.postgresDB))
	if a.mongoClient != nil {
		healthRegistry.RegisterOptional(health.NewMongoDBChecker(a.mongoClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) buildValidators() (*signature.Registry, error) {
	rcsValidator, err := signature.NewRCSValidator(a.Config.Carriers.RCS)
	if err != nil {
		return nil, fmt.Errorf("invalid RCS origin configuration: %w", err)
	}
	return signature.NewRegistry(
		signature.NewMetaValidator(carrier.WhatsApp, a.Config.Carriers.WhatsApp),
		signature.NewMetaValidator(carrier.Messenger, a.Config.Carriers.Messenger),
		signature.NewSMSGatewayValidator(a.Config.Carriers.SMSGW),
		signature.NewTelegramValidator(a.Config.Carriers.Telegram),
		signature.NewWebchatValidator(a.Config.Carriers.Webchat),
		rcsValidator,
	), nil
}

func (a *App) buildAdapters() *carrier.Registry {
	return carrier.NewRegistry(
		carrier.NewWhatsAppAdapter(a.Config.Carriers.WhatsApp),
		carrier.NewMessengerAdapter(a.Config.Carriers.Messenger),
		carrier.NewSMSGatewayAdapter(a.Config.Carriers.SMSGW),
		carrier.NewTelegramAdapter(a.Config.Carriers.Telegram),
		carrier.NewWebchatAdapter(a.Config.Carriers.Webchat),
		carrier.NewRCSAdapter(a.Config.Carriers.RCS),
	)
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	a.fragments.Start(gCtx)

	g.Go(func() error {
		err := a.ruleEngine.StartReloader(gCtx)
		if err != nil && err != context.Canceled {
			// The service keeps running on evaluator defaults when the rule
			// table is unreadable at startup.
			a.Logger.ErrorwCtx(gCtx, "Prerouting rule reloader stopped", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		a.fragments.Stop()

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.postgresDB, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
