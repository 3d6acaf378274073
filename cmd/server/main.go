package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appdevice "github.com/bizops/backend/internal/application/device"
	"github.com/bizops/backend/internal/domain/identity"
	"github.com/bizops/backend/internal/infrastructure/auth"
	"github.com/bizops/backend/internal/infrastructure/cache"
	"github.com/bizops/backend/internal/infrastructure/config"
	"github.com/bizops/backend/internal/infrastructure/logger"
	"github.com/bizops/backend/internal/infrastructure/persistence"
	"github.com/bizops/backend/internal/infrastructure/telemetry"
	"github.com/bizops/backend/internal/interfaces/http/handler"
	"github.com/bizops/backend/internal/interfaces/http/middleware"
	"github.com/bizops/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const healthPath = "/health"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	// The logs pipeline must exist before the logger so its core can be attached
	logProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry)
	if err != nil {
		panic("Failed to initialize log exporter: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, logProvider.Core(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting BizOps Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(cfg.Profiling, cfg.Telemetry.ServiceName, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
		if err := logProvider.Shutdown(shutdownCtx, log); err != nil {
			log.Error("Error shutting down log exporter", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.NewDBTracingPlugin(cfg.Telemetry, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	sessionRepo := persistence.NewGormDeviceSessionRepository(db.DB)
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	var operators identity.OperatorChecker = persistence.NewGormOperatorRepository(db.DB)

	var redisClient *redis.Client
	if cfg.Operator.CacheEnabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// Lookups still work against the database; only the cache is lost.
			log.Warn("Redis unavailable, operator cache disabled", zap.Error(err))
		} else {
			operators = cache.NewRedisOperatorChecker(operators, redisClient, cfg.Operator.CacheTTL, log)
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.Error("Error closing redis client", zap.Error(err))
				}
			}()
			log.Info("Operator cache enabled", zap.Duration("ttl", cfg.Operator.CacheTTL))
		}
	}

	// Application services
	meter := meterProvider.Meter("bizops.device_admission")
	admissionMetrics, err := telemetry.NewAdmissionMetrics(telemetry.AdmissionMetricsConfig{Meter: meter, Logger: log})
	if err != nil {
		log.Fatal("Failed to create admission metrics", zap.Error(err))
	}

	serviceCfg := appdevice.AdmissionServiceConfig{
		ActivityWindow: cfg.Device.ActivityWindow,
		Clock:          time.Now,
		Metrics:        admissionMetrics,
	}
	admissionService := appdevice.NewAdmissionService(sessionRepo, tenantRepo, operators, log, serviceCfg)
	sessionService := appdevice.NewSessionService(sessionRepo, tenantRepo, log, serviceCfg)
	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	skipPaths := []string{healthPath, "/api/v1" + healthPath}
	engine, err := router.NewEngine(router.EngineConfig{
		Logger: log,
		Meter:  meterProvider.Meter("bizops.http"),
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
			SkipPaths:   skipPaths,
		},
		CORS:           corsCfg,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	healthHandler := handler.NewHealthHandler(2*time.Second, healthChecks(db, redisClient)...)
	engine.GET(healthPath, healthHandler.Health)

	jwtCfg := middleware.DefaultJWTConfig(jwtService)
	jwtCfg.SkipPaths = skipPaths
	jwtCfg.Logger = log

	r := router.NewRouter(engine, router.WithAPIMiddleware(
		middleware.JWTAuth(jwtCfg),
		middleware.TracingAttributeInjector(),
		middleware.Profiling(middleware.ProfilingConfig{
			Enabled:   profiler.IsEnabled(),
			SkipPaths: skipPaths,
		}),
	))

	deviceHandler := handler.NewDeviceHandler(admissionService, sessionService)
	identityMiddleware := middleware.DeviceIdentity(middleware.DeviceIdentityConfig{
		CookieName:   cfg.Device.CookieName,
		CookieMaxAge: cfg.Device.CookieMaxAge,
		Secure:       cfg.Device.CookieSecure,
	})
	r.Register(router.RegistrarFunc(func(rg *gin.RouterGroup) {
		rg.GET(healthPath, healthHandler.Health)
		deviceHandler.RegisterRoutes(rg, identityMiddleware)
	}))
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// healthChecks lists the probed dependencies. Redis only degrades health.
func healthChecks(db *persistence.Database, redisClient *redis.Client) []handler.HealthCheck {
	checks := []handler.HealthCheck{{
		Name:     "database",
		Critical: true,
		Check:    func(context.Context) error { return db.Ping() },
	}}
	if redisClient != nil {
		checks = append(checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	return checks
}
