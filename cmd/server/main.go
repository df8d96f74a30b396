package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/mpesa-service/internal/adapters/allowlist"
	"github.com/kevin07696/mpesa-service/internal/adapters/database"
	"github.com/kevin07696/mpesa-service/internal/adapters/mpesa"
	"github.com/kevin07696/mpesa-service/internal/adapters/ports"
	"github.com/kevin07696/mpesa-service/internal/config"
	"github.com/kevin07696/mpesa-service/internal/domain/models"
	callbackHandler "github.com/kevin07696/mpesa-service/internal/handlers/callback"
	stkpushHandler "github.com/kevin07696/mpesa-service/internal/handlers/stkpush"
	internalMiddleware "github.com/kevin07696/mpesa-service/internal/middleware"
	paymentService "github.com/kevin07696/mpesa-service/internal/services/payment"
	pkghttp "github.com/kevin07696/mpesa-service/pkg/http"
	"github.com/kevin07696/mpesa-service/pkg/middleware"
	"github.com/kevin07696/mpesa-service/pkg/observability"
	"github.com/kevin07696/mpesa-service/pkg/resilience"
	"github.com/kevin07696/mpesa-service/pkg/security"
	"github.com/kevin07696/mpesa-service/pkg/shutdown"
)

const allowListLoadAttempts = 5

func main() {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	mode := models.ParseMode(cfg.Gateway.Mode)
	if !cfg.Gateway.ModeExplicit() {
		logger.Warn("MPESA_MODE not set to sandbox or live, using sandbox",
			zap.String("mpesa_mode", cfg.Gateway.Mode))
	}

	logger.Info("Starting M-Pesa service",
		zap.String("mode", string(mode)),
		zap.String("short_code", cfg.Gateway.ShortCode),
		zap.String("allowlist_source", cfg.Callback.AllowListSource))

	ctx := context.Background()
	shutdownManager := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)

	sm, err := initSecretManager(ctx, &cfg.Secrets, logger)
	if err != nil {
		logger.Fatal("Failed to initialize secret manager", zap.Error(err))
	}
	if err := resolveGatewaySecrets(ctx, sm, &cfg.Gateway, logger); err != nil {
		logger.Fatal("Failed to resolve gateway secrets", zap.Error(err))
	}

	// The database is only needed for the postgres allow-list source
	var db *database.PostgreSQLAdapter
	if cfg.Database.URL != "" {
		dbCfg := database.DefaultPostgreSQLConfig(cfg.Database.URL)
		dbCfg.MaxConns = cfg.Database.MaxConns
		dbCfg.MinConns = cfg.Database.MinConns

		err := resilience.Retry(ctx, allowListLoadAttempts, resilience.StartupBackoff(), func(ctx context.Context) error {
			var connectErr error
			db, connectErr = database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
			return connectErr
		})
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		shutdownManager.RegisterNoErr("database", db.Close)
	}

	callbackAuth, err := initCallbackAuth(ctx, cfg.Callback, db, logger)
	if err != nil {
		logger.Fatal("Failed to initialize callback authentication", zap.Error(err))
	}

	if cfg.Callback.RefreshInterval > 0 {
		refresher := shutdown.NewPeriodicWorker("allowlist-refresh", cfg.Callback.RefreshInterval, logger)
		refresher.Start(func(ctx context.Context) {
			// Refresh logs its own failures and keeps the previous list
			_ = callbackAuth.Refresh(ctx)
		})
		shutdownManager.Register("allowlist-refresh", refresher.Shutdown)
	}

	clientCfg := pkghttp.GatewayClientConfig()
	clientCfg.InsecureSkipVerify = cfg.Gateway.InsecureSkipVerify
	httpClient := pkghttp.NewHTTPClient(clientCfg, cfg.Gateway.Timeout, logger)

	gateway, err := mpesa.NewClient(mpesa.Config{
		ConsumerKey:    cfg.Gateway.ConsumerKey,
		ConsumerSecret: cfg.Gateway.ConsumerSecret,
		ShortCode:      cfg.Gateway.ShortCode,
		PassKey:        cfg.Gateway.PassKey,
		PhoneNumber:    cfg.Gateway.PhoneNumber,
		Mode:           string(mode),
		BaseURL:        cfg.Gateway.BaseURL,
		Timeout:        cfg.Gateway.Timeout,
		Logger:         security.NewZapLogger(logger.Named("mpesa")),
	}, httpClient)
	if err != nil {
		logger.Fatal("Failed to create gateway client", zap.Error(err))
	}

	tokens := paymentService.NewTokenCache(gateway, logger)
	payments := paymentService.NewPaymentService(gateway, tokens, paymentService.Config{
		CallbackURL: cfg.Gateway.CallbackURL,
		Mode:        mode,
	}, logger)

	stkHandler := stkpushHandler.NewHandler(payments, logger)
	cbHandler := callbackHandler.NewHandler(payments, logger)

	inFlight := shutdown.NewInFlightTracker("http", logger)
	mux := http.NewServeMux()

	var stkEndpoint http.Handler = http.HandlerFunc(stkHandler.HandleStkPush)
	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, nil, logger)
		shutdownManager.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)
		stkEndpoint = rateLimiter.Middleware(stkEndpoint)
	}
	mux.Handle("/api/v1/stkpush", observability.HTTPMetrics("stkpush")(stkEndpoint))
	mux.Handle("/api/v1/mpesa/callback", observability.HTTPMetrics("mpesa_callback")(
		callbackAuth.Middleware(cbHandler.HandleStkCallback)))

	var handler http.Handler = mux
	handler = internalMiddleware.NewSecurityHeaders(cfg.Server.Development).Middleware(handler)
	handler = middleware.RequestID(handler)
	handler = inFlight.Middleware(handler)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Covers the token exchange plus the STK push call
		WriteTimeout: 2*cfg.Gateway.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Pass an untyped nil so the checker reports the database as not configured
	var healthChecker *observability.HealthChecker
	if db != nil {
		healthChecker = observability.NewHealthChecker(db, callbackAuth.Size)
	} else {
		healthChecker = observability.NewHealthChecker(nil, callbackAuth.Size)
	}
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)
	shutdownManager.Register("metrics-server", func(ctx context.Context) error {
		return observability.ShutdownMetricsServer(ctx, metricsServer)
	})

	// Registered last so they stop first. In-flight requests drain before the listener closes.
	shutdownManager.Register("http-server", httpServer.Shutdown)
	shutdownManager.Register("in-flight", inFlight.Shutdown)

	go func() {
		logger.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	shutdownManager.WaitForShutdown()
}

// initLogger builds a zap logger at the configured level
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// initCallbackAuth selects the allow-list source and performs the first load.
// The first load is retried because the source may not be ready at boot.
func initCallbackAuth(ctx context.Context, cfg config.CallbackConfig, db *database.PostgreSQLAdapter, logger *zap.Logger) (*internalMiddleware.CallbackAuth, error) {
	var source ports.AllowListSource
	switch cfg.AllowListSource {
	case "file":
		source = allowlist.NewFileSource(cfg.AllowListFile)
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres allow-list source requires DATABASE_URL")
		}
		source = allowlist.NewPostgresSource(db)
	default:
		entries := cfg.AllowList
		if len(entries) == 0 {
			entries = allowlist.DefaultGatewayIPs
		}
		source = allowlist.NewStaticSource(entries)
	}

	var auth *internalMiddleware.CallbackAuth
	err := resilience.Retry(ctx, allowListLoadAttempts, resilience.StartupBackoff(), func(ctx context.Context) error {
		var loadErr error
		auth, loadErr = internalMiddleware.NewCallbackAuth(ctx, source, logger)
		return loadErr
	})
	return auth, err
}
