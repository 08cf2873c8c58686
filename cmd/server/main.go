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

	echoapi "github.com/pilab-dev/shadow-crest/api/echo"
	"github.com/pilab-dev/shadow-crest/cache"
	redisstore "github.com/pilab-dev/shadow-crest/cache/redis"
	"github.com/pilab-dev/shadow-crest/config"
	"github.com/pilab-dev/shadow-crest/crest"
	"github.com/pilab-dev/shadow-crest/domain"
	"github.com/pilab-dev/shadow-crest/internal/audit"
	"github.com/pilab-dev/shadow-crest/internal/auth"
	"github.com/pilab-dev/shadow-crest/internal/memstore"
	"github.com/pilab-dev/shadow-crest/internal/metrics"
	"github.com/pilab-dev/shadow-crest/internal/server"
	"github.com/pilab-dev/shadow-crest/internal/webclient"
	"github.com/pilab-dev/shadow-crest/log"
	"github.com/pilab-dev/shadow-crest/mongodb"
	"github.com/pilab-dev/shadow-crest/services"
	"github.com/pilab-dev/shadow-crest/session"
	"github.com/pilab-dev/shadow-crest/sso"
	"github.com/pilab-dev/shadow-crest/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfgFile := flag.String("config", "", "config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgFile)
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	appLogger := log.NewZerologAdapter(log.ParseLevel(cfg.LogLevel), cfg.LogPretty)
	ctx := context.Background()
	appLogger.Info(ctx, "Starting shadow-crest server...")
	appLogger.Info(ctx, "Configuration loaded successfully", log.Fields{
		"http_port":      cfg.HTTPPort,
		"url":            cfg.AppURL,
		"sso_url":        cfg.SSOURL,
		"crest_url":      cfg.CrestURL,
		"storage_driver": cfg.StorageDriver,
		"cache_driver":   cfg.CacheDriver,
		"log_level":      cfg.LogLevel,
		"otel_service":   cfg.OtelServiceName,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName, os.Stdout)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	checks := map[string]echoapi.HealthCheck{}

	// --- Storage ---
	var repos *domain.Repositories
	switch cfg.StorageDriver {
	case "memory":
		appLogger.Warn(ctx, "Using in-memory storage, data is lost on restart")
		repos = memstore.New().Repositories()
	case "mongodb", "":
		if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
			appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", err)
		}
		repos, err = mongodb.NewRepositories(ctx, mongodb.GetDB())
		if err != nil {
			appLogger.Fatal(ctx, "Failed to initialize repositories", err)
		}
		checks["mongodb"] = mongodb.Ping
	default:
		appLogger.Fatal(ctx, "Unknown storage driver", fmt.Errorf("STORAGE_DRIVER=%q", cfg.StorageDriver))
	}

	// --- Cache ---
	var store cache.Store
	var closeCache func() error
	switch cfg.CacheDriver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store = redisstore.NewStore(client, "shadow-crest")
		closeCache = client.Close
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	case "memory", "":
		mem := cache.NewMemoryStore()
		store = mem
		closeCache = mem.Close
	default:
		appLogger.Fatal(ctx, "Unknown cache driver", fmt.Errorf("CACHE_DRIVER=%q", cfg.CacheDriver))
	}

	// --- SSO and CREST ---
	httpClient := webclient.New(nil)
	ssoCfg := sso.Config{
		BaseURL:     cfg.SSOURL,
		ClientID:    cfg.ClientID,
		SecretKey:   cfg.SecretKey,
		RedirectURL: cfg.AppURL + "/sso/callbackAuthorization",
		Timeout:     cfg.CrestTimeout,
		UserAgent:   cfg.UserAgent,
	}
	if cfg.ClientID == "" {
		appLogger.Warn(ctx, `Missing "SSO_CCP_CLIENT_ID", logins will be rejected`)
	}

	walker := crest.NewWalker(crest.Config{
		BaseURL:   cfg.CrestURL,
		Timeout:   cfg.CrestTimeout,
		UserAgent: cfg.UserAgent,
	}, httpClient, appLogger.Named("crest"))

	policy := auth.NewAllowList(cfg.AllowedCharacterIDs, cfg.AllowedCorporationIDs, cfg.AllowedAllianceIDs)
	if policy.Open() {
		appLogger.Info(ctx, "No allow list configured, every character may log in")
	}

	loginService := services.NewLoginService(
		services.LoginConfig{
			SSO:         ssoCfg,
			LoginPath:   cfg.LoginPath,
			MapPath:     cfg.MapPath,
			LocationTTL: cfg.LocationTTL,
		},
		sso.NewTokenService(ssoCfg, httpClient, appLogger.Named("sso")),
		sso.NewVerifier(ssoCfg, httpClient, appLogger.Named("sso")),
		crest.NewCharacterService(walker, appLogger.Named("crest")),
		crest.NewLocationService(walker, store, appLogger.Named("location")),
		repos,
		policy,
		appLogger.Named("login"),
	).WithAudit(audit.New(os.Stdout, cfg.OtelServiceName))

	sessions := session.NewManager(store, cfg.SessionTTL)
	loginAPI := echoapi.NewLoginAPI(loginService, checks, appLogger.Named("api"))

	httpServer := server.NewHTTPServer(cfg, appLogger, loginAPI, sessions)
	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err)
	}

	if err := closeCache(); err != nil {
		appLogger.Error(shutdownCtx, "Cache shutdown error", err)
	}

	if cfg.StorageDriver != "memory" {
		mongodb.CloseMongoDB(shutdownCtx)
	}

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}
