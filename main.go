package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/scriptcache/internal/adapters/database"
	"github.com/Amund211/scriptcache/internal/adapters/document"
	"github.com/Amund211/scriptcache/internal/adapters/loadrepository"
	"github.com/Amund211/scriptcache/internal/adapters/sourceprovider"
	"github.com/Amund211/scriptcache/internal/app"
	"github.com/Amund211/scriptcache/internal/config"
	"github.com/Amund211/scriptcache/internal/logging"
	"github.com/Amund211/scriptcache/internal/manifest"
	"github.com/Amund211/scriptcache/internal/ports"
	"github.com/Amund211/scriptcache/internal/ratelimiting"
	"github.com/Amund211/scriptcache/internal/reporting"
	"github.com/Amund211/scriptcache/internal/scriptcache"
	"github.com/Amund211/scriptcache/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
)

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)
	ctx := logging.AddToContext(context.Background(), logger)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if !config.IsDevelopment() {
		shutdownTelemetry, err := telemetry.SetupOTelSDK(ctx, "scriptcache")
		if err != nil {
			fail("Failed to initialize telemetry", "error", err.Error())
		}
		defer shutdownTelemetry(context.Background())
		logger.Info("Initialized telemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	var loadRepo loadrepository.LoadRepository = loadrepository.NewNop()
	if config.IsDevelopment() && config.DBHost() == "" {
		logger.Info("No database configured, load outcomes will not be journaled")
	} else {
		logger.Info("Initializing database connection")
		db, err := database.NewConfiguredPostgresDatabase(config)
		if err != nil {
			fail("Failed to initialize database", "error", err.Error())
		}
		logger.Info("Initialized database connection")

		repositorySchemaName := database.GetSchemaName(!config.IsProduction())

		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, repositorySchemaName)
		if err != nil {
			fail("Failed to migrate database", "error", err.Error())
		}

		loadRepo = loadrepository.NewPostgres(db, repositorySchemaName)
		logger.Info("Initialized LoadRepository")
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	hostRateLimiter, stopHostRateLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(4),
		ratelimiting.BurstSize(20),
	)
	defer stopHostRateLimiter()

	httpSourceProvider, err := sourceprovider.NewHTTPSourceProvider(httpClient, hostRateLimiter, config.MaxScriptSize())
	if err != nil {
		fail("Failed to initialize source provider", "error", err.Error())
	}
	sourceProvider, stopSourceCache := sourceprovider.NewCachedSourceProvider(httpSourceProvider, 5*time.Minute)
	defer stopSourceCache()

	vm := document.NewVM(sourceProvider, config.ScriptTimeout())
	defer vm.Close()

	cache := scriptcache.New(
		vm,
		scriptcache.WithSettleHook(app.BuildRecordLoadOutcome(loadRepo, instanceID)),
	)

	registerScripts := app.BuildRegisterScripts(cache)
	getScriptState := app.BuildGetScriptState(cache)
	waitForAllScripts := app.BuildWaitForAllScripts(cache, config.ScriptTimeout())

	if config.ScriptManifest() != "" {
		entries, err := manifest.Load(config.ScriptManifest())
		if err != nil {
			fail("Failed to load script manifest", "error", err.Error(), "path", config.ScriptManifest())
		}
		_, err = registerScripts(ctx, entries)
		if err != nil {
			fail("Failed to register scripts from manifest", "error", err.Error())
		}
		logger.Info("Registered scripts from manifest", "count", len(entries))
	}

	ipRateLimiter, stopIPRateLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(480),
	)
	defer stopIPRateLimiter()
	requestRateLimiter := ratelimiting.NewRequestBasedRateLimiter(ipRateLimiter, ratelimiting.IPKeyFunc)

	mux := http.NewServeMux()

	mux.HandleFunc(
		"POST /v1/scripts",
		ports.MakeRegisterScriptsHandler(
			registerScripts,
			requestRateLimiter,
			logger.With("port", "registerscripts"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"GET /v1/scripts/{name}",
		ports.MakeGetScriptHandler(
			getScriptState,
			requestRateLimiter,
			logger.With("port", "getscript"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"GET /v1/scripts",
		ports.MakeGetAllScriptsHandler(
			waitForAllScripts,
			requestRateLimiter,
			logger.With("port", "getallscripts"),
			sentryMiddleware,
		),
	)

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", config.Port()), otelhttp.NewHandler(mux, "scriptcache"))
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
