package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/engclin/melwatch/internal/cache"
	"github.com/engclin/melwatch/internal/config"
	"github.com/engclin/melwatch/internal/database"
	"github.com/engclin/melwatch/internal/handlers"
	"github.com/engclin/melwatch/internal/jobs"
	"github.com/engclin/melwatch/internal/logging"
	"github.com/engclin/melwatch/internal/mel"
	"github.com/engclin/melwatch/internal/metrics"
	"github.com/engclin/melwatch/internal/middleware"
	"github.com/engclin/melwatch/internal/ratelimit"
	"github.com/engclin/melwatch/internal/services"
	slackutil "github.com/engclin/melwatch/internal/slack"
	"github.com/engclin/melwatch/internal/sources"
)

type feeds interface {
	sources.EquipmentSource
	sources.WorkOrderSource
}

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "melwatch")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("melwatch stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	zapLogger.Info("starting melwatch",
		zap.String("source_mode", cfg.SourceMode),
		zap.String("database_driver", cfg.DatabaseDriver),
		zap.String("jwt_secret_source", cfg.JWTSecretSource))

	metrics.Init()

	if err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, logger.Warn, zapLogger); err != nil {
		return err
	}
	defer func() { _ = database.Close() }()
	if err := database.AutoMigrate(zapLogger); err != nil {
		return err
	}
	db := database.GetDB()

	catalog := mel.DefaultCatalog()
	if cfg.CatalogFile != "" {
		var err error
		if catalog, err = mel.LoadCatalog(cfg.CatalogFile); err != nil {
			return err
		}
		zapLogger.Info("loaded group catalog", zap.String("path", cfg.CatalogFile), zap.Int("groups", len(catalog.Groups())))
	}

	normalizer := sources.NewNormalizer(
		sources.WithSectorResolver(mel.NewCatalogSectorResolver(catalog)),
		sources.WithNormalizerLogger(zapLogger.Named("normalizer")),
	)
	var source feeds
	switch cfg.SourceMode {
	case config.SourceModeFile:
		source = sources.NewFileSource(cfg.SourceEquipmentFile, cfg.SourceWorkOrderFile, normalizer)
	default:
		source = sources.NewHTTPSource(sources.HTTPConfig{
			BaseURL:       cfg.SourceBaseURL,
			Token:         cfg.SourceToken,
			EquipmentPath: cfg.SourceEquipmentPath,
			WorkOrderPath: cfg.SourceWorkOrderPath,
			Timeout:       cfg.SourceTimeout,
			MaxPages:      cfg.SourceMaxPages,
			Retries:       cfg.SourceRetries,
		}, normalizer, ratelimit.New(cfg.SourceRateLimit, 1), zapLogger.Named("source"))
	}

	classifier := mel.NewClassifier(catalog, zapLogger.Named("classifier"))
	ruleService := services.NewRuleService(db, catalog, zapLogger.Named("rules"))
	alertStore := services.NewAlertStore(db)

	var groupCache *cache.Cache[[]services.GroupSummary]
	if cfg.GroupCacheTTL > 0 {
		groupCache = cache.New[[]services.GroupSummary](cfg.GroupCacheTTL, cfg.GroupCacheTTL)
		defer groupCache.Stop()
	}
	melService := services.NewMelService(source, source, ruleService, alertStore, classifier, groupCache, zapLogger.Named("mel"))

	// Alert transition fan-out
	stream := handlers.NewAlertStreamHandler(zapLogger.Named("stream"))
	defer stream.Close()
	notifiers := []services.AlertNotifier{stream}
	if cfg.SlackBotToken != "" {
		slackNotifier := slackutil.NewNotifier(cfg.SlackBotToken, cfg.SlackChannel, zapLogger.Named("slack"))
		defer slackNotifier.Close()
		notifiers = append(notifiers, slackNotifier)
		zapLogger.Info("slack notifications enabled", zap.String("channel", cfg.SlackChannel))
	}

	reconciler, err := services.NewReconciler(source, source, ruleService, alertStore, classifier,
		services.WithLogger(zapLogger.Named("reconciler")),
		services.WithNotifier(services.NewMultiNotifier(notifiers...)),
		services.WithAfterPass(func(result *services.ReconcileResult) {
			if result.Changed() {
				melService.Invalidate()
			}
		}),
	)
	if err != nil {
		return err
	}

	job, err := jobs.NewReconcileJob(reconciler, cfg.ReconcileSchedule, zapLogger.Named("reconcile-job"), jobs.WithRunOnStart())
	if err != nil {
		return err
	}
	ruleService.OnChange(melService.Invalidate)
	ruleService.OnChange(job.Trigger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := job.Start(ctx); err != nil {
		return err
	}
	defer job.Stop()

	// HTTP surface
	passwordHash := ""
	if cfg.AuthEnabled {
		if passwordHash, err = middleware.HashPassword(cfg.AdminPassword); err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
	}
	serviceKeys := middleware.NewServiceKeys(cfg.ServiceAPIKeys...)
	jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           cfg.AuthEnabled,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths:         []string{"/health", "/metrics", "/auth/login"},
		ServiceKeys:       serviceKeys,
	}, zapLogger.Named("auth"))
	if !cfg.AuthEnabled {
		zapLogger.Warn("authentication is disabled")
	}

	ping := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	mux := http.NewServeMux()
	handlers.NewHTTPHandler(ping, job, metrics.Handler()).SetupRoutes(mux)
	handlers.NewAuthHandler(jwtAuth, zapLogger.Named("auth")).SetupRoutes(mux)
	handlers.NewMelHandler(ruleService, melService, reconciler, zapLogger.Named("api")).SetupRoutes(mux)
	stream.SetupRoutes(mux)

	// CORS first, then request id and access log, then JWT authentication
	handler := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins...).Wrap(
		middleware.RequestIDMiddleware(
			middleware.AccessLog(zapLogger.Named("http"))(
				jwtAuth.Wrap(mux))))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("HTTP server listening", zap.Int("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("received shutdown signal, cleaning up")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("error shutting down HTTP server", zap.Error(err))
	}
	zapLogger.Info("shutdown complete")
	return nil
}
