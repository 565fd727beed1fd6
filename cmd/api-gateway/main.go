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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/school-portal-api/api/swagger"
	"github.com/noah-isme/school-portal-api/internal/handler"
	"github.com/noah-isme/school-portal-api/internal/middleware"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/repository"
	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/cache"
	"github.com/noah-isme/school-portal-api/pkg/config"
	"github.com/noah-isme/school-portal-api/pkg/database"
	"github.com/noah-isme/school-portal-api/pkg/export"
	"github.com/noah-isme/school-portal-api/pkg/llm"
	"github.com/noah-isme/school-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/school-portal-api/pkg/realtime"
	"github.com/noah-isme/school-portal-api/pkg/tracing"
)

// @title School Portal API
// @version 1.0.0
// @description Student dashboard views, live change streams and AI tutoring relay
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing := tracing.Init(ctx, cfg, logr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logr.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	hub := realtime.NewHub(func(e realtime.Event, delivered int) {
		metrics.RecordFeedEvent(e.Table, e.Op, delivered)
	})
	metrics.TrackSubscriptions(hub.Active)

	group, ctx := errgroup.WithContext(ctx)
	if err := startChangeFeed(ctx, group, cfg, hub, logr); err != nil {
		return err
	}

	validate := validator.New()

	identityRepo := repository.NewIdentityRepository(db)
	viewRepo := repository.NewStudentViewRepository(db)

	authService := service.NewAuthService(identityRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	bootstrapService := service.NewBootstrapService(identityRepo, validate, logr, service.BootstrapConfig{
		ServiceRoleKey: cfg.Bootstrap.ServiceRoleKey,
		DefaultName:    cfg.Bootstrap.DefaultName,
	})
	viewLoader := service.NewStudentViewLoader(viewRepo, logr, metrics)
	reportService := service.NewReportService(viewLoader, logr, export.NewCSVExporter(), export.NewPDFExporter())

	llmClient, err := llm.New(llm.Config{
		BaseURL:        cfg.Tutor.BaseURL,
		APIKey:         cfg.Tutor.APIKey,
		ChatPath:       cfg.Tutor.ChatPath,
		Model:          cfg.Tutor.Model,
		ConnectTimeout: cfg.Tutor.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("init tutor client: %w", err)
	}
	if !llmClient.HasCredential() {
		logr.Warn("AI_API_KEY is not set; tutor chat requests will fail")
	}
	tutorRelay := service.NewTutorRelay(llmClient, validate, logr, metrics)

	authHandler := handler.NewAuthHandler(authService)
	viewHandler := handler.NewStudentViewHandler(viewLoader, reportService, func() handler.ViewWatcher {
		return service.NewStudentViewWatcher(viewLoader, hub, logr, metrics)
	}, logr)
	tutorHandler := handler.NewTutorChatHandler(tutorRelay, logr)
	bootstrapHandler := handler.NewBootstrapHandler(bootstrapService)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(tracing.Middleware(cfg))
	r.Use(logger.GinMiddleware(logr))
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metrics != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Edge functions answer any origin and handle their own preflight.
	edge := r.Group("", corsmiddleware.Permissive())
	edge.OPTIONS("/student-ai-chat")
	edge.POST("/student-ai-chat", tutorHandler.Chat)
	if cfg.Bootstrap.Enabled {
		edge.OPTIONS("/bootstrap-admin")
		edge.POST("/bootstrap-admin", bootstrapHandler.BootstrapAdmin)
	}

	api := r.Group(cfg.APIPrefix, corsmiddleware.New(cfg.CORS.AllowedOrigins))
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(authService))
	secured.GET("/auth/me", authHandler.Me)

	students := secured.Group("/students/me", middleware.RequireRoles(models.RoleStudent))
	students.GET("/view", viewHandler.Snapshot)
	students.GET("/view/stream", viewHandler.Stream)
	students.GET("/report", viewHandler.Report)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "realtime", cfg.Realtime.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logr.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// startChangeFeed launches the driver selected by REALTIME_DRIVER. Drivers stop when ctx ends.
func startChangeFeed(ctx context.Context, group *errgroup.Group, cfg *config.Config, hub *realtime.Hub, logr *zap.Logger) error {
	pgConfig := realtime.PostgresListenerConfig{
		DSN:                  database.DSN(cfg.Database),
		Channel:              cfg.Realtime.Channel,
		MinReconnectInterval: cfg.Realtime.MinReconnectInterval,
		MaxReconnectInterval: cfg.Realtime.MaxReconnectInterval,
		Logger:               logr,
	}

	switch cfg.Realtime.Driver {
	case config.RealtimeDriverPostgres:
		listener := realtime.NewPostgresListener(pgConfig, hub)
		group.Go(func() error { return listener.Run(ctx) })
	case config.RealtimeDriverRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		group.Go(func() error {
			<-ctx.Done()
			return client.Close()
		})

		listener := realtime.NewRedisListener(client, cfg.Realtime.Channel, hub, logr)
		group.Go(func() error { return listener.Run(ctx) })

		if cfg.Realtime.Bridge {
			publisher := realtime.NewRedisPublisher(client, cfg.Realtime.Channel)
			bridge := realtime.NewPostgresListener(pgConfig, publisher.Sink(ctx, logr))
			group.Go(func() error { return bridge.Run(ctx) })
		}
	case config.RealtimeDriverMemory:
		logr.Warn("in-memory change feed has no driver; live views will not receive change events")
	default:
		return fmt.Errorf("unknown REALTIME_DRIVER %q", cfg.Realtime.Driver)
	}
	return nil
}
