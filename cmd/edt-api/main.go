package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edt-scheduler/api/swagger"
	"github.com/noah-isme/edt-scheduler/internal/events"
	"github.com/noah-isme/edt-scheduler/internal/handler"
	"github.com/noah-isme/edt-scheduler/internal/middleware"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/repository"
	"github.com/noah-isme/edt-scheduler/internal/service"
	"github.com/noah-isme/edt-scheduler/internal/ws"
	"github.com/noah-isme/edt-scheduler/pkg/cache"
	"github.com/noah-isme/edt-scheduler/pkg/config"
	"github.com/noah-isme/edt-scheduler/pkg/database"
	"github.com/noah-isme/edt-scheduler/pkg/logger"
	corsmiddleware "github.com/noah-isme/edt-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edt-scheduler/pkg/middleware/requestid"
	"github.com/noah-isme/edt-scheduler/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// @title EDT Scheduler API
// @version 1.0.0
// @description Timetable scheduling kernel: sessions, conflicts, optimization and exam rooms
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("store unavailable", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	var metrics *service.MetricsService
	if cfg.Features.Metrics {
		metrics = service.NewMetricsService()
	}

	bus := events.NewBus()
	var hub *ws.Hub
	if cfg.Features.EventsWS {
		hub = ws.NewHub(logger.Component(logr, "ws"))
		go hub.Run(ctx)
		bus.Subscribe(hub.Publish)
	}

	defaultTerm, _ := models.ParseTerm(cfg.Kernel.DefaultTerm)
	workspace := service.NewWorkspace(store, bus, metrics, logger.Component(logr, "workspace"), service.WorkspaceConfig{
		UndoDepth:   cfg.Kernel.UndoDepth,
		DefaultTerm: defaultTerm,
	})
	if err := workspace.Load(ctx); err != nil {
		logr.Fatal("document load failed", zap.Error(err))
	}

	var backups *storage.LocalStorage
	if cfg.Optimizer.BackupDir != "" {
		backups, err = storage.NewLocalStorage(cfg.Optimizer.BackupDir)
		if err != nil {
			logr.Warn("backup directory unavailable, backups kept in store only", zap.String("dir", cfg.Optimizer.BackupDir), zap.Error(err))
			backups = nil
		}
	}

	sessionSvc := service.NewSessionService(workspace, nil, logger.Component(logr, "sessions"))
	optimizationSvc := service.NewOptimizationService(workspace, backups, logger.Component(logr, "optimizer"), service.OptimizationConfig{
		ProposalTTL:   cfg.Optimizer.ProposalTTL,
		Workers:       cfg.Optimizer.Workers,
		MaxIterations: cfg.Optimizer.MaxIterations,
	})
	optimizationSvc.Start(ctx)
	defer optimizationSvc.Stop()
	examSvc := service.NewExamService(workspace, logger.Component(logr, "exams"))
	documentSvc := service.NewDocumentService(workspace, logger.Component(logr, "document"))
	exportSvc := service.NewExportService(workspace, logger.Component(logr, "export"), nil, nil)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, workspace)
	r.GET("/health", metricsHandler.Health)
	if metrics != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes := handler.Routes{
		Sessions:  handler.NewSessionHandler(sessionSvc, logger.Component(logr, "http")),
		Optimizer: handler.NewOptimizerHandler(optimizationSvc, logger.Component(logr, "http")),
		Exams:     handler.NewExamHandler(examSvc),
		Documents: handler.NewDocumentHandler(documentSvc, logger.Component(logr, "http")),
		Exports:   handler.NewExportHandler(exportSvc),
	}
	var auth *service.AuthService
	if cfg.Auth.Enabled {
		auth = service.NewAuthService(cfg.Auth.Secret)
		routes.Auth = auth
	}
	api := r.Group(cfg.APIPrefix)
	routes.Register(api)
	if hub != nil {
		if auth != nil {
			api.GET("/ws/events", middleware.OptionalJWT(auth), middleware.RBAC(string(models.RoleViewer), string(models.RolePlanner)), ws.EventsHandler(hub, cfg.CORS.AllowedOrigins))
		} else {
			api.GET("/ws/events", ws.EventsHandler(hub, cfg.CORS.AllowedOrigins))
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.Store.Driver),
			zap.String("term", string(workspace.Term())),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore builds the document store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (repository.Store, func(), error) {
	noop := func() {}
	switch cfg.Store.Driver {
	case config.StoreMemory, "":
		logr.Warn("memory store selected, the document is lost on restart")
		return repository.NewMemoryStore(), noop, nil
	case config.StoreFile:
		store, err := repository.NewFileStore(cfg.Store.FileDir)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		return repository.NewPostgresStore(db), func() { _ = db.Close() }, nil
	case config.StoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		store := repository.NewRedisStore(client, cfg.Store.Prefix, logger.Component(logr, "redis"))
		return store, func() { _ = store.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
