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

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/api/swagger"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/handler"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/repository"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/service"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/workflow"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/cache"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/config"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/database"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/export"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/jobs"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/logger"
)

// @title Intercorrências API
// @version 1.0.0
// @description Registro e acompanhamento de intercorrências escolares (UE, DRE e GIPE).
// @BasePath /api-intercorrencias/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	// Caching is optional: without Redis every lookup goes to the registry.
	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else {
		redisClient = client
		defer client.Close()
	}

	metricsSvc := service.NewMetricsService()

	incidentRepo := repository.NewIncidentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	unitRegistry := repository.NewUnitRegistry(cfg.Units.BaseURL, cfg.Units.Timeout, nil)
	attachmentStore := repository.NewAttachmentStore(cfg.Attachments.BaseURL, cfg.Attachments.Token, cfg.Attachments.Timeout, nil)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metricsSvc, cfg.Units.CacheTTL, logr)
	}

	auditWriter := service.NewAuditWriter(auditRepo, jobs.Config{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		Logger:     logr,
	})
	auditWriter.Start(context.Background())

	unitSvc := service.NewUnitService(unitRegistry, cacheSvc, metricsSvc, cfg.Units.CacheTTL, logr)
	catalogSvc := service.NewCatalogService(catalogRepo, cacheSvc, cfg.Catalogs.CacheTTL, logr)
	identitySvc := service.NewIdentityService(cfg.JWT, cfg.Roles, logr)

	matrix := workflow.NewAuthorizationMatrix(workflow.DefaultTiers())
	incidentSvc := service.NewIncidentService(incidentRepo, unitSvc, catalogSvc, auditWriter, logr,
		service.WithAuthorizationMatrix(matrix),
		service.WithProtocolGenerator(workflow.NewProtocolGenerator(cfg.Protocol.Prefix, nil)),
		service.WithIncidentMetrics(metricsSvc),
	)
	historySvc := service.NewHistoryService(incidentSvc, auditRepo)
	receiptSvc := service.NewReceiptService(incidentSvc, matrix, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	deactivationSvc := service.NewDeactivationService(incidentRepo, attachmentStore, auditWriter, metricsSvc, logr)

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	router := newRouter(cfg, logr, routerDeps{
		metrics:      metricsSvc,
		identity:     identitySvc,
		tiers:        matrix,
		incidents:    handler.NewIncidentHandler(incidentSvc, historySvc),
		catalogs:     handler.NewCatalogHandler(catalogSvc),
		receipts:     handler.NewReceiptHandler(receiptSvc),
		deactivation: handler.NewDeactivationHandler(deactivationSvc),
		health:       handler.NewMetricsHandler(metricsSvc, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logr.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return auditWriter.Stop(shutdownCtx)
}
