package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/handler"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/middleware"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/service"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/workflow"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/config"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/logger"
	corsmiddleware "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/middleware/cors"
	reqidmiddleware "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/middleware/requestid"
)

type routerDeps struct {
	metrics      *service.MetricsService
	identity     *service.IdentityService
	tiers        *workflow.AuthorizationMatrix
	incidents    *handler.IncidentHandler
	catalogs     *handler.CatalogHandler
	receipts     *handler.ReceiptHandler
	deactivation *handler.DeactivationHandler
	health       *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	internal := api.Group("/internal", middleware.InternalToken(cfg.Internal.Token))
	internal.DELETE("/users/:username/drafts", deps.deactivation.DeleteDrafts)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.identity))
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.TTL)
		secured.Use(middleware.PrincipalRateLimit(limiter))
	}

	director := secured.Group("/diretor", middleware.RequireTiers(deps.tiers, models.TierDirector))
	director.GET("/", deps.incidents.List)
	director.POST("/", deps.incidents.Create)
	director.GET("/:id", deps.incidents.Get)
	director.PUT("/:id/secao/:secao", deps.incidents.UpdateSection)
	director.POST("/:id/enviar-para-dre", deps.incidents.SendToDistrict)

	district := secured.Group("/dre", middleware.RequireTiers(deps.tiers, models.TierDistrict))
	district.GET("/", deps.incidents.List)
	district.GET("/:id", deps.incidents.Get)
	district.PUT("/:id/secao/:secao", deps.incidents.UpdateSection)
	district.POST("/:id/enviar-para-gipe", deps.incidents.SendToCentral)

	central := secured.Group("/gipe", middleware.RequireTiers(deps.tiers, models.TierCentral))
	central.GET("/", deps.incidents.List)
	central.GET("/exportar", deps.receipts.Export)
	central.GET("/:id", deps.incidents.Get)
	central.PUT("/:id/secao/:secao", deps.incidents.UpdateSection)
	central.POST("/:id/finalizar", deps.incidents.Finalize)

	anyTier := middleware.RequireTiers(deps.tiers, models.TierDirector, models.TierDistrict, models.TierCentral)
	reports := secured.Group("/intercorrencias", anyTier)
	reports.GET("/:id/historico", deps.incidents.History)
	reports.GET("/:id/comprovante", deps.receipts.Receipt)
	reports.GET("/:id/comprovante/pdf", deps.receipts.ReceiptPDF)

	secured.GET("/verify/:id", anyTier, deps.incidents.Verify)

	catalogs := secured.Group("", anyTier)
	catalogs.GET("/tipos-ocorrencia", deps.catalogs.IncidentTypes)
	catalogs.GET("/declarantes", deps.catalogs.Declarants)
	catalogs.GET("/envolvidos", deps.catalogs.InvolvedParties)
	catalogs.GET("/opcoes/:grupo", deps.catalogs.Choices)

	return r
}
