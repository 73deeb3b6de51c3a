package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chartschool/chartschool/internal/audit"
	auditdomain "github.com/chartschool/chartschool/internal/audit/domain"
	"github.com/chartschool/chartschool/internal/clock"
	"github.com/chartschool/chartschool/internal/config"
	"github.com/chartschool/chartschool/internal/entitlement"
	"github.com/chartschool/chartschool/internal/entitlement/bulk"
	entitlementdomain "github.com/chartschool/chartschool/internal/entitlement/domain"
	"github.com/chartschool/chartschool/internal/gateway"
	"github.com/chartschool/chartschool/internal/indicator"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
	"github.com/chartschool/chartschool/internal/ratelimit"
	"github.com/chartschool/chartschool/internal/reconcile"
	"github.com/chartschool/chartschool/internal/user"
	userdomain "github.com/chartschool/chartschool/internal/user/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	indicator.Module,
	user.Module,
	gateway.Module,
	entitlement.Module,
	audit.Module,
	reconcile.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	entitlementSvc entitlementdomain.Service
	bulkRunner     *bulk.Runner
	auditSvc       auditdomain.Service
	reconcileSvc   reconcile.Service
	indicatorSvc   indicatordomain.Service
	userSvc        userdomain.Service
	limiter        *ratelimit.TokenBucket
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	EntitlementSvc entitlementdomain.Service
	BulkRunner     *bulk.Runner
	AuditSvc       auditdomain.Service
	ReconcileSvc   reconcile.Service
	IndicatorSvc   indicatordomain.Service
	UserSvc        userdomain.Service
	Limiter        *ratelimit.TokenBucket `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		log:            p.Log.Named("server"),
		genID:          p.GenID,
		clock:          p.Clock,
		entitlementSvc: p.EntitlementSvc,
		bulkRunner:     p.BulkRunner,
		auditSvc:       p.AuditSvc,
		reconcileSvc:   p.ReconcileSvc,
		indicatorSvc:   p.IndicatorSvc,
		userSvc:        p.UserSvc,
		limiter:        p.Limiter,
	}

	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.ActorContext())

	// -------- Entitlements --------
	admin.POST("/entitlements/grant", s.ProvisionRateLimit(), s.GrantEntitlement)
	admin.POST("/entitlements/grant-tier", s.ProvisionRateLimit(), s.GrantTierEntitlements)
	admin.POST("/entitlements/revoke", s.ProvisionRateLimit(), s.RevokeEntitlement)
	admin.POST("/entitlements/revoke-tier", s.ProvisionRateLimit(), s.RevokeTierEntitlements)
	admin.GET("/entitlements/:user_id", s.ListUserEntitlements)

	// -------- Audit Trail --------
	admin.GET("/audit", s.ListAuditEntries)
	admin.GET("/audit/export", s.ExportAuditEntries)

	// -------- Reconciliation --------
	admin.POST("/reconciliation/run", s.RunReconciliation)
	admin.GET("/reconciliation/reports", s.ListReconciliationReports)
	admin.GET("/reconciliation/reports/:run_id", s.GetReconciliationReport)

	// -------- Catalog --------
	admin.GET("/indicators", s.ListIndicators)
}
