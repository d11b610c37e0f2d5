package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/coverdesk/internal/asset"
	assetdomain "github.com/smallbiznis/coverdesk/internal/asset/domain"
	"github.com/smallbiznis/coverdesk/internal/audit"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/broker"
	brokerdomain "github.com/smallbiznis/coverdesk/internal/broker/domain"
	"github.com/smallbiznis/coverdesk/internal/claim"
	claimdomain "github.com/smallbiznis/coverdesk/internal/claim/domain"
	"github.com/smallbiznis/coverdesk/internal/company"
	companydomain "github.com/smallbiznis/coverdesk/internal/company/domain"
	"github.com/smallbiznis/coverdesk/internal/config"
	"github.com/smallbiznis/coverdesk/internal/coverage"
	coveragedomain "github.com/smallbiznis/coverdesk/internal/coverage/domain"
	"github.com/smallbiznis/coverdesk/internal/identifier"
	"github.com/smallbiznis/coverdesk/internal/invoice"
	invoicedomain "github.com/smallbiznis/coverdesk/internal/invoice/domain"
	"github.com/smallbiznis/coverdesk/internal/notification"
	notificationdomain "github.com/smallbiznis/coverdesk/internal/notification/domain"
	"github.com/smallbiznis/coverdesk/internal/observability"
	obslogger "github.com/smallbiznis/coverdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/coverdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/coverdesk/internal/observability/tracing"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/internal/policy"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	"github.com/smallbiznis/coverdesk/internal/providers"
	"github.com/smallbiznis/coverdesk/internal/ratelimit"
	"github.com/smallbiznis/coverdesk/internal/settlement"
	settlementdomain "github.com/smallbiznis/coverdesk/internal/settlement/domain"
	"github.com/smallbiznis/coverdesk/internal/user"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Services bundles the domain modules the HTTP layer depends on. Commands
// that only need the domain, such as the alert runner, reuse it.
var Services = fx.Options(
	permission.Module,
	identifier.Module,
	providers.Module,
	audit.Module,
	user.Module,
	company.Module,
	broker.Module,
	policy.Module,
	coverage.Module,
	asset.Module,
	claim.Module,
	settlement.Module,
	invoice.Module,
	notification.Module,
)

var Module = fx.Module("http.server",
	Services,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTP) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
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
	engine        *gin.Engine
	cfg           config.Config
	authorizer    *permission.Authorizer
	userSvc       userdomain.Service
	companySvc    companydomain.Service
	brokerSvc     brokerdomain.Service
	policySvc     policydomain.Service
	coverageSvc   coveragedomain.Service
	assetSvc      assetdomain.Service
	claimSvc      claimdomain.Service
	settlementSvc settlementdomain.Service
	invoiceSvc    invoicedomain.Service
	inbox         notificationdomain.Inbox
	auditSvc      auditdomain.Service
	writeLimiter  *ratelimit.WriteLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Authorizer    *permission.Authorizer
	UserSvc       userdomain.Service
	CompanySvc    companydomain.Service
	BrokerSvc     brokerdomain.Service
	PolicySvc     policydomain.Service
	CoverageSvc   coveragedomain.Service
	AssetSvc      assetdomain.Service
	ClaimSvc      claimdomain.Service
	SettlementSvc settlementdomain.Service
	InvoiceSvc    invoicedomain.Service
	Inbox         notificationdomain.Inbox
	AuditSvc      auditdomain.Service
	WriteLimiter  *ratelimit.WriteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		authorizer:    p.Authorizer,
		userSvc:       p.UserSvc,
		companySvc:    p.CompanySvc,
		brokerSvc:     p.BrokerSvc,
		policySvc:     p.PolicySvc,
		coverageSvc:   p.CoverageSvc,
		assetSvc:      p.AssetSvc,
		claimSvc:      p.ClaimSvc,
		settlementSvc: p.SettlementSvc,
		invoiceSvc:    p.InvoiceSvc,
		inbox:         p.Inbox,
		auditSvc:      p.AuditSvc,
		writeLimiter:  p.WriteLimiter,
	}
	s.registerAPIRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.ActorRequired(), s.WriteRateLimit())

	api.GET("/me", s.Me)

	// -------- Users --------
	api.GET("/users", s.Require(permission.UsersRead), s.ListUsers)
	api.POST("/users", s.Require(permission.UsersWrite), s.CreateUser)
	api.GET("/users/:id", s.Require(permission.UsersRead), s.GetUser)

	// -------- Insurers, brokers and fiscal tables --------
	api.GET("/insurers", s.Require(permission.InsurersRead), s.ListInsurers)
	api.POST("/insurers", s.Require(permission.InsurersWrite), s.CreateInsurer)
	api.GET("/insurers/:id", s.Require(permission.InsurersRead), s.GetInsurer)
	api.GET("/brokers", s.Require(permission.BrokersRead), s.ListBrokers)
	api.POST("/brokers", s.Require(permission.BrokersWrite), s.CreateBroker)
	api.GET("/brokers/:id", s.Require(permission.BrokersRead), s.GetBroker)
	api.GET("/emission_rights", s.Require(permission.InsurersRead), s.ListEmissionRights)
	api.POST("/emission_rights", s.Require(permission.SettingsManage), s.CreateEmissionRight)
	api.GET("/retention_types", s.Require(permission.InsurersRead), s.ListRetentionTypes)
	api.POST("/retention_types", s.Require(permission.SettingsManage), s.CreateRetentionType)

	// -------- Policies --------
	api.GET("/policies", s.Require(permission.PoliciesRead), s.ListPolicies)
	api.POST("/policies", s.Require(permission.PoliciesWrite), s.CreatePolicy)
	api.GET("/policies/:id", s.Require(permission.PoliciesRead), s.GetPolicy)
	api.PATCH("/policies/:id", s.Require(permission.PoliciesWrite), s.UpdatePolicy)
	api.DELETE("/policies/:id", s.Require(permission.PoliciesWrite), s.DeletePolicy)
	api.POST("/policies/:id/renew", s.Require(permission.PoliciesWrite), s.RenewPolicy)
	api.POST("/policies/:id/cancel", s.Require(permission.PoliciesWrite), s.CancelPolicy)
	api.POST("/policies/:id/expire", s.Require(permission.PoliciesWrite), s.ExpirePolicy)
	api.POST("/policies/:id/retentions", s.Require(permission.PoliciesWrite), s.AttachRetention)
	api.GET("/policies/:id/coverages", s.Require(permission.CoveragesRead), s.ListCoverages)
	api.POST("/policies/:id/coverages", s.Require(permission.CoveragesWrite), s.AddCoverage)

	// -------- Coverages --------
	api.GET("/coverages/:id", s.Require(permission.CoveragesRead), s.GetCoverage)
	api.PATCH("/coverages/:id", s.Require(permission.CoveragesWrite), s.UpdateCoverage)
	api.GET("/coverages/:id/deductible", s.Require(permission.CoveragesRead), s.QuoteDeductible)

	// -------- Assets --------
	api.GET("/assets", s.Require(permission.AssetsRead), s.ListAssets)
	api.POST("/assets", s.Require(permission.AssetsManage), s.CreateAsset)
	api.GET("/assets/:id", s.Require(permission.AssetsRead), s.GetAsset)
	api.PATCH("/assets/:id", s.Require(permission.AssetsManage), s.UpdateAsset)
	api.POST("/assets/:id/revalue", s.Require(permission.AssetsManage), s.RevalueAsset)

	// -------- Claims --------
	api.GET("/claims", s.Require(permission.ClaimsRead), s.ListClaims)
	api.POST("/claims", s.Require(permission.ClaimsCreate), s.CreateClaim)
	api.GET("/claims/:id", s.Require(permission.ClaimsRead), s.GetClaim)
	api.PATCH("/claims/:id", s.Require(permission.ClaimsWrite), s.UpdateClaim)
	api.GET("/claims/:id/transitions/:status", s.Require(permission.ClaimsRead), s.CanTransitionClaim)
	api.POST("/claims/:id/transition", s.Require(permission.ClaimsTransition), s.TransitionClaim)
	api.POST("/claims/:id/coverage", s.Require(permission.ClaimsTransition), s.AssignClaimCoverage)
	api.POST("/claims/:id/assignee", s.Require(permission.ClaimsTransition), s.AssignClaimHandler)
	api.POST("/claims/:id/archive", s.Require(permission.ClaimsTransition), s.ArchiveClaim)
	api.GET("/claims/:id/timeline", s.Require(permission.ClaimsRead), s.ClaimTimeline)
	api.POST("/claims/:id/comments", s.Require(permission.ClaimsWrite), s.CommentOnClaim)
	api.GET("/claims/:id/documents", s.Require(permission.ClaimsRead), s.ListClaimDocuments)
	api.POST("/claims/:id/documents", s.Require(permission.ClaimsWrite), s.AttachClaimDocument)
	api.POST("/claims/:id/documents/request", s.Require(permission.ClaimsTransition), s.RequestClaimDocuments)
	api.POST("/claims/:id/documents/complete", s.Require(permission.ClaimsWrite), s.CompleteClaimDocuments)
	api.POST("/claims/:id/insurer/submit", s.Require(permission.ClaimsTransition), s.SubmitClaimToInsurer)
	api.POST("/claims/:id/insurer/response", s.Require(permission.ClaimsTransition), s.RecordInsurerResponse)
	api.GET("/claims/:id/sla", s.Require(permission.ClaimsRead), s.ClaimSLA)
	api.GET("/claims/:id/settlement", s.Require(permission.SettlementsRead), s.GetClaimSettlement)

	// -------- Settlements --------
	api.GET("/settlements", s.Require(permission.SettlementsRead), s.ListSettlements)
	api.POST("/settlements", s.Require(permission.SettlementsWrite), s.CreateSettlement)
	api.GET("/settlements/:id", s.Require(permission.SettlementsRead), s.GetSettlement)
	api.PATCH("/settlements/:id", s.Require(permission.SettlementsWrite), s.AdjustSettlement)
	api.POST("/settlements/:id/submit", s.Require(permission.SettlementsWrite), s.SubmitSettlement)
	api.POST("/settlements/:id/approve", s.Require(permission.SettlementsWrite), s.ApproveSettlement)
	api.POST("/settlements/:id/reject", s.Require(permission.SettlementsWrite), s.RejectSettlement)
	api.POST("/settlements/:id/sign", s.Require(permission.SettlementsSign), s.SignSettlement)
	api.POST("/settlements/:id/pay", s.Require(permission.SettlementsWrite), s.PaySettlement)

	// -------- Invoices --------
	api.GET("/invoices", s.Require(permission.InvoicesRead), s.ListInvoices)
	api.POST("/invoices", s.Require(permission.InvoicesWrite), s.CreateInvoice)
	api.GET("/invoices/:id", s.Require(permission.InvoicesRead), s.GetInvoice)
	api.PATCH("/invoices/:id", s.Require(permission.InvoicesWrite), s.UpdateInvoice)
	api.POST("/invoices/:id/pay", s.Require(permission.InvoicesWrite), s.PayInvoice)
	api.POST("/invoices/:id/cancel", s.Require(permission.InvoicesWrite), s.CancelInvoice)

	// -------- Notifications --------
	api.GET("/notifications", s.Require(permission.NotificationsRead), s.ListNotifications)
	api.GET("/notifications/unread_count", s.Require(permission.NotificationsRead), s.UnreadNotificationCount)
	api.POST("/notifications/read_all", s.Require(permission.NotificationsRead), s.MarkAllNotificationsRead)
	api.POST("/notifications/:id/read", s.Require(permission.NotificationsRead), s.MarkNotificationRead)

	// -------- Audit --------
	api.GET("/audit_logs", s.Require(permission.AuditRead), s.ListAuditLogs)
}
