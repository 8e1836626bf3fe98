// Package server exposes the billing surface over HTTP. Authentication is
// external; identity arrives on trusted headers set by the edge.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/ragstack/creditledger/internal/audit/domain"
	"github.com/ragstack/creditledger/internal/billing"
	"github.com/ragstack/creditledger/internal/config"
	"github.com/ragstack/creditledger/internal/observability/metrics"
	paymentdomain "github.com/ragstack/creditledger/internal/payment/domain"
	settingsdomain "github.com/ragstack/creditledger/internal/settings/domain"
	usagedomain "github.com/ragstack/creditledger/internal/usage/domain"
	walletdomain "github.com/ragstack/creditledger/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Cfg         config.Config
	BillingSvc  billing.Service
	WalletSvc   walletdomain.Service
	UsageSvc    usagedomain.Service
	SettingsSvc settingsdomain.Service
	PaymentSvc  paymentdomain.Service
	AuditSvc    auditdomain.Service
}

type Server struct {
	log         *zap.Logger
	cfg         config.Config
	billingSvc  billing.Service
	walletSvc   walletdomain.Service
	usageSvc    usagedomain.Service
	settingsSvc settingsdomain.Service
	paymentSvc  paymentdomain.Service
	auditSvc    auditdomain.Service
}

func NewServer(p Params) *Server {
	return &Server{
		log:         p.Log.Named("server"),
		cfg:         p.Cfg,
		billingSvc:  p.BillingSvc,
		walletSvc:   p.WalletSvc,
		usageSvc:    p.UsageSvc,
		settingsSvc: p.SettingsSvc,
		paymentSvc:  p.PaymentSvc,
		auditSvc:    p.AuditSvc,
	}
}

func NewEngine(log *zap.Logger, cfg config.Config, m *metrics.Metrics, s *Server) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/v1/billing", UserIdentity())
	{
		v1.GET("/wallet", s.GetWallet)
		v1.GET("/usage", s.ListUsage)
		v1.GET("/usage/summary", s.UsageSummary)
		v1.GET("/usage/daily", s.UsageDaily)
		v1.GET("/plans", s.ListPlans)
		v1.POST("/precheck", s.PreCheckQuery)
		v1.POST("/charges", s.ChargeUsage)
		v1.POST("/charges/bot-creation", s.ChargeBotCreation)
		v1.POST("/signup", s.SignupGrant)
		v1.POST("/orders", s.CreateOrder)
		v1.POST("/payments/complete", s.CompletePayment)
		v1.GET("/payments", s.ListPayments)
	}

	r.POST("/v1/webhooks/payment", s.PaymentWebhook)

	admin := r.Group("/v1/admin", AdminIdentity())
	{
		admin.GET("/settings", s.AdminListSettings)
		admin.PUT("/settings/:key", s.AdminUpdateSetting)
		admin.GET("/plans", s.AdminListPlans)
		admin.PUT("/plans/:id", s.AdminUpsertPlan)
		admin.DELETE("/plans/:id", s.AdminDeactivatePlan)
		admin.GET("/users/:id/wallet", s.AdminGetWallet)
		admin.POST("/users/:id/credits", s.AdminAddCredits)
		admin.POST("/users/:id/suspend", s.AdminSuspendUser)
		admin.POST("/users/:id/unsuspend", s.AdminUnsuspendUser)
		admin.GET("/audit", s.AdminListAudit)
	}
}

func run(lc fx.Lifecycle, log *zap.Logger, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server", zap.Error(err))
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

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Provide(NewEngine),
	fx.Invoke(run),
)
