package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/supa-modo/mwukenya-server-sub002/internal/clock"
	"github.com/supa-modo/mwukenya-server-sub002/internal/config"
	coveragedomain "github.com/supa-modo/mwukenya-server-sub002/internal/coverage/domain"
	obslogger "github.com/supa-modo/mwukenya-server-sub002/internal/observability/logger"
	obsmetrics "github.com/supa-modo/mwukenya-server-sub002/internal/observability/metrics"
	paymentdomain "github.com/supa-modo/mwukenya-server-sub002/internal/payment/domain"
	"github.com/supa-modo/mwukenya-server-sub002/internal/policy"
	schemedomain "github.com/supa-modo/mwukenya-server-sub002/internal/scheme/domain"
	subscriptiondomain "github.com/supa-modo/mwukenya-server-sub002/internal/subscription/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
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
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	clock           clock.Clock
	policy          *policy.Holder
	paymentSvc      paymentdomain.Service
	coverageSvc     coveragedomain.Service
	schemeSvc       schemedomain.Service
	subscriptionSvc subscriptiondomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Clock           clock.Clock
	Policy          *policy.Holder
	PaymentSvc      paymentdomain.Service
	CoverageSvc     coveragedomain.Service
	SchemeSvc       schemedomain.Service
	SubscriptionSvc subscriptiondomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		clock:           p.Clock,
		policy:          p.Policy,
		paymentSvc:      p.PaymentSvc,
		coverageSvc:     p.CoverageSvc,
		schemeSvc:       p.SchemeSvc,
		subscriptionSvc: p.SubscriptionSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Payments --------
	api.POST("/payments", s.InitiatePayment)
	api.GET("/payments/:id", s.GetPayment)
	api.POST("/payments/:id/complete", s.CompletePayment)
	api.POST("/payments/:id/fail", s.FailPayment)
	api.GET("/payments/:id/gateway-status", s.QueryPaymentGatewayStatus)
	api.POST("/payments/:id/verify", s.VerifyPaymentReceipt)
	api.GET("/payments/settlements/:date", s.ListSettlementPayments)

	// -------- Coverage --------
	api.GET("/members/:id/coverage", s.GetMemberCoverage)

	// -------- Schemes --------
	api.GET("/schemes", s.ListSchemes)
	api.POST("/schemes", s.CreateScheme)
	api.GET("/schemes/:id", s.GetScheme)
	api.PUT("/schemes/:id", s.UpdateScheme)
}
