package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gradpath/gradpath/internal/config"
	entitlementdomain "github.com/gradpath/gradpath/internal/entitlement/domain"
	"github.com/gradpath/gradpath/internal/observability"
	obsmiddleware "github.com/gradpath/gradpath/internal/observability/logger"
	obsmetrics "github.com/gradpath/gradpath/internal/observability/metrics"
	obstracing "github.com/gradpath/gradpath/internal/observability/tracing"
	"github.com/gradpath/gradpath/internal/ratelimit"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, sd fx.Shutdowner, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go serve(srv, sd, log.Named("http.server"))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// serve blocks on the listener and requests an orderly app shutdown when
// it fails, so lifecycle OnStop hooks still run.
func serve(srv *http.Server, sd fx.Shutdowner, log *zap.Logger) {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http listener failed", zap.Error(err))
		if shutdownErr := sd.Shutdown(); shutdownErr != nil {
			log.Error("shutdown request failed", zap.Error(shutdownErr))
		}
	}
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	entitlementSvc entitlementdomain.Service
	consumeLimiter *ratelimit.ConsumeLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	EntitlementSvc entitlementdomain.Service
	ConsumeLimiter *ratelimit.ConsumeLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		entitlementSvc: p.EntitlementSvc,
		consumeLimiter: p.ConsumeLimiter,
	}

	svc.registerEntitlementRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerEntitlementRoutes() {
	v1 := s.engine.Group("/v1", s.UserRequired())

	v1.GET("/entitlements/:feature", s.EvaluateEntitlement)
	v1.POST("/entitlements/:feature/consume", s.ConsumeRateLimit(), s.ConsumeEntitlement)

	// Diagnostic surface, admin key only.
	v1.GET("/usage/:feature", s.AdminKeyRequired(), s.GetUsage)
}
