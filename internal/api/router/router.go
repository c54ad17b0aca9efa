package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"course-registration/backend/config"
	"course-registration/backend/internal/api/handler"
	"course-registration/backend/internal/api/middleware"
	"course-registration/backend/pkg/jwt"
)

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时写操作不限流
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	limiter middleware.RateLimiter,
	tracer trace.Tracer,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(tracer))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	writeLimit := middleware.RateLimit(limiter, cfg.Registration.RateLimit, cfg.Registration.RateLimitWindow, logger)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 学期 / 阶段 / 教学班
		terms := v1.Group("/terms")
		{
			terms.GET("/current", h.Term.GetCurrent)
			terms.GET("/:term_id/phase", h.Term.GetActivePhase)
			terms.GET("/:term_id/sections/:section_id", h.Term.GetSection)
		}

		// 选课模块
		registrations := v1.Group("/terms/:term_id/registrations")
		{
			registrations.GET("", h.Registration.ListActive)
			registrations.GET("/history", h.Registration.History)
			registrations.GET("/export", h.Export.ExportRegistrations)
			registrations.GET("/export.ics", h.Export.ExportCalendar)
			registrations.POST("", writeLimit, h.Registration.Register)
			registrations.POST("/transfer", writeLimit, h.Registration.Transfer)
			registrations.DELETE("/:section_id", writeLimit, h.Registration.Cancel)
		}
	}

	return r
}
