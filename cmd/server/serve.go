package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"course-registration/backend/config"
	"course-registration/backend/internal/api/handler"
	"course-registration/backend/internal/api/middleware"
	"course-registration/backend/internal/api/router"
	"course-registration/backend/internal/repository"
	"course-registration/backend/internal/service"
	"course-registration/backend/pkg/cache"
	"course-registration/backend/pkg/jwt"
	applogger "course-registration/backend/pkg/logger"
	"course-registration/backend/pkg/redis"
	"course-registration/backend/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务（默认命令）",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("phase_name", cfg.Registration.PhaseName),
	)

	// 配置热更新：仅日志级别
	cfg.Watch(func(next *config.Config) {
		if err := applogger.ApplyLevel(a.level, next.Log.Level); err != nil {
			logger.Warn("日志级别热更新失败", zap.Error(err))
			return
		}
		logger.Info("日志级别已更新", zap.String("level", next.Log.Level))
	})

	// 1. 数据库 + 迁移
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer closeDB(db)

	// 2. Redis（可选：连接失败时课表缓存降级为进程内缓存，写操作不限流）
	var (
		blockCache service.BlockCache
		limiter    middleware.RateLimiter
	)
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，课表缓存降级为进程内缓存，限流关闭", zap.Error(err))
		blockCache = cache.NewLocal(cfg.Timetable.CacheTTL, 2*cfg.Timetable.CacheTTL)
	} else {
		defer rdb.Close()
		blockCache = rdb
		limiter = rdb
	}

	// 3. 链路追踪
	tp, err := tracing.NewProvider(&cfg.Tracing)
	if err != nil {
		return fmt.Errorf("初始化链路追踪失败: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("关闭链路追踪失败", zap.Error(err))
		}
	}()

	// 4. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, blockCache, service.SystemClock(), tp.Tracer(), logger)
	h := handler.NewHandler(svc)
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 5. 课表缓存预热
	if cfg.Timetable.WarmCron != "" {
		if err := svc.Warmer.Start(cfg.Timetable.WarmCron); err != nil {
			return fmt.Errorf("启动课表预热任务失败: %w", err)
		}
		defer svc.Warmer.Stop()
	}

	// 6. 路由
	gin.SetMode(gin.ReleaseMode)
	engine := router.Setup(cfg, h, jwtMgr, limiter, tp.Tracer(), logger)

	// 7. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 8. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))
	case err := <-serveErr:
		logger.Error("HTTP 服务器异常", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务器已关闭")
	return nil
}
