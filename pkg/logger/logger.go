package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"course-registration/backend/config"
)

// NewLogger 根据配置初始化 Zap 日志实例
// 返回的 AtomicLevel 可在运行时调整日志级别（配置热更新）
func NewLogger(cfg *config.LogConfig) (*zap.Logger, zap.AtomicLevel, error) {
	var zapCfg zap.Config

	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zapCfg = zap.NewProductionConfig()
	}

	// 解析日志级别
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
	}
	atomic := zap.NewAtomicLevelAt(level)
	zapCfg.Level = atomic

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("初始化日志器失败: %w", err)
	}

	return logger, atomic, nil
}

// ApplyLevel 将字符串级别应用到 AtomicLevel，非法值返回错误且不修改当前级别
func ApplyLevel(atomic zap.AtomicLevel, level string) error {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("无效的日志级别 %q: %w", level, err)
	}
	atomic.SetLevel(l)
	return nil
}
