package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-registration/backend/config"
	"course-registration/backend/pkg/database"
	applogger "course-registration/backend/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "course-registration",
	Short:        "高校选课引擎服务",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"配置文件路径（默认查找 ./config/config.yaml 与 ./config.yaml）")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app 各子命令共享的基础依赖
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	level  zap.AtomicLevel
}

// bootstrap 加载配置并初始化日志
func bootstrap() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger, level, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	return &app{cfg: cfg, logger: logger, level: level}, nil
}

// openDB 连接数据库并执行迁移
func (a *app) openDB() (*gorm.DB, error) {
	db, err := database.NewDB(&a.cfg.Database, a.cfg.Log.Level, a.logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	if err := database.RunMigrations(sqlDB, a.logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, _ := db.DB(); sqlDB != nil {
		sqlDB.Close()
	}
}
