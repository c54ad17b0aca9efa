package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"course-registration/backend/pkg/database"
)

var migrateDown int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "执行数据库迁移（--down N 回滚 N 步，仅用于开发环境）",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		db, err := database.NewDB(&a.cfg.Database, a.cfg.Log.Level, a.logger)
		if err != nil {
			return err
		}
		defer closeDB(db)

		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
		}

		if migrateDown > 0 {
			return database.RollbackMigrations(sqlDB, migrateDown, a.logger)
		}
		return database.RunMigrations(sqlDB, a.logger)
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateDown, "down", 0, "回滚步数")
}
