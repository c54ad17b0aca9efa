package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"course-registration/backend/internal/repository"
	"course-registration/backend/internal/seed"
	"course-registration/backend/internal/service"
	"course-registration/backend/pkg/redis"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "从 YAML 文件导入学期、阶段、课程、教学班与学生",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		file, err := os.Open(seedFile)
		if err != nil {
			return fmt.Errorf("打开种子文件失败: %w", err)
		}
		defer file.Close()

		fixture, err := seed.Parse(file)
		if err != nil {
			return err
		}

		db, err := a.openDB()
		if err != nil {
			return err
		}
		defer closeDB(db)

		// 已缓存的时间块需失效；Redis 不可用时无共享缓存需要处理
		var index seed.Invalidator
		if rdb, err := redis.NewClient(&a.cfg.Redis, a.logger); err != nil {
			a.logger.Warn("Redis 不可用，跳过课表缓存失效", zap.Error(err))
		} else {
			defer rdb.Close()
			index = service.NewScheduleIndex(rdb, a.cfg.Timetable.CacheTTL, a.logger)
		}

		sum, err := seed.Load(context.Background(), repository.NewRepository(db), index, fixture, a.logger)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "导入完成: 学期 %d, 阶段 %d, 课程 %d, 教学班 %d, 时间块 %d, 学生 %d\n",
			sum.Terms, sum.Phases, sum.Subjects, sum.Sections, sum.Blocks, sum.Students)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "种子数据 YAML 文件")
	_ = seedCmd.MarkFlagRequired("file")
}
