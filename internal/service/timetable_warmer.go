package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-registration/backend/internal/repository"
)

// TimetableWarmer 定时将当前学期全部教学班的时间块写入课表缓存
// 选课高峰期冲突检查因此基本只读缓存
type TimetableWarmer struct {
	repo    *repository.Repository
	index   ScheduleIndex
	logger  *zap.Logger
	timeout time.Duration
	cron    *cron.Cron
}

// NewTimetableWarmer 创建课表缓存预热任务
func NewTimetableWarmer(repo *repository.Repository, index ScheduleIndex, logger *zap.Logger) *TimetableWarmer {
	return &TimetableWarmer{
		repo:    repo,
		index:   index,
		logger:  logger,
		timeout: 2 * time.Minute,
	}
}

// Warm 预热一次，返回写入缓存的教学班数量；没有当前学期时不做任何事
func (w *TimetableWarmer) Warm(ctx context.Context) (int, error) {
	term, err := w.repo.Term.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}

	ids, err := w.repo.ClassSection.ListIDsByTerm(ctx, term.TermID)
	if err != nil {
		return 0, err
	}
	return w.index.Refresh(ctx, w.repo, ids)
}

// Start 按 cron 表达式启动预热任务，启动时立即执行一次
// spec 为空时不启动
func (w *TimetableWarmer) Start(spec string) error {
	if spec == "" {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, w.run); err != nil {
		return fmt.Errorf("注册课表预热任务失败: %w", err)
	}
	w.cron = c
	c.Start()

	go w.run()

	w.logger.Info("课表缓存预热任务已启动", zap.String("schedule", spec))
	return nil
}

// Stop 停止预热任务并等待正在执行的任务结束
func (w *TimetableWarmer) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
}

func (w *TimetableWarmer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	n, err := w.Warm(ctx)
	if err != nil {
		w.logger.Warn("课表缓存预热失败", zap.Error(err))
		return
	}
	w.logger.Debug("课表缓存预热完成",
		zap.Int("sections", n),
		zap.Duration("elapsed", time.Since(start)),
	)
}
