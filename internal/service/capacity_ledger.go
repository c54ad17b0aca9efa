package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
	pkgerrors "course-registration/backend/pkg/errors"
)

// CapacityLedger 座位账本：current_seats 的唯一修改入口
// 增减均为存储层的单条条件更新，必须与选课记录、审计记录在同一事务内调用
type CapacityLedger struct {
	logger *zap.Logger
}

// NewCapacityLedger 创建座位账本
func NewCapacityLedger(logger *zap.Logger) *CapacityLedger {
	return &CapacityLedger{logger: logger}
}

// Reserve 占用一个座位，已满时返回 SectionFull
func (l *CapacityLedger) Reserve(ctx context.Context, tx *repository.Repository, section *model.ClassSection) error {
	err := tx.ClassSection.ReserveSeat(ctx, section.ClassSectionID)
	if err == nil {
		return nil
	}
	if errors.Is(err, pkgerrors.ErrSeatUnavailable) {
		return rejection(KindSectionFull, section.ClassSectionID, "教学班 %s 已无剩余座位", section.Code)
	}
	return internalError(err)
}

// Release 释放一个座位
// 计数已为 0 属于程序错误：记录错误日志并返回内部错误，由调用方回滚事务
func (l *CapacityLedger) Release(ctx context.Context, tx *repository.Repository, sectionID string) error {
	err := tx.ClassSection.ReleaseSeat(ctx, sectionID)
	if err == nil {
		return nil
	}
	if errors.Is(err, pkgerrors.ErrSeatUnderflow) {
		l.logger.Error("座位计数下溢，拒绝释放",
			zap.String("class_section_id", sectionID),
			zap.Error(err),
		)
	}
	return internalError(err)
}
