package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
)

// AuditLog 选课审计日志：按 (学生, 学期) 只追加
type AuditLog struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAuditLog 创建审计日志
func NewAuditLog(repo *repository.Repository, logger *zap.Logger) *AuditLog {
	return &AuditLog{repo: repo, logger: logger}
}

// Append 在调用方事务内追加一条审计记录
// history 必须是本事务内 LockHistory 返回的已加锁容器
func (a *AuditLog) Append(
	ctx context.Context,
	tx *repository.Repository,
	history *model.RegistrationHistory,
	enrollment *model.Enrollment,
	action string,
	detail interface{},
) (*model.AuditEntry, error) {
	entry := &model.AuditEntry{
		EnrollmentID:   enrollment.EnrollmentID,
		ClassSectionID: enrollment.ClassSectionID,
		Action:         action,
	}
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err != nil {
			return nil, internalError(err)
		}
		entry.Detail = datatypes.JSON(raw)
	}

	if err := tx.Audit.Append(ctx, history, entry); err != nil {
		return nil, internalError(err)
	}

	a.logger.Debug("追加选课审计记录",
		zap.String("student_id", history.StudentID),
		zap.String("term_id", history.TermID),
		zap.String("action", action),
		zap.Int("seq", entry.Seq),
	)
	return entry, nil
}

// History 按追加顺序返回审计记录
func (a *AuditLog) History(ctx context.Context, studentID, termID string) ([]model.AuditEntry, error) {
	entries, err := a.repo.Audit.ListEntries(ctx, studentID, termID)
	if err != nil {
		a.logger.Error("查询选课审计记录失败",
			zap.String("student_id", studentID),
			zap.String("term_id", termID),
			zap.Error(err),
		)
		return nil, internalError(err)
	}
	return entries, nil
}
