package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-registration/backend/internal/model"
)

// AuditRepository 选课审计数据访问接口（只追加）
type AuditRepository interface {
	// LockHistory 获取（必要时创建）(学生, 学期) 历史容器并加 FOR UPDATE 行锁，必须在事务内调用
	LockHistory(ctx context.Context, studentID, termID string) (*model.RegistrationHistory, error)
	// Append 以 history.EntryCount+1 作为 seq 写入审计记录，并推进 entry_count
	Append(ctx context.Context, history *model.RegistrationHistory, entry *model.AuditEntry) error
	ListEntries(ctx context.Context, studentID, termID string) ([]model.AuditEntry, error)
}

type auditRepo struct {
	db *gorm.DB
}

// NewAuditRepo 创建 AuditRepository 实例
func NewAuditRepo(db *gorm.DB) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) LockHistory(ctx context.Context, studentID, termID string) (*model.RegistrationHistory, error) {
	db := r.db.WithContext(ctx)

	seed := &model.RegistrationHistory{StudentID: studentID, TermID: termID}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "term_id"}},
		DoNothing: true,
	}).Create(seed).Error
	if err != nil {
		return nil, err
	}

	var history model.RegistrationHistory
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND term_id = ?", studentID, termID).
		First(&history).Error
	if err != nil {
		return nil, err
	}
	return &history, nil
}

func (r *auditRepo) Append(ctx context.Context, history *model.RegistrationHistory, entry *model.AuditEntry) error {
	db := r.db.WithContext(ctx)

	entry.HistoryID = history.HistoryID
	entry.StudentID = history.StudentID
	entry.TermID = history.TermID
	entry.Seq = history.EntryCount + 1

	if err := db.Create(entry).Error; err != nil {
		return err
	}

	err := db.Model(&model.RegistrationHistory{}).
		Where("history_id = ?", history.HistoryID).
		Updates(map[string]interface{}{
			"entry_count": entry.Seq,
			"updated_at":  gorm.Expr("NOW()"),
		}).Error
	if err != nil {
		return err
	}
	history.EntryCount = entry.Seq
	return nil
}

func (r *auditRepo) ListEntries(ctx context.Context, studentID, termID string) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND term_id = ?", studentID, termID).
		Order("seq ASC").
		Find(&entries).Error
	return entries, err
}
