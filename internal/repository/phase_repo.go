package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-registration/backend/internal/model"
)

// PhaseRepository 学期阶段数据访问接口（选课引擎只读）
type PhaseRepository interface {
	ListByTerm(ctx context.Context, termID string) ([]model.TermPhase, error)
	// ListByTermForShare 事务内以 FOR SHARE 读取，阻止管理员在本事务提交前修改阶段
	ListByTermForShare(ctx context.Context, termID string) ([]model.TermPhase, error)
	Upsert(ctx context.Context, phase *model.TermPhase) error
}

type phaseRepo struct {
	db *gorm.DB
}

// NewPhaseRepo 创建 PhaseRepository 实例
func NewPhaseRepo(db *gorm.DB) PhaseRepository {
	return &phaseRepo{db: db}
}

func (r *phaseRepo) ListByTerm(ctx context.Context, termID string) ([]model.TermPhase, error) {
	var phases []model.TermPhase
	err := r.db.WithContext(ctx).
		Where("term_id = ?", termID).
		Order("start_at ASC, phase_id ASC").
		Find(&phases).Error
	return phases, err
}

func (r *phaseRepo) ListByTermForShare(ctx context.Context, termID string) ([]model.TermPhase, error) {
	var phases []model.TermPhase
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("term_id = ?", termID).
		Order("start_at ASC, phase_id ASC").
		Find(&phases).Error
	return phases, err
}

func (r *phaseRepo) Upsert(ctx context.Context, phase *model.TermPhase) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phase_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "start_at", "end_at", "cancel_deadline", "is_enabled", "updated_at"}),
		}).
		Create(phase).Error
}
