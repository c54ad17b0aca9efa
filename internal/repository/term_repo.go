package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-registration/backend/internal/model"
)

// TermRepository 学期数据访问接口
type TermRepository interface {
	GetByID(ctx context.Context, id string) (*model.Term, error)
	GetCurrent(ctx context.Context) (*model.Term, error)
	Upsert(ctx context.Context, term *model.Term) error
	ClearCurrent(ctx context.Context) error
}

type termRepo struct {
	db *gorm.DB
}

// NewTermRepo 创建 TermRepository 实例
func NewTermRepo(db *gorm.DB) TermRepository {
	return &termRepo{db: db}
}

func (r *termRepo) GetByID(ctx context.Context, id string) (*model.Term, error) {
	var term model.Term
	err := r.db.WithContext(ctx).
		Where("term_id = ?", id).
		First(&term).Error
	if err != nil {
		return nil, err
	}
	return &term, nil
}

func (r *termRepo) GetCurrent(ctx context.Context) (*model.Term, error) {
	var term model.Term
	err := r.db.WithContext(ctx).
		Where("is_current = ?", true).
		First(&term).Error
	if err != nil {
		return nil, err
	}
	return &term, nil
}

// Upsert 按主键插入或更新（种子数据导入使用）
func (r *termRepo) Upsert(ctx context.Context, term *model.Term) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "term_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "name", "start_date", "end_date", "is_current", "updated_at"}),
		}).
		Create(term).Error
}

// ClearCurrent 将所有学期的 is_current 设为 false
func (r *termRepo) ClearCurrent(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&model.Term{}).
		Where("is_current = ?", true).
		Update("is_current", false).Error
}
