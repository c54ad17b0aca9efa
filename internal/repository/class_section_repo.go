package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-registration/backend/internal/model"
	pkgerrors "course-registration/backend/pkg/errors"
)

// ClassSectionRepository 教学班数据访问接口
// ReserveSeat / ReleaseSeat 是 current_seats 唯一的修改入口
type ClassSectionRepository interface {
	GetByID(ctx context.Context, id string) (*model.ClassSection, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.ClassSection, error)
	ListIDsByTerm(ctx context.Context, termID string) ([]string, error)
	ReserveSeat(ctx context.Context, id string) error
	ReleaseSeat(ctx context.Context, id string) error
	Upsert(ctx context.Context, section *model.ClassSection) error
}

type classSectionRepo struct {
	db *gorm.DB
}

// NewClassSectionRepo 创建 ClassSectionRepository 实例
func NewClassSectionRepo(db *gorm.DB) ClassSectionRepository {
	return &classSectionRepo{db: db}
}

func (r *classSectionRepo) GetByID(ctx context.Context, id string) (*model.ClassSection, error) {
	var section model.ClassSection
	err := r.db.WithContext(ctx).
		Where("class_section_id = ?", id).
		First(&section).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *classSectionRepo) GetByIDs(ctx context.Context, ids []string) ([]model.ClassSection, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var sections []model.ClassSection
	err := r.db.WithContext(ctx).
		Preload("Subject").
		Where("class_section_id IN ?", ids).
		Order("code ASC").
		Find(&sections).Error
	return sections, err
}

func (r *classSectionRepo) ListIDsByTerm(ctx context.Context, termID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.ClassSection{}).
		Where("term_id = ?", termID).
		Order("class_section_id ASC").
		Pluck("class_section_id", &ids).Error
	return ids, err
}

// ReserveSeat 占用一个座位：单条条件更新，current_seats 已满时不命中任何行
func (r *classSectionRepo) ReserveSeat(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.ClassSection{}).
		Where("class_section_id = ? AND current_seats < max_seats", id).
		Updates(map[string]interface{}{
			"current_seats": gorm.Expr("current_seats + 1"),
			"version":       gorm.Expr("version + 1"),
			"updated_at":    gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrSeatUnavailable
	}
	return nil
}

// ReleaseSeat 释放一个座位：current_seats 为 0 时不命中任何行
func (r *classSectionRepo) ReleaseSeat(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.ClassSection{}).
		Where("class_section_id = ? AND current_seats > 0", id).
		Updates(map[string]interface{}{
			"current_seats": gorm.Expr("current_seats - 1"),
			"version":       gorm.Expr("version + 1"),
			"updated_at":    gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrSeatUnderflow
	}
	return nil
}

// Upsert 种子数据导入；冲突时不覆盖 current_seats
func (r *classSectionRepo) Upsert(ctx context.Context, section *model.ClassSection) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "class_section_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"term_id", "subject_id", "code", "max_seats", "updated_at"}),
		}).
		Create(section).Error
}
