package repository

import (
	"context"

	"gorm.io/gorm"

	"course-registration/backend/internal/model"
)

// ScheduleBlockRepository 上课时间块数据访问接口（课表缓存的二级数据源）
type ScheduleBlockRepository interface {
	ListBySections(ctx context.Context, sectionIDs []string) ([]model.ScheduleBlock, error)
	// ReplaceForSection 删除教学班原有时间块后写入新时间块（种子数据导入使用）
	ReplaceForSection(ctx context.Context, sectionID string, blocks []model.ScheduleBlock) error
}

type scheduleBlockRepo struct {
	db *gorm.DB
}

// NewScheduleBlockRepo 创建 ScheduleBlockRepository 实例
func NewScheduleBlockRepo(db *gorm.DB) ScheduleBlockRepository {
	return &scheduleBlockRepo{db: db}
}

func (r *scheduleBlockRepo) ListBySections(ctx context.Context, sectionIDs []string) ([]model.ScheduleBlock, error) {
	if len(sectionIDs) == 0 {
		return nil, nil
	}
	var blocks []model.ScheduleBlock
	err := r.db.WithContext(ctx).
		Where("class_section_id IN ?", sectionIDs).
		Order("class_section_id ASC, day_of_week ASC, start_period ASC").
		Find(&blocks).Error
	return blocks, err
}

func (r *scheduleBlockRepo) ReplaceForSection(ctx context.Context, sectionID string, blocks []model.ScheduleBlock) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("class_section_id = ?", sectionID).Delete(&model.ScheduleBlock{}).Error; err != nil {
		return err
	}
	if len(blocks) == 0 {
		return nil
	}
	for i := range blocks {
		blocks[i].ClassSectionID = sectionID
	}
	return db.Create(&blocks).Error
}
