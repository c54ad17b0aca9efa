package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-registration/backend/internal/model"
)

// SubjectRepository 课程目录数据访问接口
type SubjectRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]model.Subject, error)
	Upsert(ctx context.Context, subject *model.Subject) error
}

type subjectRepo struct {
	db *gorm.DB
}

// NewSubjectRepo 创建 SubjectRepository 实例
func NewSubjectRepo(db *gorm.DB) SubjectRepository {
	return &subjectRepo{db: db}
}

func (r *subjectRepo) GetByIDs(ctx context.Context, ids []string) ([]model.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var subjects []model.Subject
	err := r.db.WithContext(ctx).
		Where("subject_id IN ?", ids).
		Find(&subjects).Error
	return subjects, err
}

func (r *subjectRepo) Upsert(ctx context.Context, subject *model.Subject) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "name", "credits", "updated_at"}),
		}).
		Create(subject).Error
}
