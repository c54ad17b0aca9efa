package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-registration/backend/internal/model"
)

// EnrollmentRepository 选课记录数据访问接口
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *model.Enrollment) error
	// FindLatest 返回学生在该学期该教学班最近的一条记录（任意状态）
	FindLatest(ctx context.Context, studentID, termID, sectionID string) (*model.Enrollment, error)
	ListActive(ctx context.Context, studentID, termID string) ([]model.Enrollment, error)
	ListByStudentTerm(ctx context.Context, studentID, termID string) ([]model.Enrollment, error)
	// Cancel 将 ACTIVE 记录置为 CANCELLED；记录不存在或已取消时返回 gorm.ErrRecordNotFound
	Cancel(ctx context.Context, enrollmentID string, at time.Time) error
	CountActiveBySection(ctx context.Context, sectionID string) (int64, error)
}

type enrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo 创建 EnrollmentRepository 实例
func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) Create(ctx context.Context, enrollment *model.Enrollment) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Create(enrollment).Error
}

func (r *enrollmentRepo) FindLatest(ctx context.Context, studentID, termID, sectionID string) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND term_id = ? AND class_section_id = ?", studentID, termID, sectionID).
		Order("CASE WHEN status = 'ACTIVE' THEN 0 ELSE 1 END, registered_at DESC").
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepo) ListActive(ctx context.Context, studentID, termID string) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND term_id = ? AND status = ?", studentID, termID, model.EnrollmentStatusActive).
		Order("registered_at ASC, enrollment_id ASC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *enrollmentRepo) ListByStudentTerm(ctx context.Context, studentID, termID string) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND term_id = ?", studentID, termID).
		Order("registered_at ASC, enrollment_id ASC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *enrollmentRepo) Cancel(ctx context.Context, enrollmentID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("enrollment_id = ? AND status = ?", enrollmentID, model.EnrollmentStatusActive).
		Updates(map[string]interface{}{
			"status":       model.EnrollmentStatusCancelled,
			"cancelled_at": at,
			"updated_at":   gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *enrollmentRepo) CountActiveBySection(ctx context.Context, sectionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("class_section_id = ? AND status = ?", sectionID, model.EnrollmentStatusActive).
		Count(&count).Error
	return count, err
}
