package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
)

// StudentDirectory 学生目录（只读协作方）
type StudentDirectory interface {
	Exists(ctx context.Context, studentID string) (bool, error)
	Eligible(ctx context.Context, studentID string) (bool, error)
}

type dbStudentDirectory struct {
	repo repository.StudentRepository
}

// NewStudentDirectory 基于 students 表的学生目录实现
func NewStudentDirectory(repo repository.StudentRepository) StudentDirectory {
	return &dbStudentDirectory{repo: repo}
}

func (d *dbStudentDirectory) Exists(ctx context.Context, studentID string) (bool, error) {
	_, err := d.repo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Eligible 仅 active 状态的学生可以选课
func (d *dbStudentDirectory) Eligible(ctx context.Context, studentID string) (bool, error) {
	student, err := d.repo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return student.Status == model.StudentStatusActive, nil
}
