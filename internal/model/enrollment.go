package model

import "time"

// 选课记录状态
const (
	EnrollmentStatusActive    = "ACTIVE"
	EnrollmentStatusCancelled = "CANCELLED"
)

// Enrollment 选课记录表，对应 enrollments
// 退课为软删除：状态改为 CANCELLED，行保留
type Enrollment struct {
	EnrollmentID   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"enrollment_id"`
	StudentID      string     `gorm:"type:uuid;not null"                             json:"student_id"`
	ClassSectionID string     `gorm:"type:uuid;not null"                             json:"class_section_id"`
	TermID         string     `gorm:"type:uuid;not null"                             json:"term_id"`
	SubjectID      string     `gorm:"type:uuid;not null"                             json:"subject_id"`
	Status         string     `gorm:"type:varchar(20);not null;default:'ACTIVE'"     json:"status"`
	RegisteredAt   time.Time  `gorm:"not null"                                       json:"registered_at"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	TimestampModel

	// 关联
	ClassSection *ClassSection `gorm:"foreignKey:ClassSectionID;references:ClassSectionID" json:"class_section,omitempty"`
}

func (Enrollment) TableName() string { return "enrollments" }

// IsActive 是否为有效选课
func (e *Enrollment) IsActive() bool {
	return e.Status == EnrollmentStatusActive
}
