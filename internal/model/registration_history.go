package model

import (
	"time"

	"gorm.io/datatypes"
)

// 审计动作
const (
	AuditActionRegister = "REGISTER"
	AuditActionCancel   = "CANCEL"
	AuditActionTransfer = "TRANSFER"
)

// RegistrationHistory 选课历史容器，对应 registration_histories
// 每个 (学生, 学期) 一行；选课事务对其加 FOR UPDATE 锁以串行化同一学生的操作
type RegistrationHistory struct {
	HistoryID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"history_id"`
	StudentID  string `gorm:"type:uuid;not null"                             json:"student_id"`
	TermID     string `gorm:"type:uuid;not null"                             json:"term_id"`
	EntryCount int    `gorm:"not null;default:0"                             json:"entry_count"`
	TimestampModel
}

func (RegistrationHistory) TableName() string { return "registration_histories" }

// AuditEntry 选课审计记录，对应 registration_audit_entries（只追加，数据库触发器禁止修改）
type AuditEntry struct {
	AuditEntryID   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"audit_entry_id"`
	HistoryID      string         `gorm:"type:uuid;not null"                             json:"history_id"`
	StudentID      string         `gorm:"type:uuid;not null"                             json:"student_id"`
	TermID         string         `gorm:"type:uuid;not null"                             json:"term_id"`
	EnrollmentID   string         `gorm:"type:uuid;not null"                             json:"enrollment_id"`
	ClassSectionID string         `gorm:"type:uuid;not null"                             json:"class_section_id"`
	Action         string         `gorm:"type:varchar(20);not null"                      json:"action"` // REGISTER | CANCEL | TRANSFER
	Seq            int            `gorm:"not null"                                       json:"seq"`
	Detail         datatypes.JSON `gorm:"type:jsonb"                                     json:"detail,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (AuditEntry) TableName() string { return "registration_audit_entries" }

// TransferDetail TRANSFER 审计记录的 detail 内容
type TransferDetail struct {
	FromClassSectionID string `json:"from_class_section_id"`
	FromEnrollmentID   string `json:"from_enrollment_id"`
	ToClassSectionID   string `json:"to_class_section_id"`
	ToEnrollmentID     string `json:"to_enrollment_id"`
}
