package model

import "time"

// Term 学期表，对应 terms
type Term struct {
	TermID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"term_id"`
	Code      string    `gorm:"type:varchar(20);not null;uniqueIndex"          json:"code"`
	Name      string    `gorm:"type:varchar(100);not null"                     json:"name"`
	StartDate time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null"                             json:"end_date"`
	IsCurrent bool      `gorm:"not null;default:false"                         json:"is_current"`
	BaseModel
}

func (Term) TableName() string { return "terms" }

// 阶段名称
const (
	PhaseEnrollmentIntent = "enrollment-intent"
	PhaseRegistration     = "registration"
)

// TermPhase 学期阶段表，对应 term_phases
// 激活条件：IsEnabled 且 StartAt <= now <= EndAt
type TermPhase struct {
	PhaseID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"phase_id"`
	TermID         string    `gorm:"type:uuid;not null"                             json:"term_id"`
	Name           string    `gorm:"type:varchar(50);not null"                      json:"name"`
	StartAt        time.Time `gorm:"not null"                                       json:"start_at"`
	EndAt          time.Time `gorm:"not null"                                       json:"end_at"`
	CancelDeadline time.Time `gorm:"not null"                                       json:"cancel_deadline"`
	IsEnabled      bool      `gorm:"not null;default:true"                          json:"is_enabled"`
	BaseModel
}

func (TermPhase) TableName() string { return "term_phases" }

// ActiveAt 判断阶段在给定时刻是否处于激活状态（闭区间）
func (p *TermPhase) ActiveAt(now time.Time) bool {
	return p.IsEnabled && !now.Before(p.StartAt) && !now.After(p.EndAt)
}
