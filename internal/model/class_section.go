package model

// ClassSection 教学班表，对应 class_sections
// CurrentSeats 只能通过座位账本的条件更新修改
type ClassSection struct {
	ClassSectionID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_section_id"`
	TermID         string `gorm:"type:uuid;not null"                             json:"term_id"`
	SubjectID      string `gorm:"type:uuid;not null"                             json:"subject_id"`
	Code           string `gorm:"type:varchar(30);not null"                      json:"code"`
	MaxSeats       int    `gorm:"not null"                                       json:"max_seats"`
	CurrentSeats   int    `gorm:"not null;default:0"                             json:"current_seats"`
	Version        int    `gorm:"not null;default:1"                             json:"version"`
	BaseModel

	// 关联
	Subject *Subject        `gorm:"foreignKey:SubjectID;references:SubjectID"  json:"subject,omitempty"`
	Blocks  []ScheduleBlock `gorm:"foreignKey:ClassSectionID"                  json:"blocks,omitempty"`
}

func (ClassSection) TableName() string { return "class_sections" }

// AvailableSeats 剩余座位数
func (s *ClassSection) AvailableSeats() int {
	if s.CurrentSeats >= s.MaxSeats {
		return 0
	}
	return s.MaxSeats - s.CurrentSeats
}

// ScheduleBlock 上课时间块表，对应 schedule_blocks
// 节次区间为左闭右开 [StartPeriod, EndPeriod)
type ScheduleBlock struct {
	ScheduleBlockID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_block_id"`
	ClassSectionID  string `gorm:"type:uuid;not null"                             json:"class_section_id"`
	DayOfWeek       int    `gorm:"type:smallint;not null"                         json:"day_of_week"` // 1..7
	StartPeriod     int    `gorm:"type:smallint;not null"                         json:"start_period"`
	EndPeriod       int    `gorm:"type:smallint;not null"                         json:"end_period"`
}

func (ScheduleBlock) TableName() string { return "schedule_blocks" }
