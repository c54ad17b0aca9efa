package model

// 学生状态
const (
	StudentStatusActive    = "active"
	StudentStatusSuspended = "suspended"
	StudentStatusGraduated = "graduated"
)

// Student 学生表，对应 students（学生目录数据，只读）
type Student struct {
	StudentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	Code      string `gorm:"type:varchar(20);not null;uniqueIndex"          json:"code"`
	Name      string `gorm:"type:varchar(100);not null"                     json:"name"`
	Status    string `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`
	TimestampModel
}

func (Student) TableName() string { return "students" }
