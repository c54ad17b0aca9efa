package model

// Subject 课程表，对应 subjects（课程目录数据，只读）
type Subject struct {
	SubjectID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subject_id"`
	Code      string `gorm:"type:varchar(20);not null;uniqueIndex"          json:"code"`
	Name      string `gorm:"type:varchar(200);not null"                     json:"name"`
	Credits   int    `gorm:"type:smallint;not null;default:0"               json:"credits"`
	BaseModel
}

func (Subject) TableName() string { return "subjects" }
