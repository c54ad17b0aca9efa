package dto

// ── 选课模块 DTO ──

// RegisterRequest 选课请求
// StudentID 仅管理员可指定，学生角色忽略该字段
type RegisterRequest struct {
	SectionID string `json:"section_id" binding:"required,uuid"`
	StudentID string `json:"student_id" binding:"omitempty,uuid"`
}

// TransferRequest 换班请求
type TransferRequest struct {
	FromSectionID string `json:"from_section_id" binding:"required,uuid"`
	ToSectionID   string `json:"to_section_id"   binding:"required,uuid,nefield=FromSectionID"`
	StudentID     string `json:"student_id"      binding:"omitempty,uuid"`
}

// StudentQuery 管理员代查学生的查询参数
type StudentQuery struct {
	StudentID string `form:"student_id" binding:"omitempty,uuid"`
}

// EnrollmentResponse 选课记录响应
type EnrollmentResponse struct {
	ID           string `json:"id"`
	StudentID    string `json:"student_id"`
	TermID       string `json:"term_id"`
	SectionID    string `json:"section_id"`
	SectionCode  string `json:"section_code,omitempty"`
	SubjectID    string `json:"subject_id"`
	SubjectCode  string `json:"subject_code,omitempty"`
	SubjectName  string `json:"subject_name,omitempty"`
	Credits      int    `json:"credits,omitempty"`
	Status       string `json:"status"`
	RegisteredAt string `json:"registered_at"`
	CancelledAt  string `json:"cancelled_at,omitempty"`
}

// AuditEntryResponse 审计记录响应
type AuditEntryResponse struct {
	Seq          int                    `json:"seq"`
	Action       string                 `json:"action"`
	EnrollmentID string                 `json:"enrollment_id"`
	SectionID    string                 `json:"section_id"`
	Detail       map[string]interface{} `json:"detail,omitempty"`
	CreatedAt    string                 `json:"created_at"`
}

// TermURI 学期路径参数
type TermURI struct {
	TermID string `uri:"term_id" binding:"required,uuid"`
}

// SectionURI 学期 + 教学班路径参数
type SectionURI struct {
	TermID    string `uri:"term_id"    binding:"required,uuid"`
	SectionID string `uri:"section_id" binding:"required,uuid"`
}
