package dto

// ── 学期/阶段 DTO ──

// TermResponse 学期信息响应
type TermResponse struct {
	ID          string         `json:"id"`
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	StartDate   string         `json:"start_date"`
	EndDate     string         `json:"end_date"`
	IsCurrent   bool           `json:"is_current"`
	ActivePhase *PhaseResponse `json:"active_phase,omitempty"`
}

// PhaseResponse 阶段信息响应
type PhaseResponse struct {
	ID             string `json:"id"`
	TermID         string `json:"term_id"`
	Name           string `json:"name"`
	StartAt        string `json:"start_at"`
	EndAt          string `json:"end_at"`
	CancelDeadline string `json:"cancel_deadline"`
	// RegistrationOpen 当前阶段是否允许选课
	RegistrationOpen bool `json:"registration_open"`
	// CancelOpen 当前是否仍可退课/换班
	CancelOpen bool `json:"cancel_open"`
}

// ActivePhaseResponse 学期激活阶段查询响应；无激活阶段时 Phase 为空
type ActivePhaseResponse struct {
	TermID string         `json:"term_id"`
	Active bool           `json:"active"`
	Phase  *PhaseResponse `json:"phase,omitempty"`
}

// ScheduleBlockResponse 上课时间块
type ScheduleBlockResponse struct {
	DayOfWeek   int `json:"day_of_week"`
	StartPeriod int `json:"start_period"`
	EndPeriod   int `json:"end_period"`
}

// SectionResponse 教学班信息（含实时座位数）
type SectionResponse struct {
	ID             string                  `json:"id"`
	TermID         string                  `json:"term_id"`
	Code           string                  `json:"code"`
	SubjectID      string                  `json:"subject_id"`
	SubjectCode    string                  `json:"subject_code,omitempty"`
	SubjectName    string                  `json:"subject_name,omitempty"`
	Credits        int                     `json:"credits"`
	MaxSeats       int                     `json:"max_seats"`
	CurrentSeats   int                     `json:"current_seats"`
	AvailableSeats int                     `json:"available_seats"`
	Blocks         []ScheduleBlockResponse `json:"blocks"`
}
