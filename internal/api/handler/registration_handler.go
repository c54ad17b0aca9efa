package handler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"course-registration/backend/internal/dto"
	"course-registration/backend/internal/model"
	"course-registration/backend/internal/service"
	"course-registration/backend/pkg/response"
)

// RegistrationHandler 选课模块 HTTP 处理器
type RegistrationHandler struct {
	registrationSvc service.RegistrationService
}

// NewRegistrationHandler 创建 RegistrationHandler
func NewRegistrationHandler(registrationSvc service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrationSvc: registrationSvc}
}

// Register 选课
// POST /api/v1/terms/:term_id/registrations
func (h *RegistrationHandler) Register(c *gin.Context) {
	var uri dto.TermURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	studentID, ok := resolveStudentID(c, req.StudentID)
	if !ok {
		return
	}

	enrollment, err := h.registrationSvc.Register(c.Request.Context(), studentID, req.SectionID, uri.TermID)
	if err != nil {
		writeRegistrationError(c, err)
		return
	}

	response.Created(c, toEnrollmentResponse(enrollment))
}

// Cancel 退课
// DELETE /api/v1/terms/:term_id/registrations/:section_id
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	var uri dto.SectionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}
	var query dto.StudentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	studentID, ok := resolveStudentID(c, query.StudentID)
	if !ok {
		return
	}

	if err := h.registrationSvc.Cancel(c.Request.Context(), studentID, uri.SectionID, uri.TermID); err != nil {
		writeRegistrationError(c, err)
		return
	}

	response.OK(c, gin.H{
		"student_id": studentID,
		"section_id": uri.SectionID,
		"status":     model.EnrollmentStatusCancelled,
	})
}

// Transfer 同课程换班
// POST /api/v1/terms/:term_id/registrations/transfer
func (h *RegistrationHandler) Transfer(c *gin.Context) {
	var uri dto.TermURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	studentID, ok := resolveStudentID(c, req.StudentID)
	if !ok {
		return
	}

	enrollment, err := h.registrationSvc.Transfer(c.Request.Context(), studentID, req.FromSectionID, req.ToSectionID, uri.TermID)
	if err != nil {
		writeRegistrationError(c, err)
		return
	}

	response.OK(c, toEnrollmentResponse(enrollment))
}

// ListActive 本学期有效选课
// GET /api/v1/terms/:term_id/registrations
func (h *RegistrationHandler) ListActive(c *gin.Context) {
	termID, studentID, ok := bindStudentTerm(c)
	if !ok {
		return
	}

	enrollments, err := h.registrationSvc.ListActiveEnrollments(c.Request.Context(), studentID, termID)
	if err != nil {
		writeRegistrationError(c, err)
		return
	}

	list := make([]dto.EnrollmentResponse, 0, len(enrollments))
	for i := range enrollments {
		list = append(list, toEnrollmentResponse(&enrollments[i]))
	}
	response.OK(c, gin.H{"list": list})
}

// History 选课审计历史
// GET /api/v1/terms/:term_id/registrations/history
func (h *RegistrationHandler) History(c *gin.Context) {
	termID, studentID, ok := bindStudentTerm(c)
	if !ok {
		return
	}

	entries, err := h.registrationSvc.History(c.Request.Context(), studentID, termID)
	if err != nil {
		writeRegistrationError(c, err)
		return
	}

	list := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		list = append(list, toAuditEntryResponse(e))
	}
	response.OK(c, gin.H{"list": list})
}

func bindStudentTerm(c *gin.Context) (termID, studentID string, ok bool) {
	var uri dto.TermURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return "", "", false
	}
	var query dto.StudentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return "", "", false
	}
	studentID, ok = resolveStudentID(c, query.StudentID)
	return uri.TermID, studentID, ok
}

// ── 错误映射 ──

// writeRegistrationError 按错误类别输出状态码与业务码；内部错误不返回细节
func writeRegistrationError(c *gin.Context, err error) {
	regErr := service.AsRegistrationError(err)
	if regErr.Kind == service.KindInternal {
		response.InternalError(c)
		return
	}
	response.ErrorWithDetails(c, regErr.Kind.HTTPStatus(), regErr.Kind.Code(), regErr.Kind.Message(), regErr.Detail)
}

// ── 转换 ──

func toEnrollmentResponse(e *model.Enrollment) dto.EnrollmentResponse {
	resp := dto.EnrollmentResponse{
		ID:           e.EnrollmentID,
		StudentID:    e.StudentID,
		TermID:       e.TermID,
		SectionID:    e.ClassSectionID,
		SubjectID:    e.SubjectID,
		Status:       e.Status,
		RegisteredAt: e.RegisteredAt.Format(time.RFC3339),
	}
	if e.CancelledAt != nil {
		resp.CancelledAt = e.CancelledAt.Format(time.RFC3339)
	}
	if sec := e.ClassSection; sec != nil {
		resp.SectionCode = sec.Code
		if sec.Subject != nil {
			resp.SubjectCode = sec.Subject.Code
			resp.SubjectName = sec.Subject.Name
			resp.Credits = sec.Subject.Credits
		}
	}
	return resp
}

func toAuditEntryResponse(e model.AuditEntry) dto.AuditEntryResponse {
	resp := dto.AuditEntryResponse{
		Seq:          e.Seq,
		Action:       e.Action,
		EnrollmentID: e.EnrollmentID,
		SectionID:    e.ClassSectionID,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
	if len(e.Detail) > 0 {
		var detail map[string]interface{}
		if err := json.Unmarshal(e.Detail, &detail); err == nil {
			resp.Detail = detail
		}
	}
	return resp
}
