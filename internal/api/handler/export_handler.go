package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"course-registration/backend/internal/service"
	"course-registration/backend/pkg/response"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	icsContentType  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportRegistrations 导出学生本学期选课记录与历史
// GET /api/v1/terms/:term_id/registrations/export?student_id=xxx
func (h *ExportHandler) ExportRegistrations(c *gin.Context) {
	termID, studentID, ok := bindStudentTerm(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportRegistrations(c.Request.Context(), studentID, termID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, filename, xlsxContentType, buf.Bytes())
}

// ExportCalendar 导出学生本学期有效选课的 iCalendar 课表
// GET /api/v1/terms/:term_id/registrations/export.ics?student_id=xxx
func (h *ExportHandler) ExportCalendar(c *gin.Context) {
	termID, studentID, ok := bindStudentTerm(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportCalendar(c.Request.Context(), studentID, termID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, filename, icsContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportStudentNotFound):
		response.NotFound(c, service.KindStudentNotFound.Code(), service.KindStudentNotFound.Message())
	case errors.Is(err, service.ErrTermNotFound):
		response.NotFound(c, 31001, "学期不存在")
	default:
		response.InternalError(c)
	}
}
