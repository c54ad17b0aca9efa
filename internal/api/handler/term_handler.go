package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"course-registration/backend/internal/dto"
	"course-registration/backend/internal/service"
	"course-registration/backend/pkg/response"
)

// TermHandler 学期/阶段/教学班查询 HTTP 处理器
type TermHandler struct {
	termSvc service.TermService
}

// NewTermHandler 创建 TermHandler
func NewTermHandler(termSvc service.TermService) *TermHandler {
	return &TermHandler{termSvc: termSvc}
}

// GetCurrent 获取当前学期及其激活阶段
// GET /api/v1/terms/current
func (h *TermHandler) GetCurrent(c *gin.Context) {
	term, err := h.termSvc.GetCurrent(c.Request.Context())
	if err != nil {
		h.handleTermError(c, err)
		return
	}

	response.OK(c, term)
}

// GetActivePhase 获取学期当前激活阶段
// GET /api/v1/terms/:term_id/phase
func (h *TermHandler) GetActivePhase(c *gin.Context) {
	var uri dto.TermURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}

	phase, err := h.termSvc.GetActivePhase(c.Request.Context(), uri.TermID)
	if err != nil {
		h.handleTermError(c, err)
		return
	}

	response.OK(c, phase)
}

// GetSection 获取教学班实时座位与上课时间
// GET /api/v1/terms/:term_id/sections/:section_id
func (h *TermHandler) GetSection(c *gin.Context) {
	var uri dto.SectionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}

	section, err := h.termSvc.GetSection(c.Request.Context(), uri.TermID, uri.SectionID)
	if err != nil {
		h.handleTermError(c, err)
		return
	}

	response.OK(c, section)
}

func (h *TermHandler) handleTermError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoCurrentTerm):
		response.NotFound(c, 31002, "当前没有进行中的学期")
	case errors.Is(err, service.ErrTermNotFound):
		response.NotFound(c, 31001, "学期不存在")
	case errors.Is(err, service.ErrSectionNotInTerm):
		response.NotFound(c, service.KindSectionNotFound.Code(), service.KindSectionNotFound.Message())
	default:
		response.InternalError(c)
	}
}
