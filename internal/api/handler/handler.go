package handler

import "course-registration/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Registration *RegistrationHandler
	Term         *TermHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Registration: NewRegistrationHandler(svc.Registration),
		Term:         NewTermHandler(svc.Term),
		Export:       NewExportHandler(svc.Export),
	}
}
