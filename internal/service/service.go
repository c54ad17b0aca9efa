package service

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"course-registration/backend/config"
	"course-registration/backend/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Registration RegistrationService
	Term         TermService
	Export       ExportService
	Index        ScheduleIndex
	Warmer       *TimetableWarmer
}

// NewService 创建 Service 聚合
// cache 为课表缓存后端（Redis 或进程内缓存）
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	cache BlockCache,
	clock Clock,
	tracer trace.Tracer,
	logger *zap.Logger,
) *Service {
	gate := NewPhaseGate(cfg.Registration.PhaseName)
	index := NewScheduleIndex(cache, cfg.Timetable.CacheTTL, logger)

	return &Service{
		Registration: NewRegistrationService(RegistrationDeps{
			Repo:      repo,
			Gate:      gate,
			Ledger:    NewCapacityLedger(logger),
			Index:     index,
			Audit:     NewAuditLog(repo, logger),
			Directory: NewStudentDirectory(repo.Student),
			Clock:     clock,
			Tracer:    tracer,
			Logger:    logger,
		}),
		Term:   NewTermService(repo, gate, index, clock, logger),
		Export: NewExportService(repo, cfg.Timetable, logger),
		Index:  index,
		Warmer: NewTimetableWarmer(repo, index, logger),
	}
}
