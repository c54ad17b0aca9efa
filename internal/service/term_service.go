package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-registration/backend/internal/dto"
	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
)

// ── 学期模块业务错误 ──

var (
	ErrTermNotFound     = errors.New("学期不存在")
	ErrNoCurrentTerm    = errors.New("当前没有进行中的学期")
	ErrSectionNotInTerm = errors.New("教学班不存在")
)

// TermService 学期/阶段/教学班只读视图
type TermService interface {
	GetCurrent(ctx context.Context) (*dto.TermResponse, error)
	GetActivePhase(ctx context.Context, termID string) (*dto.ActivePhaseResponse, error)
	GetSection(ctx context.Context, termID, sectionID string) (*dto.SectionResponse, error)
}

type termService struct {
	repo   *repository.Repository
	gate   *PhaseGate
	index  ScheduleIndex
	clock  Clock
	logger *zap.Logger
}

// NewTermService 创建 TermService 实例
func NewTermService(repo *repository.Repository, gate *PhaseGate, index ScheduleIndex, clock Clock, logger *zap.Logger) TermService {
	return &termService{repo: repo, gate: gate, index: index, clock: clock, logger: logger}
}

// ────────────────────── GetCurrent ──────────────────────

func (s *termService) GetCurrent(ctx context.Context) (*dto.TermResponse, error) {
	term, err := s.repo.Term.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCurrentTerm
		}
		s.logger.Error("查询当前学期失败", zap.Error(err))
		return nil, err
	}

	now := s.clock.Now()
	phase, err := s.gate.ActivePhase(ctx, s.repo, term.TermID, now)
	if err != nil {
		s.logger.Error("查询学期阶段失败", zap.String("term_id", term.TermID), zap.Error(err))
		return nil, err
	}

	resp := toTermResponse(term)
	if phase != nil {
		resp.ActivePhase = s.toPhaseResponse(phase, now)
	}
	return resp, nil
}

// ────────────────────── GetActivePhase ──────────────────────

func (s *termService) GetActivePhase(ctx context.Context, termID string) (*dto.ActivePhaseResponse, error) {
	if _, err := s.repo.Term.GetByID(ctx, termID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTermNotFound
		}
		s.logger.Error("查询学期失败", zap.String("term_id", termID), zap.Error(err))
		return nil, err
	}

	now := s.clock.Now()
	phase, err := s.gate.ActivePhase(ctx, s.repo, termID, now)
	if err != nil {
		s.logger.Error("查询学期阶段失败", zap.String("term_id", termID), zap.Error(err))
		return nil, err
	}

	resp := &dto.ActivePhaseResponse{TermID: termID}
	if phase != nil {
		resp.Active = true
		resp.Phase = s.toPhaseResponse(phase, now)
	}
	return resp, nil
}

// ────────────────────── GetSection ──────────────────────

func (s *termService) GetSection(ctx context.Context, termID, sectionID string) (*dto.SectionResponse, error) {
	sections, err := s.repo.ClassSection.GetByIDs(ctx, []string{sectionID})
	if err != nil {
		s.logger.Error("查询教学班失败", zap.String("class_section_id", sectionID), zap.Error(err))
		return nil, err
	}
	if len(sections) == 0 || sections[0].TermID != termID {
		return nil, ErrSectionNotInTerm
	}
	section := &sections[0]

	blocks, err := s.index.BlocksFor(ctx, s.repo, []string{sectionID})
	if err != nil {
		return nil, err
	}

	resp := &dto.SectionResponse{
		ID:             section.ClassSectionID,
		TermID:         section.TermID,
		Code:           section.Code,
		SubjectID:      section.SubjectID,
		MaxSeats:       section.MaxSeats,
		CurrentSeats:   section.CurrentSeats,
		AvailableSeats: section.AvailableSeats(),
		Blocks:         make([]dto.ScheduleBlockResponse, 0, len(blocks[sectionID])),
	}
	if section.Subject != nil {
		resp.SubjectCode = section.Subject.Code
		resp.SubjectName = section.Subject.Name
		resp.Credits = section.Subject.Credits
	}
	for _, b := range blocks[sectionID] {
		resp.Blocks = append(resp.Blocks, dto.ScheduleBlockResponse{
			DayOfWeek:   b.DayOfWeek,
			StartPeriod: b.StartPeriod,
			EndPeriod:   b.EndPeriod,
		})
	}
	return resp, nil
}

// ── 内部方法 ──

func toTermResponse(t *model.Term) *dto.TermResponse {
	return &dto.TermResponse{
		ID:        t.TermID,
		Code:      t.Code,
		Name:      t.Name,
		StartDate: t.StartDate.Format("2006-01-02"),
		EndDate:   t.EndDate.Format("2006-01-02"),
		IsCurrent: t.IsCurrent,
	}
}

func (s *termService) toPhaseResponse(p *model.TermPhase, now time.Time) *dto.PhaseResponse {
	open := p.Name == s.gate.RequiredPhase()
	return &dto.PhaseResponse{
		ID:               p.PhaseID,
		TermID:           p.TermID,
		Name:             p.Name,
		StartAt:          p.StartAt.Format(time.RFC3339),
		EndAt:            p.EndAt.Format(time.RFC3339),
		CancelDeadline:   p.CancelDeadline.Format(time.RFC3339),
		RegistrationOpen: open,
		CancelOpen:       open && !now.After(p.CancelDeadline),
	}
}
