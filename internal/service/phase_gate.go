package service

import (
	"context"
	"time"

	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
)

// PhaseGate 阶段闸门：根据学期阶段窗口判定选课操作是否允许
// 只读，不产生任何副作用
type PhaseGate struct {
	required string
}

// NewPhaseGate 创建阶段闸门，required 为选课/退课/换班要求的阶段名称
func NewPhaseGate(required string) *PhaseGate {
	if required == "" {
		required = model.PhaseRegistration
	}
	return &PhaseGate{required: required}
}

// RequiredPhase 选课操作要求的阶段名称
func (g *PhaseGate) RequiredPhase() string { return g.required }

// ResolveActive 从阶段列表中解析 now 时刻的激活阶段
// 多个阶段同时激活时取 StartAt 最晚者（相同时按 PhaseID 较大者），无激活阶段返回 nil
func ResolveActive(phases []model.TermPhase, now time.Time) *model.TermPhase {
	var active *model.TermPhase
	for i := range phases {
		p := &phases[i]
		if !p.ActiveAt(now) {
			continue
		}
		if active == nil ||
			p.StartAt.After(active.StartAt) ||
			(p.StartAt.Equal(active.StartAt) && p.PhaseID > active.PhaseID) {
			active = p
		}
	}
	return active
}

// ActivePhase 无锁读取学期的激活阶段（查询接口使用）
func (g *PhaseGate) ActivePhase(ctx context.Context, repo *repository.Repository, termID string, now time.Time) (*model.TermPhase, error) {
	phases, err := repo.Phase.ListByTerm(ctx, termID)
	if err != nil {
		return nil, err
	}
	return ResolveActive(phases, now), nil
}

// Require 在事务内以 FOR SHARE 读取阶段，要求激活阶段为选课阶段
// 返回的阶段即本次事务观察到的阶段状态，后续检查均使用它
func (g *PhaseGate) Require(ctx context.Context, tx *repository.Repository, termID string, now time.Time) (*model.TermPhase, error) {
	phases, err := tx.Phase.ListByTermForShare(ctx, termID)
	if err != nil {
		return nil, internalError(err)
	}

	active := ResolveActive(phases, now)
	if active == nil {
		return nil, rejection(KindPhaseNotOpen, "", "学期 %s 当前没有开放的阶段", termID)
	}
	if active.Name != g.required {
		return nil, rejection(KindPhaseMismatch, "", "当前阶段为 %s，需要 %s", active.Name, g.required)
	}
	return active, nil
}

// RequireCancelWindow 退课/换班额外检查退课截止时间（闭区间）
func (g *PhaseGate) RequireCancelWindow(phase *model.TermPhase, now time.Time) error {
	if now.After(phase.CancelDeadline) {
		return rejection(KindCancelDeadlinePassed, "", "退课截止时间为 %s", phase.CancelDeadline.Format(time.RFC3339))
	}
	return nil
}
