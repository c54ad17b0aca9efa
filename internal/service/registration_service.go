package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
	"course-registration/backend/pkg/database"
)

// 选课记录唯一索引名（与迁移脚本一致）
const (
	constraintActiveStudentSection = "uq_enrollments_active_student_section"
	constraintActiveStudentSubject = "uq_enrollments_active_student_subject"
)

// RegistrationService 选课事务协调器
//
// 每次调用是一次原子尝试：
//   - 学生资格在事务外校验（只读协作方）
//   - 其余步骤在同一事务内：阶段闸门（FOR SHARE）→ (学生, 学期) 历史容器加锁 →
//     业务校验 → 座位账本 → 选课记录 → 审计追加
//   - 任一步失败整体回滚；业务拒绝返回 *RegistrationError，基础设施错误归为 KindInternal
type RegistrationService interface {
	Register(ctx context.Context, studentID, sectionID, termID string) (*model.Enrollment, error)
	Cancel(ctx context.Context, studentID, sectionID, termID string) error
	Transfer(ctx context.Context, studentID, oldSectionID, newSectionID, termID string) (*model.Enrollment, error)
	// ListActiveEnrollments 返回学生本学期的有效选课，ClassSection（含 Subject）已填充
	ListActiveEnrollments(ctx context.Context, studentID, termID string) ([]model.Enrollment, error)
	History(ctx context.Context, studentID, termID string) ([]model.AuditEntry, error)
}

type registrationService struct {
	repo      *repository.Repository
	gate      *PhaseGate
	ledger    *CapacityLedger
	index     ScheduleIndex
	audit     *AuditLog
	directory StudentDirectory
	clock     Clock
	tracer    trace.Tracer
	logger    *zap.Logger
}

// RegistrationDeps 协调器依赖
type RegistrationDeps struct {
	Repo      *repository.Repository
	Gate      *PhaseGate
	Ledger    *CapacityLedger
	Index     ScheduleIndex
	Audit     *AuditLog
	Directory StudentDirectory
	Clock     Clock
	Tracer    trace.Tracer
	Logger    *zap.Logger
}

// NewRegistrationService 创建选课事务协调器
func NewRegistrationService(deps RegistrationDeps) RegistrationService {
	return &registrationService{
		repo:      deps.Repo,
		gate:      deps.Gate,
		ledger:    deps.Ledger,
		index:     deps.Index,
		audit:     deps.Audit,
		directory: deps.Directory,
		clock:     deps.Clock,
		tracer:    deps.Tracer,
		logger:    deps.Logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Register 选课
// ═══════════════════════════════════════════════════════════

func (s *registrationService) Register(ctx context.Context, studentID, sectionID, termID string) (*model.Enrollment, error) {
	ctx, span := s.startSpan(ctx, "registration.register", studentID, termID,
		attribute.String("class_section_id", sectionID))
	defer span.End()

	enrollment, err := s.register(ctx, studentID, sectionID, termID)
	err = s.finish(span, "选课", err,
		zap.String("student_id", studentID),
		zap.String("class_section_id", sectionID),
		zap.String("term_id", termID),
	)
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *registrationService) register(ctx context.Context, studentID, sectionID, termID string) (*model.Enrollment, error) {
	if err := s.checkStudent(ctx, studentID, true); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var enrollment *model.Enrollment
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := s.gate.Require(ctx, tx, termID, now); err != nil {
			return err
		}

		history, err := tx.Audit.LockHistory(ctx, studentID, termID)
		if err != nil {
			return internalError(err)
		}

		section, err := s.loadSection(ctx, tx, sectionID, termID)
		if err != nil {
			return err
		}

		active, err := tx.Enrollment.ListActive(ctx, studentID, termID)
		if err != nil {
			return internalError(err)
		}
		for _, e := range active {
			if e.ClassSectionID != section.ClassSectionID && e.SubjectID == section.SubjectID {
				return rejection(KindDuplicateSubject, e.ClassSectionID, "已选同一课程的教学班 %s", e.ClassSectionID)
			}
		}
		for _, e := range active {
			if e.ClassSectionID == section.ClassSectionID {
				return rejection(KindAlreadyRegistered, section.ClassSectionID, "已选教学班 %s", section.Code)
			}
		}

		if err := s.checkConflict(ctx, tx, section, active, ""); err != nil {
			return err
		}

		if err := s.ledger.Reserve(ctx, tx, section); err != nil {
			return err
		}

		enrollment = &model.Enrollment{
			StudentID:      studentID,
			ClassSectionID: section.ClassSectionID,
			TermID:         termID,
			SubjectID:      section.SubjectID,
			Status:         model.EnrollmentStatusActive,
			RegisteredAt:   now,
		}
		if err := s.createEnrollment(ctx, tx, enrollment, section); err != nil {
			return err
		}

		_, err = s.audit.Append(ctx, tx, history, enrollment, model.AuditActionRegister, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ═══════════════════════════════════════════════════════════
// Cancel 退课（软删除：状态改为 CANCELLED）
// ═══════════════════════════════════════════════════════════

func (s *registrationService) Cancel(ctx context.Context, studentID, sectionID, termID string) error {
	ctx, span := s.startSpan(ctx, "registration.cancel", studentID, termID,
		attribute.String("class_section_id", sectionID))
	defer span.End()

	return s.finish(span, "退课", s.cancel(ctx, studentID, sectionID, termID),
		zap.String("student_id", studentID),
		zap.String("class_section_id", sectionID),
		zap.String("term_id", termID),
	)
}

func (s *registrationService) cancel(ctx context.Context, studentID, sectionID, termID string) error {
	if err := s.checkStudent(ctx, studentID, false); err != nil {
		return err
	}
	now := s.clock.Now()

	return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		phase, err := s.gate.Require(ctx, tx, termID, now)
		if err != nil {
			return err
		}
		if err := s.gate.RequireCancelWindow(phase, now); err != nil {
			return err
		}

		history, err := tx.Audit.LockHistory(ctx, studentID, termID)
		if err != nil {
			return internalError(err)
		}

		enrollment, err := s.loadActiveEnrollment(ctx, tx, studentID, termID, sectionID)
		if err != nil {
			return err
		}

		// 先写审计，再改选课记录
		if _, err := s.audit.Append(ctx, tx, history, enrollment, model.AuditActionCancel, nil); err != nil {
			return err
		}
		if err := tx.Enrollment.Cancel(ctx, enrollment.EnrollmentID, now); err != nil {
			return internalError(err)
		}
		return s.ledger.Release(ctx, tx, enrollment.ClassSectionID)
	})
}

// ═══════════════════════════════════════════════════════════
// Transfer 同课程换班
// ═══════════════════════════════════════════════════════════
//
// 写入顺序：移动座位 → 取消旧记录 → 创建新记录 → 一条 TRANSFER 审计
// 新教学班已满或冲突时整体回滚，学生保留原教学班及其座位

func (s *registrationService) Transfer(ctx context.Context, studentID, oldSectionID, newSectionID, termID string) (*model.Enrollment, error) {
	ctx, span := s.startSpan(ctx, "registration.transfer", studentID, termID,
		attribute.String("from_class_section_id", oldSectionID),
		attribute.String("to_class_section_id", newSectionID))
	defer span.End()

	enrollment, err := s.transfer(ctx, studentID, oldSectionID, newSectionID, termID)
	err = s.finish(span, "换班", err,
		zap.String("student_id", studentID),
		zap.String("from_class_section_id", oldSectionID),
		zap.String("to_class_section_id", newSectionID),
		zap.String("term_id", termID),
	)
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *registrationService) transfer(ctx context.Context, studentID, oldSectionID, newSectionID, termID string) (*model.Enrollment, error) {
	if err := s.checkStudent(ctx, studentID, true); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var created *model.Enrollment
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		phase, err := s.gate.Require(ctx, tx, termID, now)
		if err != nil {
			return err
		}
		if err := s.gate.RequireCancelWindow(phase, now); err != nil {
			return err
		}

		history, err := tx.Audit.LockHistory(ctx, studentID, termID)
		if err != nil {
			return internalError(err)
		}

		old, err := s.loadActiveEnrollment(ctx, tx, studentID, termID, oldSectionID)
		if err != nil {
			return err
		}
		if oldSectionID == newSectionID {
			return rejection(KindAlreadyRegistered, newSectionID, "已在目标教学班中")
		}

		target, err := s.loadSection(ctx, tx, newSectionID, termID)
		if err != nil {
			return err
		}
		if target.SubjectID != old.SubjectID {
			return rejection(KindSubjectMismatch, newSectionID, "教学班 %s 与原教学班不属于同一课程", target.Code)
		}

		active, err := tx.Enrollment.ListActive(ctx, studentID, termID)
		if err != nil {
			return internalError(err)
		}
		if err := s.checkConflict(ctx, tx, target, active, oldSectionID); err != nil {
			return err
		}

		if err := s.moveSeat(ctx, tx, old.ClassSectionID, target); err != nil {
			return err
		}
		if err := tx.Enrollment.Cancel(ctx, old.EnrollmentID, now); err != nil {
			return internalError(err)
		}

		created = &model.Enrollment{
			StudentID:      studentID,
			ClassSectionID: target.ClassSectionID,
			TermID:         termID,
			SubjectID:      target.SubjectID,
			Status:         model.EnrollmentStatusActive,
			RegisteredAt:   now,
		}
		if err := s.createEnrollment(ctx, tx, created, target); err != nil {
			return err
		}

		_, err = s.audit.Append(ctx, tx, history, created, model.AuditActionTransfer, model.TransferDetail{
			FromClassSectionID: old.ClassSectionID,
			FromEnrollmentID:   old.EnrollmentID,
			ToClassSectionID:   created.ClassSectionID,
			ToEnrollmentID:     created.EnrollmentID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// moveSeat 释放原教学班座位并占用目标教学班座位
// 两行按 class_section_id 升序更新，相向换班的并发事务以相同顺序加行锁，不会互相死锁；
// 目标已满时返回 SectionFull，先完成的释放随事务回滚
func (s *registrationService) moveSeat(ctx context.Context, tx *repository.Repository, fromSectionID string, target *model.ClassSection) error {
	if fromSectionID < target.ClassSectionID {
		if err := s.ledger.Release(ctx, tx, fromSectionID); err != nil {
			return err
		}
		return s.ledger.Reserve(ctx, tx, target)
	}
	if err := s.ledger.Reserve(ctx, tx, target); err != nil {
		return err
	}
	return s.ledger.Release(ctx, tx, fromSectionID)
}

// ═══════════════════════════════════════════════════════════
// 查询
// ═══════════════════════════════════════════════════════════

func (s *registrationService) ListActiveEnrollments(ctx context.Context, studentID, termID string) ([]model.Enrollment, error) {
	enrollments, err := s.repo.Enrollment.ListActive(ctx, studentID, termID)
	if err != nil {
		s.logger.Error("查询有效选课失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, internalError(err)
	}
	if len(enrollments) == 0 {
		return []model.Enrollment{}, nil
	}

	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.ClassSectionID)
	}
	sections, err := s.repo.ClassSection.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询教学班失败", zap.Error(err))
		return nil, internalError(err)
	}
	byID := make(map[string]*model.ClassSection, len(sections))
	for i := range sections {
		byID[sections[i].ClassSectionID] = &sections[i]
	}
	for i := range enrollments {
		enrollments[i].ClassSection = byID[enrollments[i].ClassSectionID]
	}
	return enrollments, nil
}

func (s *registrationService) History(ctx context.Context, studentID, termID string) ([]model.AuditEntry, error) {
	entries, err := s.audit.History(ctx, studentID, termID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	return entries, nil
}

// ── 内部步骤 ──

// checkStudent 校验学生存在；requireEligible 时还要求具备选课资格
func (s *registrationService) checkStudent(ctx context.Context, studentID string, requireEligible bool) error {
	exists, err := s.directory.Exists(ctx, studentID)
	if err != nil {
		return internalError(err)
	}
	if !exists {
		return rejection(KindStudentNotFound, "", "学生 %s 不存在", studentID)
	}
	if !requireEligible {
		return nil
	}
	eligible, err := s.directory.Eligible(ctx, studentID)
	if err != nil {
		return internalError(err)
	}
	if !eligible {
		return rejection(KindStudentIneligible, "", "学生 %s 当前状态不允许选课", studentID)
	}
	return nil
}

// loadSection 读取教学班；不属于该学期的教学班视为不存在
func (s *registrationService) loadSection(ctx context.Context, tx *repository.Repository, sectionID, termID string) (*model.ClassSection, error) {
	section, err := tx.ClassSection.GetByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rejection(KindSectionNotFound, sectionID, "教学班 %s 不存在", sectionID)
		}
		return nil, internalError(err)
	}
	if section.TermID != termID {
		return nil, rejection(KindSectionNotFound, sectionID, "教学班 %s 不属于学期 %s", sectionID, termID)
	}
	return section, nil
}

func (s *registrationService) loadActiveEnrollment(ctx context.Context, tx *repository.Repository, studentID, termID, sectionID string) (*model.Enrollment, error) {
	enrollment, err := tx.Enrollment.FindLatest(ctx, studentID, termID, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rejection(KindRegistrationNotFound, sectionID, "未选教学班 %s", sectionID)
		}
		return nil, internalError(err)
	}
	if !enrollment.IsActive() {
		return nil, rejection(KindAlreadyCancelled, sectionID, "教学班 %s 的选课已取消", sectionID)
	}
	return enrollment, nil
}

// checkConflict 检查候选教学班与已选教学班的时间冲突；excludeSectionID 为换班时的原教学班
func (s *registrationService) checkConflict(
	ctx context.Context,
	tx *repository.Repository,
	candidate *model.ClassSection,
	active []model.Enrollment,
	excludeSectionID string,
) error {
	existingIDs := make([]string, 0, len(active))
	for _, e := range active {
		if e.ClassSectionID == excludeSectionID || e.ClassSectionID == candidate.ClassSectionID {
			continue
		}
		existingIDs = append(existingIDs, e.ClassSectionID)
	}
	if len(existingIDs) == 0 {
		return nil
	}

	ids := append([]string{candidate.ClassSectionID}, existingIDs...)
	blocks, err := s.index.BlocksFor(ctx, tx, ids)
	if err != nil {
		return internalError(err)
	}

	existing := make(map[string][]model.ScheduleBlock, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = blocks[id]
	}

	conflictID, found := FindConflict(blocks[candidate.ClassSectionID], existing)
	if !found {
		return nil
	}

	code := conflictID
	if conflicting, err := tx.ClassSection.GetByID(ctx, conflictID); err == nil {
		code = conflicting.Code
	}
	return rejection(KindTimeConflict, conflictID, "与已选教学班 %s 上课时间冲突", code)
}

// createEnrollment 写入选课记录；唯一索引冲突按约束名映射为业务错误
func (s *registrationService) createEnrollment(ctx context.Context, tx *repository.Repository, enrollment *model.Enrollment, section *model.ClassSection) error {
	err := tx.Enrollment.Create(ctx, enrollment)
	if err == nil {
		return nil
	}
	if constraint, ok := database.IsUniqueViolation(err); ok {
		switch constraint {
		case constraintActiveStudentSection:
			return rejection(KindAlreadyRegistered, section.ClassSectionID, "已选教学班 %s", section.Code)
		case constraintActiveStudentSubject:
			return rejection(KindDuplicateSubject, section.ClassSectionID, "已选同一课程的其他教学班")
		}
	}
	return internalError(err)
}

// ── 追踪与日志 ──

func (s *registrationService) startSpan(ctx context.Context, name, studentID, termID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("student_id", studentID),
		attribute.String("term_id", termID),
	)
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish 归一化错误、记录 span 状态与日志
func (s *registrationService) finish(span trace.Span, op string, err error, fields ...zap.Field) error {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		s.logger.Info(op+"成功", fields...)
		return nil
	}

	regErr := AsRegistrationError(err)
	span.SetAttributes(attribute.String("registration.outcome", string(regErr.Kind)))

	if regErr.Kind == KindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, regErr.Kind.Message())
		s.logger.Error(op+"失败", append(fields, zap.Error(err))...)
		return regErr
	}

	s.logger.Info(op+"被拒绝", append(fields,
		zap.String("kind", string(regErr.Kind)),
		zap.String("detail", regErr.Detail),
	)...)
	return regErr
}
