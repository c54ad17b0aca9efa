package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
	pkgerrors "course-registration/backend/pkg/errors"
)

// ── 内存存储 ──
//
// memStore 模拟数据库：事务持有全局锁并在失败时恢复快照，
// 事务外的读写各自短暂加锁。唯一索引与条件更新语义与 PostgreSQL 实现一致。

type memStore struct {
	mu sync.Mutex

	terms       map[string]*model.Term
	phases      map[string]*model.TermPhase
	subjects    map[string]*model.Subject
	sections    map[string]*model.ClassSection
	blocks      map[string][]model.ScheduleBlock
	students    map[string]*model.Student
	enrollments map[string]*model.Enrollment
	enrollOrder []string
	histories   map[string]*model.RegistrationHistory
	entries     []model.AuditEntry

	nextID int
	// failures 按 "Repo.Method" 注入错误
	failures map[string]error
	// calls 按 "Repo.Method" 统计调用次数
	calls map[string]int
	// seatWrites 按调用顺序记录座位更新涉及的教学班，回滚不清除
	seatWrites []string
}

func newMemStore() *memStore {
	return &memStore{
		terms:       make(map[string]*model.Term),
		phases:      make(map[string]*model.TermPhase),
		subjects:    make(map[string]*model.Subject),
		sections:    make(map[string]*model.ClassSection),
		blocks:      make(map[string][]model.ScheduleBlock),
		students:    make(map[string]*model.Student),
		enrollments: make(map[string]*model.Enrollment),
		histories:   make(map[string]*model.RegistrationHistory),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

// repository 构造绑定本存储的 Repository；inTx 为 true 时调用方已持有锁
func (s *memStore) repository(inTx bool) *repository.Repository {
	return &repository.Repository{
		Term:          &memTermRepo{s: s, inTx: inTx},
		Phase:         &memPhaseRepo{s: s, inTx: inTx},
		Subject:       &memSubjectRepo{s: s, inTx: inTx},
		ClassSection:  &memSectionRepo{s: s, inTx: inTx},
		ScheduleBlock: &memBlockRepo{s: s, inTx: inTx},
		Student:       &memStudentRepo{s: s, inTx: inTx},
		Enrollment:    &memEnrollmentRepo{s: s, inTx: inTx},
		Audit:         &memAuditRepo{s: s, inTx: inTx},
		Tx:            &memTransactor{s: s, inTx: inTx},
	}
}

func (s *memStore) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// hit 记录调用并返回注入的错误；调用方已持有锁
func (s *memStore) hit(op string) error {
	s.calls[op]++
	return s.failures[op]
}

func (s *memStore) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%04d", prefix, s.nextID)
}

// failOn 注入错误（测试 goroutine 在事务外调用）
func (s *memStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *memStore) callCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// ── 快照（事务回滚） ──

type memSnapshot struct {
	sections    map[string]model.ClassSection
	enrollments map[string]model.Enrollment
	enrollOrder []string
	histories   map[string]model.RegistrationHistory
	entries     []model.AuditEntry
}

func (s *memStore) snapshot() *memSnapshot {
	snap := &memSnapshot{
		sections:    make(map[string]model.ClassSection, len(s.sections)),
		enrollments: make(map[string]model.Enrollment, len(s.enrollments)),
		enrollOrder: append([]string(nil), s.enrollOrder...),
		histories:   make(map[string]model.RegistrationHistory, len(s.histories)),
		entries:     append([]model.AuditEntry(nil), s.entries...),
	}
	for k, v := range s.sections {
		snap.sections[k] = *v
	}
	for k, v := range s.enrollments {
		snap.enrollments[k] = *v
	}
	for k, v := range s.histories {
		snap.histories[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap *memSnapshot) {
	s.sections = make(map[string]*model.ClassSection, len(snap.sections))
	for k, v := range snap.sections {
		v := v
		s.sections[k] = &v
	}
	s.enrollments = make(map[string]*model.Enrollment, len(snap.enrollments))
	for k, v := range snap.enrollments {
		v := v
		s.enrollments[k] = &v
	}
	s.enrollOrder = snap.enrollOrder
	s.histories = make(map[string]*model.RegistrationHistory, len(snap.histories))
	for k, v := range snap.histories {
		v := v
		s.histories[k] = &v
	}
	s.entries = snap.entries
}

// ── 测试辅助：读取状态 ──

// takeSeatWrites 返回并清空已记录的座位更新顺序
func (s *memStore) takeSeatWrites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.seatWrites
	s.seatWrites = nil
	return out
}

func (s *memStore) section(id string) model.ClassSection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sections[id]
}

func (s *memStore) activeCount(sectionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.enrollments {
		if e.ClassSectionID == sectionID && e.IsActive() {
			n++
		}
	}
	return n
}

func (s *memStore) auditEntries() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.entries...)
}

// ── Transactor ──

type memTransactor struct {
	s    *memStore
	inTx bool
}

func (t *memTransactor) Transaction(_ context.Context, fn func(tx *repository.Repository) error) error {
	if !t.inTx {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
	}

	snap := t.s.snapshot()
	if err := fn(t.s.repository(true)); err != nil {
		t.s.restore(snap)
		return err
	}
	if err := t.s.hit("Tx.Commit"); err != nil && !t.inTx {
		t.s.restore(snap)
		return err
	}
	return nil
}

// ── Term ──

type memTermRepo struct {
	s    *memStore
	inTx bool
}

func (r *memTermRepo) GetByID(_ context.Context, id string) (*model.Term, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Term.GetByID"); err != nil {
		return nil, err
	}
	if t, ok := r.s.terms[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memTermRepo) GetCurrent(_ context.Context) (*model.Term, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Term.GetCurrent"); err != nil {
		return nil, err
	}
	for _, t := range r.s.terms {
		if t.IsCurrent {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memTermRepo) Upsert(_ context.Context, term *model.Term) error {
	defer r.s.lock(r.inTx)()
	cp := *term
	r.s.terms[term.TermID] = &cp
	return nil
}

func (r *memTermRepo) ClearCurrent(_ context.Context) error {
	defer r.s.lock(r.inTx)()
	for _, t := range r.s.terms {
		t.IsCurrent = false
	}
	return nil
}

// ── Phase ──

type memPhaseRepo struct {
	s    *memStore
	inTx bool
}

func (r *memPhaseRepo) list(termID string) []model.TermPhase {
	var result []model.TermPhase
	for _, p := range r.s.phases {
		if p.TermID == termID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartAt.Equal(result[j].StartAt) {
			return result[i].StartAt.Before(result[j].StartAt)
		}
		return result[i].PhaseID < result[j].PhaseID
	})
	return result
}

func (r *memPhaseRepo) ListByTerm(_ context.Context, termID string) ([]model.TermPhase, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Phase.ListByTerm"); err != nil {
		return nil, err
	}
	return r.list(termID), nil
}

func (r *memPhaseRepo) ListByTermForShare(_ context.Context, termID string) ([]model.TermPhase, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Phase.ListByTermForShare"); err != nil {
		return nil, err
	}
	return r.list(termID), nil
}

func (r *memPhaseRepo) Upsert(_ context.Context, phase *model.TermPhase) error {
	defer r.s.lock(r.inTx)()
	cp := *phase
	r.s.phases[phase.PhaseID] = &cp
	return nil
}

// ── Subject ──

type memSubjectRepo struct {
	s    *memStore
	inTx bool
}

func (r *memSubjectRepo) GetByIDs(_ context.Context, ids []string) ([]model.Subject, error) {
	defer r.s.lock(r.inTx)()
	var result []model.Subject
	for _, id := range ids {
		if sub, ok := r.s.subjects[id]; ok {
			result = append(result, *sub)
		}
	}
	return result, nil
}

func (r *memSubjectRepo) Upsert(_ context.Context, subject *model.Subject) error {
	defer r.s.lock(r.inTx)()
	cp := *subject
	r.s.subjects[subject.SubjectID] = &cp
	return nil
}

// ── ClassSection（座位账本） ──

type memSectionRepo struct {
	s    *memStore
	inTx bool
}

func (r *memSectionRepo) GetByID(_ context.Context, id string) (*model.ClassSection, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("ClassSection.GetByID"); err != nil {
		return nil, err
	}
	if sec, ok := r.s.sections[id]; ok {
		cp := *sec
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memSectionRepo) GetByIDs(_ context.Context, ids []string) ([]model.ClassSection, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("ClassSection.GetByIDs"); err != nil {
		return nil, err
	}
	var result []model.ClassSection
	for _, id := range ids {
		sec, ok := r.s.sections[id]
		if !ok {
			continue
		}
		cp := *sec
		if sub, ok := r.s.subjects[sec.SubjectID]; ok {
			subCopy := *sub
			cp.Subject = &subCopy
		}
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (r *memSectionRepo) ListIDsByTerm(_ context.Context, termID string) ([]string, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("ClassSection.ListIDsByTerm"); err != nil {
		return nil, err
	}
	var ids []string
	for id, sec := range r.s.sections {
		if sec.TermID == termID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memSectionRepo) ReserveSeat(_ context.Context, id string) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("ClassSection.ReserveSeat"); err != nil {
		return err
	}
	r.s.seatWrites = append(r.s.seatWrites, id)
	sec, ok := r.s.sections[id]
	if !ok || sec.CurrentSeats >= sec.MaxSeats {
		return pkgerrors.ErrSeatUnavailable
	}
	sec.CurrentSeats++
	sec.Version++
	return nil
}

func (r *memSectionRepo) ReleaseSeat(_ context.Context, id string) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("ClassSection.ReleaseSeat"); err != nil {
		return err
	}
	r.s.seatWrites = append(r.s.seatWrites, id)
	sec, ok := r.s.sections[id]
	if !ok || sec.CurrentSeats <= 0 {
		return pkgerrors.ErrSeatUnderflow
	}
	sec.CurrentSeats--
	sec.Version++
	return nil
}

func (r *memSectionRepo) Upsert(_ context.Context, section *model.ClassSection) error {
	defer r.s.lock(r.inTx)()
	cp := *section
	cp.Subject = nil
	cp.Blocks = nil
	if existing, ok := r.s.sections[section.ClassSectionID]; ok {
		cp.CurrentSeats = existing.CurrentSeats
	}
	r.s.sections[section.ClassSectionID] = &cp
	return nil
}

// ── ScheduleBlock ──

type memBlockRepo struct {
	s    *memStore
	inTx bool
}

func (r *memBlockRepo) ListBySections(_ context.Context, sectionIDs []string) ([]model.ScheduleBlock, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("ScheduleBlock.ListBySections"); err != nil {
		return nil, err
	}
	ids := append([]string(nil), sectionIDs...)
	sort.Strings(ids)
	var result []model.ScheduleBlock
	for _, id := range ids {
		result = append(result, r.s.blocks[id]...)
	}
	return result, nil
}

func (r *memBlockRepo) ReplaceForSection(_ context.Context, sectionID string, blocks []model.ScheduleBlock) error {
	defer r.s.lock(r.inTx)()
	cp := make([]model.ScheduleBlock, 0, len(blocks))
	for _, b := range blocks {
		b.ClassSectionID = sectionID
		cp = append(cp, b)
	}
	r.s.blocks[sectionID] = cp
	return nil
}

// ── Student ──

type memStudentRepo struct {
	s    *memStore
	inTx bool
}

func (r *memStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Student.GetByID"); err != nil {
		return nil, err
	}
	if st, ok := r.s.students[id]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memStudentRepo) Upsert(_ context.Context, student *model.Student) error {
	defer r.s.lock(r.inTx)()
	cp := *student
	r.s.students[student.StudentID] = &cp
	return nil
}

// ── Enrollment ──

type memEnrollmentRepo struct {
	s    *memStore
	inTx bool
}

func (r *memEnrollmentRepo) Create(_ context.Context, enrollment *model.Enrollment) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Enrollment.Create"); err != nil {
		return err
	}
	if enrollment.IsActive() {
		for _, e := range r.s.enrollments {
			if !e.IsActive() || e.StudentID != enrollment.StudentID {
				continue
			}
			if e.ClassSectionID == enrollment.ClassSectionID {
				return &pgconn.PgError{Code: "23505", ConstraintName: constraintActiveStudentSection}
			}
			if e.TermID == enrollment.TermID && e.SubjectID == enrollment.SubjectID {
				return &pgconn.PgError{Code: "23505", ConstraintName: constraintActiveStudentSubject}
			}
		}
	}
	if enrollment.EnrollmentID == "" {
		enrollment.EnrollmentID = r.s.newID("enr")
	}
	cp := *enrollment
	cp.ClassSection = nil
	r.s.enrollments[cp.EnrollmentID] = &cp
	r.s.enrollOrder = append(r.s.enrollOrder, cp.EnrollmentID)
	return nil
}

func (r *memEnrollmentRepo) FindLatest(_ context.Context, studentID, termID, sectionID string) (*model.Enrollment, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Enrollment.FindLatest"); err != nil {
		return nil, err
	}
	var latest *model.Enrollment
	for i := len(r.s.enrollOrder) - 1; i >= 0; i-- {
		e := r.s.enrollments[r.s.enrollOrder[i]]
		if e.StudentID != studentID || e.TermID != termID || e.ClassSectionID != sectionID {
			continue
		}
		if e.IsActive() {
			latest = e
			break
		}
		if latest == nil {
			latest = e
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *memEnrollmentRepo) filter(keep func(*model.Enrollment) bool) []model.Enrollment {
	result := []model.Enrollment{}
	for _, id := range r.s.enrollOrder {
		e := r.s.enrollments[id]
		if keep(e) {
			result = append(result, *e)
		}
	}
	return result
}

func (r *memEnrollmentRepo) ListActive(_ context.Context, studentID, termID string) ([]model.Enrollment, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Enrollment.ListActive"); err != nil {
		return nil, err
	}
	return r.filter(func(e *model.Enrollment) bool {
		return e.StudentID == studentID && e.TermID == termID && e.IsActive()
	}), nil
}

func (r *memEnrollmentRepo) ListByStudentTerm(_ context.Context, studentID, termID string) ([]model.Enrollment, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Enrollment.ListByStudentTerm"); err != nil {
		return nil, err
	}
	return r.filter(func(e *model.Enrollment) bool {
		return e.StudentID == studentID && e.TermID == termID
	}), nil
}

func (r *memEnrollmentRepo) Cancel(_ context.Context, enrollmentID string, at time.Time) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Enrollment.Cancel"); err != nil {
		return err
	}
	e, ok := r.s.enrollments[enrollmentID]
	if !ok || !e.IsActive() {
		return gorm.ErrRecordNotFound
	}
	e.Status = model.EnrollmentStatusCancelled
	e.CancelledAt = &at
	return nil
}

func (r *memEnrollmentRepo) CountActiveBySection(_ context.Context, sectionID string) (int64, error) {
	defer r.s.lock(r.inTx)()
	var n int64
	for _, e := range r.s.enrollments {
		if e.ClassSectionID == sectionID && e.IsActive() {
			n++
		}
	}
	return n, nil
}

// ── Audit ──

type memAuditRepo struct {
	s    *memStore
	inTx bool
}

func historyKey(studentID, termID string) string {
	return studentID + "|" + termID
}

func (r *memAuditRepo) LockHistory(_ context.Context, studentID, termID string) (*model.RegistrationHistory, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Audit.LockHistory"); err != nil {
		return nil, err
	}
	key := historyKey(studentID, termID)
	h, ok := r.s.histories[key]
	if !ok {
		h = &model.RegistrationHistory{
			HistoryID: r.s.newID("hist"),
			StudentID: studentID,
			TermID:    termID,
		}
		r.s.histories[key] = h
	}
	cp := *h
	return &cp, nil
}

func (r *memAuditRepo) Append(_ context.Context, history *model.RegistrationHistory, entry *model.AuditEntry) error {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Audit.Append"); err != nil {
		return err
	}
	entry.AuditEntryID = r.s.newID("audit")
	entry.HistoryID = history.HistoryID
	entry.StudentID = history.StudentID
	entry.TermID = history.TermID
	entry.Seq = history.EntryCount + 1
	entry.CreatedAt = time.Now().UTC()

	r.s.entries = append(r.s.entries, *entry)
	r.s.histories[historyKey(history.StudentID, history.TermID)].EntryCount = entry.Seq
	history.EntryCount = entry.Seq
	return nil
}

func (r *memAuditRepo) ListEntries(_ context.Context, studentID, termID string) ([]model.AuditEntry, error) {
	defer r.s.lock(r.inTx)()
	if err := r.s.hit("Audit.ListEntries"); err != nil {
		return nil, err
	}
	var result []model.AuditEntry
	for _, e := range r.s.entries {
		if e.StudentID == studentID && e.TermID == termID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}
