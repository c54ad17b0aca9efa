package seed

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
)

// ── 内存仓库 ──

type fakeStore struct {
	terms        map[string]model.Term
	phases       map[string]model.TermPhase
	subjects     map[string]model.Subject
	sections     map[string]model.ClassSection
	blocks       map[string][]model.ScheduleBlock
	students     map[string]model.Student
	clearCurrent int
	failSection  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		terms:    map[string]model.Term{},
		phases:   map[string]model.TermPhase{},
		subjects: map[string]model.Subject{},
		sections: map[string]model.ClassSection{},
		blocks:   map[string][]model.ScheduleBlock{},
		students: map[string]model.Student{},
	}
}

type fakeTermRepo struct {
	repository.TermRepository
	s *fakeStore
}

func (r fakeTermRepo) Upsert(_ context.Context, t *model.Term) error {
	r.s.terms[t.TermID] = *t
	return nil
}
func (r fakeTermRepo) ClearCurrent(_ context.Context) error {
	r.s.clearCurrent++
	for id, t := range r.s.terms {
		t.IsCurrent = false
		r.s.terms[id] = t
	}
	return nil
}

type fakePhaseRepo struct {
	repository.PhaseRepository
	s *fakeStore
}

func (r fakePhaseRepo) Upsert(_ context.Context, p *model.TermPhase) error {
	r.s.phases[p.PhaseID] = *p
	return nil
}

type fakeSubjectRepo struct {
	repository.SubjectRepository
	s *fakeStore
}

func (r fakeSubjectRepo) Upsert(_ context.Context, sub *model.Subject) error {
	r.s.subjects[sub.SubjectID] = *sub
	return nil
}

type fakeSectionRepo struct {
	repository.ClassSectionRepository
	s *fakeStore
}

func (r fakeSectionRepo) Upsert(_ context.Context, sec *model.ClassSection) error {
	if r.s.failSection != nil {
		return r.s.failSection
	}
	if existing, ok := r.s.sections[sec.ClassSectionID]; ok {
		sec.CurrentSeats = existing.CurrentSeats
	}
	r.s.sections[sec.ClassSectionID] = *sec
	return nil
}

type fakeBlockRepo struct {
	repository.ScheduleBlockRepository
	s *fakeStore
}

func (r fakeBlockRepo) ReplaceForSection(_ context.Context, sectionID string, blocks []model.ScheduleBlock) error {
	r.s.blocks[sectionID] = blocks
	return nil
}

type fakeStudentRepo struct {
	repository.StudentRepository
	s *fakeStore
}

func (r fakeStudentRepo) Upsert(_ context.Context, st *model.Student) error {
	r.s.students[st.StudentID] = *st
	return nil
}

type fakeTx struct {
	repo *repository.Repository
}

func (t *fakeTx) Transaction(_ context.Context, fn func(tx *repository.Repository) error) error {
	return fn(t.repo)
}

func newFakeRepo(s *fakeStore) *repository.Repository {
	repo := &repository.Repository{
		Term:          fakeTermRepo{s: s},
		Phase:         fakePhaseRepo{s: s},
		Subject:       fakeSubjectRepo{s: s},
		ClassSection:  fakeSectionRepo{s: s},
		ScheduleBlock: fakeBlockRepo{s: s},
		Student:       fakeStudentRepo{s: s},
	}
	repo.Tx = &fakeTx{repo: repo}
	return repo
}

type recordingInvalidator struct {
	ids []string
	err error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ids ...string) error {
	r.ids = append(r.ids, ids...)
	return r.err
}

func loadFixture(t *testing.T) *Fixture {
	t.Helper()
	file, err := os.Open("testdata/fixture.yaml")
	require.NoError(t, err)
	defer file.Close()

	f, err := Parse(file)
	require.NoError(t, err)
	return f
}

// ── Parse / Validate ──

func TestParse_Fixture(t *testing.T) {
	f := loadFixture(t)

	require.Len(t, f.Terms, 1)
	assert.True(t, f.Terms[0].Current)
	assert.Len(t, f.Terms[0].Phases, 2)
	assert.Equal(t, 2026, f.Terms[0].StartDate.Year())
	assert.Len(t, f.Subjects, 2)
	assert.Len(t, f.Sections, 3)
	assert.Len(t, f.Students, 2)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse(strings.NewReader("terms:\n  - id: a\n    code: x\n    colour: red\n"))
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Terms)
}

func TestValidate(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	valid := func() *Fixture {
		return &Fixture{
			Terms: []TermDef{{ID: "t1", Code: "2026-1", StartDate: start, EndDate: start.AddDate(0, 4, 0),
				Phases: []PhaseDef{{ID: "p1", Name: "registration", StartAt: start, EndAt: start.AddDate(0, 0, 14)}}}},
			Subjects: []SubjectDef{{ID: "s1", Code: "MATH101"}},
			Sections: []SectionDef{{ID: "c1", TermID: "t1", SubjectID: "s1", Code: "MATH101-01", MaxSeats: 10,
				Blocks: []BlockDef{{Day: 1, Start: 1, End: 2}}}},
			Students: []StudentDef{{ID: "u1", Code: "S1"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(f *Fixture)
		errMsg string
	}{
		{"合法", func(f *Fixture) {}, ""},
		{"未定义学期", func(f *Fixture) { f.Sections[0].TermID = "t9" }, "未定义的学期"},
		{"未定义课程", func(f *Fixture) { f.Sections[0].SubjectID = "s9" }, "未定义的课程"},
		{"星期越界", func(f *Fixture) { f.Sections[0].Blocks[0].Day = 8 }, "超出 1-7"},
		{"空节次区间", func(f *Fixture) { f.Sections[0].Blocks[0] = BlockDef{Day: 1, Start: 3, End: 3} }, "节次"},
		{"负容量", func(f *Fixture) { f.Sections[0].MaxSeats = -1 }, "容量"},
		{"多个当前学期", func(f *Fixture) {
			f.Terms[0].Current = true
			f.Terms = append(f.Terms, TermDef{ID: "t2", Code: "2026-2", StartDate: start, EndDate: start.AddDate(0, 1, 0), Current: true})
		}, "当前学期"},
		{"学期日期倒置", func(f *Fixture) { f.Terms[0].EndDate = start }, "学期"},
		{"退课截止超出窗口", func(f *Fixture) { f.Terms[0].Phases[0].CancelDeadline = start.AddDate(0, 1, 0) }, "退课截止"},
		{"学生状态无效", func(f *Fixture) { f.Students[0].Status = "expelled" }, "状态"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.mutate(f)
			err := f.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

// ── Load ──

func TestLoad(t *testing.T) {
	store := newFakeStore()
	inv := &recordingInvalidator{}

	sum, err := Load(context.Background(), newFakeRepo(store), inv, loadFixture(t), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, &Summary{Terms: 1, Phases: 2, Subjects: 2, Sections: 3, Blocks: 4, Students: 2}, sum)
	assert.Equal(t, 1, store.clearCurrent)
	assert.Len(t, inv.ids, 3)

	intent := store.phases["0b8f3c1e-2222-4a2b-9c3d-000000000001"]
	assert.True(t, intent.IsEnabled)
	assert.Equal(t, intent.EndAt, intent.CancelDeadline, "未配置退课截止时间时取阶段结束时间")

	assert.Equal(t, model.StudentStatusActive, store.students["0b8f3c1e-5555-4a2b-9c3d-000000000001"].Status)
	assert.Equal(t, model.StudentStatusSuspended, store.students["0b8f3c1e-5555-4a2b-9c3d-000000000002"].Status)
}

func TestLoad_Idempotent(t *testing.T) {
	store := newFakeStore()
	repo := newFakeRepo(store)
	f := loadFixture(t)

	_, err := Load(context.Background(), repo, nil, f, zap.NewNop())
	require.NoError(t, err)

	sec := store.sections["0b8f3c1e-4444-4a2b-9c3d-000000000003"]
	sec.CurrentSeats = 1
	store.sections[sec.ClassSectionID] = sec

	_, err = Load(context.Background(), repo, nil, f, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, store.sections, 3)
	assert.Equal(t, 1, store.sections[sec.ClassSectionID].CurrentSeats, "重复导入不覆盖已占用座位")
	assert.Len(t, store.blocks["0b8f3c1e-4444-4a2b-9c3d-000000000001"], 2)
}

func TestLoad_ErrorSkipsInvalidation(t *testing.T) {
	store := newFakeStore()
	store.failSection = errors.New("db down")
	inv := &recordingInvalidator{}

	_, err := Load(context.Background(), newFakeRepo(store), inv, loadFixture(t), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MATH101-01")
	assert.Empty(t, inv.ids)
}

func TestLoad_InvalidationFailureIsNotFatal(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis down")}

	_, err := Load(context.Background(), newFakeRepo(newFakeStore()), inv, loadFixture(t), zap.NewNop())
	assert.NoError(t, err)
}
