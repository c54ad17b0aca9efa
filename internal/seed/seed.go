package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
)

// Fixture 种子数据文件根结构
type Fixture struct {
	Terms    []TermDef    `yaml:"terms"`
	Subjects []SubjectDef `yaml:"subjects"`
	Sections []SectionDef `yaml:"sections"`
	Students []StudentDef `yaml:"students"`
}

// TermDef 学期及其阶段
type TermDef struct {
	ID        string     `yaml:"id"`
	Code      string     `yaml:"code"`
	Name      string     `yaml:"name"`
	StartDate time.Time  `yaml:"start_date"`
	EndDate   time.Time  `yaml:"end_date"`
	Current   bool       `yaml:"current"`
	Phases    []PhaseDef `yaml:"phases"`
}

// PhaseDef 学期阶段；enabled 缺省为 true
type PhaseDef struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	StartAt        time.Time `yaml:"start_at"`
	EndAt          time.Time `yaml:"end_at"`
	CancelDeadline time.Time `yaml:"cancel_deadline"`
	Enabled        *bool     `yaml:"enabled"`
}

// SubjectDef 课程
type SubjectDef struct {
	ID      string `yaml:"id"`
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	Credits int    `yaml:"credits"`
}

// SectionDef 教学班及其上课时间块
type SectionDef struct {
	ID        string     `yaml:"id"`
	TermID    string     `yaml:"term_id"`
	SubjectID string     `yaml:"subject_id"`
	Code      string     `yaml:"code"`
	MaxSeats  int        `yaml:"max_seats"`
	Blocks    []BlockDef `yaml:"blocks"`
}

// BlockDef 上课时间块，节次区间为左闭右开 [start, end)
type BlockDef struct {
	Day   int `yaml:"day"`
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// StudentDef 学生；status 缺省为 active
type StudentDef struct {
	ID     string `yaml:"id"`
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	Status string `yaml:"status"`
}

// Invalidator 种子导入后使课表缓存失效
type Invalidator interface {
	Invalidate(ctx context.Context, sectionIDs ...string) error
}

// Summary 导入结果统计
type Summary struct {
	Terms    int
	Phases   int
	Subjects int
	Sections int
	Blocks   int
	Students int
}

// Parse 解析并校验种子文件
func Parse(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("解析种子文件失败: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate 校验种子数据的引用关系与取值范围
func (f *Fixture) Validate() error {
	terms := make(map[string]bool, len(f.Terms))
	current := 0
	for _, t := range f.Terms {
		if t.ID == "" || t.Code == "" {
			return fmt.Errorf("学期缺少 id 或 code")
		}
		if !t.EndDate.After(t.StartDate) {
			return fmt.Errorf("学期 %s 结束日期必须晚于开始日期", t.Code)
		}
		if t.Current {
			current++
		}
		for _, p := range t.Phases {
			if p.ID == "" || p.Name == "" {
				return fmt.Errorf("学期 %s 的阶段缺少 id 或 name", t.Code)
			}
			if !p.EndAt.After(p.StartAt) {
				return fmt.Errorf("阶段 %s 结束时间必须晚于开始时间", p.Name)
			}
			if !p.CancelDeadline.IsZero() && (p.CancelDeadline.Before(p.StartAt) || p.CancelDeadline.After(p.EndAt)) {
				return fmt.Errorf("阶段 %s 的退课截止时间不在阶段窗口内", p.Name)
			}
		}
		terms[t.ID] = true
	}
	if current > 1 {
		return fmt.Errorf("最多只能有一个当前学期，实际 %d 个", current)
	}

	subjects := make(map[string]bool, len(f.Subjects))
	for _, s := range f.Subjects {
		if s.ID == "" || s.Code == "" {
			return fmt.Errorf("课程缺少 id 或 code")
		}
		subjects[s.ID] = true
	}

	for _, sec := range f.Sections {
		if sec.ID == "" || sec.Code == "" {
			return fmt.Errorf("教学班缺少 id 或 code")
		}
		if !terms[sec.TermID] {
			return fmt.Errorf("教学班 %s 引用了未定义的学期 %s", sec.Code, sec.TermID)
		}
		if !subjects[sec.SubjectID] {
			return fmt.Errorf("教学班 %s 引用了未定义的课程 %s", sec.Code, sec.SubjectID)
		}
		if sec.MaxSeats < 0 {
			return fmt.Errorf("教学班 %s 容量不能为负数", sec.Code)
		}
		for _, b := range sec.Blocks {
			if b.Day < 1 || b.Day > 7 {
				return fmt.Errorf("教学班 %s 的星期取值 %d 超出 1-7", sec.Code, b.Day)
			}
			if b.Start < 1 || b.End <= b.Start {
				return fmt.Errorf("教学班 %s 的节次 [%d,%d) 无效", sec.Code, b.Start, b.End)
			}
		}
	}

	for _, st := range f.Students {
		if st.ID == "" || st.Code == "" {
			return fmt.Errorf("学生缺少 id 或 code")
		}
		switch st.Status {
		case "", model.StudentStatusActive, model.StudentStatusSuspended, model.StudentStatusGraduated:
		default:
			return fmt.Errorf("学生 %s 状态 %q 无效", st.Code, st.Status)
		}
	}
	return nil
}

// Load 在单个事务内幂等导入种子数据，提交后使涉及教学班的课表缓存失效
func Load(ctx context.Context, repo *repository.Repository, index Invalidator, f *Fixture, logger *zap.Logger) (*Summary, error) {
	sum := &Summary{}
	sectionIDs := make([]string, 0, len(f.Sections))

	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		for _, t := range f.Terms {
			if t.Current {
				if err := tx.Term.ClearCurrent(ctx); err != nil {
					return fmt.Errorf("清除当前学期失败: %w", err)
				}
				break
			}
		}

		for _, t := range f.Terms {
			term := &model.Term{
				TermID:    t.ID,
				Code:      t.Code,
				Name:      t.Name,
				StartDate: t.StartDate,
				EndDate:   t.EndDate,
				IsCurrent: t.Current,
			}
			if err := tx.Term.Upsert(ctx, term); err != nil {
				return fmt.Errorf("导入学期 %s 失败: %w", t.Code, err)
			}
			sum.Terms++

			for _, p := range t.Phases {
				enabled := true
				if p.Enabled != nil {
					enabled = *p.Enabled
				}
				deadline := p.CancelDeadline
				if deadline.IsZero() {
					deadline = p.EndAt
				}
				phase := &model.TermPhase{
					PhaseID:        p.ID,
					TermID:         t.ID,
					Name:           p.Name,
					StartAt:        p.StartAt,
					EndAt:          p.EndAt,
					CancelDeadline: deadline,
					IsEnabled:      enabled,
				}
				if err := tx.Phase.Upsert(ctx, phase); err != nil {
					return fmt.Errorf("导入阶段 %s 失败: %w", p.Name, err)
				}
				sum.Phases++
			}
		}

		for _, s := range f.Subjects {
			subject := &model.Subject{SubjectID: s.ID, Code: s.Code, Name: s.Name, Credits: s.Credits}
			if err := tx.Subject.Upsert(ctx, subject); err != nil {
				return fmt.Errorf("导入课程 %s 失败: %w", s.Code, err)
			}
			sum.Subjects++
		}

		for _, sec := range f.Sections {
			section := &model.ClassSection{
				ClassSectionID: sec.ID,
				TermID:         sec.TermID,
				SubjectID:      sec.SubjectID,
				Code:           sec.Code,
				MaxSeats:       sec.MaxSeats,
			}
			if err := tx.ClassSection.Upsert(ctx, section); err != nil {
				return fmt.Errorf("导入教学班 %s 失败: %w", sec.Code, err)
			}

			blocks := make([]model.ScheduleBlock, 0, len(sec.Blocks))
			for _, b := range sec.Blocks {
				blocks = append(blocks, model.ScheduleBlock{
					ClassSectionID: sec.ID,
					DayOfWeek:      b.Day,
					StartPeriod:    b.Start,
					EndPeriod:      b.End,
				})
			}
			if err := tx.ScheduleBlock.ReplaceForSection(ctx, sec.ID, blocks); err != nil {
				return fmt.Errorf("导入教学班 %s 时间块失败: %w", sec.Code, err)
			}
			sum.Sections++
			sum.Blocks += len(blocks)
			sectionIDs = append(sectionIDs, sec.ID)
		}

		for _, st := range f.Students {
			status := st.Status
			if status == "" {
				status = model.StudentStatusActive
			}
			student := &model.Student{StudentID: st.ID, Code: st.Code, Name: st.Name, Status: status}
			if err := tx.Student.Upsert(ctx, student); err != nil {
				return fmt.Errorf("导入学生 %s 失败: %w", st.Code, err)
			}
			sum.Students++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if index != nil && len(sectionIDs) > 0 {
		if err := index.Invalidate(ctx, sectionIDs...); err != nil {
			logger.Warn("种子导入后清除课表缓存失败，缓存将在过期后自动刷新", zap.Error(err))
		}
	}

	logger.Info("种子数据导入完成",
		zap.Int("terms", sum.Terms),
		zap.Int("phases", sum.Phases),
		zap.Int("subjects", sum.Subjects),
		zap.Int("sections", sum.Sections),
		zap.Int("blocks", sum.Blocks),
		zap.Int("students", sum.Students),
	)
	return sum, nil
}
