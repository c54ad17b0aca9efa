package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"course-registration/backend/config"
	"course-registration/backend/internal/model"
)

// ── iCalendar 课表导出 ──────────────────────────────────────
//
// 每条有效选课的每个上课时间块生成一个按周重复的 VEVENT (RFC 5545)：
//   - DTSTART 为学期开始日起第一个对应星期几
//   - RRULE:FREQ=WEEKLY，UNTIL 为学期结束日当天最后一秒
//   - 时间块 [start, end) 覆盖第 start 节开始至第 end-1 节结束
// ─────────────────────────────────────────────────────────────

const (
	calendarProductID = "-//course-registration//timetable//CN"
	icsUTCLayout      = "20060102T150405Z"
)

// periodClock 节次与钟点的换算
type periodClock struct {
	loc    *time.Location
	first  time.Duration // 第 1 节相对零点的偏移
	period time.Duration
	gap    time.Duration
}

// newPeriodClock 按配置构造节次作息；未配置的项使用 08:00 起、每节 45 分钟、课间 10 分钟、UTC
func newPeriodClock(cfg config.TimetableConfig) periodClock {
	pc := periodClock{loc: time.UTC, first: 8 * time.Hour, period: 45 * time.Minute, gap: 10 * time.Minute}
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			pc.loc = loc
		}
	}
	if t, err := time.Parse("15:04", cfg.FirstPeriodAt); err == nil {
		pc.first = time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	}
	if cfg.PeriodLength > 0 {
		pc.period = cfg.PeriodLength
		pc.gap = cfg.BreakLength
	}
	return pc
}

// span 返回时间块在 day 当天的起止时刻
func (pc periodClock) span(day time.Time, b model.ScheduleBlock) (time.Time, time.Time) {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, pc.loc)
	step := pc.period + pc.gap
	start := midnight.Add(pc.first + time.Duration(b.StartPeriod-1)*step)
	end := midnight.Add(pc.first + time.Duration(b.EndPeriod-2)*step + pc.period)
	return start, end
}

// firstOn 返回 from 当天或之后第一个星期 isoDay（1=周一 … 7=周日）的日期
func (pc periodClock) firstOn(from time.Time, isoDay int) time.Time {
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, pc.loc)
	offset := (isoDay%7 - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// ═══════════════════════════════════════════════════════════
// ExportCalendar 导出本学期有效选课的 iCalendar 课表
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportCalendar(ctx context.Context, studentID, termID string) (*bytes.Buffer, string, error) {
	student, term, err := s.loadStudentTerm(ctx, studentID, termID)
	if err != nil {
		return nil, "", err
	}

	enrollments, err := s.repo.Enrollment.ListActive(ctx, studentID, termID)
	if err != nil {
		s.logger.Error("查询有效选课失败", zap.Error(err))
		return nil, "", err
	}
	sectionIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		sectionIDs = append(sectionIDs, e.ClassSectionID)
	}

	sections, err := s.repo.ClassSection.GetByIDs(ctx, sectionIDs)
	if err != nil {
		s.logger.Error("查询教学班失败", zap.Error(err))
		return nil, "", err
	}
	sectionIndex := make(map[string]*model.ClassSection, len(sections))
	for i := range sections {
		sectionIndex[sections[i].ClassSectionID] = &sections[i]
	}

	blocks, err := s.repo.ScheduleBlock.ListBySections(ctx, sectionIDs)
	if err != nil {
		s.logger.Error("查询上课时间失败", zap.Error(err))
		return nil, "", err
	}
	blocksBySection := make(map[string][]model.ScheduleBlock, len(sectionIDs))
	for _, b := range blocks {
		blocksBySection[b.ClassSectionID] = append(blocksBySection[b.ClassSectionID], b)
	}

	pc := s.periods
	lastDay := time.Date(term.EndDate.Year(), term.EndDate.Month(), term.EndDate.Day(), 23, 59, 59, 0, pc.loc)
	rrule := "FREQ=WEEKLY;UNTIL=" + lastDay.UTC().Format(icsUTCLayout)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(fmt.Sprintf("%s %s 课表", term.Name, student.Name))
	cal.SetXWRTimezone(pc.loc.String())

	for _, e := range enrollments {
		summary, code := e.ClassSectionID, e.ClassSectionID
		if sec, ok := sectionIndex[e.ClassSectionID]; ok {
			summary, code = sec.Code, sec.Code
			if sec.Subject != nil {
				summary = sec.Subject.Name
			}
		}

		list := blocksBySection[e.ClassSectionID]
		sort.Slice(list, func(i, j int) bool {
			if list[i].DayOfWeek != list[j].DayOfWeek {
				return list[i].DayOfWeek < list[j].DayOfWeek
			}
			return list[i].StartPeriod < list[j].StartPeriod
		})

		for _, b := range list {
			day := pc.firstOn(term.StartDate, b.DayOfWeek)
			start, end := pc.span(day, b)
			if start.After(lastDay) {
				continue
			}

			event := cal.AddEvent(fmt.Sprintf("%s-%d-%d@course-registration", e.EnrollmentID, b.DayOfWeek, b.StartPeriod))
			event.SetCreatedTime(e.RegisteredAt)
			event.SetDtStampTime(e.RegisteredAt)
			event.SetStartAt(start)
			event.SetEndAt(end)
			event.SetSummary(summary)
			event.SetDescription(fmt.Sprintf("教学班 %s，第 %d-%d 节", code, b.StartPeriod, b.EndPeriod-1))
			event.AddProperty(ics.ComponentPropertyRrule, rrule)
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("课表_%s_%s.ics", term.Code, student.Code)
	return buf, filename, nil
}
