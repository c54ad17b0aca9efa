package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-registration/backend/config"
	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportStudentNotFound = errors.New("学生不存在")
	ErrExportGenerateFail    = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出学生某学期的全部选课记录（含已取消）与审计历史
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - Sheet "选课记录"：每条选课一行；Sheet "选课历史"：按 seq 排列的审计记录
//   - 课表另以 iCalendar 导出，仅包含有效选课
type ExportService interface {
	// ExportRegistrations 导出选课记录为 Excel
	ExportRegistrations(ctx context.Context, studentID, termID string) (*bytes.Buffer, string, error)
	// ExportCalendar 导出有效选课的上课时间为 .ics
	ExportCalendar(ctx context.Context, studentID, termID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo    *repository.Repository
	periods periodClock
	logger  *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, timetable config.TimetableConfig, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, periods: newPeriodClock(timetable), logger: logger}
}

const (
	enrollmentSheet = "选课记录"
	historySheet    = "选课历史"
)

var actionNames = map[string]string{
	model.AuditActionRegister: "选课",
	model.AuditActionCancel:   "退课",
	model.AuditActionTransfer: "换班",
}

// ═══════════════════════════════════════════════════════════
// ExportRegistrations 导出选课记录与历史
// ═══════════════════════════════════════════════════════════
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportRegistrations(ctx context.Context, studentID, termID string) (*bytes.Buffer, string, error) {
	// 1. 学生与学期
	student, term, err := s.loadStudentTerm(ctx, studentID, termID)
	if err != nil {
		return nil, "", err
	}

	// 2. 选课记录与审计历史
	enrollments, err := s.repo.Enrollment.ListByStudentTerm(ctx, studentID, termID)
	if err != nil {
		s.logger.Error("查询选课记录失败", zap.Error(err))
		return nil, "", err
	}
	entries, err := s.repo.Audit.ListEntries(ctx, studentID, termID)
	if err != nil {
		s.logger.Error("查询选课历史失败", zap.Error(err))
		return nil, "", err
	}

	// 3. 教学班索引（历史中可能出现已换出的教学班）
	sectionIDs := make([]string, 0, len(enrollments)+len(entries))
	seen := make(map[string]bool)
	for _, e := range enrollments {
		if !seen[e.ClassSectionID] {
			seen[e.ClassSectionID] = true
			sectionIDs = append(sectionIDs, e.ClassSectionID)
		}
	}
	for _, e := range entries {
		if !seen[e.ClassSectionID] {
			seen[e.ClassSectionID] = true
			sectionIDs = append(sectionIDs, e.ClassSectionID)
		}
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

	// 4. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	idx, _ := f.NewSheet(enrollmentSheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")
	s.writeEnrollments(f, headerStyle, enrollments, sectionIndex)

	f.NewSheet(historySheet)
	s.writeHistory(f, headerStyle, entries, sectionIndex)

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("选课记录_%s_%s.xlsx", term.Code, student.Code)
	return buf, filename, nil
}

func (s *exportService) writeEnrollments(f *excelize.File, headerStyle int, enrollments []model.Enrollment, sections map[string]*model.ClassSection) {
	headers := []string{"教学班", "课程代码", "课程名称", "学分", "状态", "选课时间", "退课时间"}
	for i, h := range headers {
		f.SetCellValue(enrollmentSheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(enrollmentSheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)
	f.SetColWidth(enrollmentSheet, "A", "D", 14)
	f.SetColWidth(enrollmentSheet, "C", "C", 28)
	f.SetColWidth(enrollmentSheet, "F", "G", 22)

	row := 2
	for _, e := range enrollments {
		sectionCode, subjectCode, subjectName, credits := e.ClassSectionID, "", "", 0
		if sec, ok := sections[e.ClassSectionID]; ok {
			sectionCode = sec.Code
			if sec.Subject != nil {
				subjectCode, subjectName, credits = sec.Subject.Code, sec.Subject.Name, sec.Subject.Credits
			}
		}
		status := "有效"
		if !e.IsActive() {
			status = "已取消"
		}
		cancelledAt := "-"
		if e.CancelledAt != nil {
			cancelledAt = e.CancelledAt.Format(time.DateTime)
		}

		f.SetCellValue(enrollmentSheet, cell("A", row), sectionCode)
		f.SetCellValue(enrollmentSheet, cell("B", row), subjectCode)
		f.SetCellValue(enrollmentSheet, cell("C", row), subjectName)
		f.SetCellValue(enrollmentSheet, cell("D", row), credits)
		f.SetCellValue(enrollmentSheet, cell("E", row), status)
		f.SetCellValue(enrollmentSheet, cell("F", row), e.RegisteredAt.Format(time.DateTime))
		f.SetCellValue(enrollmentSheet, cell("G", row), cancelledAt)
		row++
	}
}

func (s *exportService) writeHistory(f *excelize.File, headerStyle int, entries []model.AuditEntry, sections map[string]*model.ClassSection) {
	headers := []string{"序号", "操作", "教学班", "时间", "说明"}
	for i, h := range headers {
		f.SetCellValue(historySheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(historySheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)
	f.SetColWidth(historySheet, "C", "D", 22)
	f.SetColWidth(historySheet, "E", "E", 36)

	sectionCode := func(id string) string {
		if sec, ok := sections[id]; ok {
			return sec.Code
		}
		return id
	}

	row := 2
	for _, e := range entries {
		note := ""
		if e.Action == model.AuditActionTransfer && len(e.Detail) > 0 {
			var d model.TransferDetail
			if err := json.Unmarshal(e.Detail, &d); err == nil {
				note = fmt.Sprintf("%s → %s", sectionCode(d.FromClassSectionID), sectionCode(d.ToClassSectionID))
			}
		}
		action := actionNames[e.Action]
		if action == "" {
			action = e.Action
		}

		f.SetCellValue(historySheet, cell("A", row), e.Seq)
		f.SetCellValue(historySheet, cell("B", row), action)
		f.SetCellValue(historySheet, cell("C", row), sectionCode(e.ClassSectionID))
		f.SetCellValue(historySheet, cell("D", row), e.CreatedAt.Format(time.DateTime))
		f.SetCellValue(historySheet, cell("E", row), note)
		row++
	}
}

// ── 辅助函数 ──

func (s *exportService) loadStudentTerm(ctx context.Context, studentID, termID string) (*model.Student, *model.Term, error) {
	student, err := s.repo.Student.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrExportStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.Error(err))
		return nil, nil, err
	}
	term, err := s.repo.Term.GetByID(ctx, termID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTermNotFound
		}
		s.logger.Error("查询学期失败", zap.Error(err))
		return nil, nil, err
	}
	return student, term, nil
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
