package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 选课业务错误类别（稳定值，对外可见）
type ErrorKind string

const (
	KindPhaseNotOpen         ErrorKind = "PHASE_NOT_OPEN"
	KindPhaseMismatch        ErrorKind = "PHASE_MISMATCH"
	KindCancelDeadlinePassed ErrorKind = "CANCEL_DEADLINE_PASSED"
	KindSectionNotFound      ErrorKind = "SECTION_NOT_FOUND"
	KindSectionFull          ErrorKind = "SECTION_FULL"
	KindDuplicateSubject     ErrorKind = "DUPLICATE_SUBJECT"
	KindAlreadyRegistered    ErrorKind = "ALREADY_REGISTERED"
	KindAlreadyCancelled     ErrorKind = "ALREADY_CANCELLED"
	KindRegistrationNotFound ErrorKind = "REGISTRATION_NOT_FOUND"
	KindSubjectMismatch      ErrorKind = "SUBJECT_MISMATCH"
	KindTimeConflict         ErrorKind = "TIME_CONFLICT"
	KindStudentNotFound      ErrorKind = "STUDENT_NOT_FOUND"
	KindStudentIneligible    ErrorKind = "STUDENT_INELIGIBLE"
	KindInternal             ErrorKind = "INTERNAL_ERROR"
)

type kindInfo struct {
	code    int
	status  int
	message string
}

var kindTable = map[ErrorKind]kindInfo{
	KindPhaseNotOpen:         {30001, http.StatusForbidden, "当前不在选课阶段"},
	KindPhaseMismatch:        {30002, http.StatusForbidden, "当前阶段不允许该操作"},
	KindCancelDeadlinePassed: {30003, http.StatusForbidden, "已超过退课截止时间"},
	KindSectionNotFound:      {30004, http.StatusNotFound, "教学班不存在"},
	KindSectionFull:          {30005, http.StatusConflict, "教学班已满"},
	KindDuplicateSubject:     {30006, http.StatusConflict, "已选该课程的其他教学班"},
	KindAlreadyRegistered:    {30007, http.StatusConflict, "已选该教学班"},
	KindAlreadyCancelled:     {30008, http.StatusConflict, "该选课记录已取消"},
	KindRegistrationNotFound: {30009, http.StatusNotFound, "选课记录不存在"},
	KindSubjectMismatch:      {30010, http.StatusBadRequest, "只能换到同一课程的教学班"},
	KindTimeConflict:         {30011, http.StatusConflict, "上课时间冲突"},
	KindStudentNotFound:      {30012, http.StatusNotFound, "学生不存在"},
	KindStudentIneligible:    {30013, http.StatusForbidden, "学生当前不具备选课资格"},
	KindInternal:             {50000, http.StatusInternalServerError, "服务器内部错误"},
}

// Code 业务错误码
func (k ErrorKind) Code() int {
	if info, ok := kindTable[k]; ok {
		return info.code
	}
	return kindTable[KindInternal].code
}

// HTTPStatus 对应的 HTTP 状态码
func (k ErrorKind) HTTPStatus() int {
	if info, ok := kindTable[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Message 面向用户的错误描述
func (k ErrorKind) Message() string {
	if info, ok := kindTable[k]; ok {
		return info.message
	}
	return kindTable[KindInternal].message
}

// RegistrationError 选课引擎的类型化拒绝结果
// 除 KindInternal 外均在任何写操作之前产生
type RegistrationError struct {
	Kind      ErrorKind
	Detail    string
	SectionID string // 相关教学班（TimeConflict 时为冲突的已选教学班）
	cause     error
}

func (e *RegistrationError) Error() string {
	if e.Detail == "" {
		return e.Kind.Message()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Message(), e.Detail)
}

// Is 按 Kind 比较，使 errors.Is(err, ErrSectionFull) 成立
func (e *RegistrationError) Is(target error) bool {
	t, ok := target.(*RegistrationError)
	return ok && t.Kind == e.Kind
}

func (e *RegistrationError) Unwrap() error { return e.cause }

// ── 按类别匹配用的哨兵值 ──

var (
	ErrPhaseNotOpen         = &RegistrationError{Kind: KindPhaseNotOpen}
	ErrPhaseMismatch        = &RegistrationError{Kind: KindPhaseMismatch}
	ErrCancelDeadlinePassed = &RegistrationError{Kind: KindCancelDeadlinePassed}
	ErrSectionNotFound      = &RegistrationError{Kind: KindSectionNotFound}
	ErrSectionFull          = &RegistrationError{Kind: KindSectionFull}
	ErrDuplicateSubject     = &RegistrationError{Kind: KindDuplicateSubject}
	ErrAlreadyRegistered    = &RegistrationError{Kind: KindAlreadyRegistered}
	ErrAlreadyCancelled     = &RegistrationError{Kind: KindAlreadyCancelled}
	ErrRegistrationNotFound = &RegistrationError{Kind: KindRegistrationNotFound}
	ErrSubjectMismatch      = &RegistrationError{Kind: KindSubjectMismatch}
	ErrTimeConflict         = &RegistrationError{Kind: KindTimeConflict}
	ErrStudentNotFound      = &RegistrationError{Kind: KindStudentNotFound}
	ErrStudentIneligible    = &RegistrationError{Kind: KindStudentIneligible}
	ErrInternal             = &RegistrationError{Kind: KindInternal}
)

func rejection(kind ErrorKind, sectionID, format string, args ...interface{}) *RegistrationError {
	return &RegistrationError{Kind: kind, SectionID: sectionID, Detail: fmt.Sprintf(format, args...)}
}

// internalError 包装基础设施错误；Detail 不包含内部信息
func internalError(cause error) *RegistrationError {
	return &RegistrationError{Kind: KindInternal, cause: cause}
}

// KindOf 返回错误的类别；非 RegistrationError 视为内部错误
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var regErr *RegistrationError
	if errors.As(err, &regErr) {
		return regErr.Kind
	}
	return KindInternal
}

// AsRegistrationError 将任意错误归一化为 RegistrationError
func AsRegistrationError(err error) *RegistrationError {
	if err == nil {
		return nil
	}
	var regErr *RegistrationError
	if errors.As(err, &regErr) {
		return regErr
	}
	return internalError(err)
}
