package errors

import "errors"

// ── 存储层座位账本错误 ──

var (
	// ErrSeatUnavailable 条件更新未命中：current_seats 已达到 max_seats
	ErrSeatUnavailable = errors.New("班级座位已满")
	// ErrSeatUnderflow 条件更新未命中：current_seats 已为 0 仍尝试释放（程序错误）
	ErrSeatUnderflow = errors.New("班级座位计数不能小于 0")
)
