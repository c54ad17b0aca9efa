package service

import "time"

// Clock 时间来源；阶段判断与记录时间戳统一经由此接口
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock 返回系统时钟
func SystemClock() Clock { return systemClock{} }
