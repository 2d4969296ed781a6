package service

import "time"

// Clock источник текущего времени. В тестах подменяется фиксированным.
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает реальное время
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
