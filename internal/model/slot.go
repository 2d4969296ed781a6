package model

import "time"

// Slot интервал времени учителя, доступный для записи
type Slot struct {
	ID        int64     `json:"id"`
	TeacherID int64     `json:"teacher_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	IsBooked  bool      `json:"is_booked"`
	IsActive  bool      `json:"is_active"` // false - слот удалён учителем
	CreatedAt time.Time `json:"created_at"`
}

// IsFreeAt проверяет, можно ли забронировать слот в момент now
func (s *Slot) IsFreeAt(now time.Time) bool {
	return s.IsActive && !s.IsBooked && s.StartTime.After(now)
}

// DurationMinutes возвращает длительность слота в минутах
func (s *Slot) DurationMinutes() int {
	return int(s.EndTime.Sub(s.StartTime) / time.Minute)
}
