package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type LessonStatus string

const (
	LessonStatusPending    LessonStatus = "PENDING"
	LessonStatusConfirmed  LessonStatus = "CONFIRMED"
	LessonStatusInProgress LessonStatus = "IN_PROGRESS"
	LessonStatusCompleted  LessonStatus = "COMPLETED"
	LessonStatusCancelled  LessonStatus = "CANCELLED"
	LessonStatusNoShow     LessonStatus = "NO_SHOW"
)

// IsTerminal возвращает true для статусов, из которых переходов нет
func (s LessonStatus) IsTerminal() bool {
	return s == LessonStatusCompleted || s == LessonStatusCancelled || s == LessonStatusNoShow
}

// IsValid проверяет, что статус известен
func (s LessonStatus) IsValid() bool {
	switch s {
	case LessonStatusPending, LessonStatusConfirmed, LessonStatusInProgress,
		LessonStatusCompleted, LessonStatusCancelled, LessonStatusNoShow:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость административного перехода статуса
func (s LessonStatus) CanTransitionTo(next LessonStatus) bool {
	if s.IsTerminal() || s == next {
		return false
	}

	switch next {
	case LessonStatusCancelled, LessonStatusNoShow:
		return true
	case LessonStatusConfirmed:
		return s == LessonStatusPending
	case LessonStatusInProgress:
		return s == LessonStatusConfirmed
	case LessonStatusCompleted:
		return s == LessonStatusConfirmed || s == LessonStatusInProgress
	}
	return false
}

// Lesson подтверждённая запись ученика на слот учителя
type Lesson struct {
	ID               int64           `json:"id"`
	TeacherID        int64           `json:"teacher_id"`
	StudentID        int64           `json:"student_id"`
	SubjectID        int64           `json:"subject_id"`
	SlotID           int64           `json:"slot_id"`
	Subject          string          `json:"subject"`
	ScheduledAt      time.Time       `json:"scheduled_at"` // всегда равно start_time текущего слота
	DurationMinutes  int             `json:"duration_minutes"`
	Price            decimal.Decimal `json:"price"`           // цена для родителя, фиксируется при записи
	NetPrice         decimal.Decimal `json:"net_price"`       // ставка учителя на момент записи
	CommissionRate   decimal.Decimal `json:"commission_rate"` // ставка комиссии на момент записи
	Status           LessonStatus    `json:"status"`
	PackagePaymentID *int64          `json:"package_payment_id,omitempty"`
	IsPackageLesson  bool            `json:"is_package_lesson"`
	RescheduleCount  int             `json:"reschedule_count"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// HasParticipant проверяет, что пользователь - ученик или учитель урока
func (l *Lesson) HasParticipant(userID int64) bool {
	return l.StudentID == userID || l.TeacherID == userID
}
