package api

import (
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/pricing"
)

type CheckoutRequest struct {
	SubjectID int64   `json:"subject_id"`
	SlotIDs   []int64 `json:"slot_ids"`
}

type BookLessonRequest struct {
	SubjectID int64 `json:"subject_id"`
	SlotID    int64 `json:"slot_id"`
}

// RescheduleRequest тело запроса переноса урока
type RescheduleRequest struct {
	NewAvailabilityID int64      `json:"new_availability_id"`
	NewScheduledAt    *time.Time `json:"new_scheduled_at,omitempty"`
	ReasonCategory    string     `json:"reason_category"`
	ReasonText        *string    `json:"reason_text,omitempty"`
	InitiatedBy       string     `json:"initiated_by"`
}

type RescheduleResponse struct {
	Lesson           *model.Lesson `json:"lesson"`
	ScheduledAt      time.Time     `json:"scheduled_at"`
	PreviousTime     time.Time     `json:"previous_time"`
	RemainingChanges int           `json:"remaining_changes"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CreateSlotRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type QuoteResponse struct {
	SubjectID int64             `json:"subject_id"`
	TeacherID int64             `json:"teacher_id"`
	Subject   string            `json:"subject"`
	Duration  int               `json:"duration"`
	Price     pricing.Breakdown `json:"price"`
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error            string `json:"error"`
	Code             string `json:"code"`
	RemainingChanges *int   `json:"remaining_changes,omitempty"`
}
