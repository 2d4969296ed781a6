package model

import "time"

type ChangeType string

const ChangeTypeReschedule ChangeType = "reschedule"

type Initiator string

const (
	InitiatorStudent Initiator = "student"
	InitiatorTeacher Initiator = "teacher"
)

// IsValid проверяет, что инициатор известен
func (i Initiator) IsValid() bool {
	return i == InitiatorStudent || i == InitiatorTeacher
}

// Причины переноса. Набор для ученика и для учителя разный.
const (
	ReasonStudentIllness   = "student_illness"
	ReasonStudentExam      = "exam_conflict"
	ReasonStudentTravel    = "travel"
	ReasonStudentFamily    = "family_matter"
	ReasonStudentOther     = "student_other"
	ReasonTeacherIllness   = "teacher_illness"
	ReasonTeacherConflict  = "schedule_conflict"
	ReasonTeacherEmergency = "emergency"
	ReasonTeacherOther     = "teacher_other"
)

var reasonsByInitiator = map[Initiator]map[string]bool{
	InitiatorStudent: {
		ReasonStudentIllness: true,
		ReasonStudentExam:    true,
		ReasonStudentTravel:  true,
		ReasonStudentFamily:  true,
		ReasonStudentOther:   true,
	},
	InitiatorTeacher: {
		ReasonTeacherIllness:   true,
		ReasonTeacherConflict:  true,
		ReasonTeacherEmergency: true,
		ReasonTeacherOther:     true,
	},
}

// IsValidReason проверяет, что категория причины разрешена для инициатора
func IsValidReason(initiator Initiator, category string) bool {
	return reasonsByInitiator[initiator][category]
}

// LessonChange запись журнала изменений урока. Только добавляется.
type LessonChange struct {
	ID                int64      `json:"id"`
	LessonID          int64      `json:"lesson_id"`
	PackagePaymentID  *int64     `json:"package_payment_id,omitempty"`
	ChangeType        ChangeType `json:"change_type"`
	InitiatedBy       Initiator  `json:"initiated_by"`
	RequesterID       int64      `json:"requester_id"`
	ReasonCategory    string     `json:"reason_category"`
	ReasonText        *string    `json:"reason_text,omitempty"`
	OldSlotID         int64      `json:"old_slot_id"`
	NewSlotID         int64      `json:"new_slot_id"`
	OldScheduledAt    time.Time  `json:"old_scheduled_at"`
	NewScheduledAt    time.Time  `json:"new_scheduled_at"`
	ChangeCountBefore int        `json:"change_count_before"`
	CreatedAt         time.Time  `json:"created_at"`
}
