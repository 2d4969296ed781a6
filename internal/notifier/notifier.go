// Package notifier доставляет уведомления участникам урока.
// Ядро решает, что и кому отправить; как доставить - забота реализации.
package notifier

import (
	"context"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/shopspring/decimal"
)

type Event string

const (
	EventPackagePurchased    Event = "package_purchased"
	EventLessonBooked        Event = "lesson_booked"
	EventRescheduleConfirmed Event = "reschedule_confirmed" // инициатору переноса
	EventRescheduleNotice    Event = "reschedule_notice"    // второй стороне
	EventLessonCancelled     Event = "lesson_cancelled"
	EventLessonCompleted     Event = "lesson_completed"
)

// Payload данные перехода состояния, нужные для текста уведомления
type Payload struct {
	OrderID          string
	TotalAmount      decimal.Decimal
	Lessons          []*model.Lesson // полное расписание пакета
	Lesson           *model.Lesson
	PreviousTime     *time.Time
	InitiatedBy      model.Initiator
	ReasonCategory   string
	RemainingChanges *int
}

// Notifier отправляет уведомление получателям (ID пользователей)
type Notifier interface {
	Notify(ctx context.Context, event Event, recipients []int64, payload Payload) error
}
