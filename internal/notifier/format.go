package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/shopspring/decimal"
)

// FormatDateTime форматирует дату и время
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatDuration форматирует длительность в минутах
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}

// FormatPrice форматирует цену без копеек, если они равны 0
func FormatPrice(price decimal.Decimal) string {
	if price.Equal(price.Truncate(0)) {
		return price.StringFixed(0) + " ₺"
	}
	return price.StringFixed(2) + " ₺"
}

// Text собирает текст сообщения для события
func Text(event Event, p Payload) string {
	var b strings.Builder

	switch event {
	case EventPackagePurchased:
		fmt.Fprintf(&b, "✅ Пакет оплачен (заказ %s)\n\n", p.OrderID)
		fmt.Fprintf(&b, "📚 Уроков: %d\n", len(p.Lessons))
		if !p.TotalAmount.IsZero() {
			fmt.Fprintf(&b, "💳 Сумма: %s\n", FormatPrice(p.TotalAmount))
		}
		b.WriteString("\n🗓 Расписание:\n")
		for i, l := range p.Lessons {
			fmt.Fprintf(&b, "%d. %s, %s (%s)\n", i+1, FormatDateTime(l.ScheduledAt), l.Subject, FormatDuration(l.DurationMinutes))
		}

	case EventLessonBooked:
		if p.Lesson != nil {
			fmt.Fprintf(&b, "✅ Запись создана\n\n📚 %s\n📅 %s\n💳 %s",
				p.Lesson.Subject, FormatDateTime(p.Lesson.ScheduledAt), FormatPrice(p.Lesson.Price))
		}

	case EventRescheduleConfirmed, EventRescheduleNotice:
		if event == EventRescheduleConfirmed {
			b.WriteString("✅ Урок перенесён\n\n")
		} else {
			who := "ученик"
			if p.InitiatedBy == model.InitiatorTeacher {
				who = "учитель"
			}
			fmt.Fprintf(&b, "ℹ️ Урок перенесён (инициатор: %s)\n\n", who)
		}
		if p.Lesson != nil {
			fmt.Fprintf(&b, "📚 %s\n", p.Lesson.Subject)
			if p.PreviousTime != nil {
				fmt.Fprintf(&b, "❌ Было: %s\n", FormatDateTime(*p.PreviousTime))
			}
			fmt.Fprintf(&b, "📅 Стало: %s\n", FormatDateTime(p.Lesson.ScheduledAt))
		}
		if event == EventRescheduleConfirmed && p.RemainingChanges != nil {
			fmt.Fprintf(&b, "\n🔁 Осталось переносов: %d", *p.RemainingChanges)
		}

	case EventLessonCancelled:
		if p.Lesson != nil {
			fmt.Fprintf(&b, "❌ Урок отменён\n\n📚 %s\n📅 %s", p.Lesson.Subject, FormatDateTime(p.Lesson.ScheduledAt))
		}

	case EventLessonCompleted:
		if p.Lesson != nil {
			fmt.Fprintf(&b, "🎓 Урок проведён\n\n📚 %s\n📅 %s", p.Lesson.Subject, FormatDateTime(p.Lesson.ScheduledAt))
		}

	default:
		fmt.Fprintf(&b, "ℹ️ %s", event)
	}

	return strings.TrimRight(b.String(), "\n")
}
