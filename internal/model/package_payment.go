package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PackagePayment оплата пакета из нескольких уроков
type PackagePayment struct {
	ID           int64           `json:"id"`
	OrderID      string          `json:"order_id"`
	TeacherID    int64           `json:"teacher_id"`
	StudentID    int64           `json:"student_id"`
	SubjectID    int64           `json:"subject_id"`
	TotalLessons int             `json:"total_lessons"`
	LessonPrice  decimal.Decimal `json:"lesson_price"` // цена одного урока в пакете
	// ставка учителя и комиссия на момент checkout, из них собрана LessonPrice
	NetPrice       decimal.Decimal `json:"net_price"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         PaymentStatus   `json:"status"`
	SelectedSlots  []int64         `json:"selected_slots"` // выбор при checkout, хранится в package_payment_slots
	ExpiresAt      *time.Time      `json:"expires_at"`
	CompletedAt    *time.Time      `json:"completed_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsCompleted проверяет, что пакет уже оплачен
func (p *PackagePayment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// IsFailed проверяет, что оплата отклонена
func (p *PackagePayment) IsFailed() bool {
	return p.Status == PaymentStatusFailed
}
