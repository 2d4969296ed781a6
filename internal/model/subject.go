package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Subject struct {
	ID          int64           `json:"id"`
	TeacherID   int64           `json:"teacher_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	NetPrice    decimal.Decimal `json:"net_price"` // чистая ставка учителя за урок
	Duration    int             `json:"duration"`  // в минутах
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}
