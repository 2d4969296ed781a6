// Package pricing переводит чистую ставку учителя в цену для родителя.
//
// Это единственное место, где считаются stopaj, комиссия и НДС: цена в каталоге,
// цена при записи и отчёты по комиссии вызывают одни и те же функции.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier ставка комиссии для диапазона проведённых учителем уроков
type Tier struct {
	MinLessons int
	MaxLessons int // у последнего уровня игнорируется: он не ограничен сверху
	Rate       decimal.Decimal
}

// Config параметры ценообразования, загружаются при старте
type Config struct {
	CommissionTiers   []Tier
	StopajRate        decimal.Decimal
	VATRate           decimal.Decimal
	RoundingIncrement decimal.Decimal
}

// Breakdown разложение цены урока
type Breakdown struct {
	NetPrice       decimal.Decimal `json:"net_price"`
	Stopaj         decimal.Decimal `json:"stopaj"`
	Commission     decimal.Decimal `json:"commission"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	VAT            decimal.Decimal `json:"vat"`
	RawTotal       decimal.Decimal `json:"raw_total"`
	DisplayPrice   decimal.Decimal `json:"display_price"`
}

// IsZero проверяет, что цена не рассчитана (неположительная ставка)
func (b Breakdown) IsZero() bool {
	return b.DisplayPrice.IsZero()
}

// Validate проверяет, что уровни идут подряд и ставки неотрицательны
func (c Config) Validate() error {
	if len(c.CommissionTiers) == 0 {
		return fmt.Errorf("at least one commission tier is required")
	}
	if c.CommissionTiers[0].MinLessons != 0 {
		return fmt.Errorf("first commission tier must start at 0 lessons")
	}

	last := len(c.CommissionTiers) - 1
	for i, tier := range c.CommissionTiers {
		if tier.Rate.IsNegative() {
			return fmt.Errorf("commission tier %d: negative rate", i)
		}
		if i < last && tier.MaxLessons < tier.MinLessons {
			return fmt.Errorf("commission tier %d: max below min", i)
		}
		if i > 0 && tier.MinLessons != c.CommissionTiers[i-1].MaxLessons+1 {
			return fmt.Errorf("commission tier %d: not contiguous with previous tier", i)
		}
	}

	if c.StopajRate.IsNegative() || c.VATRate.IsNegative() {
		return fmt.Errorf("stopaj and vat rates must not be negative")
	}
	if !c.RoundingIncrement.IsPositive() {
		return fmt.Errorf("rounding increment must be positive")
	}

	return nil
}

// Model считает цены по неизменяемой конфигурации
type Model struct {
	cfg Config
}

// NewModel создаёт модель ценообразования
func NewModel(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pricing config: %w", err)
	}
	return &Model{cfg: cfg}, nil
}

// CommissionRate возвращает ставку уровня, в который попадает число проведённых уроков
func (m *Model) CommissionRate(lessonsCompleted int) decimal.Decimal {
	last := len(m.cfg.CommissionTiers) - 1
	for i, tier := range m.cfg.CommissionTiers {
		if lessonsCompleted < tier.MinLessons {
			continue
		}
		if i == last || lessonsCompleted <= tier.MaxLessons {
			return tier.Rate
		}
	}
	// отрицательное число уроков - первый уровень
	return m.cfg.CommissionTiers[0].Rate
}

// ComputeDisplayPrice считает цену для родителя по ставке учителя
func (m *Model) ComputeDisplayPrice(netPrice decimal.Decimal, lessonsCompleted int) Breakdown {
	return m.BreakdownAt(netPrice, m.CommissionRate(lessonsCompleted))
}

// BreakdownAt считает цену с явной ставкой комиссии.
// Используется отчётами, где ставка зафиксирована в уроке.
func (m *Model) BreakdownAt(netPrice, commissionRate decimal.Decimal) Breakdown {
	if !netPrice.IsPositive() {
		return Breakdown{
			NetPrice:       decimal.Zero,
			Stopaj:         decimal.Zero,
			Commission:     decimal.Zero,
			CommissionRate: decimal.Zero,
			Subtotal:       decimal.Zero,
			VAT:            decimal.Zero,
			RawTotal:       decimal.Zero,
			DisplayPrice:   decimal.Zero,
		}
	}

	stopaj := netPrice.Mul(m.cfg.StopajRate)
	commission := netPrice.Mul(commissionRate)
	subtotal := netPrice.Add(stopaj).Add(commission)
	vat := subtotal.Mul(m.cfg.VATRate)
	rawTotal := subtotal.Add(vat)

	return Breakdown{
		NetPrice:       netPrice,
		Stopaj:         stopaj,
		Commission:     commission,
		CommissionRate: commissionRate,
		Subtotal:       subtotal,
		VAT:            vat,
		RawTotal:       rawTotal,
		DisplayPrice:   roundUpToNearest(rawTotal, m.cfg.RoundingIncrement),
	}
}

// roundUpToNearest округляет вверх до кратного increment
func roundUpToNearest(value, increment decimal.Decimal) decimal.Decimal {
	return value.Div(increment).Ceil().Mul(increment)
}
