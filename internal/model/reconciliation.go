package model

import "time"

type ReconciliationReason string

const (
	ReconcileSlotsMissing    ReconciliationReason = "slots_missing"
	ReconcileSlotUnavailable ReconciliationReason = "slot_unavailable"
	ReconcileBookingFailed   ReconciliationReason = "booking_failed"
	ReconcileLateSuccess     ReconciliationReason = "late_success"
)

// ReconciliationItem задача для оператора: оплата прошла, но уроки созданы не полностью
type ReconciliationItem struct {
	ID               int64                `json:"id"`
	PackagePaymentID int64                `json:"package_payment_id"`
	OrderID          string               `json:"order_id"`
	Reason           ReconciliationReason `json:"reason"`
	SlotID           *int64               `json:"slot_id,omitempty"`
	Details          string               `json:"details"`
	CreatedAt        time.Time            `json:"created_at"`
	ResolvedAt       *time.Time           `json:"resolved_at,omitempty"`
}
