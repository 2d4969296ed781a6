package model

import (
	"errors"
	"fmt"
)

// Ошибки ядра бронирования. Сравнивать через errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrSignatureInvalid = errors.New("payment signature invalid")
	ErrPaymentDeclined  = errors.New("payment declined")
	ErrSlotsMissing     = errors.New("package slots missing")
	ErrOrderClosed      = errors.New("order already closed")
	ErrSlotUnavailable  = errors.New("slot unavailable")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotEligible      = errors.New("lesson not eligible")
	ErrInvalidReason    = errors.New("invalid reason category")
	ErrTooLate          = errors.New("too late to reschedule")
	ErrLimitExceeded    = errors.New("reschedule limit exceeded")
	ErrInvalidStatus    = errors.New("invalid status transition")
	ErrInvalidInput     = errors.New("invalid input")
)

// RescheduleError описывает нарушенное правило переноса
type RescheduleError struct {
	Err              error
	Message          string
	RemainingChanges *int // заполняется, когда важно для ответа
}

func (e *RescheduleError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Message)
}

func (e *RescheduleError) Unwrap() error {
	return e.Err
}

// IsRetryable возвращает true, если запрос можно повторить без изменений
func IsRetryable(err error) bool {
	return err != nil &&
		!errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrSignatureInvalid) &&
		!errors.Is(err, ErrPaymentDeclined) &&
		!errors.Is(err, ErrSlotsMissing) &&
		!errors.Is(err, ErrOrderClosed) &&
		!errors.Is(err, ErrSlotUnavailable) &&
		!errors.Is(err, ErrUnauthorized) &&
		!errors.Is(err, ErrNotEligible) &&
		!errors.Is(err, ErrInvalidReason) &&
		!errors.Is(err, ErrTooLate) &&
		!errors.Is(err, ErrLimitExceeded) &&
		!errors.Is(err, ErrInvalidStatus) &&
		!errors.Is(err, ErrInvalidInput)
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrSignatureInvalid, "signature_invalid"},
	{ErrPaymentDeclined, "payment_declined"},
	{ErrSlotsMissing, "slots_missing"},
	{ErrOrderClosed, "order_closed"},
	{ErrSlotUnavailable, "slot_unavailable"},
	{ErrUnauthorized, "unauthorized"},
	{ErrNotEligible, "not_eligible"},
	{ErrInvalidReason, "invalid_reason"},
	{ErrTooLate, "too_late"},
	{ErrLimitExceeded, "limit_exceeded"},
	{ErrInvalidStatus, "invalid_status"},
	{ErrInvalidInput, "invalid_input"},
	{ErrNotFound, "not_found"},
}

// ErrorCode возвращает короткий код ошибки для клиентов и метрик
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
