package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type PackagePaymentRepository struct {
	db base.DBTX
}

func NewPackagePaymentRepository(db base.DBTX) *PackagePaymentRepository {
	return &PackagePaymentRepository{db: db}
}

const paymentColumns = `id, order_id, teacher_id, student_id, subject_id, total_lessons, lesson_price,
	net_price, commission_rate, total_amount, status, expires_at, completed_at, created_at`

func scanPayment(row pgx.Row) (*model.PackagePayment, error) {
	var p model.PackagePayment
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.TeacherID,
		&p.StudentID,
		&p.SubjectID,
		&p.TotalLessons,
		&p.LessonPrice,
		&p.NetPrice,
		&p.CommissionRate,
		&p.TotalAmount,
		&p.Status,
		&p.ExpiresAt,
		&p.CompletedAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create сохраняет оплату пакета и выбранные при checkout слоты.
// Вызывать внутри транзакции: две вставки.
func (r *PackagePaymentRepository) Create(ctx context.Context, payment *model.PackagePayment) error {
	query := `
		INSERT INTO package_payments (order_id, teacher_id, student_id, subject_id, total_lessons,
			lesson_price, net_price, commission_rate, total_amount, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		payment.OrderID,
		payment.TeacherID,
		payment.StudentID,
		payment.SubjectID,
		payment.TotalLessons,
		payment.LessonPrice,
		payment.NetPrice,
		payment.CommissionRate,
		payment.TotalAmount,
		payment.Status,
		payment.ExpiresAt,
	).Scan(&payment.ID, &payment.CreatedAt)

	if err != nil {
		return fmt.Errorf("create package payment: %w", err)
	}

	for position, slotID := range payment.SelectedSlots {
		_, err := r.db.Exec(ctx, `
			INSERT INTO package_payment_slots (package_payment_id, slot_id, position)
			VALUES ($1, $2, $3)
		`, payment.ID, slotID, position)
		if err != nil {
			return fmt.Errorf("save selected slot %d: %w", slotID, err)
		}
	}

	return nil
}

// GetByOrderID получает оплату по номеру заказа
func (r *PackagePaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*model.PackagePayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM package_payments WHERE order_id = $1`
	return r.getOne(ctx, query, orderID)
}

// LockByOrderID получает оплату и блокирует строку: повторные callback'и одного заказа ждут друг друга
func (r *PackagePaymentRepository) LockByOrderID(ctx context.Context, orderID string) (*model.PackagePayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM package_payments WHERE order_id = $1 FOR UPDATE`
	return r.getOne(ctx, query, orderID)
}

func (r *PackagePaymentRepository) getOne(ctx context.Context, query string, orderID string) (*model.PackagePayment, error) {
	payment, err := scanPayment(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get package payment: %w", err)
	}

	slots, err := r.selectedSlots(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	payment.SelectedSlots = slots

	return payment, nil
}

func (r *PackagePaymentRepository) selectedSlots(ctx context.Context, paymentID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT slot_id FROM package_payment_slots
		WHERE package_payment_id = $1
		ORDER BY position
	`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get selected slots: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan selected slot: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// MarkCompleted переводит оплату в completed. Уже завершённую не трогает.
func (r *PackagePaymentRepository) MarkCompleted(ctx context.Context, id int64, completedAt time.Time, expiresAt *time.Time) error {
	query := `
		UPDATE package_payments
		SET status = $1, completed_at = $2, expires_at = $3
		WHERE id = $4 AND status = $5
	`

	affected, err := base.ExecAffected(ctx, r.db, query,
		model.PaymentStatusCompleted, completedAt, expiresAt, id, model.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("mark payment completed: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("mark payment %d completed: %w", id, model.ErrOrderClosed)
	}

	return nil
}

// MarkFailed переводит ожидающую оплату в failed
func (r *PackagePaymentRepository) MarkFailed(ctx context.Context, id int64) error {
	query := `
		UPDATE package_payments
		SET status = $1
		WHERE id = $2 AND status = $3
	`

	affected, err := base.ExecAffected(ctx, r.db, query, model.PaymentStatusFailed, id, model.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("mark payment %d failed: %w", id, model.ErrOrderClosed)
	}

	return nil
}
