package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/base"
)

type ReconciliationRepository struct {
	db base.DBTX
}

func NewReconciliationRepository(db base.DBTX) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

// Flag ставит заказ в очередь ручной сверки
func (r *ReconciliationRepository) Flag(ctx context.Context, item *model.ReconciliationItem) error {
	query := `
		INSERT INTO reconciliation_items (package_payment_id, order_id, reason, slot_id, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		item.PackagePaymentID,
		item.OrderID,
		item.Reason,
		item.SlotID,
		item.Details,
	).Scan(&item.ID, &item.CreatedAt)

	if err != nil {
		return fmt.Errorf("flag reconciliation item: %w", err)
	}

	return nil
}

// HasOpen проверяет, есть ли у оплаты нерешённая задача с этой причиной
func (r *ReconciliationRepository) HasOpen(ctx context.Context, packagePaymentID int64, reason model.ReconciliationReason) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reconciliation_items
			WHERE package_payment_id = $1 AND reason = $2 AND resolved_at IS NULL
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, packagePaymentID, reason).Scan(&exists); err != nil {
		return false, fmt.Errorf("check open reconciliation item: %w", err)
	}

	return exists, nil
}

// ListOpen получает нерешённые задачи сверки, старые первыми
func (r *ReconciliationRepository) ListOpen(ctx context.Context) ([]*model.ReconciliationItem, error) {
	query := `
		SELECT id, package_payment_id, order_id, reason, slot_id, details, created_at, resolved_at
		FROM reconciliation_items
		WHERE resolved_at IS NULL
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation items: %w", err)
	}
	defer rows.Close()

	items := []*model.ReconciliationItem{}
	for rows.Next() {
		var item model.ReconciliationItem
		err := rows.Scan(
			&item.ID,
			&item.PackagePaymentID,
			&item.OrderID,
			&item.Reason,
			&item.SlotID,
			&item.Details,
			&item.CreatedAt,
			&item.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reconciliation item: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reconciliation items: %w", err)
	}

	return items, nil
}

// CountOpen считает нерешённые задачи сверки
func (r *ReconciliationRepository) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reconciliation_items WHERE resolved_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reconciliation items: %w", err)
	}
	return count, nil
}

// Resolve закрывает задачу сверки
func (r *ReconciliationRepository) Resolve(ctx context.Context, id int64, resolvedAt time.Time) error {
	query := `
		UPDATE reconciliation_items
		SET resolved_at = $1
		WHERE id = $2 AND resolved_at IS NULL
	`

	result, err := r.db.Exec(ctx, query, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("resolve reconciliation item: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("resolve reconciliation item %d: %w", id, model.ErrNotFound)
	}

	return nil
}
