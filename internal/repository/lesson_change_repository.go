package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/base"
)

// LessonChangeRepository журнал переносов. Только INSERT и SELECT.
type LessonChangeRepository struct {
	db base.DBTX
}

func NewLessonChangeRepository(db base.DBTX) *LessonChangeRepository {
	return &LessonChangeRepository{db: db}
}

// Append добавляет запись в журнал
func (r *LessonChangeRepository) Append(ctx context.Context, change *model.LessonChange) error {
	query := `
		INSERT INTO lesson_changes (lesson_id, package_payment_id, change_type, initiated_by, requester_id,
			reason_category, reason_text, old_slot_id, new_slot_id, old_scheduled_at, new_scheduled_at,
			change_count_before)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		change.LessonID,
		change.PackagePaymentID,
		change.ChangeType,
		change.InitiatedBy,
		change.RequesterID,
		change.ReasonCategory,
		change.ReasonText,
		change.OldSlotID,
		change.NewSlotID,
		change.OldScheduledAt,
		change.NewScheduledAt,
		change.ChangeCountBefore,
	).Scan(&change.ID, &change.CreatedAt)

	if err != nil {
		return fmt.Errorf("append lesson change: %w", err)
	}

	return nil
}

// ListByLesson получает историю изменений урока
func (r *LessonChangeRepository) ListByLesson(ctx context.Context, lessonID int64) ([]*model.LessonChange, error) {
	query := `
		SELECT id, lesson_id, package_payment_id, change_type, initiated_by, requester_id, reason_category,
			reason_text, old_slot_id, new_slot_id, old_scheduled_at, new_scheduled_at, change_count_before, created_at
		FROM lesson_changes
		WHERE lesson_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list lesson changes: %w", err)
	}
	defer rows.Close()

	changes := []*model.LessonChange{}
	for rows.Next() {
		var c model.LessonChange
		err := rows.Scan(
			&c.ID,
			&c.LessonID,
			&c.PackagePaymentID,
			&c.ChangeType,
			&c.InitiatedBy,
			&c.RequesterID,
			&c.ReasonCategory,
			&c.ReasonText,
			&c.OldSlotID,
			&c.NewSlotID,
			&c.OldScheduledAt,
			&c.NewScheduledAt,
			&c.ChangeCountBefore,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan lesson change: %w", err)
		}
		changes = append(changes, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lesson changes: %w", err)
	}

	return changes, nil
}
