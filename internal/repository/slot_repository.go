package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type SlotRepository struct {
	db base.DBTX
}

func NewSlotRepository(db base.DBTX) *SlotRepository {
	return &SlotRepository{db: db}
}

const slotColumns = `id, teacher_id, start_time, end_time, is_booked, is_active, created_at`

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.ID,
		&slot.TeacherID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.IsBooked,
		&slot.IsActive,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO schedule_slots (teacher_id, start_time, end_time, is_booked, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		slot.TeacherID,
		slot.StartTime,
		slot.EndTime,
		slot.IsBooked,
		slot.IsActive,
	).Scan(&slot.ID, &slot.CreatedAt)

	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE id = $1`

	slot, err := scanSlot(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// ListFree получает свободные слоты учителя начиная с from
func (r *SlotRepository) ListFree(ctx context.Context, teacherID int64, from time.Time) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE teacher_id = $1
		  AND is_booked = false
		  AND is_active = true
		  AND start_time >= $2
		ORDER BY start_time, id
	`

	rows, err := r.db.Query(ctx, query, teacherID, from)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}
	defer rows.Close()

	slots := []*model.Slot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}

// TryReserve бронирует слот условным UPDATE: выигрывает только первый запрос
func (r *SlotRepository) TryReserve(ctx context.Context, id int64) (*model.Slot, error) {
	query := `
		UPDATE schedule_slots
		SET is_booked = true
		WHERE id = $1 AND is_booked = false AND is_active = true
		RETURNING ` + slotColumns

	slot, err := scanSlot(r.db.QueryRow(ctx, query, id))
	if err == nil {
		return slot, nil
	}
	if !base.IsNotFound(err) {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	// Ни одной строки: слот занят, снят с публикации или не существует
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("reserve slot %d: %w", id, model.ErrNotFound)
	}

	return nil, fmt.Errorf("reserve slot %d: %w", id, model.ErrSlotUnavailable)
}

// Release освобождает слот
func (r *SlotRepository) Release(ctx context.Context, id int64) error {
	query := `
		UPDATE schedule_slots
		SET is_booked = false
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("release slot %d: %w", id, model.ErrNotFound)
	}

	return nil
}

// Deactivate снимает свободный слот учителя с публикации
func (r *SlotRepository) Deactivate(ctx context.Context, teacherID, id int64) error {
	query := `
		UPDATE schedule_slots
		SET is_active = false
		WHERE id = $1 AND teacher_id = $2 AND is_booked = false
	`

	result, err := r.db.Exec(ctx, query, id, teacherID)
	if err != nil {
		return fmt.Errorf("deactivate slot: %w", err)
	}

	if result.RowsAffected() > 0 {
		return nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil || existing.TeacherID != teacherID {
		return fmt.Errorf("deactivate slot %d: %w", id, model.ErrNotFound)
	}

	return fmt.Errorf("deactivate slot %d: %w", id, model.ErrSlotUnavailable)
}
