package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type LessonRepository struct {
	db base.DBTX
}

func NewLessonRepository(db base.DBTX) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonColumns = `id, teacher_id, student_id, subject_id, slot_id, subject, scheduled_at, duration_minutes,
	price, net_price, commission_rate, status, package_payment_id, is_package_lesson, reschedule_count,
	created_at, updated_at`

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	var lesson model.Lesson
	err := row.Scan(
		&lesson.ID,
		&lesson.TeacherID,
		&lesson.StudentID,
		&lesson.SubjectID,
		&lesson.SlotID,
		&lesson.Subject,
		&lesson.ScheduledAt,
		&lesson.DurationMinutes,
		&lesson.Price,
		&lesson.NetPrice,
		&lesson.CommissionRate,
		&lesson.Status,
		&lesson.PackagePaymentID,
		&lesson.IsPackageLesson,
		&lesson.RescheduleCount,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *LessonRepository) queryLessons(ctx context.Context, query string, args ...any) ([]*model.Lesson, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lessons := []*model.Lesson{}
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}

	return lessons, rows.Err()
}

// Create создаёт урок
func (r *LessonRepository) Create(ctx context.Context, lesson *model.Lesson) error {
	query := `
		INSERT INTO lessons (teacher_id, student_id, subject_id, slot_id, subject, scheduled_at, duration_minutes,
			price, net_price, commission_rate, status, package_payment_id, is_package_lesson, reschedule_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		lesson.TeacherID,
		lesson.StudentID,
		lesson.SubjectID,
		lesson.SlotID,
		lesson.Subject,
		lesson.ScheduledAt,
		lesson.DurationMinutes,
		lesson.Price,
		lesson.NetPrice,
		lesson.CommissionRate,
		lesson.Status,
		lesson.PackagePaymentID,
		lesson.IsPackageLesson,
		lesson.RescheduleCount,
	).Scan(&lesson.ID, &lesson.CreatedAt, &lesson.UpdatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("create lesson for slot %d: %w", lesson.SlotID, model.ErrSlotUnavailable)
		}
		return fmt.Errorf("create lesson: %w", err)
	}

	return nil
}

// GetByID получает урок по ID
func (r *LessonRepository) GetByID(ctx context.Context, id int64) (*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`

	lesson, err := scanLesson(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson by id: %w", err)
	}

	return lesson, nil
}

// GetForUpdate получает урок и блокирует строку до конца транзакции
func (r *LessonRepository) GetForUpdate(ctx context.Context, id int64) (*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1 FOR UPDATE`

	lesson, err := scanLesson(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock lesson: %w", err)
	}

	return lesson, nil
}

// UpdateStatus обновляет статус урока
func (r *LessonRepository) UpdateStatus(ctx context.Context, id int64, status model.LessonStatus) error {
	query := `
		UPDATE lessons
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update lesson status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update lesson %d status: %w", id, model.ErrNotFound)
	}

	return nil
}

// MoveToSlot переносит урок на другой слот
func (r *LessonRepository) MoveToSlot(ctx context.Context, id, slotID int64, scheduledAt time.Time, countChange bool) error {
	query := `
		UPDATE lessons
		SET slot_id = $1,
		    scheduled_at = $2,
		    reschedule_count = reschedule_count + CASE WHEN $3 THEN 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.db.Exec(ctx, query, slotID, scheduledAt, countChange, id)
	if err != nil {
		return fmt.Errorf("move lesson: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("move lesson %d: %w", id, model.ErrNotFound)
	}

	return nil
}

// ListByPackagePayment получает уроки пакета по времени
func (r *LessonRepository) ListByPackagePayment(ctx context.Context, packagePaymentID int64) ([]*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE package_payment_id = $1
		ORDER BY scheduled_at, id
	`

	lessons, err := r.queryLessons(ctx, query, packagePaymentID)
	if err != nil {
		return nil, fmt.Errorf("list lessons by package: %w", err)
	}

	return lessons, nil
}

// ListCompletedByTeacher получает проведённые уроки учителя
func (r *LessonRepository) ListCompletedByTeacher(ctx context.Context, teacherID int64) ([]*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE teacher_id = $1 AND status = $2
		ORDER BY scheduled_at, id
	`

	lessons, err := r.queryLessons(ctx, query, teacherID, model.LessonStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list completed lessons: %w", err)
	}

	return lessons, nil
}

// CountCompletedByTeacher считает проведённые уроки учителя для уровня комиссии
func (r *LessonRepository) CountCompletedByTeacher(ctx context.Context, teacherID int64) (int, error) {
	query := `SELECT COUNT(*) FROM lessons WHERE teacher_id = $1 AND status = $2`

	var count int
	err := r.db.QueryRow(ctx, query, teacherID, model.LessonStatusCompleted).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed lessons: %w", err)
	}

	return count, nil
}
