package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/base"
)

type SubjectRepository struct {
	db base.DBTX
}

func NewSubjectRepository(db base.DBTX) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// GetByID получает предмет по ID
func (r *SubjectRepository) GetByID(ctx context.Context, id int64) (*model.Subject, error) {
	query := `
		SELECT id, teacher_id, name, description, net_price, duration, is_active, created_at
		FROM subjects
		WHERE id = $1
	`

	var subject model.Subject
	err := r.db.QueryRow(ctx, query, id).Scan(
		&subject.ID,
		&subject.TeacherID,
		&subject.Name,
		&subject.Description,
		&subject.NetPrice,
		&subject.Duration,
		&subject.IsActive,
		&subject.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subject by id: %w", err)
	}

	return &subject, nil
}
