package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// beginner реализуют и пул, и транзакция (у транзакции Begin создаёт savepoint)
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres Store поверх пула или открытой транзакции
type Postgres struct {
	db base.DBTX

	slots          *SlotRepository
	lessons        *LessonRepository
	payments       *PackagePaymentRepository
	changes        *LessonChangeRepository
	reconciliation *ReconciliationRepository
	users          *UserRepository
	subjects       *SubjectRepository
}

// NewPostgres создаёт хранилище поверх пула соединений
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return newPostgres(pool)
}

func newPostgres(db base.DBTX) *Postgres {
	return &Postgres{
		db:             db,
		slots:          NewSlotRepository(db),
		lessons:        NewLessonRepository(db),
		payments:       NewPackagePaymentRepository(db),
		changes:        NewLessonChangeRepository(db),
		reconciliation: NewReconciliationRepository(db),
		users:          NewUserRepository(db),
		subjects:       NewSubjectRepository(db),
	}
}

func (p *Postgres) Slots() SlotStore                    { return p.slots }
func (p *Postgres) Lessons() LessonStore                { return p.lessons }
func (p *Postgres) Payments() PackagePaymentStore       { return p.payments }
func (p *Postgres) Changes() LessonChangeStore          { return p.changes }
func (p *Postgres) Reconciliation() ReconciliationStore { return p.reconciliation }
func (p *Postgres) Users() UserStore                    { return p.users }
func (p *Postgres) Subjects() SubjectStore              { return p.subjects }

// WithinTx выполняет fn в транзакции (или savepoint, если транзакция уже открыта)
func (p *Postgres) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	b, ok := p.db.(beginner)
	if !ok {
		return fmt.Errorf("begin transaction: connection does not support transactions")
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newPostgres(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
