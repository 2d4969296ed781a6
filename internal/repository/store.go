package repository

import (
	"context"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
)

// SlotStore хранилище слотов учителей
type SlotStore interface {
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, id int64) (*model.Slot, error)
	// ListFree возвращает свободные активные слоты учителя начиная с from, по возрастанию времени
	ListFree(ctx context.Context, teacherID int64, from time.Time) ([]*model.Slot, error)
	// TryReserve атомарно помечает слот занятым. Из двух конкурентных вызовов успешен ровно один,
	// второй получает model.ErrSlotUnavailable.
	TryReserve(ctx context.Context, id int64) (*model.Slot, error)
	// Release освобождает слот. Освобождение свободного слота не ошибка.
	Release(ctx context.Context, id int64) error
	// Deactivate снимает свободный слот с публикации
	Deactivate(ctx context.Context, teacherID, id int64) error
}

// LessonStore журнал уроков
type LessonStore interface {
	Create(ctx context.Context, lesson *model.Lesson) error
	GetByID(ctx context.Context, id int64) (*model.Lesson, error)
	// GetForUpdate читает урок и блокирует строку до конца транзакции
	GetForUpdate(ctx context.Context, id int64) (*model.Lesson, error)
	UpdateStatus(ctx context.Context, id int64, status model.LessonStatus) error
	// MoveToSlot меняет слот и время урока; countChange увеличивает reschedule_count
	MoveToSlot(ctx context.Context, id, slotID int64, scheduledAt time.Time, countChange bool) error
	ListByPackagePayment(ctx context.Context, packagePaymentID int64) ([]*model.Lesson, error)
	ListCompletedByTeacher(ctx context.Context, teacherID int64) ([]*model.Lesson, error)
	CountCompletedByTeacher(ctx context.Context, teacherID int64) (int, error)
}

// PackagePaymentStore оплаты пакетов
type PackagePaymentStore interface {
	// Create сохраняет оплату вместе с выбранными слотами
	Create(ctx context.Context, payment *model.PackagePayment) error
	GetByOrderID(ctx context.Context, orderID string) (*model.PackagePayment, error)
	// LockByOrderID читает оплату и блокирует строку до конца транзакции
	LockByOrderID(ctx context.Context, orderID string) (*model.PackagePayment, error)
	MarkCompleted(ctx context.Context, id int64, completedAt time.Time, expiresAt *time.Time) error
	MarkFailed(ctx context.Context, id int64) error
}

// LessonChangeStore журнал изменений, только добавление
type LessonChangeStore interface {
	Append(ctx context.Context, change *model.LessonChange) error
	ListByLesson(ctx context.Context, lessonID int64) ([]*model.LessonChange, error)
}

// ReconciliationStore очередь ручной сверки для операторов
type ReconciliationStore interface {
	Flag(ctx context.Context, item *model.ReconciliationItem) error
	// HasOpen проверяет нерешённую задачу оплаты с той же причиной
	HasOpen(ctx context.Context, packagePaymentID int64, reason model.ReconciliationReason) (bool, error)
	ListOpen(ctx context.Context) ([]*model.ReconciliationItem, error)
	CountOpen(ctx context.Context) (int, error)
	Resolve(ctx context.Context, id int64, resolvedAt time.Time) error
}

// UserStore справочник пользователей для уведомлений
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error)
}

// SubjectStore предметы учителей со ставками
type SubjectStore interface {
	GetByID(ctx context.Context, id int64) (*model.Subject, error)
}

// Store объединяет хранилища ядра
type Store interface {
	Slots() SlotStore
	Lessons() LessonStore
	Payments() PackagePaymentStore
	Changes() LessonChangeStore
	Reconciliation() ReconciliationStore
	Users() UserStore
	Subjects() SubjectStore

	// WithinTx выполняет fn в транзакции. Ошибка fn откатывает все записи.
	// Вложенный вызов создаёт точку сохранения.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
