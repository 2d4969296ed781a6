package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_booking/internal/metrics"
	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/notifier"
	"github.com/Freeeeeet/lesson_booking/internal/pricing"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
	"go.uber.org/zap"
)

// CompletionHook вызывается после перевода урока в COMPLETED
type CompletionHook func(ctx context.Context, lesson *model.Lesson)

// LessonService ведёт журнал уроков: запись, смена статуса, перенос на другой слот
type LessonService struct {
	store    repository.Store
	pricing  *pricing.Model
	notifier notifier.Notifier
	clock    Clock
	logger   *zap.Logger

	onCompleted []CompletionHook
}

func NewLessonService(
	store repository.Store,
	pricingModel *pricing.Model,
	n notifier.Notifier,
	clock Clock,
	logger *zap.Logger,
) *LessonService {
	return &LessonService{
		store:    store,
		pricing:  pricingModel,
		notifier: n,
		clock:    clock,
		logger:   logger,
	}
}

// OnCompleted подписывает потребителя (отчёты по комиссии) на завершение уроков
func (s *LessonService) OnCompleted(hook CompletionHook) {
	s.onCompleted = append(s.onCompleted, hook)
}

// BookingInput данные для создания урока на уже зарезервированном слоте
type BookingInput struct {
	StudentID        int64
	Subject          *model.Subject
	Slot             *model.Slot
	PackagePaymentID *int64
	// Quote цена, зафиксированная при оплате пакета. Если nil, считается по текущему уровню учителя.
	Quote *pricing.Breakdown
}

// Quote считает цену урока предмета по текущему уровню комиссии учителя
func (s *LessonService) Quote(ctx context.Context, subjectID int64) (*model.Subject, pricing.Breakdown, error) {
	subject, err := s.store.Subjects().GetByID(ctx, subjectID)
	if err != nil {
		return nil, pricing.Breakdown{}, fmt.Errorf("get subject: %w", err)
	}
	if subject == nil {
		return nil, pricing.Breakdown{}, fmt.Errorf("subject %d: %w", subjectID, model.ErrNotFound)
	}

	quote, err := s.quote(ctx, s.store, subject)
	if err != nil {
		return nil, pricing.Breakdown{}, err
	}

	return subject, quote, nil
}

func (s *LessonService) quote(ctx context.Context, store repository.Store, subject *model.Subject) (pricing.Breakdown, error) {
	completed, err := store.Lessons().CountCompletedByTeacher(ctx, subject.TeacherID)
	if err != nil {
		return pricing.Breakdown{}, err
	}

	quote := s.pricing.ComputeDisplayPrice(subject.NetPrice, completed)
	if quote.IsZero() {
		return pricing.Breakdown{}, fmt.Errorf("subject %d has no positive rate: %w", subject.ID, model.ErrInvalidInput)
	}

	return quote, nil
}

// BookSingleLesson бронирует слот и создаёт подтверждённый урок одной транзакцией
func (s *LessonService) BookSingleLesson(ctx context.Context, studentID, slotID, subjectID int64) (*model.Lesson, error) {
	subject, err := s.store.Subjects().GetByID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	if subject == nil {
		return nil, fmt.Errorf("subject %d: %w", subjectID, model.ErrNotFound)
	}
	if !subject.IsActive {
		return nil, fmt.Errorf("subject %d is not active: %w", subjectID, model.ErrInvalidInput)
	}

	var lesson *model.Lesson
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		slot, err := tx.Slots().GetByID(ctx, slotID)
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}
		if slot == nil {
			return fmt.Errorf("slot %d: %w", slotID, model.ErrNotFound)
		}
		if slot.TeacherID != subject.TeacherID {
			return fmt.Errorf("slot %d belongs to another teacher: %w", slotID, model.ErrInvalidInput)
		}
		if !slot.StartTime.After(s.clock.Now()) {
			return fmt.Errorf("slot %d is in the past: %w", slotID, model.ErrSlotUnavailable)
		}

		reserved, err := tx.Slots().TryReserve(ctx, slotID)
		metrics.RecordReservation(err == nil)
		if err != nil {
			return err
		}

		lesson, err = s.CreateBooking(ctx, tx, BookingInput{
			StudentID: studentID,
			Subject:   subject,
			Slot:      reserved,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lesson booked",
		zap.Int64("lesson_id", lesson.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("slot_id", slotID))

	notify(ctx, s.notifier, s.logger, notifier.EventLessonBooked,
		[]int64{lesson.StudentID, lesson.TeacherID}, notifier.Payload{Lesson: lesson})

	return lesson, nil
}

// CreateBooking создаёт CONFIRMED урок на слоте, который уже зарезервирован в store.
// Цена фиксируется здесь и больше не пересчитывается.
func (s *LessonService) CreateBooking(ctx context.Context, store repository.Store, input BookingInput) (*model.Lesson, error) {
	if input.Slot == nil || input.Subject == nil {
		return nil, fmt.Errorf("create booking: slot and subject required: %w", model.ErrInvalidInput)
	}
	if !input.Slot.IsBooked {
		return nil, fmt.Errorf("slot %d is not reserved: %w", input.Slot.ID, model.ErrSlotUnavailable)
	}
	if input.Slot.TeacherID != input.Subject.TeacherID {
		return nil, fmt.Errorf("slot %d belongs to another teacher: %w", input.Slot.ID, model.ErrInvalidInput)
	}

	var quote pricing.Breakdown
	if input.Quote != nil {
		quote = *input.Quote
	} else {
		var err error
		quote, err = s.quote(ctx, store, input.Subject)
		if err != nil {
			return nil, err
		}
	}

	duration := input.Subject.Duration
	if duration <= 0 {
		duration = input.Slot.DurationMinutes()
	}

	lesson := &model.Lesson{
		TeacherID:        input.Slot.TeacherID,
		StudentID:        input.StudentID,
		SubjectID:        input.Subject.ID,
		SlotID:           input.Slot.ID,
		Subject:          input.Subject.Name,
		ScheduledAt:      input.Slot.StartTime,
		DurationMinutes:  duration,
		Price:            quote.DisplayPrice,
		NetPrice:         quote.NetPrice,
		CommissionRate:   quote.CommissionRate,
		Status:           model.LessonStatusConfirmed,
		PackagePaymentID: input.PackagePaymentID,
		IsPackageLesson:  input.PackagePaymentID != nil,
	}

	if err := store.Lessons().Create(ctx, lesson); err != nil {
		return nil, err
	}

	return lesson, nil
}

// UpdateStatus меняет статус урока. Отмена освобождает слот в той же транзакции,
// завершение передаётся подписчикам OnCompleted.
func (s *LessonService) UpdateStatus(ctx context.Context, lessonID int64, status model.LessonStatus) (*model.Lesson, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("status %q: %w", status, model.ErrInvalidInput)
	}

	var lesson *model.Lesson
	var previous model.LessonStatus
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		lesson, err = tx.Lessons().GetForUpdate(ctx, lessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return fmt.Errorf("lesson %d: %w", lessonID, model.ErrNotFound)
		}
		if !lesson.Status.CanTransitionTo(status) {
			return fmt.Errorf("lesson %d %s -> %s: %w", lessonID, lesson.Status, status, model.ErrInvalidStatus)
		}

		if err := tx.Lessons().UpdateStatus(ctx, lessonID, status); err != nil {
			return err
		}

		if status == model.LessonStatusCancelled {
			if err := tx.Slots().Release(ctx, lesson.SlotID); err != nil {
				return fmt.Errorf("release slot: %w", err)
			}
		}

		previous = lesson.Status
		lesson.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lesson status changed",
		zap.Int64("lesson_id", lessonID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))

	recipients := []int64{lesson.StudentID, lesson.TeacherID}
	switch status {
	case model.LessonStatusCompleted:
		for _, hook := range s.onCompleted {
			hook(ctx, lesson)
		}
		notify(ctx, s.notifier, s.logger, notifier.EventLessonCompleted, recipients, notifier.Payload{Lesson: lesson})
	case model.LessonStatusCancelled:
		notify(ctx, s.notifier, s.logger, notifier.EventLessonCancelled, recipients, notifier.Payload{Lesson: lesson})
	}

	return lesson, nil
}

// MoveToSlot переносит урок на уже зарезервированный слот внутри транзакции переноса.
// Время урока всегда берётся из слота; countChange увеличивает счётчик переносов ученика.
func (s *LessonService) MoveToSlot(ctx context.Context, store repository.Store, lessonID int64, slot *model.Slot, countChange bool) error {
	if !slot.IsBooked {
		return fmt.Errorf("slot %d is not reserved: %w", slot.ID, model.ErrSlotUnavailable)
	}
	return store.Lessons().MoveToSlot(ctx, lessonID, slot.ID, slot.StartTime, countChange)
}

// GetLesson получает урок
func (s *LessonService) GetLesson(ctx context.Context, lessonID int64) (*model.Lesson, error) {
	lesson, err := s.store.Lessons().GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, fmt.Errorf("lesson %d: %w", lessonID, model.ErrNotFound)
	}
	return lesson, nil
}

// ListChanges возвращает журнал переносов урока
func (s *LessonService) ListChanges(ctx context.Context, lessonID int64) ([]*model.LessonChange, error) {
	if _, err := s.GetLesson(ctx, lessonID); err != nil {
		return nil, err
	}
	return s.store.Changes().ListByLesson(ctx, lessonID)
}
