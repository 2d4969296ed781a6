package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/metrics"
	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/notifier"
	"github.com/Freeeeeet/lesson_booking/internal/payment"
	"github.com/Freeeeeet/lesson_booking/internal/pricing"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type FulfillOutcome string

const (
	FulfillCompleted        FulfillOutcome = "completed"
	FulfillAlreadyCompleted FulfillOutcome = "already_completed"
	// FulfillPartial оплата завершена, но часть слотов ушла в ручную сверку
	FulfillPartial FulfillOutcome = "partial"
)

// FulfillmentConfig параметры оплаты пакетов
type FulfillmentConfig struct {
	GatewayURL  string
	CallbackURL string
	GraceDays   int
}

// FulfillmentService проводит оплату пакетов: checkout и обработку callback'а провайдера
type FulfillmentService struct {
	store    repository.Store
	lessons  *LessonService
	signer   *payment.Signer
	notifier notifier.Notifier
	clock    Clock
	cfg      FulfillmentConfig
	logger   *zap.Logger
}

func NewFulfillmentService(
	store repository.Store,
	lessons *LessonService,
	signer *payment.Signer,
	n notifier.Notifier,
	clock Clock,
	cfg FulfillmentConfig,
	logger *zap.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		store:    store,
		lessons:  lessons,
		signer:   signer,
		notifier: n,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Checkout созданный заказ и подписанная форма для страницы оплаты
type Checkout struct {
	Payment *model.PackagePayment `json:"payment"`
	Price   pricing.Breakdown     `json:"price"`
	Form    payment.CheckoutForm  `json:"form"`
}

// StartPackageCheckout создаёт ожидающую оплату пакета на выбранные слоты.
// Слоты не бронируются до подтверждения оплаты, только проверяются.
func (s *FulfillmentService) StartPackageCheckout(ctx context.Context, studentID, subjectID int64, slotIDs []int64) (*Checkout, error) {
	if len(slotIDs) == 0 {
		return nil, fmt.Errorf("no slots selected: %w", model.ErrInvalidInput)
	}

	seen := make(map[int64]bool, len(slotIDs))
	for _, id := range slotIDs {
		if seen[id] {
			return nil, fmt.Errorf("slot %d selected twice: %w", id, model.ErrInvalidInput)
		}
		seen[id] = true
	}

	subject, quote, err := s.lessons.Quote(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if !subject.IsActive {
		return nil, fmt.Errorf("subject %d is not active: %w", subjectID, model.ErrInvalidInput)
	}

	now := s.clock.Now()
	for _, id := range slotIDs {
		slot, err := s.store.Slots().GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get slot: %w", err)
		}
		if slot == nil {
			return nil, fmt.Errorf("slot %d: %w", id, model.ErrNotFound)
		}
		if slot.TeacherID != subject.TeacherID || !slot.IsFreeAt(now) {
			return nil, fmt.Errorf("slot %d: %w", id, model.ErrSlotUnavailable)
		}
	}

	p := &model.PackagePayment{
		OrderID:        uuid.NewString(),
		TeacherID:      subject.TeacherID,
		StudentID:      studentID,
		SubjectID:      subject.ID,
		TotalLessons:   len(slotIDs),
		LessonPrice:    quote.DisplayPrice,
		NetPrice:       quote.NetPrice,
		CommissionRate: quote.CommissionRate,
		TotalAmount:    quote.DisplayPrice.Mul(decimal.NewFromInt(int64(len(slotIDs)))),
		Status:         model.PaymentStatusPending,
		SelectedSlots:  slotIDs,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		return tx.Payments().Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Package checkout started",
		zap.String("order_id", p.OrderID),
		zap.Int64("student_id", studentID),
		zap.Int("lessons", p.TotalLessons),
		zap.String("total", p.TotalAmount.String()))

	return &Checkout{
		Payment: p,
		Price:   quote,
		Form:    s.signer.BuildCheckoutForm(s.cfg.GatewayURL, s.cfg.CallbackURL, p),
	}, nil
}

// FulfillResult итог обработки callback'а
type FulfillResult struct {
	Outcome FulfillOutcome
	Payment *model.PackagePayment
	Lessons []*model.Lesson
	Flagged []*model.ReconciliationItem
}

// Fulfill обрабатывает callback провайдера об оплате пакета.
//
// Повторный callback по завершённому заказу ничего не создаёт и возвращает FulfillAlreadyCompleted.
// Конкурентные callback'и одного заказа сериализуются блокировкой строки оплаты.
// При ErrSlotsMissing результат тоже возвращается: оплата завершена, заказ ждёт оператора.
func (s *FulfillmentService) Fulfill(ctx context.Context, fields url.Values) (*FulfillResult, error) {
	cb, err := s.signer.Verify(fields)
	if err != nil {
		metrics.PackageFulfillments.WithLabelValues(model.ErrorCode(err)).Inc()
		s.logger.Warn("Rejected payment callback", zap.Error(err))
		return nil, err
	}

	res, err := s.fulfill(ctx, cb)

	outcome := model.ErrorCode(err)
	if err == nil {
		outcome = string(res.Outcome)
	}
	metrics.PackageFulfillments.WithLabelValues(outcome).Inc()

	if err != nil && !errors.Is(err, model.ErrSlotsMissing) {
		s.logger.Warn("Package payment not fulfilled",
			zap.String("order_id", cb.OrderID),
			zap.String("response_code", cb.ResponseCode),
			zap.Error(err))
		return nil, err
	}

	if res.Outcome != FulfillAlreadyCompleted {
		s.logger.Info("Package payment completed",
			zap.String("order_id", cb.OrderID),
			zap.String("outcome", string(res.Outcome)),
			zap.Int("lessons_created", len(res.Lessons)),
			zap.Int("flagged", len(res.Flagged)))

		if len(res.Lessons) > 0 {
			p := res.Payment
			notify(ctx, s.notifier, s.logger, notifier.EventPackagePurchased,
				[]int64{p.StudentID, p.TeacherID},
				notifier.Payload{OrderID: p.OrderID, TotalAmount: p.TotalAmount, Lessons: res.Lessons})
		}
	}

	return res, err
}

func (s *FulfillmentService) fulfill(ctx context.Context, cb *payment.Callback) (*FulfillResult, error) {
	var res *FulfillResult
	var outcomeErr error

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		res, outcomeErr = nil, nil

		p, err := tx.Payments().LockByOrderID(ctx, cb.OrderID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("order %s: %w", cb.OrderID, model.ErrNotFound)
		}

		if p.IsCompleted() {
			lessons, err := tx.Lessons().ListByPackagePayment(ctx, p.ID)
			if err != nil {
				return err
			}
			res = &FulfillResult{Outcome: FulfillAlreadyCompleted, Payment: p, Lessons: lessons}
			return nil
		}

		if !cb.Approved() {
			if !p.IsFailed() {
				if err := tx.Payments().MarkFailed(ctx, p.ID); err != nil {
					return err
				}
			}
			outcomeErr = fmt.Errorf("order %s code %q: %w", p.OrderID, cb.ResponseCode, model.ErrPaymentDeclined)
			return nil
		}

		if p.IsFailed() {
			// провайдер подтвердил оплату уже отклонённого заказа: деньги списаны, нужен оператор.
			// Повторы того же подтверждения не плодят задачи.
			open, err := tx.Reconciliation().HasOpen(ctx, p.ID, model.ReconcileLateSuccess)
			if err != nil {
				return err
			}
			if !open {
				item := &model.ReconciliationItem{
					PackagePaymentID: p.ID,
					OrderID:          p.OrderID,
					Reason:           model.ReconcileLateSuccess,
					Details:          "approved callback for a failed order",
				}
				if err := tx.Reconciliation().Flag(ctx, item); err != nil {
					return err
				}
			}
			outcomeErr = fmt.Errorf("order %s: %w", p.OrderID, model.ErrOrderClosed)
			return nil
		}

		res, err = s.materialize(ctx, tx, p, cb.SlotIDs)
		if err != nil {
			return err
		}
		if len(res.Lessons) == 0 && len(res.Flagged) == 1 && res.Flagged[0].Reason == model.ReconcileSlotsMissing {
			outcomeErr = fmt.Errorf("order %s: %w", p.OrderID, model.ErrSlotsMissing)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, outcomeErr
}

// materialize создаёт уроки пакета и завершает оплату. Вызывается под блокировкой заказа.
func (s *FulfillmentService) materialize(ctx context.Context, tx repository.Store, p *model.PackagePayment, inline []int64) (*FulfillResult, error) {
	now := s.clock.Now()
	res := &FulfillResult{Outcome: FulfillCompleted, Payment: p}

	flag := func(reason model.ReconciliationReason, slotID *int64, details string) error {
		item := &model.ReconciliationItem{
			PackagePaymentID: p.ID,
			OrderID:          p.OrderID,
			Reason:           reason,
			SlotID:           slotID,
			Details:          details,
		}
		if err := tx.Reconciliation().Flag(ctx, item); err != nil {
			return fmt.Errorf("flag order %s: %w", p.OrderID, err)
		}
		res.Flagged = append(res.Flagged, item)
		res.Outcome = FulfillPartial
		return nil
	}

	slotIDs := dedupe(inline)
	if len(slotIDs) == 0 {
		slotIDs = dedupe(p.SelectedSlots)
	}

	if len(slotIDs) == 0 {
		if err := tx.Payments().MarkCompleted(ctx, p.ID, now, nil); err != nil {
			return nil, err
		}
		if err := flag(model.ReconcileSlotsMissing, nil, "no slots in callback or checkout selection"); err != nil {
			return nil, err
		}
		p.Status = model.PaymentStatusCompleted
		p.CompletedAt = &now
		return res, nil
	}

	subject, err := tx.Subjects().GetByID(ctx, p.SubjectID)
	if err != nil {
		return nil, err
	}

	for _, slotID := range slotIDs {
		if subject == nil {
			if err := flag(model.ReconcileBookingFailed, &slotID, fmt.Sprintf("subject %d not found", p.SubjectID)); err != nil {
				return nil, err
			}
			continue
		}

		var lesson *model.Lesson
		err := tx.WithinTx(ctx, func(sp repository.Store) error {
			slot, err := sp.Slots().TryReserve(ctx, slotID)
			metrics.RecordReservation(err == nil)
			if err != nil {
				return err
			}
			if slot.TeacherID != p.TeacherID || !slot.StartTime.After(now) {
				return fmt.Errorf("slot %d: %w", slotID, model.ErrSlotUnavailable)
			}

			lesson, err = s.lessons.CreateBooking(ctx, sp, BookingInput{
				StudentID:        p.StudentID,
				Subject:          subject,
				Slot:             slot,
				PackagePaymentID: &p.ID,
				Quote:            &pricing.Breakdown{DisplayPrice: p.LessonPrice, NetPrice: p.NetPrice, CommissionRate: p.CommissionRate},
			})
			return err
		})

		switch {
		case err == nil:
			res.Lessons = append(res.Lessons, lesson)
		case errors.Is(err, model.ErrSlotUnavailable) || errors.Is(err, model.ErrNotFound):
			if err := flag(model.ReconcileSlotUnavailable, &slotID, err.Error()); err != nil {
				return nil, err
			}
		case model.IsRetryable(err):
			// сбой хранилища: вся транзакция откатывается, провайдер повторит callback
			return nil, err
		default:
			if err := flag(model.ReconcileBookingFailed, &slotID, err.Error()); err != nil {
				return nil, err
			}
		}
	}

	var expiresAt *time.Time
	if latest := latestLesson(res.Lessons); latest != nil {
		t := latest.ScheduledAt.AddDate(0, 0, s.cfg.GraceDays)
		expiresAt = &t
	}

	if err := tx.Payments().MarkCompleted(ctx, p.ID, now, expiresAt); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatusCompleted
	p.CompletedAt = &now
	p.ExpiresAt = expiresAt

	metrics.PackageLessonsCreated.Add(float64(len(res.Lessons)))

	return res, nil
}

// ListReconciliation возвращает открытые задачи ручной сверки
func (s *FulfillmentService) ListReconciliation(ctx context.Context) ([]*model.ReconciliationItem, error) {
	return s.store.Reconciliation().ListOpen(ctx)
}

// ResolveReconciliation закрывает задачу сверки
func (s *FulfillmentService) ResolveReconciliation(ctx context.Context, id int64) error {
	if err := s.store.Reconciliation().Resolve(ctx, id, s.clock.Now()); err != nil {
		return fmt.Errorf("resolve reconciliation item %d: %w", id, err)
	}

	s.logger.Info("Reconciliation item resolved", zap.Int64("item_id", id))
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func latestLesson(lessons []*model.Lesson) *model.Lesson {
	var latest *model.Lesson
	for _, l := range lessons {
		if latest == nil || l.ScheduledAt.After(latest.ScheduledAt) {
			latest = l
		}
	}
	return latest
}
