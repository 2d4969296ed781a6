package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/notifier"
	"github.com/Freeeeeet/lesson_booking/internal/payment"
	"github.com/Freeeeeet/lesson_booking/internal/pricing"
	"github.com/Freeeeeet/lesson_booking/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type sentNotification struct {
	Event      notifier.Event
	Recipients []int64
	Payload    notifier.Payload
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, event notifier.Event, recipients []int64, payload notifier.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Event: event, Recipients: recipients, Payload: payload})
	return n.err
}

func (n *recordingNotifier) byEvent(event notifier.Event) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Event == event {
			out = append(out, s)
		}
	}
	return out
}

func testPricing(t *testing.T) *pricing.Model {
	t.Helper()
	m, err := pricing.NewModel(pricing.Config{
		CommissionTiers: []pricing.Tier{
			{MinLessons: 0, MaxLessons: 49, Rate: decimal.RequireFromString("0.25")},
			{MinLessons: 50, MaxLessons: 199, Rate: decimal.RequireFromString("0.20")},
			{MinLessons: 200, MaxLessons: -1, Rate: decimal.RequireFromString("0.15")},
		},
		StopajRate:        decimal.RequireFromString("0.20"),
		VATRate:           decimal.RequireFromString("0.20"),
		RoundingIncrement: decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	return m
}

type fixture struct {
	store  *memory.Store
	clock  *fixedClock
	notes  *recordingNotifier
	signer *payment.Signer

	lessons      *LessonService
	fulfillment  *FulfillmentService
	reschedule   *RescheduleService
	reports      *ReportService
	availability *AvailabilityService

	teacher      *model.User
	otherTeacher *model.User
	student      *model.User
	subject      *model.Subject
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRules(t, RescheduleRules{
		Deadline:          24 * time.Hour,
		MaxStudentChanges: 2,
		ReleaseOldSlot:    true,
	})
}

func newFixtureWithRules(t *testing.T, rules RescheduleRules) *fixture {
	t.Helper()

	f := &fixture{
		store:  memory.New(),
		clock:  &fixedClock{now: testNow},
		notes:  &recordingNotifier{},
		signer: payment.NewSigner("test-secret"),
	}
	logger := zap.NewNop()
	pricingModel := testPricing(t)

	f.lessons = NewLessonService(f.store, pricingModel, f.notes, f.clock, logger)
	f.fulfillment = NewFulfillmentService(f.store, f.lessons, f.signer, f.notes, f.clock, FulfillmentConfig{
		GatewayURL:  "https://pay.test/checkout",
		CallbackURL: "https://api.test/payments/package/callback",
		GraceDays:   30,
	}, logger)
	f.reschedule = NewRescheduleService(f.store, f.lessons, f.notes, f.clock, rules, logger)
	f.reports = NewReportService(f.store, pricingModel, logger)
	f.lessons.OnCompleted(f.reports.LessonCompleted)
	f.availability = NewAvailabilityService(f.store, f.clock, logger)

	f.teacher = f.store.AddUser(model.User{TelegramID: 100, FirstName: "Ayşe", IsTeacher: true})
	f.otherTeacher = f.store.AddUser(model.User{TelegramID: 101, FirstName: "Mehmet", IsTeacher: true})
	f.student = f.store.AddUser(model.User{TelegramID: 200, FirstName: "Deniz"})
	f.subject = f.store.AddSubject(model.Subject{
		TeacherID: f.teacher.ID,
		Name:      "Математика",
		NetPrice:  decimal.NewFromInt(1000),
		Duration:  60,
		IsActive:  true,
	})

	return f
}

// slotAt создаёт свободный часовой слот учителя
func (f *fixture) slotAt(t *testing.T, teacherID int64, start time.Time) *model.Slot {
	t.Helper()
	slot := &model.Slot{
		TeacherID: teacherID,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		IsActive:  true,
	}
	require.NoError(t, f.store.Slots().Create(context.Background(), slot))
	return slot
}

// slotsIn создаёт слоты учителя через заданное число часов от текущего времени
func (f *fixture) slotsIn(t *testing.T, hours ...int) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(hours))
	for _, h := range hours {
		ids = append(ids, f.slotAt(t, f.teacher.ID, testNow.Add(time.Duration(h)*time.Hour)).ID)
	}
	return ids
}

// callback подписывает поля callback'а так, как это делает провайдер
func (f *fixture) callback(orderID, code string, slotIDs []int64) url.Values {
	values := url.Values{}
	values.Set(payment.FieldOrderID, orderID)
	values.Set(payment.FieldResponseCode, code)
	if len(slotIDs) > 0 {
		values.Set(payment.FieldSlots, payment.FormatSlotIDs(slotIDs))
	}
	values.Set(payment.FieldHash, f.signer.Sign(values))
	return values
}

// buyPackage оформляет и оплачивает пакет на слоты
func (f *fixture) buyPackage(t *testing.T, slotIDs []int64) *FulfillResult {
	t.Helper()
	ctx := context.Background()

	checkout, err := f.fulfillment.StartPackageCheckout(ctx, f.student.ID, f.subject.ID, slotIDs)
	require.NoError(t, err)

	res, err := f.fulfillment.Fulfill(ctx, f.callback(checkout.Payment.OrderID, payment.ResponseApproved, nil))
	require.NoError(t, err)
	require.Len(t, res.Lessons, len(slotIDs))
	return res
}

// packageLessonIn создаёт урок пакета через hours часов
func (f *fixture) packageLessonIn(t *testing.T, hours int) *model.Lesson {
	t.Helper()
	return f.buyPackage(t, f.slotsIn(t, hours)).Lessons[0]
}

func (f *fixture) slot(t *testing.T, id int64) *model.Slot {
	t.Helper()
	slot, err := f.store.Slots().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, slot)
	return slot
}

func (f *fixture) lesson(t *testing.T, id int64) *model.Lesson {
	t.Helper()
	lesson, err := f.store.Lessons().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, lesson)
	return lesson
}
