package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlot(t *testing.T, s *Store) *model.Slot {
	t.Helper()
	start := time.Now().Add(48 * time.Hour)
	slot := &model.Slot{TeacherID: 1, StartTime: start, EndTime: start.Add(time.Hour), IsActive: true}
	require.NoError(t, s.Slots().Create(context.Background(), slot))
	return slot
}

func TestTryReserve_Concurrent(t *testing.T) {
	s := New()
	slot := newSlot(t, s)

	const callers = 50
	var wg sync.WaitGroup
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Slots().TryReserve(context.Background(), slot.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for err := range results {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, model.ErrSlotUnavailable)
	}
	assert.Equal(t, 1, won)
}

func TestRelease_Idempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	slot := newSlot(t, s)

	_, err := s.Slots().TryReserve(ctx, slot.ID)
	require.NoError(t, err)

	require.NoError(t, s.Slots().Release(ctx, slot.ID))
	require.NoError(t, s.Slots().Release(ctx, slot.ID))

	got, err := s.Slots().GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBooked)

	_, err = s.Slots().TryReserve(ctx, 9999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	slot := newSlot(t, s)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Slots().TryReserve(ctx, slot.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Slots().GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBooked)
}

func TestWithinTx_NestedRollbackKeepsOuterWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := newSlot(t, s)
	second := newSlot(t, s)

	err := s.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Slots().TryReserve(ctx, first.ID); err != nil {
			return err
		}

		inner := tx.WithinTx(ctx, func(sp repository.Store) error {
			if _, err := sp.Slots().TryReserve(ctx, second.ID); err != nil {
				return err
			}
			return model.ErrSlotUnavailable
		})
		assert.ErrorIs(t, inner, model.ErrSlotUnavailable)
		return nil
	})
	require.NoError(t, err)

	got, err := s.Slots().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBooked)

	got, err = s.Slots().GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBooked)
}

func TestLessonCreate_UniquePackageSlot(t *testing.T) {
	s := New()
	ctx := context.Background()
	paymentID := int64(7)

	lesson := func() *model.Lesson {
		return &model.Lesson{TeacherID: 1, StudentID: 2, SlotID: 3, PackagePaymentID: &paymentID, IsPackageLesson: true}
	}

	require.NoError(t, s.Lessons().Create(ctx, lesson()))
	assert.ErrorIs(t, s.Lessons().Create(ctx, lesson()), model.ErrSlotUnavailable)
	assert.Equal(t, 1, s.LessonCount())
}

func TestPaymentTerminalStates(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := &model.PackagePayment{OrderID: "o-1", Status: model.PaymentStatusPending, SelectedSlots: []int64{1, 2}}
	require.NoError(t, s.Payments().Create(ctx, p))

	require.NoError(t, s.Payments().MarkCompleted(ctx, p.ID, time.Now(), nil))
	assert.ErrorIs(t, s.Payments().MarkCompleted(ctx, p.ID, time.Now(), nil), model.ErrOrderClosed)
	assert.ErrorIs(t, s.Payments().MarkFailed(ctx, p.ID), model.ErrOrderClosed)

	got, err := s.Payments().GetByOrderID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, got.Status)
	assert.Equal(t, []int64{1, 2}, got.SelectedSlots)
}
