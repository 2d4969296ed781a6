package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := testNow.Add(48 * time.Hour)

	slot, err := f.availability.CreateSlot(ctx, f.teacher.ID, start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.NotZero(t, slot.ID)
	assert.True(t, slot.IsActive)
	assert.False(t, slot.IsBooked)

	_, err = f.availability.CreateSlot(ctx, f.teacher.ID, start, start)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.availability.CreateSlot(ctx, f.teacher.ID, testNow.Add(-time.Hour), testNow)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.availability.CreateSlot(ctx, f.student.ID, start, start.Add(time.Hour))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListFreeSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	later := f.slotAt(t, f.teacher.ID, testNow.Add(72*time.Hour))
	sooner := f.slotAt(t, f.teacher.ID, testNow.Add(48*time.Hour))
	f.slotAt(t, f.teacher.ID, testNow.Add(-time.Hour))
	f.slotAt(t, f.otherTeacher.ID, testNow.Add(48*time.Hour))

	booked := f.slotAt(t, f.teacher.ID, testNow.Add(96*time.Hour))
	_, err := f.lessons.BookSingleLesson(ctx, f.student.ID, booked.ID, f.subject.ID)
	require.NoError(t, err)

	removed := f.slotAt(t, f.teacher.ID, testNow.Add(120*time.Hour))
	require.NoError(t, f.availability.RemoveSlot(ctx, f.teacher.ID, removed.ID))

	slots, err := f.availability.ListFreeSlots(ctx, f.teacher.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, sooner.ID, slots[0].ID)
	assert.Equal(t, later.ID, slots[1].ID)

	slots, err = f.availability.ListFreeSlots(ctx, f.teacher.ID, testNow.Add(60*time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, later.ID, slots[0].ID)
}

func TestRemoveSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked := f.slotAt(t, f.teacher.ID, testNow.Add(48*time.Hour))
	_, err := f.lessons.BookSingleLesson(ctx, f.student.ID, booked.ID, f.subject.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.availability.RemoveSlot(ctx, f.teacher.ID, booked.ID), model.ErrSlotUnavailable)
	assert.ErrorIs(t, f.availability.RemoveSlot(ctx, f.otherTeacher.ID, booked.ID), model.ErrNotFound)
	assert.ErrorIs(t, f.availability.RemoveSlot(ctx, f.teacher.ID, 9999), model.ErrNotFound)
}
