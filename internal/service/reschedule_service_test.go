package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) studentRequest(lesson *model.Lesson, newSlotID int64) RescheduleRequest {
	return RescheduleRequest{
		LessonID:       lesson.ID,
		RequesterID:    f.student.ID,
		NewSlotID:      newSlotID,
		ReasonCategory: model.ReasonStudentIllness,
		InitiatedBy:    model.InitiatorStudent,
	}
}

func (f *fixture) teacherRequest(lesson *model.Lesson, newSlotID int64) RescheduleRequest {
	return RescheduleRequest{
		LessonID:       lesson.ID,
		RequesterID:    f.teacher.ID,
		NewSlotID:      newSlotID,
		ReasonCategory: model.ReasonTeacherConflict,
		InitiatedBy:    model.InitiatorTeacher,
	}
}

func TestReschedule_Student(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson := f.packageLessonIn(t, 72)
	target := f.slotAt(t, f.teacher.ID, testNow.Add(120*time.Hour))

	req := f.studentRequest(lesson, target.ID)
	req.NewScheduledAt = target.StartTime
	res, err := f.reschedule.Reschedule(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, target.ID, res.Lesson.SlotID)
	assert.Equal(t, target.StartTime, res.Lesson.ScheduledAt)
	assert.Equal(t, 1, res.Lesson.RescheduleCount)
	assert.Equal(t, 1, res.RemainingChanges)
	assert.Equal(t, lesson.ScheduledAt, res.PreviousTime)

	stored := f.lesson(t, lesson.ID)
	assert.Equal(t, target.ID, stored.SlotID)
	assert.Equal(t, target.StartTime, stored.ScheduledAt)
	assert.Equal(t, 1, stored.RescheduleCount)

	assert.True(t, f.slot(t, target.ID).IsBooked)
	assert.False(t, f.slot(t, lesson.SlotID).IsBooked, "old slot is released")

	changes, err := f.lessons.ListChanges(ctx, lesson.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	c := changes[0]
	assert.Equal(t, model.ChangeTypeReschedule, c.ChangeType)
	assert.Equal(t, model.InitiatorStudent, c.InitiatedBy)
	assert.Equal(t, 0, c.ChangeCountBefore)
	assert.Equal(t, lesson.SlotID, c.OldSlotID)
	assert.Equal(t, target.ID, c.NewSlotID)
	assert.Equal(t, lesson.ScheduledAt, c.OldScheduledAt)
	assert.Equal(t, target.StartTime, c.NewScheduledAt)

	confirmed := f.notes.byEvent(notifier.EventRescheduleConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, []int64{f.student.ID}, confirmed[0].Recipients)
	require.NotNil(t, confirmed[0].Payload.RemainingChanges)
	assert.Equal(t, 1, *confirmed[0].Payload.RemainingChanges)

	notice := f.notes.byEvent(notifier.EventRescheduleNotice)
	require.Len(t, notice, 1)
	assert.Equal(t, []int64{f.teacher.ID}, notice[0].Recipients)
}

func TestReschedule_StudentLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson := f.packageLessonIn(t, 72)
	targets := f.slotsIn(t, 96, 120, 144)

	for i := 0; i < 2; i++ {
		res, err := f.reschedule.Reschedule(ctx, f.studentRequest(lesson, targets[i]))
		require.NoError(t, err)
		assert.Equal(t, 2-(i+1), res.RemainingChanges)
	}

	_, err := f.reschedule.Reschedule(ctx, f.studentRequest(lesson, targets[2]))
	require.ErrorIs(t, err, model.ErrLimitExceeded)

	var rerr *model.RescheduleError
	require.True(t, errors.As(err, &rerr))
	require.NotNil(t, rerr.RemainingChanges)
	assert.Equal(t, 0, *rerr.RemainingChanges)

	stored := f.lesson(t, lesson.ID)
	assert.Equal(t, 2, stored.RescheduleCount)
	assert.Equal(t, targets[1], stored.SlotID)
	assert.False(t, f.slot(t, targets[2]).IsBooked)

	changes, err := f.lessons.ListChanges(ctx, lesson.ID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, 0, changes[0].ChangeCountBefore)
	assert.Equal(t, 1, changes[1].ChangeCountBefore)
}

func TestReschedule_TeacherNeverCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson := f.packageLessonIn(t, 72)
	targets := f.slotsIn(t, 96, 120, 144, 168)

	for _, target := range targets {
		res, err := f.reschedule.Reschedule(ctx, f.teacherRequest(lesson, target))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Lesson.RescheduleCount)
		assert.Equal(t, 2, res.RemainingChanges)
	}

	assert.Equal(t, 0, f.lesson(t, lesson.ID).RescheduleCount)

	// бюджет ученика не тронут
	extra := f.slotsIn(t, 192)
	res, err := f.reschedule.Reschedule(ctx, f.studentRequest(lesson, extra[0]))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Lesson.RescheduleCount)

	notices := f.notes.byEvent(notifier.EventRescheduleNotice)
	assert.Equal(t, []int64{f.student.ID}, notices[0].Recipients)
}

func TestReschedule_Deadline(t *testing.T) {
	tests := []struct {
		name      string
		hours     int
		initiator model.Initiator
		want      error
	}{
		{"student 23h before", 23, model.InitiatorStudent, model.ErrTooLate},
		{"teacher 23h before", 23, model.InitiatorTeacher, model.ErrTooLate},
		{"student 25h before", 25, model.InitiatorStudent, nil},
		{"exactly at deadline", 24, model.InitiatorStudent, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			lesson := f.packageLessonIn(t, tt.hours)
			target := f.slotsIn(t, 200)[0]

			req := f.studentRequest(lesson, target)
			if tt.initiator == model.InitiatorTeacher {
				req = f.teacherRequest(lesson, target)
			}

			_, err := f.reschedule.Reschedule(context.Background(), req)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, f.slot(t, target).IsBooked, "free slot stays free")
		})
	}
}

func TestReschedule_PreconditionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	packageLesson := f.packageLessonIn(t, 72)
	soonLesson := f.packageLessonIn(t, 10)

	single := f.slotAt(t, f.teacher.ID, testNow.Add(72*time.Hour))
	singleLesson, err := f.lessons.BookSingleLesson(ctx, f.student.ID, single.ID, f.subject.ID)
	require.NoError(t, err)

	exhausted := f.packageLessonIn(t, 96)
	for _, target := range f.slotsIn(t, 120, 144) {
		_, err := f.reschedule.Reschedule(ctx, f.studentRequest(exhausted, target))
		require.NoError(t, err)
	}

	freeSlot := f.slotsIn(t, 200)[0]
	foreignSlot := f.slotAt(t, f.otherTeacher.ID, testNow.Add(200*time.Hour)).ID

	tests := []struct {
		name string
		req  RescheduleRequest
		want error
	}{
		{
			name: "stranger with bad reason on a single lesson",
			req: RescheduleRequest{LessonID: singleLesson.ID, RequesterID: 9999, NewSlotID: foreignSlot,
				ReasonCategory: "bored", InitiatedBy: model.InitiatorStudent},
			want: model.ErrUnauthorized,
		},
		{
			name: "student claiming to be teacher",
			req: RescheduleRequest{LessonID: packageLesson.ID, RequesterID: f.student.ID, NewSlotID: freeSlot,
				ReasonCategory: model.ReasonTeacherIllness, InitiatedBy: model.InitiatorTeacher},
			want: model.ErrUnauthorized,
		},
		{
			name: "single lesson with bad reason",
			req: RescheduleRequest{LessonID: singleLesson.ID, RequesterID: f.student.ID, NewSlotID: foreignSlot,
				ReasonCategory: "bored", InitiatedBy: model.InitiatorStudent},
			want: model.ErrNotEligible,
		},
		{
			name: "teacher reason from student, too late",
			req: RescheduleRequest{LessonID: soonLesson.ID, RequesterID: f.student.ID, NewSlotID: foreignSlot,
				ReasonCategory: model.ReasonTeacherIllness, InitiatedBy: model.InitiatorStudent},
			want: model.ErrInvalidReason,
		},
		{
			name: "too late beats slot check",
			req:  f.studentRequest(soonLesson, foreignSlot),
			want: model.ErrTooLate,
		},
		{
			name: "limit beats slot check",
			req:  f.studentRequest(exhausted, foreignSlot),
			want: model.ErrLimitExceeded,
		},
		{
			name: "foreign slot",
			req:  f.studentRequest(packageLesson, foreignSlot),
			want: model.ErrSlotUnavailable,
		},
		{
			name: "unknown lesson",
			req:  RescheduleRequest{LessonID: 9999, RequesterID: f.student.ID, InitiatedBy: model.InitiatorStudent},
			want: model.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reschedule.Reschedule(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReschedule_TargetSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson := f.packageLessonIn(t, 72)
	other := f.packageLessonIn(t, 96)
	free := f.slotAt(t, f.teacher.ID, testNow.Add(120*time.Hour))

	inactive := f.slotAt(t, f.teacher.ID, testNow.Add(144*time.Hour))
	require.NoError(t, f.store.Slots().Deactivate(ctx, f.teacher.ID, inactive.ID))

	tests := []struct {
		name   string
		slotID int64
		at     time.Time
	}{
		{"slot booked by another lesson", other.SlotID, time.Time{}},
		{"current slot", lesson.SlotID, time.Time{}},
		{"inactive slot", inactive.ID, time.Time{}},
		{"unknown slot", 9999, time.Time{}},
		{"time does not match slot", free.ID, free.StartTime.Add(30 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.studentRequest(lesson, tt.slotID)
			req.NewScheduledAt = tt.at
			_, err := f.reschedule.Reschedule(ctx, req)
			assert.ErrorIs(t, err, model.ErrSlotUnavailable)
		})
	}

	stored := f.lesson(t, lesson.ID)
	assert.Equal(t, lesson.SlotID, stored.SlotID)
	assert.Equal(t, 0, stored.RescheduleCount)
	assert.False(t, f.slot(t, free.ID).IsBooked)
}

func TestReschedule_NotConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lesson := f.packageLessonIn(t, 72)
	_, err := f.lessons.UpdateStatus(ctx, lesson.ID, model.LessonStatusCancelled)
	require.NoError(t, err)

	_, err = f.reschedule.Reschedule(ctx, f.studentRequest(lesson, f.slotsIn(t, 120)[0]))
	assert.ErrorIs(t, err, model.ErrNotEligible)
}

func TestReschedule_KeepsOldSlotWhenConfigured(t *testing.T) {
	f := newFixtureWithRules(t, RescheduleRules{
		Deadline:          24 * time.Hour,
		MaxStudentChanges: 2,
		ReleaseOldSlot:    false,
	})

	lesson := f.packageLessonIn(t, 72)
	target := f.slotsIn(t, 120)[0]

	_, err := f.reschedule.Reschedule(context.Background(), f.studentRequest(lesson, target))
	require.NoError(t, err)

	assert.True(t, f.slot(t, lesson.SlotID).IsBooked)
	assert.True(t, f.slot(t, target).IsBooked)
}

func TestReschedule_NotificationFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	lesson := f.packageLessonIn(t, 72)
	f.notes.err = errors.New("telegram is down")

	_, err := f.reschedule.Reschedule(context.Background(), f.studentRequest(lesson, f.slotsIn(t, 120)[0]))
	require.NoError(t, err)
}
