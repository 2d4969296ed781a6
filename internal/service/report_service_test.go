package service

import (
	"context"
	"testing"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherEarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.buyPackage(t, f.slotsIn(t, 48, 72, 96))
	for _, l := range res.Lessons[:2] {
		_, err := f.lessons.UpdateStatus(ctx, l.ID, model.LessonStatusCompleted)
		require.NoError(t, err)
	}

	report, err := f.reports.TeacherEarnings(ctx, f.teacher.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, report.LessonsCompleted)
	require.Len(t, report.Lessons, 2)
	assert.True(t, report.NetEarnings.Equal(decimal.NewFromInt(2000)))
	assert.True(t, report.Stopaj.Equal(decimal.NewFromInt(400)))
	assert.True(t, report.Commission.Equal(decimal.NewFromInt(500)))
	assert.True(t, report.VAT.Equal(decimal.NewFromInt(580)))
	assert.True(t, report.Charged.Equal(decimal.NewFromInt(3500)))
	assert.True(t, report.CurrentCommissionRate.Equal(decimal.RequireFromString("0.25")))

	// разложение урока совпадает с ценой, по которой его продали
	for _, l := range report.Lessons {
		assert.True(t, l.Breakdown.DisplayPrice.Equal(l.Price))
	}
}

func TestTeacherEarnings_Empty(t *testing.T) {
	f := newFixture(t)

	report, err := f.reports.TeacherEarnings(context.Background(), f.teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.LessonsCompleted)
	assert.Empty(t, report.Lessons)
	assert.True(t, report.Commission.IsZero())
}
