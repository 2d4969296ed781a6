package app

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/metrics"
	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReconciliationMonitor_Check(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	monitor := NewReconciliationMonitor(store.Reconciliation(), time.Hour, zap.NewNop())

	assert.Equal(t, 0, monitor.check(ctx))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ReconciliationOpen))

	require.NoError(t, store.Reconciliation().Flag(ctx, &model.ReconciliationItem{
		PackagePaymentID: 1,
		OrderID:          "order-1",
		Reason:           model.ReconcileSlotsMissing,
	}))
	require.NoError(t, store.Reconciliation().Flag(ctx, &model.ReconciliationItem{
		PackagePaymentID: 1,
		OrderID:          "order-1",
		Reason:           model.ReconcileLateSuccess,
	}))

	assert.Equal(t, 2, monitor.check(ctx))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ReconciliationOpen))
}

func TestReconciliationMonitor_StartStop(t *testing.T) {
	store := memory.New()
	monitor := NewReconciliationMonitor(store.Reconciliation(), 10*time.Millisecond, zap.NewNop())

	monitor.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	monitor.Stop()
}
