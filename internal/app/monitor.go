package app

import (
	"context"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/metrics"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
	"go.uber.org/zap"
)

// ReconciliationMonitor периодически публикует размер очереди ручной сверки
type ReconciliationMonitor struct {
	items    repository.ReconciliationStore
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewReconciliationMonitor создаёт монитор очереди сверки
func NewReconciliationMonitor(items repository.ReconciliationStore, interval time.Duration, logger *zap.Logger) *ReconciliationMonitor {
	return &ReconciliationMonitor{
		items:    items,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновую проверку
func (m *ReconciliationMonitor) Start(ctx context.Context) {
	m.logger.Info("Starting reconciliation monitor", zap.Duration("interval", m.interval))
	go m.run(ctx)
}

// Stop останавливает проверку и ждёт её завершения
func (m *ReconciliationMonitor) Stop() {
	m.logger.Info("Stopping reconciliation monitor")
	close(m.stopChan)
	<-m.done
}

func (m *ReconciliationMonitor) run(ctx context.Context) {
	defer close(m.done)

	// Первый запуск сразу при старте
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-m.stopChan:
			m.logger.Info("Reconciliation monitor stopped")
			return
		case <-ctx.Done():
			m.logger.Info("Reconciliation monitor cancelled")
			return
		}
	}
}

// check обновляет метрику и предупреждает о непустой очереди
func (m *ReconciliationMonitor) check(ctx context.Context) int {
	count, err := m.items.CountOpen(ctx)
	if err != nil {
		m.logger.Error("Failed to count reconciliation items", zap.Error(err))
		return -1
	}

	metrics.ReconciliationOpen.Set(float64(count))

	if count > 0 {
		m.logger.Warn("Package payments need manual reconciliation", zap.Int("open_items", count))
	}
	return count
}
