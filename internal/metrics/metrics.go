package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики ядра бронирования
var (
	// Слоты
	SlotReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesson_booking_slot_reservations_total",
			Help: "Попытки забронировать слот по результату",
		},
		[]string{"result"}, // won, lost
	)

	// Пакеты
	PackageFulfillments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesson_booking_package_fulfillments_total",
			Help: "Обработанные callback'и оплаты пакетов по исходу",
		},
		[]string{"outcome"},
	)

	PackageLessonsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lesson_booking_package_lessons_created_total",
			Help: "Уроки, созданные из оплаченных пакетов",
		},
	)

	ReconciliationOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lesson_booking_reconciliation_open",
			Help: "Нерешённые задачи ручной сверки",
		},
	)

	// Переносы
	Reschedules = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesson_booking_reschedules_total",
			Help: "Запросы на перенос урока по инициатору и результату",
		},
		[]string{"initiator", "result"},
	)

	// Финансы
	CommissionBooked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lesson_booking_commission_booked_total",
			Help: "Комиссия платформы по проведённым урокам",
		},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesson_booking_notifications_total",
			Help: "Отправленные уведомления по событию и статусу",
		},
		[]string{"event", "status"},
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesson_booking_http_requests_total",
			Help: "HTTP запросы",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lesson_booking_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordReservation учитывает исход попытки бронирования
func RecordReservation(won bool) {
	if won {
		SlotReservations.WithLabelValues("won").Inc()
		return
	}
	SlotReservations.WithLabelValues("lost").Inc()
}
