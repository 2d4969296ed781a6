// Package api - HTTP-интерфейс ядра бронирования: callback оплаты, перенос уроков,
// управление слотами, отчёты и очередь сверки.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter собирает роутер со всеми маршрутами
func NewRouter(h *Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderUserID},
		MaxAge:         300,
	}))

	// провайдер присылает callback и POST-формой, и GET-редиректом
	r.Post("/payments/package/callback", h.PaymentCallback)
	r.Get("/payments/package/callback", h.PaymentCallback)

	r.Route("/api", func(r chi.Router) {
		r.Post("/packages/checkout", h.StartCheckout)

		r.Route("/lessons", func(r chi.Router) {
			r.Post("/", h.BookLesson)
			r.Get("/{id}", h.GetLesson)
			r.Post("/{id}/reschedule", h.RescheduleLesson)
			r.Patch("/{id}/status", h.UpdateLessonStatus)
			r.Get("/{id}/changes", h.ListLessonChanges)
		})

		r.Route("/teachers/{id}", func(r chi.Router) {
			r.Get("/slots", h.ListFreeSlots)
			r.Post("/slots", h.CreateSlot)
			r.Delete("/slots/{slotID}", h.RemoveSlot)
		})

		r.Get("/pricing/quote", h.Quote)
		r.Get("/reports/teachers/{id}/earnings", h.TeacherEarnings)

		r.Route("/admin/reconciliation", func(r chi.Router) {
			r.Get("/", h.ListReconciliation)
			r.Post("/{id}/resolve", h.ResolveReconciliation)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
