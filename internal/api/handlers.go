package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HeaderUserID ID пользователя, проставленный шлюзом авторизации
const HeaderUserID = "X-User-ID"

// Handler обрабатывает HTTP-запросы
type Handler struct {
	Lessons      *service.LessonService
	Availability *service.AvailabilityService
	Fulfillment  *service.FulfillmentService
	Reschedule   *service.RescheduleService
	Reports      *service.ReportService

	// ResultURL страница, куда провайдер возвращает покупателя после оплаты
	ResultURL string
	Logger    *zap.Logger
}

// ============ Payments ============

// PaymentCallback принимает уведомление провайдера об оплате пакета.
// POST|GET /payments/package/callback
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectResult(w, r, "failure", "invalid_request")
		return
	}

	_, err := h.Fulfillment.Fulfill(r.Context(), r.Form)
	switch {
	case err == nil, errors.Is(err, model.ErrSlotsMissing):
		// деньги списаны: покупатель видит успех, недостающее разберёт оператор
		h.redirectResult(w, r, "success", "")
	case errors.Is(err, model.ErrSignatureInvalid):
		h.redirectResult(w, r, "failure", "invalid_request")
	case errors.Is(err, model.ErrPaymentDeclined):
		h.redirectResult(w, r, "failure", "declined")
	case errors.Is(err, model.ErrNotFound):
		h.redirectResult(w, r, "failure", "unknown_order")
	case errors.Is(err, model.ErrOrderClosed):
		h.redirectResult(w, r, "failure", "order_closed")
	default:
		h.Logger.Error("Payment callback failed", zap.Error(err))
		h.redirectResult(w, r, "failure", "error")
	}
}

func (h *Handler) redirectResult(w http.ResponseWriter, r *http.Request, status, reason string) {
	target, err := url.Parse(h.ResultURL)
	if err != nil {
		target = &url.URL{Path: "/"}
	}

	q := target.Query()
	q.Set("status", status)
	if reason != "" {
		q.Set("reason", reason)
	}
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

// StartCheckout создаёт заказ пакета и возвращает подписанную форму оплаты.
// POST /api/packages/checkout
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.requester(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_input", nil)
		return
	}

	checkout, err := h.Fulfillment.StartPackageCheckout(r.Context(), studentID, req.SubjectID, req.SlotIDs)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkout)
}

// ============ Lessons ============

// BookLesson записывает ученика на один урок.
// POST /api/lessons
func (h *Handler) BookLesson(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.requester(w, r)
	if !ok {
		return
	}

	var req BookLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_input", nil)
		return
	}

	lesson, err := h.Lessons.BookSingleLesson(r.Context(), studentID, req.SlotID, req.SubjectID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, lesson)
}

// GetLesson возвращает урок.
// GET /api/lessons/{id}
func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	lesson, err := h.Lessons.GetLesson(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lesson)
}

// RescheduleLesson переносит урок пакета.
// POST /api/lessons/{id}/reschedule
func (h *Handler) RescheduleLesson(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_input", nil)
		return
	}

	initiator := model.Initiator(req.InitiatedBy)
	if !initiator.IsValid() {
		writeError(w, http.StatusBadRequest, "initiated_by must be student or teacher", "invalid_input", nil)
		return
	}

	in := service.RescheduleRequest{
		LessonID:       lessonID,
		RequesterID:    requesterID,
		NewSlotID:      req.NewAvailabilityID,
		ReasonCategory: req.ReasonCategory,
		ReasonText:     req.ReasonText,
		InitiatedBy:    initiator,
	}
	if req.NewScheduledAt != nil {
		in.NewScheduledAt = *req.NewScheduledAt
	}

	res, err := h.Reschedule.Reschedule(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RescheduleResponse{
		Lesson:           res.Lesson,
		ScheduledAt:      res.Lesson.ScheduledAt,
		PreviousTime:     res.PreviousTime,
		RemainingChanges: res.RemainingChanges,
	})
}

// UpdateLessonStatus меняет статус урока (административные переходы).
// PATCH /api/lessons/{id}/status
func (h *Handler) UpdateLessonStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_input", nil)
		return
	}

	lesson, err := h.Lessons.UpdateStatus(r.Context(), id, model.LessonStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lesson)
}

// ListLessonChanges возвращает журнал переносов урока.
// GET /api/lessons/{id}/changes
func (h *Handler) ListLessonChanges(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	changes, err := h.Lessons.ListChanges(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, changes)
}

// ============ Slots ============

// ListFreeSlots возвращает свободные слоты учителя.
// GET /api/teachers/{id}/slots?from=RFC3339
func (h *Handler) ListFreeSlots(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var from time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from (use RFC3339)", "invalid_input", nil)
			return
		}
		from = parsed
	}

	slots, err := h.Availability.ListFreeSlots(r.Context(), teacherID, from)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, slots)
}

// CreateSlot публикует слот учителя.
// POST /api/teachers/{id}/slots
func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := h.teacherPath(w, r)
	if !ok {
		return
	}

	var req CreateSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_input", nil)
		return
	}

	slot, err := h.Availability.CreateSlot(r.Context(), teacherID, req.StartTime, req.EndTime)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, slot)
}

// RemoveSlot снимает свободный слот с публикации.
// DELETE /api/teachers/{id}/slots/{slotID}
func (h *Handler) RemoveSlot(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := h.teacherPath(w, r)
	if !ok {
		return
	}
	slotID, ok := pathID(w, r, "slotID")
	if !ok {
		return
	}

	if err := h.Availability.RemoveSlot(r.Context(), teacherID, slotID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ============ Pricing & reports ============

// Quote возвращает цену урока предмета для родителя.
// GET /api/pricing/quote?subject_id=
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	subjectID, err := strconv.ParseInt(r.URL.Query().Get("subject_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "subject_id is required", "invalid_input", nil)
		return
	}

	subject, quote, err := h.Lessons.Quote(r.Context(), subjectID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, QuoteResponse{
		SubjectID: subject.ID,
		TeacherID: subject.TeacherID,
		Subject:   subject.Name,
		Duration:  subject.Duration,
		Price:     quote,
	})
}

// TeacherEarnings возвращает отчёт по проведённым урокам учителя.
// GET /api/reports/teachers/{id}/earnings
func (h *Handler) TeacherEarnings(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.Reports.TeacherEarnings(r.Context(), teacherID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ============ Reconciliation ============

// ListReconciliation возвращает открытые задачи ручной сверки.
// GET /api/admin/reconciliation
func (h *Handler) ListReconciliation(w http.ResponseWriter, r *http.Request) {
	items, err := h.Fulfillment.ListReconciliation(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// ResolveReconciliation закрывает задачу сверки.
// POST /api/admin/reconciliation/{id}/resolve
func (h *Handler) ResolveReconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Fulfillment.ResolveReconciliation(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ============ Helpers ============

// requester читает ID пользователя из заголовка шлюза авторизации
func (h *Handler) requester(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnauthorized, "Missing or invalid "+HeaderUserID, "unauthorized", nil)
		return 0, false
	}
	return id, true
}

// teacherPath проверяет, что учитель управляет своими слотами
func (h *Handler) teacherPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	teacherID, ok := pathID(w, r, "id")
	if !ok {
		return 0, false
	}
	requesterID, ok := h.requester(w, r)
	if !ok {
		return 0, false
	}
	if requesterID != teacherID {
		writeError(w, http.StatusForbidden, "Slots can be managed only by their teacher", "unauthorized", nil)
		return 0, false
	}
	return teacherID, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name, "invalid_input", nil)
		return 0, false
	}
	return id, true
}
