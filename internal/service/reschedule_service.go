package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/metrics"
	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/notifier"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
	"go.uber.org/zap"
)

// RescheduleRules правила переноса уроков пакета
type RescheduleRules struct {
	Deadline          time.Duration // минимальное время до текущего начала урока
	MaxStudentChanges int
	ReleaseOldSlot    bool
}

// RescheduleRequest запрос на перенос урока
type RescheduleRequest struct {
	LessonID       int64
	RequesterID    int64
	NewSlotID      int64
	NewScheduledAt time.Time // если задано, должно совпадать с началом слота
	ReasonCategory string
	ReasonText     *string
	InitiatedBy    model.Initiator
}

// RescheduleResult перенесённый урок и остаток переносов ученика
type RescheduleResult struct {
	Lesson           *model.Lesson
	PreviousTime     time.Time
	RemainingChanges int
}

type RescheduleService struct {
	store    repository.Store
	lessons  *LessonService
	notifier notifier.Notifier
	clock    Clock
	rules    RescheduleRules
	logger   *zap.Logger
}

func NewRescheduleService(
	store repository.Store,
	lessons *LessonService,
	n notifier.Notifier,
	clock Clock,
	rules RescheduleRules,
	logger *zap.Logger,
) *RescheduleService {
	return &RescheduleService{
		store:    store,
		lessons:  lessons,
		notifier: n,
		clock:    clock,
		rules:    rules,
		logger:   logger,
	}
}

func rescheduleErr(err error, format string, args ...any) *model.RescheduleError {
	return &model.RescheduleError{Err: err, Message: fmt.Sprintf(format, args...)}
}

// Reschedule переносит урок пакета на другой слот того же учителя.
//
// Условия проверяются в фиксированном порядке, возвращается первое нарушенное:
// участник урока, урок пакета в статусе CONFIRMED, причина из набора роли,
// срок до начала урока, лимит переносов ученика, доступность нового слота.
// Все проверки и записи идут в одной транзакции под блокировкой строки урока.
func (s *RescheduleService) Reschedule(ctx context.Context, req RescheduleRequest) (*RescheduleResult, error) {
	var res *RescheduleResult
	var other int64

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		lesson, err := tx.Lessons().GetForUpdate(ctx, req.LessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return rescheduleErr(model.ErrNotFound, "lesson %d", req.LessonID)
		}

		switch {
		case req.InitiatedBy == model.InitiatorStudent && req.RequesterID == lesson.StudentID:
			other = lesson.TeacherID
		case req.InitiatedBy == model.InitiatorTeacher && req.RequesterID == lesson.TeacherID:
			other = lesson.StudentID
		default:
			return rescheduleErr(model.ErrUnauthorized, "user %d cannot reschedule lesson %d as %q",
				req.RequesterID, lesson.ID, req.InitiatedBy)
		}

		if !lesson.IsPackageLesson {
			return rescheduleErr(model.ErrNotEligible, "only package lessons can be rescheduled")
		}
		if lesson.Status != model.LessonStatusConfirmed {
			return rescheduleErr(model.ErrNotEligible, "lesson is %s", lesson.Status)
		}

		if !model.IsValidReason(req.InitiatedBy, req.ReasonCategory) {
			return rescheduleErr(model.ErrInvalidReason, "%q is not a %s reason", req.ReasonCategory, req.InitiatedBy)
		}

		now := s.clock.Now()
		if lesson.ScheduledAt.Sub(now) < s.rules.Deadline {
			return rescheduleErr(model.ErrTooLate, "changes close %s before the lesson", s.rules.Deadline)
		}

		isStudent := req.InitiatedBy == model.InitiatorStudent
		if isStudent && lesson.RescheduleCount >= s.rules.MaxStudentChanges {
			e := rescheduleErr(model.ErrLimitExceeded, "limit of %d changes reached", s.rules.MaxStudentChanges)
			e.RemainingChanges = new(int)
			return e
		}

		slot, err := s.reserveTarget(ctx, tx, lesson, req, now)
		if err != nil {
			return err
		}

		oldSlotID, oldTime := lesson.SlotID, lesson.ScheduledAt
		if err := s.lessons.MoveToSlot(ctx, tx, lesson.ID, slot, isStudent); err != nil {
			return err
		}

		change := &model.LessonChange{
			LessonID:          lesson.ID,
			PackagePaymentID:  lesson.PackagePaymentID,
			ChangeType:        model.ChangeTypeReschedule,
			InitiatedBy:       req.InitiatedBy,
			RequesterID:       req.RequesterID,
			ReasonCategory:    req.ReasonCategory,
			ReasonText:        req.ReasonText,
			OldSlotID:         oldSlotID,
			NewSlotID:         slot.ID,
			OldScheduledAt:    oldTime,
			NewScheduledAt:    slot.StartTime,
			ChangeCountBefore: lesson.RescheduleCount,
		}
		if err := tx.Changes().Append(ctx, change); err != nil {
			return err
		}

		if s.rules.ReleaseOldSlot {
			if err := tx.Slots().Release(ctx, oldSlotID); err != nil {
				return fmt.Errorf("release old slot: %w", err)
			}
		}

		lesson.SlotID = slot.ID
		lesson.ScheduledAt = slot.StartTime
		if isStudent {
			lesson.RescheduleCount++
		}

		remaining := s.rules.MaxStudentChanges - lesson.RescheduleCount
		if remaining < 0 {
			remaining = 0
		}

		res = &RescheduleResult{Lesson: lesson, PreviousTime: oldTime, RemainingChanges: remaining}
		return nil
	})
	if err != nil {
		metrics.Reschedules.WithLabelValues(string(req.InitiatedBy), model.ErrorCode(err)).Inc()
		return nil, err
	}

	metrics.Reschedules.WithLabelValues(string(req.InitiatedBy), "ok").Inc()

	s.logger.Info("Lesson rescheduled",
		zap.Int64("lesson_id", res.Lesson.ID),
		zap.String("initiated_by", string(req.InitiatedBy)),
		zap.Time("from", res.PreviousTime),
		zap.Time("to", res.Lesson.ScheduledAt),
		zap.Int("remaining_changes", res.RemainingChanges))

	payload := notifier.Payload{
		Lesson:           res.Lesson,
		PreviousTime:     &res.PreviousTime,
		InitiatedBy:      req.InitiatedBy,
		ReasonCategory:   req.ReasonCategory,
		RemainingChanges: &res.RemainingChanges,
	}
	notify(ctx, s.notifier, s.logger, notifier.EventRescheduleConfirmed, []int64{req.RequesterID}, payload)

	payload.RemainingChanges = nil
	notify(ctx, s.notifier, s.logger, notifier.EventRescheduleNotice, []int64{other}, payload)

	return res, nil
}

// reserveTarget проверяет новый слот и бронирует его
func (s *RescheduleService) reserveTarget(ctx context.Context, tx repository.Store, lesson *model.Lesson, req RescheduleRequest, now time.Time) (*model.Slot, error) {
	if req.NewSlotID == lesson.SlotID {
		return nil, rescheduleErr(model.ErrSlotUnavailable, "lesson already uses slot %d", req.NewSlotID)
	}

	slot, err := tx.Slots().GetByID(ctx, req.NewSlotID)
	if err != nil {
		return nil, err
	}
	if slot == nil || slot.TeacherID != lesson.TeacherID {
		return nil, rescheduleErr(model.ErrSlotUnavailable, "slot %d is not available for this teacher", req.NewSlotID)
	}
	if !slot.StartTime.After(now) {
		return nil, rescheduleErr(model.ErrSlotUnavailable, "slot %d is in the past", req.NewSlotID)
	}
	if !req.NewScheduledAt.IsZero() && !req.NewScheduledAt.Equal(slot.StartTime) {
		return nil, rescheduleErr(model.ErrSlotUnavailable, "slot %d starts at %s", slot.ID, slot.StartTime.Format(time.RFC3339))
	}

	reserved, err := tx.Slots().TryReserve(ctx, slot.ID)
	metrics.RecordReservation(err == nil)
	if err != nil {
		if errors.Is(err, model.ErrSlotUnavailable) || errors.Is(err, model.ErrNotFound) {
			return nil, rescheduleErr(model.ErrSlotUnavailable, "slot %d is already taken", slot.ID)
		}
		return nil, err
	}

	return reserved, nil
}
