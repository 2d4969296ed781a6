package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
	"go.uber.org/zap"
)

// AvailabilityService публикует и снимает слоты учителя
type AvailabilityService struct {
	store  repository.Store
	clock  Clock
	logger *zap.Logger
}

func NewAvailabilityService(store repository.Store, clock Clock, logger *zap.Logger) *AvailabilityService {
	return &AvailabilityService{
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// ListFreeSlots возвращает свободные слоты учителя. Прошедшие слоты не возвращаются.
func (s *AvailabilityService) ListFreeSlots(ctx context.Context, teacherID int64, from time.Time) ([]*model.Slot, error) {
	if now := s.clock.Now(); from.Before(now) {
		from = now
	}
	return s.store.Slots().ListFree(ctx, teacherID, from)
}

// CreateSlot публикует новый слот учителя
func (s *AvailabilityService) CreateSlot(ctx context.Context, teacherID int64, start, end time.Time) (*model.Slot, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("slot must end after it starts: %w", model.ErrInvalidInput)
	}
	if !start.After(s.clock.Now()) {
		return nil, fmt.Errorf("slot must start in the future: %w", model.ErrInvalidInput)
	}

	teacher, err := s.store.Users().GetByID(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil || !teacher.IsTeacher {
		return nil, fmt.Errorf("teacher %d: %w", teacherID, model.ErrNotFound)
	}

	slot := &model.Slot{
		TeacherID: teacherID,
		StartTime: start,
		EndTime:   end,
		IsActive:  true,
	}
	if err := s.store.Slots().Create(ctx, slot); err != nil {
		return nil, err
	}

	s.logger.Info("Slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("teacher_id", teacherID),
		zap.Time("start", start))

	return slot, nil
}

// RemoveSlot снимает свободный слот с публикации. Забронированный слот снять нельзя.
func (s *AvailabilityService) RemoveSlot(ctx context.Context, teacherID, slotID int64) error {
	if err := s.store.Slots().Deactivate(ctx, teacherID, slotID); err != nil {
		return err
	}

	s.logger.Info("Slot removed",
		zap.Int64("slot_id", slotID),
		zap.Int64("teacher_id", teacherID))
	return nil
}
