package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_booking/internal/metrics"
	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/pricing"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReportService считает заработок учителя и комиссию платформы.
// Разложение цены берётся из pricing.Model со ставкой, зафиксированной в уроке.
type ReportService struct {
	store   repository.Store
	pricing *pricing.Model
	logger  *zap.Logger
}

func NewReportService(store repository.Store, pricingModel *pricing.Model, logger *zap.Logger) *ReportService {
	return &ReportService{
		store:   store,
		pricing: pricingModel,
		logger:  logger,
	}
}

// LessonEarning разложение цены одного проведённого урока
type LessonEarning struct {
	LessonID  int64             `json:"lesson_id"`
	Subject   string            `json:"subject"`
	Price     decimal.Decimal   `json:"price"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// TeacherEarnings сводка по проведённым урокам учителя
type TeacherEarnings struct {
	TeacherID             int64           `json:"teacher_id"`
	LessonsCompleted      int             `json:"lessons_completed"`
	CurrentCommissionRate decimal.Decimal `json:"current_commission_rate"`
	NetEarnings           decimal.Decimal `json:"net_earnings"`
	Stopaj                decimal.Decimal `json:"stopaj"`
	Commission            decimal.Decimal `json:"commission"`
	VAT                   decimal.Decimal `json:"vat"`
	Charged               decimal.Decimal `json:"charged"` // сумма цен, по которым уроки были проданы
	Lessons               []LessonEarning `json:"lessons"`
}

// TeacherEarnings собирает отчёт по проведённым урокам учителя
func (s *ReportService) TeacherEarnings(ctx context.Context, teacherID int64) (*TeacherEarnings, error) {
	lessons, err := s.store.Lessons().ListCompletedByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list completed lessons: %w", err)
	}

	report := &TeacherEarnings{
		TeacherID:             teacherID,
		LessonsCompleted:      len(lessons),
		CurrentCommissionRate: s.pricing.CommissionRate(len(lessons)),
		NetEarnings:           decimal.Zero,
		Stopaj:                decimal.Zero,
		Commission:            decimal.Zero,
		VAT:                   decimal.Zero,
		Charged:               decimal.Zero,
		Lessons:               make([]LessonEarning, 0, len(lessons)),
	}

	for _, l := range lessons {
		b := s.pricing.BreakdownAt(l.NetPrice, l.CommissionRate)

		report.NetEarnings = report.NetEarnings.Add(b.NetPrice)
		report.Stopaj = report.Stopaj.Add(b.Stopaj)
		report.Commission = report.Commission.Add(b.Commission)
		report.VAT = report.VAT.Add(b.VAT)
		report.Charged = report.Charged.Add(l.Price)

		report.Lessons = append(report.Lessons, LessonEarning{
			LessonID:  l.ID,
			Subject:   l.Subject,
			Price:     l.Price,
			Breakdown: b,
		})
	}

	return report, nil
}

// LessonCompleted учитывает комиссию проведённого урока. Подписывается на LessonService.OnCompleted.
func (s *ReportService) LessonCompleted(_ context.Context, lesson *model.Lesson) {
	b := s.pricing.BreakdownAt(lesson.NetPrice, lesson.CommissionRate)
	metrics.CommissionBooked.Add(b.Commission.InexactFloat64())

	s.logger.Info("Commission booked",
		zap.Int64("lesson_id", lesson.ID),
		zap.Int64("teacher_id", lesson.TeacherID),
		zap.String("commission", b.Commission.String()),
		zap.String("commission_rate", lesson.CommissionRate.String()))
}
