package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/outpatient-queue/internal/observability/metrics"
	"github.com/clinicware/outpatient-queue/pkg/logging"
)

// Service is the front-desk queue engine: one monotonically advancing number
// per doctor per day. Calling a number is deliberately separate from checking
// the patient in; the two actions compose through the booking lifecycle.
type Service struct {
	repo    Repository
	metrics *metrics.QueueMetrics
	logger  *logging.Logger
}

func NewService(repo Repository, m *metrics.QueueMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		metrics: m,
		logger:  logger,
	}
}

// GetCurrent reports the current number, materializing the queue at 0 on
// first read of a doctor/day.
func (s *Service) GetCurrent(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	q, err := s.repo.GetOrCreate(ctx, doctorID, date)
	if err != nil {
		return 0, fmt.Errorf("get queue: %w", err)
	}
	return q.CurrentNumber, nil
}

// CallNext advances to the next waiting BOOKED appointment. An exhausted
// queue is not an error: the number is unchanged and no patient is returned.
func (s *Service) CallNext(ctx context.Context, doctorID uuid.UUID, date time.Time) (*CallResult, error) {
	res, err := s.repo.AdvanceToNext(ctx, doctorID, date)
	if err != nil {
		s.metrics.ObserveCall("next", "error")
		return nil, fmt.Errorf("call next: %w", err)
	}

	if res.Patient == nil {
		s.metrics.ObserveCall("next", "exhausted")
		return res, nil
	}

	s.metrics.ObserveCall("next", "called")
	s.logger.Info("queue advanced",
		"doctor_id", doctorID,
		"date", date.Format("2006-01-02"),
		"current_number", res.CurrentNumber,
	)
	return res, nil
}

// Recall re-reports the holder of the current number without advancing, for
// re-announcing a patient who did not show up at the desk.
func (s *Service) Recall(ctx context.Context, doctorID uuid.UUID, date time.Time) (*CallResult, error) {
	q, err := s.repo.GetOrCreate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("get queue: %w", err)
	}

	holder, err := s.repo.HolderOf(ctx, doctorID, date, q.CurrentNumber)
	if err != nil {
		s.metrics.ObserveCall("recall", "error")
		return nil, fmt.Errorf("recall: %w", err)
	}

	if holder == nil {
		s.metrics.ObserveCall("recall", "vacant")
	} else {
		s.metrics.ObserveCall("recall", "called")
	}

	return &CallResult{CurrentNumber: q.CurrentNumber, Patient: holder}, nil
}
