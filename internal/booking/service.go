package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/outpatient-queue/internal/observability/metrics"
	redisclient "github.com/clinicware/outpatient-queue/internal/redis"
	"github.com/clinicware/outpatient-queue/pkg/logging"
)

var (
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
)

// Service owns the appointment lifecycle: admission into a slot and the
// status transitions afterwards. It is the sole writer of slot booked counts
// and appointment statuses.
type Service struct {
	repo    Repository
	locker  redisclient.Locker
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

func NewService(repo Repository, locker redisclient.Locker, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		metrics: m,
		logger:  logger,
	}
}

// Book reserves a seat in a slot for a patient. The per-slot Redis lock keeps
// concurrent duplicate-guard reads for the same slot from interleaving;
// contenders for the same slot wait their turn, so overlapping bookings admit
// in sequence until capacity runs out. The capacity invariant is carried by
// the conditional update inside the repository transaction either way.
// ErrSlotBeingBooked surfaces only when the lock cannot be acquired within
// its TTL window.
func (s *Service) Book(ctx context.Context, patientID, slotID uuid.UUID, notes *string) (*Appointment, error) {
	var created *Appointment

	err := s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		appt, err := s.repo.BookAppointment(lockCtx, patientID, slotID, notes)
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		s.observeBooking(err)
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.observeBooking(nil)
	s.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"slot_id", slotID,
		"patient_id", patientID,
		"queue_number", created.QueueNumber,
	)

	return created, nil
}

// SetStatus applies one lifecycle step. Moving into CANCELLED releases the
// seat back to the slot ledger inside the same transaction; a second cancel
// of the same appointment fails the compare-and-swap and changes nothing.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	releaseCapacity := to == StatusCancelled

	updated, err := s.repo.TransitionStatus(ctx, id, current.Status, to, releaseCapacity)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(string(current.Status), string(to))
	s.logger.Info("appointment status changed",
		"appointment_id", id,
		"from", current.Status,
		"to", to,
	)

	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Detail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// ListByPatient retrieves a patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Detail, error) {
	appointments, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// ListByDate retrieves the non-cancelled appointments for a calendar day in
// call order, for the front-desk board.
func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]Detail, error) {
	appointments, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by date: %w", err)
	}
	return appointments, nil
}

func (s *Service) observeBooking(err error) {
	switch {
	case err == nil:
		s.metrics.ObserveBooking("success")
	case errors.Is(err, ErrSlotFull):
		s.metrics.ObserveBooking("slot_full")
	case errors.Is(err, ErrDuplicateBooking):
		s.metrics.ObserveBooking("duplicate")
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		s.metrics.ObserveBooking("contended")
	default:
		s.metrics.ObserveBooking("error")
	}
}
