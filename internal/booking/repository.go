package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotFull            = errors.New("time slot is full")
	ErrDuplicateBooking    = errors.New("patient already booked this slot")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// Repository contains all DB interactions needed by the booking engine.
// BookAppointment and TransitionStatus are single transactions; the ledger
// update and the appointment write commit together or not at all.
type Repository interface {
	// BookAppointment runs the admission transaction: slot existence, duplicate
	// guard, conditional counter increment, appointment insert.
	BookAppointment(ctx context.Context, patientID, slotID uuid.UUID, notes *string) (*Appointment, error)

	// TransitionStatus compare-and-swaps the status and, when releaseCapacity
	// is set, returns one seat to the slot ledger in the same transaction.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, releaseCapacity bool) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Detail, error)
	ListByDate(ctx context.Context, date time.Time) ([]Detail, error)
}
