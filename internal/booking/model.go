package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/outpatient-queue/internal/clinic"
)

type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusCheckedIn Status = "CHECKED_IN"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusBooked, StatusCheckedIn, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// transitions is the full lifecycle. COMPLETED and CANCELLED are terminal;
// anything not listed here is rejected.
var transitions = map[Status][]Status{
	StatusBooked:    {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn: {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Appointment's queue number is assigned at booking commit as the slot's
// incremented booked count. Numbers are never reused, so cancellations leave
// gaps in the sequence.
type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	TimeSlotID  uuid.UUID
	QueueNumber int
	Status      Status
	Notes       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Detail is an appointment hydrated with its patient, slot and doctor.
type Detail struct {
	Appointment
	Patient *clinic.Patient
	Slot    *clinic.TimeSlot
	Doctor  *clinic.Doctor
}
