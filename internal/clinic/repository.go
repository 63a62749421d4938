package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrSlotNotFound    = errors.New("slot not found")
)

// NewSlot is the shape accepted by slot creation; MaxCapacity <= 0 means default.
type NewSlot struct {
	DoctorID    uuid.UUID
	SlotDate    time.Time
	StartTime   string
	EndTime     string
	MaxCapacity int
}

// NewPatient is the shape accepted by patient creation.
type NewPatient struct {
	ChatUserID string
	Name       string
	Phone      string
	BirthDate  *time.Time
}

// PatientUpdate applies only the non-nil fields.
type PatientUpdate struct {
	Name      *string
	Phone     *string
	BirthDate *time.Time
}

// Repository contains all DB interactions for the clinic directory.
type Repository interface {
	CreateDoctor(ctx context.Context, name, specialty string) (*Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	UpdateDoctor(ctx context.Context, id uuid.UUID, name, specialty string) (*Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error

	CreatePatient(ctx context.Context, p NewPatient) (*Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByChatUserID(ctx context.Context, chatUserID string) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*Patient, error)

	CreateSlot(ctx context.Context, s NewSlot) (*TimeSlot, error)
	CreateSlots(ctx context.Context, slots []NewSlot) (int, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*SlotDetail, error)
	ListSlotsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error)
	ListSlotsByDoctorAndRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error)
}
