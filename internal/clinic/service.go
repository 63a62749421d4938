package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the directory surface consumed by the API handlers and the
// conversation flow: doctor and patient records plus slot publication.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateDoctor(ctx context.Context, name, specialty string) (*Doctor, error) {
	if name == "" {
		return nil, errors.New("doctor name is required")
	}
	return s.repo.CreateDoctor(ctx, name, specialty)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctorByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, name, specialty string) (*Doctor, error) {
	return s.repo.UpdateDoctor(ctx, id, name, specialty)
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteDoctor(ctx, id)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetPatientByID(ctx, id)
}

func (s *Service) FindPatientByChatUserID(ctx context.Context, chatUserID string) (*Patient, error) {
	return s.repo.GetPatientByChatUserID(ctx, chatUserID)
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	return s.repo.ListPatients(ctx)
}

// ResolvePatient finds the patient for a chat user, creating the record on
// first contact and refreshing the name otherwise. This is the only point the
// booking flow establishes patient identity.
func (s *Service) ResolvePatient(ctx context.Context, chatUserID, name string) (*Patient, error) {
	patient, err := s.repo.GetPatientByChatUserID(ctx, chatUserID)
	if err != nil {
		if !errors.Is(err, ErrPatientNotFound) {
			return nil, fmt.Errorf("find patient: %w", err)
		}
		created, err := s.repo.CreatePatient(ctx, NewPatient{ChatUserID: chatUserID, Name: name})
		if err != nil {
			return nil, fmt.Errorf("create patient: %w", err)
		}
		return created, nil
	}

	updated, err := s.repo.UpdatePatient(ctx, patient.ID, PatientUpdate{Name: &name})
	if err != nil {
		return nil, fmt.Errorf("update patient name: %w", err)
	}
	return updated, nil
}

func (s *Service) UpdatePatientPhone(ctx context.Context, id uuid.UUID, phone string) (*Patient, error) {
	return s.repo.UpdatePatient(ctx, id, PatientUpdate{Phone: &phone})
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*Patient, error) {
	return s.repo.UpdatePatient(ctx, id, upd)
}

func (s *Service) CreateSlot(ctx context.Context, slot NewSlot) (*TimeSlot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, slot.DoctorID); err != nil {
		return nil, err
	}
	return s.repo.CreateSlot(ctx, slot)
}

func (s *Service) CreateSlots(ctx context.Context, slots []NewSlot) (int, error) {
	return s.repo.CreateSlots(ctx, slots)
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*SlotDetail, error) {
	return s.repo.GetSlotByID(ctx, id)
}

func (s *Service) ListSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	return s.repo.ListSlotsByDoctorAndDate(ctx, doctorID, date)
}

func (s *Service) ListSlotsInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	return s.repo.ListSlotsByDoctorAndRange(ctx, doctorID, from, to)
}

// ListOpenSlots returns the slots for a doctor and date that still have room.
func (s *Service) ListOpenSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	slots, err := s.repo.ListSlotsByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	open := slots[:0]
	for _, slot := range slots {
		if slot.Open() {
			open = append(open, slot)
		}
	}
	return open, nil
}
