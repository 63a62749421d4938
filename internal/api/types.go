package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/outpatient-queue/internal/booking"
	"github.com/clinicware/outpatient-queue/internal/clinic"
	"github.com/clinicware/outpatient-queue/internal/queue"
)

const dateLayout = "2006-01-02"

// Requests

type CreateAppointmentRequest struct {
	PatientID  string  `json:"patient_id"`
	TimeSlotID string  `json:"time_slot_id"`
	Notes      *string `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type DoctorRequest struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

type CreateSlotRequest struct {
	DoctorID    string `json:"doctor_id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	MaxCapacity int    `json:"max_capacity,omitempty"`
}

type BatchSlotsRequest struct {
	Slots []CreateSlotRequest `json:"slots"`
}

type QueueCallRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
}

type UpdatePatientRequest struct {
	Name      *string `json:"name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
}

// Responses

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type DoctorResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	CreatedAt time.Time `json:"created_at"`
}

type PatientResponse struct {
	ID         uuid.UUID `json:"id"`
	ChatUserID string    `json:"chat_user_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	BirthDate  *string   `json:"birth_date,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type SlotResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	BookedCount int       `json:"booked_count"`
	MaxCapacity int       `json:"max_capacity"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	TimeSlotID  uuid.UUID `json:"time_slot_id"`
	QueueNumber int       `json:"queue_number"`
	Status      string    `json:"status"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	Patient *PatientResponse `json:"patient,omitempty"`
	Slot    *SlotResponse    `json:"slot,omitempty"`
	Doctor  *DoctorResponse  `json:"doctor,omitempty"`
}

type QueuePatientResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	QueueNumber int       `json:"queue_number"`
}

type QueueResponse struct {
	CurrentNumber int                   `json:"current_number"`
	Patient       *QueuePatientResponse `json:"patient,omitempty"`
}

type BatchSlotsResponse struct {
	Created int `json:"created"`
}

// Converters

func toDoctorResponse(d *clinic.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:        d.ID,
		Name:      d.Name,
		Specialty: d.Specialty,
		CreatedAt: d.CreatedAt,
	}
}

func toPatientResponse(p *clinic.Patient) PatientResponse {
	resp := PatientResponse{
		ID:         p.ID,
		ChatUserID: p.ChatUserID,
		Name:       p.Name,
		Phone:      p.Phone,
		CreatedAt:  p.CreatedAt,
	}
	if p.BirthDate != nil {
		birth := p.BirthDate.Format(dateLayout)
		resp.BirthDate = &birth
	}
	return resp
}

func toSlotResponse(s *clinic.TimeSlot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		DoctorID:    s.DoctorID,
		Date:        s.SlotDate.Format(dateLayout),
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		BookedCount: s.BookedCount,
		MaxCapacity: s.MaxCapacity,
	}
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		TimeSlotID:  a.TimeSlotID,
		QueueNumber: a.QueueNumber,
		Status:      string(a.Status),
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt,
	}
}

func toAppointmentDetailResponse(d *booking.Detail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
	}
	if d.Patient != nil {
		p := toPatientResponse(d.Patient)
		resp.Patient = &p
	}
	if d.Slot != nil {
		s := toSlotResponse(d.Slot)
		resp.Slot = &s
	}
	if d.Doctor != nil {
		doc := toDoctorResponse(d.Doctor)
		resp.Doctor = &doc
	}
	return resp
}

func toQueueResponse(res *queue.CallResult) QueueResponse {
	resp := QueueResponse{CurrentNumber: res.CurrentNumber}
	if res.Patient != nil {
		resp.Patient = &QueuePatientResponse{
			ID:          res.Patient.ID,
			Name:        res.Patient.Name,
			Phone:       res.Patient.Phone,
			QueueNumber: res.Patient.QueueNumber,
		}
	}
	return resp
}
