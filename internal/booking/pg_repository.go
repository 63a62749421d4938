package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicware/outpatient-queue/internal/clinic"
)

// DB abstracts the pgx pool surface the repository needs, for testing.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool DB
}

func NewPgRepository(pool DB) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const apptCols = `id, patient_id, time_slot_id, queue_number, status, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var notes *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.TimeSlotID,
		&a.QueueNumber,
		&a.Status,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Notes = notes
	return &a, nil
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	var patient clinic.Patient
	var slot clinic.TimeSlot
	var doctor clinic.Doctor
	var notes *string
	var birthDate *time.Time

	err := row.Scan(
		&d.ID,
		&d.PatientID,
		&d.TimeSlotID,
		&d.QueueNumber,
		&d.Status,
		&notes,
		&d.CreatedAt,
		&d.UpdatedAt,
		&patient.ID,
		&patient.ChatUserID,
		&patient.Name,
		&patient.Phone,
		&birthDate,
		&slot.ID,
		&slot.DoctorID,
		&slot.SlotDate,
		&slot.StartTime,
		&slot.EndTime,
		&slot.MaxCapacity,
		&slot.BookedCount,
		&doctor.ID,
		&doctor.Name,
		&doctor.Specialty,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Notes = notes
	patient.BirthDate = birthDate
	d.Patient = &patient
	d.Slot = &slot
	d.Doctor = &doctor
	return &d, nil
}

const detailQuery = `
	SELECT a.id, a.patient_id, a.time_slot_id, a.queue_number, a.status, a.notes, a.created_at, a.updated_at,
	       p.id, p.chat_user_id, p.name, p.phone, p.birth_date,
	       s.id, s.doctor_id, s.slot_date, s.start_time, s.end_time, s.max_capacity, s.booked_count,
	       d.id, d.name, d.specialty
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN time_slots s ON s.id = a.time_slot_id
	JOIN doctors d ON d.id = s.doctor_id
`

// Interface methods

// BookAppointment is the slot admission transaction. The counter check and
// increment are one conditional UPDATE, so two concurrent bookings against the
// last seat can never both pass; the appointment insert commits with it or the
// whole transaction rolls back.
func (r *PgRepository) BookAppointment(ctx context.Context, patientID, slotID uuid.UUID, notes *string) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)
	`, patientID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, clinic.ErrPatientNotFound
	}

	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM time_slots WHERE id = $1)
	`, slotID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, clinic.ErrSlotNotFound
	}

	// Guard against double-submission, e.g. a duplicate chat delivery
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1 AND time_slot_id = $2 AND status = 'BOOKED'
		)
	`, patientID, slotID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateBooking
	}

	var queueNumber int
	err = tx.QueryRow(ctx, `
		UPDATE time_slots
		SET booked_count = booked_count + 1,
		    updated_at = now()
		WHERE id = $1
		  AND booked_count < max_capacity
		RETURNING booked_count
	`, slotID).Scan(&queueNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotFull
		}
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, time_slot_id, queue_number, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'BOOKED', $5, now(), now())
		RETURNING `+apptCols+`
	`, uuid.New(), patientID, slotID, queueNumber, notes)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return appt, nil
}

// TransitionStatus compare-and-swaps on the previous status so a concurrent
// transition makes the update miss and the caller sees ErrInvalidTransition.
// Capacity release rides in the same transaction as the status write.
func (r *PgRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, releaseCapacity bool) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+apptCols+`
	`, id, to, from)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if releaseCapacity {
		tag, err := tx.Exec(ctx, `
			UPDATE time_slots
			SET booked_count = booked_count - 1,
			    updated_at = now()
			WHERE id = $1
			  AND booked_count > 0
		`, appt.TimeSlotID)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, errors.New("capacity release lost: booked_count already zero")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return appt, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	row := r.pool.QueryRow(ctx, detailQuery+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, detailQuery+`
		WHERE a.patient_id = $1
		ORDER BY a.created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDetails(rows)
}

// ListByDate returns the non-cancelled appointments whose slot falls on the
// given date, in call order.
func (r *PgRepository) ListByDate(ctx context.Context, date time.Time) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, detailQuery+`
		WHERE s.slot_date = $1 AND a.status <> 'CANCELLED'
		ORDER BY s.start_time ASC, a.queue_number ASC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDetails(rows)
}

func collectDetails(rows pgx.Rows) ([]Detail, error) {
	var result []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}
