package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birthDate *time.Time

	err := row.Scan(
		&p.ID,
		&p.ChatUserID,
		&p.Name,
		&p.Phone,
		&birthDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.BirthDate = birthDate
	return &p, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.SlotDate,
		&s.StartTime,
		&s.EndTime,
		&s.MaxCapacity,
		&s.BookedCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, name, specialty string) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialty, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, name, specialty, created_at, updated_at
	`, uuid.New(), name, specialty)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	return result, rows.Err()
}

func (r *PgRepository) UpdateDoctor(ctx context.Context, id uuid.UUID, name, specialty string) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET name = $2,
		    specialty = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, specialty, created_at, updated_at
	`, id, name, specialty)
	return scanDoctor(row)
}

func (r *PgRepository) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

// Patients

func (r *PgRepository) CreatePatient(ctx context.Context, p NewPatient) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, chat_user_id, name, phone, birth_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, chat_user_id, name, phone, birth_date, created_at, updated_at
	`, uuid.New(), p.ChatUserID, p.Name, p.Phone, p.BirthDate)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, chat_user_id, name, phone, birth_date, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByChatUserID(ctx context.Context, chatUserID string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, chat_user_id, name, phone, birth_date, created_at, updated_at
		FROM patients
		WHERE chat_user_id = $1
	`, chatUserID)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, chat_user_id, name, phone, birth_date, created_at, updated_at
		FROM patients
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	return result, rows.Err()
}

func (r *PgRepository) UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET name = COALESCE($2, name),
		    phone = COALESCE($3, phone),
		    birth_date = COALESCE($4, birth_date),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, chat_user_id, name, phone, birth_date, created_at, updated_at
	`, id, upd.Name, upd.Phone, upd.BirthDate)
	return scanPatient(row)
}

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, s NewSlot) (*TimeSlot, error) {
	capacity := s.MaxCapacity
	if capacity <= 0 {
		capacity = DefaultSlotCapacity
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO time_slots (id, doctor_id, slot_date, start_time, end_time, max_capacity, booked_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, now(), now())
		RETURNING id, doctor_id, slot_date, start_time, end_time, max_capacity, booked_count, created_at, updated_at
	`, uuid.New(), s.DoctorID, s.SlotDate, s.StartTime, s.EndTime, capacity)
	return scanSlot(row)
}

// CreateSlots inserts a batch in one transaction, skipping duplicates on
// (doctor_id, slot_date, start_time). Returns the number actually created.
func (r *PgRepository) CreateSlots(ctx context.Context, slots []NewSlot) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	created := 0
	for _, s := range slots {
		capacity := s.MaxCapacity
		if capacity <= 0 {
			capacity = DefaultSlotCapacity
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO time_slots (id, doctor_id, slot_date, start_time, end_time, max_capacity, booked_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, now(), now())
			ON CONFLICT (doctor_id, slot_date, start_time) DO NOTHING
		`, uuid.New(), s.DoctorID, s.SlotDate, s.StartTime, s.EndTime, capacity)
		if err != nil {
			return 0, err
		}
		created += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return created, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*SlotDetail, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT s.id, s.doctor_id, s.slot_date, s.start_time, s.end_time, s.max_capacity, s.booked_count, s.created_at, s.updated_at,
		       d.id, d.name, d.specialty, d.created_at, d.updated_at
		FROM time_slots s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE s.id = $1
	`, id)

	var detail SlotDetail
	var doc Doctor

	err := row.Scan(
		&detail.ID,
		&detail.DoctorID,
		&detail.SlotDate,
		&detail.StartTime,
		&detail.EndTime,
		&detail.MaxCapacity,
		&detail.BookedCount,
		&detail.CreatedAt,
		&detail.UpdatedAt,
		&doc.ID,
		&doc.Name,
		&doc.Specialty,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	detail.Doctor = &doc
	return &detail, nil
}

func (r *PgRepository) ListSlotsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, slot_date, start_time, end_time, max_capacity, booked_count, created_at, updated_at
		FROM time_slots
		WHERE doctor_id = $1 AND slot_date = $2
		ORDER BY start_time ASC
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgRepository) ListSlotsByDoctorAndRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, slot_date, start_time, end_time, max_capacity, booked_count, created_at, updated_at
		FROM time_slots
		WHERE doctor_id = $1 AND slot_date >= $2 AND slot_date <= $3
		ORDER BY slot_date ASC, start_time ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func collectSlots(rows pgx.Rows) ([]TimeSlot, error) {
	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}
