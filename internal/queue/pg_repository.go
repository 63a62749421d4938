package queue

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
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool DB
}

func NewPgRepository(pool DB) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanQueue(row pgx.Row) (*Queue, error) {
	var q Queue

	err := row.Scan(
		&q.ID,
		&q.DoctorID,
		&q.QueueDate,
		&q.CurrentNumber,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &q, nil
}

func (r *PgRepository) GetOrCreate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Queue, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO queues (id, doctor_id, queue_date, current_number, created_at, updated_at)
		VALUES ($1, $2, $3, 0, now(), now())
		ON CONFLICT (doctor_id, queue_date) DO NOTHING
	`, uuid.New(), doctorID, date)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, queue_date, current_number, created_at, updated_at
		FROM queues
		WHERE doctor_id = $1 AND queue_date = $2
	`, doctorID, date)
	return scanQueue(row)
}

// AdvanceToNext holds the queue row locked while it picks the next BOOKED
// appointment, so two concurrent calls cannot both advance past the same
// number. Cancelled numbers are skipped by the status filter.
func (r *PgRepository) AdvanceToNext(ctx context.Context, doctorID uuid.UUID, date time.Time) (*CallResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO queues (id, doctor_id, queue_date, current_number, created_at, updated_at)
		VALUES ($1, $2, $3, 0, now(), now())
		ON CONFLICT (doctor_id, queue_date) DO NOTHING
	`, uuid.New(), doctorID, date)
	if err != nil {
		return nil, err
	}

	var queueID uuid.UUID
	var current int
	err = tx.QueryRow(ctx, `
		SELECT id, current_number
		FROM queues
		WHERE doctor_id = $1 AND queue_date = $2
		FOR UPDATE
	`, doctorID, date).Scan(&queueID, &current)
	if err != nil {
		return nil, err
	}

	var next CalledPatient
	err = tx.QueryRow(ctx, `
		SELECT a.queue_number, p.id, p.name, p.phone
		FROM appointments a
		JOIN time_slots s ON s.id = a.time_slot_id
		JOIN patients p ON p.id = a.patient_id
		WHERE s.doctor_id = $1
		  AND s.slot_date = $2
		  AND a.status = 'BOOKED'
		  AND a.queue_number > $3
		ORDER BY a.queue_number ASC
		LIMIT 1
	`, doctorID, date, current).Scan(&next.QueueNumber, &next.ID, &next.Name, &next.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Queue exhausted, current number stays put
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return &CallResult{CurrentNumber: current}, nil
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE queues
		SET current_number = $2,
		    updated_at = now()
		WHERE id = $1
	`, queueID, next.QueueNumber)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &CallResult{CurrentNumber: next.QueueNumber, Patient: &next}, nil
}

func (r *PgRepository) HolderOf(ctx context.Context, doctorID uuid.UUID, date time.Time, number int) (*CalledPatient, error) {
	var p CalledPatient
	err := r.pool.QueryRow(ctx, `
		SELECT a.queue_number, p.id, p.name, p.phone
		FROM appointments a
		JOIN time_slots s ON s.id = a.time_slot_id
		JOIN patients p ON p.id = a.patient_id
		WHERE s.doctor_id = $1
		  AND s.slot_date = $2
		  AND a.queue_number = $3
		  AND a.status <> 'CANCELLED'
	`, doctorID, date, number).Scan(&p.QueueNumber, &p.ID, &p.Name, &p.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
