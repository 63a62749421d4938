package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/outpatient-queue/internal/clinic"
)

func apptRows(id, patientID, slotID uuid.UUID, queueNumber int, status Status) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "patient_id", "time_slot_id", "queue_number", "status", "notes", "created_at", "updated_at",
	}).AddRow(id, patientID, slotID, queueNumber, status, nil, now, now)
}

func existsRow(exists bool) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"exists"}).AddRow(exists)
}

func TestBookAppointmentHappyPath(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	patientID := uuid.New()
	slotID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM patients").
		WithArgs(patientID).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM time_slots").
		WithArgs(slotID).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT 1 FROM appointments").
		WithArgs(patientID, slotID).
		WillReturnRows(existsRow(false))
	mock.ExpectQuery("UPDATE time_slots").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{"booked_count"}).AddRow(7))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), patientID, slotID, 7, pgxmock.AnyArg()).
		WillReturnRows(apptRows(uuid.New(), patientID, slotID, 7, StatusBooked))
	mock.ExpectCommit()

	repo := NewPgRepository(mock)
	appt, err := repo.BookAppointment(context.Background(), patientID, slotID, nil)
	require.NoError(t, err)

	assert.Equal(t, 7, appt.QueueNumber, "queue number comes from the incremented counter")
	assert.Equal(t, StatusBooked, appt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointmentSlotFull(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	patientID := uuid.New()
	slotID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM patients").
		WithArgs(patientID).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM time_slots").
		WithArgs(slotID).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT 1 FROM appointments").
		WithArgs(patientID, slotID).
		WillReturnRows(existsRow(false))
	// conditional update matches no row when booked_count == max_capacity
	mock.ExpectQuery("UPDATE time_slots").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{"booked_count"}))
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, err = repo.BookAppointment(context.Background(), patientID, slotID, nil)
	assert.ErrorIs(t, err, ErrSlotFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointmentDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	patientID := uuid.New()
	slotID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM patients").
		WithArgs(patientID).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM time_slots").
		WithArgs(slotID).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT 1 FROM appointments").
		WithArgs(patientID, slotID).
		WillReturnRows(existsRow(true))
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, err = repo.BookAppointment(context.Background(), patientID, slotID, nil)
	assert.ErrorIs(t, err, ErrDuplicateBooking)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointmentUnknownPatient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	patientID := uuid.New()
	slotID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM patients").
		WithArgs(patientID).
		WillReturnRows(existsRow(false))
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, err = repo.BookAppointment(context.Background(), patientID, slotID, nil)
	assert.ErrorIs(t, err, clinic.ErrPatientNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatusCancelReleasesSeat(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apptID := uuid.New()
	slotID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID, StatusCancelled, StatusBooked).
		WillReturnRows(apptRows(apptID, uuid.New(), slotID, 3, StatusCancelled))
	mock.ExpectExec("UPDATE time_slots").
		WithArgs(slotID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	repo := NewPgRepository(mock)
	appt, err := repo.TransitionStatus(context.Background(), apptID, StatusBooked, StatusCancelled, true)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, appt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatusCASMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apptID := uuid.New()

	mock.ExpectBegin()
	// status already changed underneath us, the guarded update matches nothing
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID, StatusCancelled, StatusBooked).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "patient_id", "time_slot_id", "queue_number", "status", "notes", "created_at", "updated_at",
		}))
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, err = repo.TransitionStatus(context.Background(), apptID, StatusBooked, StatusCancelled, true)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatusCheckInKeepsSeat(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apptID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID, StatusCheckedIn, StatusBooked).
		WillReturnRows(apptRows(apptID, uuid.New(), uuid.New(), 3, StatusCheckedIn))
	mock.ExpectCommit()

	repo := NewPgRepository(mock)
	appt, err := repo.TransitionStatus(context.Background(), apptID, StatusBooked, StatusCheckedIn, false)
	require.NoError(t, err)

	assert.Equal(t, StatusCheckedIn, appt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
