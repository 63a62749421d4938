package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the queue engine. The
// engine is the sole writer of current_number.
type Repository interface {
	// GetOrCreate materializes the (doctor, date) row at 0 if absent.
	GetOrCreate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Queue, error)

	// AdvanceToNext locks the queue row, finds the BOOKED appointment for the
	// doctor/date with the smallest queue number strictly greater than the
	// current number, and advances to it. A nil patient means the queue is
	// exhausted and the number is unchanged.
	AdvanceToNext(ctx context.Context, doctorID uuid.UUID, date time.Time) (*CallResult, error)

	// HolderOf reports the non-cancelled appointment holding exactly the given
	// queue number for the doctor/date, if any.
	HolderOf(ctx context.Context, doctorID uuid.UUID, date time.Time, number int) (*CalledPatient, error)
}
