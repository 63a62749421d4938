package queue

import (
	"time"

	"github.com/google/uuid"
)

// Queue holds the number currently being called for one doctor on one day.
// Rows are materialized lazily at 0 on first access and the number never
// decreases while the day is open.
type Queue struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	QueueDate     time.Time
	CurrentNumber int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CalledPatient is the subset of patient fields the front desk announces.
type CalledPatient struct {
	ID          uuid.UUID
	Name        string
	Phone       string
	QueueNumber int
}

// CallResult reports the queue position after a call or recall. Patient is
// nil when the queue is exhausted or the called number no longer has a holder.
type CallResult struct {
	CurrentNumber int
	Patient       *CalledPatient
}

// WaitingCount estimates how many numbers remain before the given queue
// number is called. Gaps from cancellations are intentionally counted; the
// estimate is an upper bound, not a promise.
func WaitingCount(queueNumber, currentNumber int) int {
	if n := queueNumber - currentNumber; n > 0 {
		return n
	}
	return 0
}
