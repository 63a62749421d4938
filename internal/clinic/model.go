package clinic

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSlotCapacity is applied when a slot is created without an explicit limit.
const DefaultSlotCapacity = 20

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patient is keyed by the chat channel's user identity; records are created
// lazily the first time a user books through the conversation flow.
type Patient struct {
	ID         uuid.UUID
	ChatUserID string
	Name       string
	Phone      string
	BirthDate  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TimeSlot is the unit of admission control. Start and end times are local
// wall-clock strings ("09:00"); they are not validated against overlaps.
type TimeSlot struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	SlotDate    time.Time
	StartTime   string
	EndTime     string
	MaxCapacity int
	BookedCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Open reports whether the slot still admits bookings.
func (s *TimeSlot) Open() bool {
	return s.BookedCount < s.MaxCapacity
}

// SlotDetail carries the owning doctor alongside the slot.
type SlotDetail struct {
	TimeSlot
	Doctor *Doctor
}
