package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/outpatient-queue/internal/booking"
	"github.com/clinicware/outpatient-queue/internal/clinic"
	"github.com/clinicware/outpatient-queue/internal/queue"
	redisclient "github.com/clinicware/outpatient-queue/internal/redis"
	"github.com/clinicware/outpatient-queue/pkg/logging"
)

// Messenger is the outbound side of the chat channel. Reply consumes the
// single-use token of the inbound message; Push is unsolicited.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, texts ...string) error
	Push(ctx context.Context, userID string, texts ...string) error
}

// DoctorDirectory lists bookable doctors.
type DoctorDirectory interface {
	ListDoctors(ctx context.Context) ([]clinic.Doctor, error)
}

// SlotDirectory lists slots that still have room.
type SlotDirectory interface {
	ListOpenSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]clinic.TimeSlot, error)
}

// PatientDirectory resolves chat users to patient records.
type PatientDirectory interface {
	FindPatientByChatUserID(ctx context.Context, chatUserID string) (*clinic.Patient, error)
	ResolvePatient(ctx context.Context, chatUserID, name string) (*clinic.Patient, error)
	UpdatePatientPhone(ctx context.Context, id uuid.UUID, phone string) (*clinic.Patient, error)
}

// Booker is the slice of the booking engine the conversation drives.
type Booker interface {
	Book(ctx context.Context, patientID, slotID uuid.UUID, notes *string) (*booking.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]booking.Detail, error)
}

// QueueReader reports the number currently being called.
type QueueReader interface {
	GetCurrent(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error)
}

// Machine interprets one inbound message at a time against the user's session
// and drives the booking engine on the terminal step. There is no persistent
// connection; every decision is a function of (session, text).
type Machine struct {
	sessions  *SessionStore
	messenger Messenger
	doctors   DoctorDirectory
	slots     SlotDirectory
	patients  PatientDirectory
	booker    Booker
	queues    QueueReader
	logger    *logging.Logger
}

func NewMachine(
	sessions *SessionStore,
	messenger Messenger,
	doctors DoctorDirectory,
	slots SlotDirectory,
	patients PatientDirectory,
	booker Booker,
	queues QueueReader,
	logger *logging.Logger,
) *Machine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{
		sessions:  sessions,
		messenger: messenger,
		doctors:   doctors,
		slots:     slots,
		patients:  patients,
		booker:    booker,
		queues:    queues,
		logger:    logger,
	}
}

// HandleText processes one text message from a user. With a session open the
// message feeds the booking flow; otherwise it is a command or answered with
// the menu.
func (m *Machine) HandleText(ctx context.Context, userID, replyToken, text string) error {
	text = strings.TrimSpace(text)

	if _, ok := m.sessions.Get(userID); ok {
		return m.advance(ctx, userID, text)
	}

	switch text {
	case cmdBook:
		return m.startBooking(ctx, userID)
	case cmdQuery:
		return m.replyAppointments(ctx, userID, replyToken)
	case cmdProgress:
		return m.replyProgress(ctx, userID, replyToken)
	default:
		return m.messenger.Reply(ctx, replyToken, msgMenu)
	}
}

// HandleFollow greets a user who just added the clinic account.
func (m *Machine) HandleFollow(ctx context.Context, replyToken string) error {
	return m.messenger.Reply(ctx, replyToken, msgWelcome)
}

// advance feeds one message into the open session. Cancel is a global escape
// that clears the session and restarts at the doctor menu.
func (m *Machine) advance(ctx context.Context, userID, text string) error {
	if text == cmdCancel {
		m.sessions.Delete(userID)
		return m.startBooking(ctx, userID)
	}

	sess, ok := m.sessions.Get(userID)
	if !ok {
		return m.startBooking(ctx, userID)
	}

	switch sess.Step {
	case StepSelectDoctor:
		return m.handleSelectDoctor(ctx, userID, sess, text)
	case StepSelectDate:
		return m.handleSelectDate(ctx, userID, sess, text)
	case StepSelectSlot:
		return m.handleSelectSlot(ctx, userID, sess, text)
	case StepInputName:
		return m.handleInputName(ctx, userID, sess, text)
	case StepInputPhone:
		return m.handleInputPhone(ctx, userID, sess, text)
	case StepConfirm:
		return m.handleConfirm(ctx, userID, sess, text)
	default:
		m.sessions.Delete(userID)
		return m.startBooking(ctx, userID)
	}
}

func (m *Machine) startBooking(ctx context.Context, userID string) error {
	doctors, err := m.doctors.ListDoctors(ctx)
	if err != nil {
		return fmt.Errorf("list doctors: %w", err)
	}
	if len(doctors) == 0 {
		return m.messenger.Push(ctx, userID, msgNoDoctors)
	}

	choices := make([]DoctorChoice, 0, len(doctors))
	for _, d := range doctors {
		choices = append(choices, DoctorChoice{ID: d.ID, Name: d.Name, Specialty: d.Specialty})
	}

	m.sessions.Set(userID, Session{
		Step:  StepSelectDoctor,
		Draft: Draft{Doctors: choices},
	})

	return m.messenger.Push(ctx, userID, doctorMenuMessage(choices))
}

func (m *Machine) handleSelectDoctor(ctx context.Context, userID string, sess Session, text string) error {
	idx, err := strconv.Atoi(text)
	if err != nil || idx < 1 || idx > len(sess.Draft.Doctors) {
		return m.messenger.Push(ctx, userID, msgInvalidDoctor)
	}

	doctor := sess.Draft.Doctors[idx-1]
	sess.Step = StepSelectDate
	sess.Draft.DoctorID = doctor.ID
	sess.Draft.DoctorName = doctor.Name
	m.sessions.Set(userID, sess)

	return m.messenger.Push(ctx, userID, askDateMessage(doctor.Name))
}

func (m *Machine) handleSelectDate(ctx context.Context, userID string, sess Session, text string) error {
	date, err := time.ParseInLocation("2006-01-02", text, time.Local)
	if err != nil {
		return m.messenger.Push(ctx, userID, msgInvalidDate)
	}

	open, err := m.slots.ListOpenSlots(ctx, sess.Draft.DoctorID, date)
	if err != nil {
		return fmt.Errorf("list open slots: %w", err)
	}
	if len(open) == 0 {
		return m.messenger.Push(ctx, userID, msgNoSlots)
	}

	choices := make([]SlotChoice, 0, len(open))
	for _, s := range open {
		choices = append(choices, SlotChoice{
			ID:          s.ID,
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
			BookedCount: s.BookedCount,
			MaxCapacity: s.MaxCapacity,
		})
	}

	sess.Step = StepSelectSlot
	sess.Draft.Date = text
	sess.Draft.Slots = choices
	m.sessions.Set(userID, sess)

	return m.messenger.Push(ctx, userID, slotMenuMessage(choices))
}

func (m *Machine) handleSelectSlot(ctx context.Context, userID string, sess Session, text string) error {
	idx, err := strconv.Atoi(text)
	if err != nil || idx < 1 || idx > len(sess.Draft.Slots) {
		return m.messenger.Push(ctx, userID, msgInvalidSlot)
	}

	sess.Step = StepInputName
	sess.Draft.SlotID = sess.Draft.Slots[idx-1].ID
	m.sessions.Set(userID, sess)

	return m.messenger.Push(ctx, userID, msgAskName)
}

// handleInputName is the only point the flow establishes patient identity:
// the record is created on first contact, otherwise the name is refreshed.
func (m *Machine) handleInputName(ctx context.Context, userID string, sess Session, text string) error {
	patient, err := m.patients.ResolvePatient(ctx, userID, text)
	if err != nil {
		return fmt.Errorf("resolve patient: %w", err)
	}

	sess.Step = StepInputPhone
	sess.Draft.PatientID = patient.ID
	sess.Draft.Name = text
	m.sessions.Set(userID, sess)

	return m.messenger.Push(ctx, userID, msgAskPhone)
}

func (m *Machine) handleInputPhone(ctx context.Context, userID string, sess Session, text string) error {
	if _, err := m.patients.UpdatePatientPhone(ctx, sess.Draft.PatientID, text); err != nil {
		return fmt.Errorf("update patient phone: %w", err)
	}

	sess.Step = StepConfirm
	sess.Draft.Phone = text
	m.sessions.Set(userID, sess)

	return m.messenger.Push(ctx, userID, confirmMessage(sess.Draft))
}

// handleConfirm attempts the booking. The session is cleared on success and
// on admission failure alike: slot state has moved on, so the user restarts
// instead of resuming a stale draft.
func (m *Machine) handleConfirm(ctx context.Context, userID string, sess Session, text string) error {
	if text != cmdConfirm {
		return m.messenger.Push(ctx, userID, msgConfirmAgain)
	}

	appt, err := m.booker.Book(ctx, sess.Draft.PatientID, sess.Draft.SlotID, nil)
	m.sessions.Delete(userID)

	if err != nil {
		m.logger.Warn("chat booking failed", "user_id", userID, "error", err)
		return m.messenger.Push(ctx, userID, bookingErrorMessage(err))
	}

	return m.messenger.Push(ctx, userID, bookedMessage(appt.QueueNumber))
}

func bookingErrorMessage(err error) string {
	switch {
	case errors.Is(err, booking.ErrSlotFull):
		return msgSlotFull
	case errors.Is(err, booking.ErrDuplicateBooking):
		return msgDuplicate
	case errors.Is(err, booking.ErrSlotBeingBooked), errors.Is(err, redisclient.ErrLockNotAcquired):
		return msgSlotContended
	default:
		return msgBookingFailed
	}
}

// replyAppointments answers the 查詢 command with the user's bookings.
func (m *Machine) replyAppointments(ctx context.Context, userID, replyToken string) error {
	patient, err := m.patients.FindPatientByChatUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, clinic.ErrPatientNotFound) {
			return m.messenger.Reply(ctx, replyToken, msgNoAppointments)
		}
		return fmt.Errorf("find patient: %w", err)
	}

	appointments, err := m.booker.ListByPatient(ctx, patient.ID)
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}
	if len(appointments) == 0 {
		return m.messenger.Reply(ctx, replyToken, msgNoAppointments)
	}

	var b strings.Builder
	b.WriteString("您的預約紀錄：\n")
	shown := 0
	for _, a := range appointments {
		if shown == 5 {
			break
		}
		fmt.Fprintf(&b, "\n%s %s-%s\n%s 號碼 %d（%s）\n",
			a.Slot.SlotDate.Format("2006-01-02"), a.Slot.StartTime, a.Slot.EndTime,
			a.Doctor.Name, a.QueueNumber, statusLabel(a.Status),
		)
		shown++
	}

	return m.messenger.Reply(ctx, replyToken, b.String())
}

// replyProgress answers 進度 with the waiting estimate for the user's nearest
// pending appointment today.
func (m *Machine) replyProgress(ctx context.Context, userID, replyToken string) error {
	patient, err := m.patients.FindPatientByChatUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, clinic.ErrPatientNotFound) {
			return m.messenger.Reply(ctx, replyToken, msgNoPending)
		}
		return fmt.Errorf("find patient: %w", err)
	}

	appointments, err := m.booker.ListByPatient(ctx, patient.ID)
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}

	pending := nearestPendingToday(appointments, time.Now())
	if pending == nil {
		return m.messenger.Reply(ctx, replyToken, msgNoPending)
	}

	current, err := m.queues.GetCurrent(ctx, pending.Doctor.ID, pending.Slot.SlotDate)
	if err != nil {
		return fmt.Errorf("get current number: %w", err)
	}

	waiting := queue.WaitingCount(pending.QueueNumber, current)

	return m.messenger.Reply(ctx, replyToken,
		progressMessage(pending.Doctor.Name, pending.QueueNumber, current, waiting))
}

// nearestPendingToday picks today's BOOKED or CHECKED_IN appointment with the
// smallest queue number.
func nearestPendingToday(appointments []booking.Detail, now time.Time) *booking.Detail {
	today := now.Format("2006-01-02")

	var best *booking.Detail
	for i := range appointments {
		a := &appointments[i]
		if a.Status != booking.StatusBooked && a.Status != booking.StatusCheckedIn {
			continue
		}
		if a.Slot.SlotDate.Format("2006-01-02") != today {
			continue
		}
		if best == nil || a.QueueNumber < best.QueueNumber {
			best = a
		}
	}
	return best
}

func statusLabel(s booking.Status) string {
	switch s {
	case booking.StatusBooked:
		return "已預約"
	case booking.StatusCheckedIn:
		return "已報到"
	case booking.StatusCompleted:
		return "已完成"
	case booking.StatusCancelled:
		return "已取消"
	default:
		return string(s)
	}
}
