package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/outpatient-queue/internal/booking"
	"github.com/clinicware/outpatient-queue/internal/clinic"
)

// Mock implementations

type mockMessenger struct {
	replies []string
	pushes  []string
}

func (m *mockMessenger) Reply(ctx context.Context, replyToken string, texts ...string) error {
	m.replies = append(m.replies, texts...)
	return nil
}

func (m *mockMessenger) Push(ctx context.Context, userID string, texts ...string) error {
	m.pushes = append(m.pushes, texts...)
	return nil
}

func (m *mockMessenger) last() string {
	if len(m.pushes) > 0 {
		return m.pushes[len(m.pushes)-1]
	}
	if len(m.replies) > 0 {
		return m.replies[len(m.replies)-1]
	}
	return ""
}

type mockDirectory struct {
	doctors  []clinic.Doctor
	slots    []clinic.TimeSlot
	patients map[string]*clinic.Patient
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{patients: make(map[string]*clinic.Patient)}
}

func (m *mockDirectory) ListDoctors(ctx context.Context) ([]clinic.Doctor, error) {
	return m.doctors, nil
}

func (m *mockDirectory) ListOpenSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]clinic.TimeSlot, error) {
	return m.slots, nil
}

func (m *mockDirectory) FindPatientByChatUserID(ctx context.Context, chatUserID string) (*clinic.Patient, error) {
	if p, ok := m.patients[chatUserID]; ok {
		return p, nil
	}
	return nil, clinic.ErrPatientNotFound
}

func (m *mockDirectory) ResolvePatient(ctx context.Context, chatUserID, name string) (*clinic.Patient, error) {
	if p, ok := m.patients[chatUserID]; ok {
		p.Name = name
		return p, nil
	}
	p := &clinic.Patient{ID: uuid.New(), ChatUserID: chatUserID, Name: name}
	m.patients[chatUserID] = p
	return p, nil
}

func (m *mockDirectory) UpdatePatientPhone(ctx context.Context, id uuid.UUID, phone string) (*clinic.Patient, error) {
	for _, p := range m.patients {
		if p.ID == id {
			p.Phone = phone
			return p, nil
		}
	}
	return nil, clinic.ErrPatientNotFound
}

type mockBooker struct {
	bookErr error
	booked  []booking.Appointment
	details []booking.Detail
	current int
}

func (m *mockBooker) Book(ctx context.Context, patientID, slotID uuid.UUID, notes *string) (*booking.Appointment, error) {
	if m.bookErr != nil {
		return nil, m.bookErr
	}
	appt := booking.Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		TimeSlotID:  slotID,
		QueueNumber: len(m.booked) + 1,
		Status:      booking.StatusBooked,
	}
	m.booked = append(m.booked, appt)
	return &appt, nil
}

func (m *mockBooker) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]booking.Detail, error) {
	return m.details, nil
}

func (m *mockBooker) GetCurrent(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	return m.current, nil
}

func newTestMachine(t *testing.T) (*Machine, *mockMessenger, *mockDirectory, *mockBooker, *SessionStore) {
	t.Helper()

	dir := newMockDirectory()
	dir.doctors = []clinic.Doctor{
		{ID: uuid.New(), Name: "陳醫師", Specialty: "家醫科"},
		{ID: uuid.New(), Name: "林醫師", Specialty: "小兒科"},
	}
	dir.slots = []clinic.TimeSlot{
		{ID: uuid.New(), StartTime: "09:00", EndTime: "12:00", MaxCapacity: 20, BookedCount: 3},
		{ID: uuid.New(), StartTime: "14:00", EndTime: "17:00", MaxCapacity: 20, BookedCount: 19},
	}

	messenger := &mockMessenger{}
	booker := &mockBooker{}
	sessions := NewSessionStore(time.Minute, nil)
	machine := NewMachine(sessions, messenger, dir, dir, dir, booker, booker, nil)

	return machine, messenger, dir, booker, sessions
}

const testUser = "U-chat-test"

func walkToConfirm(t *testing.T, m *Machine) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, m.HandleText(ctx, testUser, "rt", "預約"))
	require.NoError(t, m.HandleText(ctx, testUser, "rt", "1"))
	require.NoError(t, m.HandleText(ctx, testUser, "rt", "2026-09-01"))
	require.NoError(t, m.HandleText(ctx, testUser, "rt", "1"))
	require.NoError(t, m.HandleText(ctx, testUser, "rt", "王小明"))
	require.NoError(t, m.HandleText(ctx, testUser, "rt", "0912345678"))
}

func TestBookingFlowHappyPath(t *testing.T) {
	machine, messenger, dir, booker, sessions := newTestMachine(t)
	ctx := context.Background()

	walkToConfirm(t, machine)

	// the confirmation summary carries everything collected on the way
	summary := messenger.last()
	assert.Contains(t, summary, "陳醫師")
	assert.Contains(t, summary, "2026-09-01")
	assert.Contains(t, summary, "09:00 - 12:00")
	assert.Contains(t, summary, "王小明")
	assert.Contains(t, summary, "0912345678")

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "確認"))

	require.Len(t, booker.booked, 1)
	assert.Contains(t, messenger.last(), "預約成功")
	assert.Contains(t, messenger.last(), "您的預約號碼：1")

	p, ok := dir.patients[testUser]
	require.True(t, ok, "confirming must have created the patient record")
	assert.Equal(t, "王小明", p.Name)
	assert.Equal(t, "0912345678", p.Phone)

	_, open := sessions.Get(testUser)
	assert.False(t, open, "session must be cleared after booking")
}

func TestBookingFlowInvalidInputsKeepStep(t *testing.T) {
	machine, messenger, _, _, sessions := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "預約"))

	// junk doctor choices re-prompt without advancing
	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "abc"))
	assert.Equal(t, msgInvalidDoctor, messenger.last())
	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "9"))
	assert.Equal(t, msgInvalidDoctor, messenger.last())

	sess, _ := sessions.Get(testUser)
	assert.Equal(t, StepSelectDoctor, sess.Step)

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "1"))

	// malformed date re-prompts
	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "9月1日"))
	assert.Equal(t, msgInvalidDate, messenger.last())

	sess, _ = sessions.Get(testUser)
	assert.Equal(t, StepSelectDate, sess.Step)
}

func TestBookingFlowCancelRestarts(t *testing.T) {
	machine, messenger, _, _, sessions := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "預約"))
	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "1"))
	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "取消"))

	sess, ok := sessions.Get(testUser)
	require.True(t, ok)
	assert.Equal(t, StepSelectDoctor, sess.Step, "cancel restarts at the doctor menu")
	assert.Contains(t, messenger.last(), "請選擇醫師")
}

func TestConfirmRequiresExactToken(t *testing.T) {
	machine, messenger, _, booker, sessions := newTestMachine(t)
	ctx := context.Background()

	walkToConfirm(t, machine)

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "好"))
	assert.Equal(t, msgConfirmAgain, messenger.last())
	assert.Empty(t, booker.booked)

	sess, ok := sessions.Get(testUser)
	require.True(t, ok)
	assert.Equal(t, StepConfirm, sess.Step)
}

func TestConfirmFailureClearsSession(t *testing.T) {
	machine, messenger, _, booker, sessions := newTestMachine(t)
	ctx := context.Background()

	walkToConfirm(t, machine)
	booker.bookErr = booking.ErrSlotFull

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "確認"))
	assert.Equal(t, msgSlotFull, messenger.last())

	_, open := sessions.Get(testUser)
	assert.False(t, open, "failed admission must clear the session too")
}

func TestBookingErrorMessages(t *testing.T) {
	assert.Equal(t, msgSlotFull, bookingErrorMessage(booking.ErrSlotFull))
	assert.Equal(t, msgDuplicate, bookingErrorMessage(booking.ErrDuplicateBooking))
	assert.Equal(t, msgSlotContended, bookingErrorMessage(booking.ErrSlotBeingBooked))
	assert.Equal(t, msgBookingFailed, bookingErrorMessage(assert.AnError))
}

func TestUnknownCommandRepliesMenu(t *testing.T) {
	machine, messenger, _, _, _ := newTestMachine(t)

	require.NoError(t, machine.HandleText(context.Background(), testUser, "rt", "hello"))
	assert.Equal(t, []string{msgMenu}, messenger.replies)
}

func TestFollowGreets(t *testing.T) {
	machine, messenger, _, _, _ := newTestMachine(t)

	require.NoError(t, machine.HandleFollow(context.Background(), "rt"))
	assert.Equal(t, []string{msgWelcome}, messenger.replies)
}

func TestQueryWithoutHistory(t *testing.T) {
	machine, messenger, _, _, _ := newTestMachine(t)

	require.NoError(t, machine.HandleText(context.Background(), testUser, "rt", "查詢"))
	assert.Equal(t, []string{msgNoAppointments}, messenger.replies)
}

func TestQueryListsAppointments(t *testing.T) {
	machine, messenger, dir, booker, _ := newTestMachine(t)
	ctx := context.Background()

	patient := &clinic.Patient{ID: uuid.New(), ChatUserID: testUser, Name: "王小明"}
	dir.patients[testUser] = patient

	slotDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)
	booker.details = []booking.Detail{
		{
			Appointment: booking.Appointment{QueueNumber: 4, Status: booking.StatusBooked},
			Slot:        &clinic.TimeSlot{SlotDate: slotDate, StartTime: "09:00", EndTime: "12:00"},
			Doctor:      &clinic.Doctor{Name: "陳醫師"},
		},
	}

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "查詢"))
	reply := messenger.replies[0]
	assert.Contains(t, reply, "2026-09-01 09:00-12:00")
	assert.Contains(t, reply, "陳醫師 號碼 4（已預約）")
}

func TestProgressReportsWaiting(t *testing.T) {
	machine, messenger, dir, booker, _ := newTestMachine(t)
	ctx := context.Background()

	patient := &clinic.Patient{ID: uuid.New(), ChatUserID: testUser, Name: "王小明"}
	dir.patients[testUser] = patient

	today := time.Now()
	todayMidnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.Local)
	doctor := &clinic.Doctor{ID: uuid.New(), Name: "陳醫師"}

	booker.details = []booking.Detail{
		{
			Appointment: booking.Appointment{QueueNumber: 7, Status: booking.StatusBooked},
			Slot:        &clinic.TimeSlot{SlotDate: todayMidnight, StartTime: "09:00", EndTime: "12:00"},
			Doctor:      doctor,
		},
		{
			// cancelled one must not be considered
			Appointment: booking.Appointment{QueueNumber: 2, Status: booking.StatusCancelled},
			Slot:        &clinic.TimeSlot{SlotDate: todayMidnight, StartTime: "09:00", EndTime: "12:00"},
			Doctor:      doctor,
		},
	}
	booker.current = 3

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "進度"))
	reply := messenger.replies[0]
	assert.Contains(t, reply, "目前叫號：3")
	assert.Contains(t, reply, "您的號碼：7")
	assert.Contains(t, reply, "預估還有 4 位")
}

func TestProgressNoPendingToday(t *testing.T) {
	machine, messenger, dir, booker, _ := newTestMachine(t)
	ctx := context.Background()

	dir.patients[testUser] = &clinic.Patient{ID: uuid.New(), ChatUserID: testUser}
	booker.details = []booking.Detail{
		{
			Appointment: booking.Appointment{QueueNumber: 1, Status: booking.StatusBooked},
			Slot:        &clinic.TimeSlot{SlotDate: time.Now().AddDate(0, 0, 3)},
			Doctor:      &clinic.Doctor{Name: "陳醫師"},
		},
	}

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "進度"))
	assert.Equal(t, []string{msgNoPending}, messenger.replies)
}

func TestNoSlotsOnChosenDate(t *testing.T) {
	machine, messenger, dir, _, sessions := newTestMachine(t)
	ctx := context.Background()

	dir.slots = nil

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "預約"))
	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "1"))
	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "2026-09-01"))

	assert.Equal(t, msgNoSlots, messenger.last())
	sess, _ := sessions.Get(testUser)
	assert.Equal(t, StepSelectDate, sess.Step, "no-slot days keep the user picking dates")
}

func TestSlotMenuShowsOccupancy(t *testing.T) {
	machine, messenger, _, _, _ := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "預約"))
	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "2"))
	require.NoError(t, machine.HandleText(ctx, testUser, "rt", "2026-09-01"))

	menu := messenger.last()
	assert.True(t, strings.Contains(menu, "1. 09:00 - 12:00 (3/20)"), "menu: %s", menu)
	assert.True(t, strings.Contains(menu, "2. 14:00 - 17:00 (19/20)"), "menu: %s", menu)
}
