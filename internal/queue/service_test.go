package queue

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo drives the queue engine against an in-memory appointment book.

type fakeRepo struct {
	current int
	// queue number -> patient, missing entries are cancelled numbers
	waiting map[int]CalledPatient

	err error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{waiting: make(map[int]CalledPatient)}
}

func (f *fakeRepo) addWaiting(number int, name string) {
	f.waiting[number] = CalledPatient{
		ID:          uuid.New(),
		Name:        name,
		Phone:       "0912345678",
		QueueNumber: number,
	}
}

func (f *fakeRepo) GetOrCreate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Queue, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Queue{
		ID:            uuid.New(),
		DoctorID:      doctorID,
		QueueDate:     date,
		CurrentNumber: f.current,
	}, nil
}

func (f *fakeRepo) AdvanceToNext(ctx context.Context, doctorID uuid.UUID, date time.Time) (*CallResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	numbers := make([]int, 0, len(f.waiting))
	for n := range f.waiting {
		if n > f.current {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 {
		return &CallResult{CurrentNumber: f.current}, nil
	}
	sort.Ints(numbers)
	next := f.waiting[numbers[0]]
	f.current = next.QueueNumber
	return &CallResult{CurrentNumber: f.current, Patient: &next}, nil
}

func (f *fakeRepo) HolderOf(ctx context.Context, doctorID uuid.UUID, date time.Time, number int) (*CalledPatient, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.waiting[number]; ok {
		return &p, nil
	}
	return nil, nil
}

func TestGetCurrentStartsAtZero(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil)

	n, err := svc.GetCurrent(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCallNextSkipsCancelledNumbers(t *testing.T) {
	repo := newFakeRepo()
	repo.addWaiting(1, "王小明")
	// number 2 was cancelled, no entry
	repo.addWaiting(3, "李小華")
	svc := NewService(repo, nil, nil)

	doctorID := uuid.New()
	today := time.Now()

	res, err := svc.CallNext(context.Background(), doctorID, today)
	require.NoError(t, err)
	require.NotNil(t, res.Patient)
	assert.Equal(t, 1, res.CurrentNumber)
	assert.Equal(t, "王小明", res.Patient.Name)

	res, err = svc.CallNext(context.Background(), doctorID, today)
	require.NoError(t, err)
	require.NotNil(t, res.Patient)
	assert.Equal(t, 3, res.CurrentNumber, "cancelled number 2 must be skipped")
	assert.Equal(t, "李小華", res.Patient.Name)
}

func TestCallNextExhaustedKeepsNumber(t *testing.T) {
	repo := newFakeRepo()
	repo.addWaiting(1, "王小明")
	svc := NewService(repo, nil, nil)

	doctorID := uuid.New()
	today := time.Now()

	res, err := svc.CallNext(context.Background(), doctorID, today)
	require.NoError(t, err)
	require.NotNil(t, res.Patient)

	res, err = svc.CallNext(context.Background(), doctorID, today)
	require.NoError(t, err)
	assert.Nil(t, res.Patient, "exhausted queue returns no patient")
	assert.Equal(t, 1, res.CurrentNumber, "exhausted queue keeps the current number")
}

func TestCallNextNeverDecreases(t *testing.T) {
	repo := newFakeRepo()
	for i := 1; i <= 5; i++ {
		repo.addWaiting(i, "病患")
	}
	svc := NewService(repo, nil, nil)

	doctorID := uuid.New()
	today := time.Now()

	last := 0
	for i := 0; i < 8; i++ {
		res, err := svc.CallNext(context.Background(), doctorID, today)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.CurrentNumber, last)
		last = res.CurrentNumber
	}
	assert.Equal(t, 5, last)
}

func TestRecallReportsHolderWithoutAdvancing(t *testing.T) {
	repo := newFakeRepo()
	repo.addWaiting(1, "王小明")
	repo.addWaiting(2, "李小華")
	svc := NewService(repo, nil, nil)

	doctorID := uuid.New()
	today := time.Now()

	_, err := svc.CallNext(context.Background(), doctorID, today)
	require.NoError(t, err)

	res, err := svc.Recall(context.Background(), doctorID, today)
	require.NoError(t, err)
	require.NotNil(t, res.Patient)
	assert.Equal(t, 1, res.CurrentNumber)
	assert.Equal(t, "王小明", res.Patient.Name)

	// recall again: still number 1
	res, err = svc.Recall(context.Background(), doctorID, today)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentNumber)
}

func TestRecallVacantNumber(t *testing.T) {
	repo := newFakeRepo()
	repo.addWaiting(1, "王小明")
	svc := NewService(repo, nil, nil)

	doctorID := uuid.New()
	today := time.Now()

	_, err := svc.CallNext(context.Background(), doctorID, today)
	require.NoError(t, err)

	// the holder cancels after being called
	delete(repo.waiting, 1)

	res, err := svc.Recall(context.Background(), doctorID, today)
	require.NoError(t, err)
	assert.Nil(t, res.Patient)
	assert.Equal(t, 1, res.CurrentNumber)
}

func TestCallNextPropagatesError(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("connection reset")
	svc := NewService(repo, nil, nil)

	_, err := svc.CallNext(context.Background(), uuid.New(), time.Now())
	assert.Error(t, err)
}

func TestWaitingCount(t *testing.T) {
	assert.Equal(t, 4, WaitingCount(7, 3))
	assert.Equal(t, 0, WaitingCount(3, 3))
	assert.Equal(t, 0, WaitingCount(2, 5), "already-called numbers have nothing to wait for")
}
