package chat

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/outpatient-queue/pkg/logging"
)

// Step tags where a booking conversation currently is.
type Step string

const (
	StepSelectDoctor Step = "select_doctor"
	StepSelectDate   Step = "select_date"
	StepSelectSlot   Step = "select_slot"
	StepInputName    Step = "input_name"
	StepInputPhone   Step = "input_phone"
	StepConfirm      Step = "confirm"
)

// DoctorChoice is a menu entry snapshotted into the draft so that a numeric
// reply resolves against what the user actually saw, not the live directory.
type DoctorChoice struct {
	ID        uuid.UUID
	Name      string
	Specialty string
}

// SlotChoice mirrors DoctorChoice for the slot menu.
type SlotChoice struct {
	ID          uuid.UUID
	StartTime   string
	EndTime     string
	BookedCount int
	MaxCapacity int
}

// Draft accumulates the booking fields across steps; each transition carries
// every previously collected field forward.
type Draft struct {
	Doctors    []DoctorChoice
	DoctorID   uuid.UUID
	DoctorName string
	Date       string
	Slots      []SlotChoice
	SlotID     uuid.UUID
	PatientID  uuid.UUID
	Name       string
	Phone      string
}

// Session is one user's in-flight conversation. Sessions live only in memory;
// a process restart abandons them.
type Session struct {
	Step      Step
	Draft     Draft
	ExpiresAt time.Time
}

const sessionShardCount = 32

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// SessionStore holds at most one active conversation per chat user. It is
// sharded by user key so concurrent messages never contend on a global lock,
// and no lock is ever held across I/O. The last write for a key wins.
type SessionStore struct {
	shards [sessionShardCount]*sessionShard
	ttl    time.Duration
	logger *logging.Logger
}

func NewSessionStore(ttl time.Duration, logger *logging.Logger) *SessionStore {
	if logger == nil {
		logger = logging.Default()
	}
	s := &SessionStore{
		ttl:    ttl,
		logger: logger,
	}
	for i := range s.shards {
		s.shards[i] = &sessionShard{sessions: make(map[string]Session)}
	}
	return s
}

func (s *SessionStore) shard(userID string) *sessionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%sessionShardCount]
}

// Get returns the live session for a user. Expired sessions read as absent.
func (s *SessionStore) Get(userID string) (Session, bool) {
	sh := s.shard(userID)
	sh.mu.RLock()
	sess, ok := sh.sessions[userID]
	sh.mu.RUnlock()

	if !ok {
		return Session{}, false
	}
	if !sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt) {
		return Session{}, false
	}
	return sess, true
}

// Set replaces the user's session and refreshes its deadline.
func (s *SessionStore) Set(userID string, sess Session) {
	if s.ttl > 0 {
		sess.ExpiresAt = time.Now().Add(s.ttl)
	}

	sh := s.shard(userID)
	sh.mu.Lock()
	sh.sessions[userID] = sess
	sh.mu.Unlock()
}

func (s *SessionStore) Delete(userID string) {
	sh := s.shard(userID)
	sh.mu.Lock()
	delete(sh.sessions, userID)
	sh.mu.Unlock()
}

// Sweep drops expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	now := time.Now()
	removed := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		for userID, sess := range sh.sessions {
			if !sess.ExpiresAt.IsZero() && now.After(sess.ExpiresAt) {
				delete(sh.sessions, userID)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	return removed
}

// RunJanitor sweeps on the given interval until ctx is cancelled. Run it in
// its own goroutine.
func (s *SessionStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired chat sessions swept", "count", n)
			}
		}
	}
}
