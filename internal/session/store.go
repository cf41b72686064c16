package session

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrCapacityExceeded = errors.New("session capacity exceeded")
)

const (
	DefaultMaxSessions = 100
	DefaultIdleTimeout = time.Hour
)

// Store holds every active session in memory behind a single mutex.
// Capacity and idle timeout are fixed at construction. The lock is only
// held for map bookkeeping, never across network or file I/O.
//
// Expired sessions are swept lazily: every Create, Get, List and mutation
// first drops sessions whose idle time exceeds the timeout, so a stale
// session is never returned to a caller.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxSessions int
	idleTimeout time.Duration
	now         func() time.Time
}

func NewStore(maxSessions int, idleTimeout time.Duration) *Store {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Store{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create registers a new session. It fails with ErrCapacityExceeded when
// the active count is already at the configured maximum.
func (s *Store) Create(description, model, name string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	if len(s.sessions) >= s.maxSessions {
		return Summary{}, ErrCapacityExceeded
	}

	now := s.now()
	sess := &Session{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Model:       model,
		CreatedAt:   now,
		LastActive:  now,
	}
	s.sessions[sess.ID] = sess
	return sess.Summary(), nil
}

// Get returns a copy of the session and refreshes its activity timestamp.
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id)
	if err != nil {
		return Session{}, err
	}
	s.touchLocked(sess)
	return copySession(sess), nil
}

// Peek returns a copy without updating LastActive. Used by status and
// list operations so introspection does not keep a session alive.
func (s *Store) Peek(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id)
	if err != nil {
		return Session{}, err
	}
	return copySession(sess), nil
}

// AppendTurn adds a turn to the session history. Sequence numbers are
// assigned by the store and are strictly increasing within a session.
func (s *Store) AppendTurn(id string, role Role, text, imageID string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id)
	if err != nil {
		return Turn{}, err
	}

	turn := Turn{
		Seq:     len(sess.Turns) + 1,
		Role:    role,
		Text:    text,
		ImageID: imageID,
	}
	sess.Turns = append(sess.Turns, turn)
	s.touchLocked(sess)
	return turn, nil
}

// AppendImage links a generated image record to the session. The record
// itself is owned by the organizer; the session keeps a reference copy.
func (s *Store) AppendImage(id string, rec ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id)
	if err != nil {
		return err
	}

	sess.Images = append(sess.Images, rec)
	s.touchLocked(sess)
	return nil
}

// SetModel pins the session to a concrete model once the first generation
// resolves an "auto" selection.
func (s *Store) SetModel(id, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id)
	if err != nil {
		return err
	}
	sess.Model = model
	s.touchLocked(sess)
	return nil
}

// Close removes the session and returns its final summary. Closing an
// unknown or already-closed session fails with ErrNotFound.
func (s *Store) Close(id string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(id)
	if err != nil {
		return Summary{}, err
	}
	delete(s.sessions, id)
	return sess.Summary(), nil
}

// List returns summaries of all active sessions, most recently active first.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	summaries := make([]Summary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		summaries = append(summaries, sess.Summary())
	}
	slices.SortFunc(summaries, func(a, b Summary) int {
		return b.LastActive.Compare(a.LastActive)
	})
	return summaries
}

// Len reports the active session count after sweeping.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	return len(s.sessions)
}

// Sweep removes every session idle longer than the configured timeout and
// returns the number removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked()
}

func (s *Store) getLocked(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok || s.expiredLocked(sess) {
		if ok {
			delete(s.sessions, id)
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *Store) expiredLocked(sess *Session) bool {
	return s.now().Sub(sess.LastActive) > s.idleTimeout
}

// touchLocked keeps LastActive monotonically non-decreasing.
func (s *Store) touchLocked(sess *Session) {
	if now := s.now(); now.After(sess.LastActive) {
		sess.LastActive = now
	}
}

func (s *Store) sweepLocked() int {
	removed := 0
	for id, sess := range s.sessions {
		if s.expiredLocked(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func copySession(sess *Session) Session {
	out := *sess
	out.Turns = append([]Turn(nil), sess.Turns...)
	out.Images = append([]ImageRecord(nil), sess.Images...)
	return out
}
