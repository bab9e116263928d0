package connection

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/util/memzero"
)

var (
	// ErrAlreadyConnected is returned by Begin for a session that is joined
	// or has an attempt in flight.
	ErrAlreadyConnected = errors.New("connection: already connected to session")
	// ErrIllegalTransition is returned for a status change the state
	// machine does not allow.
	ErrIllegalTransition = errors.New("connection: illegal status transition")
	// ErrUnknownAttempt is returned when promoting an attempt the store no
	// longer holds.
	ErrUnknownAttempt = errors.New("connection: unknown attempt")
)

// Session is a joined session.
type Session struct {
	Info       domain.SessionInfo
	SessionKey []byte
	// Password is what joiners must present to the validator.
	Password []byte
	JoinedAt time.Time
}

// Store owns attempts and joined sessions.
type Store struct {
	mu       sync.RWMutex
	attempts map[domain.SessionID]*Attempt
	sessions map[domain.SessionID]*Session
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		attempts: make(map[domain.SessionID]*Attempt),
		sessions: make(map[domain.SessionID]*Session),
	}
}

// Begin creates the attempt for sessionID in the given initial status.
func (s *Store) Begin(
	parent context.Context,
	sessionID domain.SessionID,
	password string,
	status domain.SessionConnectionStatus,
	wait time.Duration,
) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attempts[sessionID]; ok {
		return nil, ErrAlreadyConnected
	}
	if _, ok := s.sessions[sessionID]; ok {
		return nil, ErrAlreadyConnected
	}
	a := newAttempt(parent, sessionID, password, wait)
	if err := a.Transition(status); err != nil {
		a.cancel()
		return nil, err
	}
	s.attempts[sessionID] = a
	return a, nil
}

// Rekey moves an attempt registered under a placeholder id to its real
// session id. Creating a session only learns the id from the relay.
func (s *Store) Rekey(a *Attempt, sessionID domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts[a.SessionID] != a {
		return ErrUnknownAttempt
	}
	if _, ok := s.attempts[sessionID]; ok {
		return ErrAlreadyConnected
	}
	delete(s.attempts, a.SessionID)
	a.SessionID = sessionID
	s.attempts[sessionID] = a
	return nil
}

// Attempt returns the in-flight attempt for sessionID.
func (s *Store) Attempt(sessionID domain.SessionID) (*Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[sessionID]
	return a, ok
}

// Cancel cancels the attempt for sessionID and reports whether one existed.
func (s *Store) Cancel(sessionID domain.SessionID) bool {
	a, ok := s.Attempt(sessionID)
	if ok {
		a.Cancel()
	}
	return ok
}

// Promote records a successful attempt as a joined session. The attempt
// moves to InSession and is removed.
func (s *Store) Promote(a *Attempt, info domain.SessionInfo) error {
	if err := a.Transition(types.StatusInSession); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts[a.SessionID] != a {
		return ErrUnknownAttempt
	}
	delete(s.attempts, a.SessionID)
	s.sessions[a.SessionID] = &Session{
		Info:       info,
		SessionKey: a.SessionKey(),
		Password:   a.Password(),
		JoinedAt:   time.Now(),
	}
	a.wipe()
	a.cancel()
	return nil
}

// End removes a failed or cancelled attempt. Ending an attempt that was
// already promoted or ended is a no-op.
func (s *Store) End(a *Attempt) {
	s.mu.Lock()
	if s.attempts[a.SessionID] == a {
		delete(s.attempts, a.SessionID)
		_ = a.Transition(types.StatusFatalError)
	}
	s.mu.Unlock()
	a.wipe()
	a.cancel()
}

// Session returns a copy of a joined session. The caller owns its slices
// and should zero the secrets once done with them.
func (s *Store) Session(sessionID domain.SessionID) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	out := *sess
	out.Info.Members = slices.Clone(sess.Info.Members)
	out.SessionKey = bytes.Clone(sess.SessionKey)
	out.Password = bytes.Clone(sess.Password)
	return out, true
}

// UpdateMembers replaces the member list of a joined session with what fn
// returns. fn gets its own copy of the list.
func (s *Store) UpdateMembers(sessionID domain.SessionID, fn func([]domain.SessionMember) []domain.SessionMember) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	sess.Info.Members = fn(slices.Clone(sess.Info.Members))
	return true
}

// Leave forgets a joined session and wipes its secrets.
func (s *Store) Leave(sessionID domain.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	memzero.Zero(sess.SessionKey, sess.Password)
	delete(s.sessions, sessionID)
	return true
}

// Sessions returns the ids of the joined sessions, sorted.
func (s *Store) Sessions() []domain.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Status returns the connection status of sessionID.
func (s *Store) Status(sessionID domain.SessionID) domain.SessionConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; ok {
		return types.StatusInSession
	}
	if a, ok := s.attempts[sessionID]; ok {
		return a.Status()
	}
	return types.StatusNone
}
