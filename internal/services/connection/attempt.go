package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/protocol/signal"
	"synctrust/internal/util/memzero"
)

// JoinOutcome is what the relay reported for a join request: either the
// joined-session data or a wrong password.
type JoinOutcome struct {
	Joined        *types.YouJoinedSessionEvent
	WrongPassword bool
}

// Attempt is the state of one connection attempt to a session.
type Attempt struct {
	SessionID    domain.SessionID
	WaitTimeSpan time.Duration

	// PasswordExchangeKey is completed with the validator's key.
	PasswordExchangeKey *signal.Future[types.GivePasswordExchangeKeyEvent]
	// JoinResult is completed when the relay answers the join request.
	JoinResult *signal.Future[JoinOutcome]

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	status   domain.SessionConnectionStatus
	password []byte
	key      []byte
}

func newAttempt(parent context.Context, sessionID domain.SessionID, password string, wait time.Duration) *Attempt {
	ctx, cancel := context.WithCancel(parent)
	return &Attempt{
		SessionID:           sessionID,
		WaitTimeSpan:        wait,
		PasswordExchangeKey: signal.NewFuture[types.GivePasswordExchangeKeyEvent](),
		JoinResult:          signal.NewFuture[JoinOutcome](),
		ctx:                 ctx,
		cancel:              cancel,
		status:              types.StatusNone,
		password:            []byte(password),
	}
}

// Context is cancelled when the attempt is cancelled or ended.
func (a *Attempt) Context() context.Context { return a.ctx }

// Cancel aborts every wait of the attempt.
func (a *Attempt) Cancel() { a.cancel() }

// Cancelled reports whether the attempt was cancelled.
func (a *Attempt) Cancelled() bool { return a.ctx.Err() != nil }

// Status returns the attempt's connection status.
func (a *Attempt) Status() domain.SessionConnectionStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Transition moves the attempt to next, refusing illegal transitions.
func (a *Attempt) Transition(next domain.SessionConnectionStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.status, next)
	}
	a.status = next
	return nil
}

// Password returns a copy of the session password.
func (a *Attempt) Password() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.password...)
}

// SetSessionKey records the symmetric session key.
func (a *Attempt) SetSessionKey(key []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.key = append([]byte(nil), key...)
}

// SessionKey returns a copy of the symmetric session key, if known.
func (a *Attempt) SessionKey() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.key == nil {
		return nil
	}
	return append([]byte(nil), a.key...)
}

func (a *Attempt) wipe() {
	a.mu.Lock()
	defer a.mu.Unlock()
	memzero.Zero(a.password, a.key)
	a.password, a.key = nil, nil
}
