package session

import (
	"context"
	"errors"
	"fmt"

	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
)

var (
	// ErrNotInSession is returned for operations on a session we are not
	// part of.
	ErrNotInSession = errors.New("session: not in session")
	// ErrAuthNotChecked is returned when the relay kept refusing to
	// finalize because signatures were not cross-verified.
	ErrAuthNotChecked = errors.New("session: signatures not cross-verified")
	// ErrUntrustedValidator is returned when the validator's exchange key is
	// not one we trust.
	ErrUntrustedValidator = errors.New("session: validator key is not trusted")
)

// JoinError is the failure of a join attempt.
type JoinError struct {
	Status domain.JoinSessionStatus
	Err    error
}

func (e *JoinError) Error() string {
	if e.Err == nil {
		return "session: join failed: " + string(e.Status)
	}
	return fmt.Sprintf("session: join failed: %s: %v", e.Status, e.Err)
}

func (e *JoinError) Unwrap() error { return e.Err }

// StatusOf returns the join status carried by err.
func StatusOf(err error) domain.JoinSessionStatus {
	if err == nil {
		return types.JoinOk
	}
	var je *JoinError
	if errors.As(err, &je) {
		return je.Status
	}
	return types.JoinUnexpectedError
}

func joinErr(status domain.JoinSessionStatus, err error) *JoinError {
	return &JoinError{Status: status, Err: err}
}

// stopped classifies the end of a wait on ctx.
func stopped(ctx context.Context) *JoinError {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return joinErr(types.JoinTimeout, err)
	}
	return joinErr(types.JoinUserCancelled, err)
}

// relayFailed classifies a failed relay call.
func relayFailed(ctx context.Context, step string, err error) *JoinError {
	if ctx.Err() != nil {
		return stopped(ctx)
	}
	return joinErr(types.JoinUnexpectedError, fmt.Errorf("%s: %w", step, err))
}

// relayRefused classifies a non-Ok relay answer.
func relayRefused(step string, st domain.RelayStatus) *JoinError {
	return joinErr(st.JoinStatus(), fmt.Errorf("%s: relay answered %s", step, st))
}
