package trust

import (
	"context"
	"errors"

	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/protocol/signal"
)

var (
	// ErrRejected means the local user rejected the peer's key.
	ErrRejected = errors.New("trust: key rejected")
	// ErrPeerRejected means the peer rejected our key.
	ErrPeerRejected = errors.New("trust: key rejected by peer")
	// ErrPeerAborted means the peer gave up on the check, or replaced it
	// with a newer one, before the pair resolved.
	ErrPeerAborted = errors.New("trust: check abandoned by peer")
	// ErrCancelled means the local user cancelled the confirmation.
	ErrCancelled = errors.New("trust: confirmation cancelled")
	// ErrKeyMismatch means check data does not match the announced key.
	ErrKeyMismatch = errors.New("trust: public key does not match its hash")
	// ErrIncompatible means the peer speaks another protocol version.
	ErrIncompatible = errors.New("trust: protocol version incompatible")
	// ErrRelay means the relay refused to forward a message.
	ErrRelay = errors.New("trust: relay refused")
)

// Status classifies err as a join outcome.
func Status(err error) domain.JoinSessionStatus {
	switch {
	case err == nil:
		return types.JoinOk
	case errors.Is(err, ErrRejected), errors.Is(err, ErrPeerRejected), errors.Is(err, ErrPeerAborted),
		errors.Is(err, ErrKeyMismatch):
		return types.JoinUntrustedPublicKey
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return types.JoinUserCancelled
	case errors.Is(err, signal.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return types.JoinTimeout
	case errors.Is(err, ErrIncompatible):
		return types.JoinProtocolVersionIncompatible
	case errors.Is(err, ErrRelay):
		return types.JoinRelayRejected
	default:
		return types.JoinUnexpectedError
	}
}
