package interfaces

import (
	"context"

	domaintypes "synctrust/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects your identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// Confirmer is the boundary to whoever compares safety words with the other
// party. The returned channel yields exactly one Decision; the caller stops
// listening when ctx is done.
type Confirmer interface {
	RequestConfirmation(ctx context.Context, req domaintypes.ConfirmationRequest) <-chan domaintypes.Decision
}

// TrustVerifier establishes trust in the keys of session members.
type TrustVerifier interface {
	TrustAllMembersPublicKeys(ctx context.Context, sessionID domaintypes.SessionID) (domaintypes.TrustResult, error)
	TrustMissingMembersPublicKeys(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		members []domaintypes.InstanceID,
	) (domaintypes.TrustResult, error)
	Forget(sessionID domaintypes.SessionID)
}

// SignatureExchanger cross-verifies members through signed statements.
type SignatureExchanger interface {
	Track(sessionID domaintypes.SessionID)
	SendToMembers(ctx context.Context, sessionID domaintypes.SessionID, members []domaintypes.SessionMember) error
	Forget(sessionID domaintypes.SessionID)
}

// SessionService creates and joins sessions.
type SessionService interface {
	CreateSession(ctx context.Context, password string) (domaintypes.SessionInfo, error)
	JoinSession(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		password string,
		opts domaintypes.JoinOptions,
	) (domaintypes.SessionInfo, error)
	CancelJoin(sessionID domaintypes.SessionID) bool
	QuitSession(ctx context.Context, sessionID domaintypes.SessionID) error
	Status(sessionID domaintypes.SessionID) domaintypes.SessionConnectionStatus
}
