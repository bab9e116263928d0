package interfaces

import (
	"context"
	"time"

	domaintypes "synctrust/internal/domain/types"
)

// RelayClient is how we talk to the relay server, all with context. Every
// protocol call answers with a RelayStatus; a non-nil error means the call
// itself failed.
type RelayClient interface {
	CreateSession(ctx context.Context, req domaintypes.CreateSessionRequest) (domaintypes.SessionResponse, error)
	GetSession(ctx context.Context, sessionID domaintypes.SessionID) (domaintypes.SessionResponse, error)
	QuitSession(ctx context.Context, sessionID domaintypes.SessionID) (domaintypes.RelayStatus, error)

	StartTrustCheck(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.StartTrustCheckRequest,
	) (domaintypes.StartTrustCheckResponse, error)
	GiveMemberPublicKeyCheckData(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.GiveMemberPublicKeyCheckDataRequest,
	) (domaintypes.RelayStatus, error)
	RequestTrustPublicKey(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.RequestTrustPublicKeyRequest,
	) (domaintypes.RelayStatus, error)
	InformPublicKeyValidationIsFinished(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.InformPublicKeyValidationIsFinishedRequest,
	) (domaintypes.RelayStatus, error)
	InformProtocolVersionIncompatible(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.InformProtocolVersionIncompatibleRequest,
	) (domaintypes.RelayStatus, error)
	SendDigitalSignatures(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.SendDigitalSignaturesRequest,
	) (domaintypes.RelayStatus, error)

	AskPasswordExchangeKey(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.AskPasswordExchangeKeyRequest,
	) (domaintypes.RelayStatus, error)
	GivePasswordExchangeKey(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.GivePasswordExchangeKeyRequest,
	) (domaintypes.RelayStatus, error)
	AskJoinCloudSession(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.AskJoinCloudSessionRequest,
	) (domaintypes.RelayStatus, error)
	ValidateJoinCloudSession(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.ValidateJoinCloudSessionRequest,
	) (domaintypes.RelayStatus, error)
	InformPasswordIsWrong(
		ctx context.Context,
		sessionID domaintypes.SessionID,
		req domaintypes.InformPasswordIsWrongRequest,
	) (domaintypes.RelayStatus, error)
	FinalizeJoinCloudSession(ctx context.Context, sessionID domaintypes.SessionID) (domaintypes.SessionResponse, error)

	FetchEvents(ctx context.Context, wait time.Duration) ([]domaintypes.EventEnvelope, error)
	AckEvents(ctx context.Context, upTo uint64) error
}
