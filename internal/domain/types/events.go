package types

import (
	"encoding/json"
	"time"
)

// EventKind names a push event delivered by the relay.
type EventKind string

const (
	EventAskPublicKeyCheckData               EventKind = "AskPublicKeyCheckData"
	EventGiveMemberPublicKeyCheckData        EventKind = "GiveMemberPublicKeyCheckData"
	EventRequestTrustPublicKey               EventKind = "RequestTrustPublicKey"
	EventInformPublicKeyValidationIsFinished EventKind = "InformPublicKeyValidationIsFinished"
	EventRequestCheckDigitalSignature        EventKind = "RequestCheckDigitalSignature"
	EventInformProtocolVersionIncompatible   EventKind = "InformProtocolVersionIncompatible"
	EventAskPasswordExchangeKey              EventKind = "AskPasswordExchangeKey"
	EventGivePasswordExchangeKey             EventKind = "GivePasswordExchangeKey"
	EventAskJoinCloudSession                 EventKind = "AskJoinCloudSession"
	EventYouJoinedSession                    EventKind = "YouJoinedSession"
	EventYouGaveAWrongPassword               EventKind = "YouGaveAWrongPassword"
	EventMemberJoinedSession                 EventKind = "MemberJoinedSession"
	EventMemberQuittedSession                EventKind = "MemberQuittedSession"
)

// EventEnvelope is one queued push event. Payload holds the JSON encoding of
// the event struct matching Kind.
type EventEnvelope struct {
	Seq       uint64          `json:"seq"`
	Kind      EventKind       `json:"kind"`
	SessionID SessionID       `json:"session_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Header is embedded in every event: the session it belongs to and the
// endpoint that caused it.
type Header struct {
	SessionID SessionID      `json:"session_id"`
	From      ClientEndpoint `json:"from"`
}

// Session returns the session the event belongs to.
func (h Header) Session() SessionID { return h.SessionID }

type AskPublicKeyCheckDataEvent struct {
	Header
	PublicKeyInfo   PublicKeyInfo   `json:"public_key_info"`
	ProtocolVersion ProtocolVersion `json:"protocol_version"`
}

type GiveMemberPublicKeyCheckDataEvent struct {
	Header
	CheckData PublicKeyCheckData `json:"check_data"`
}

type RequestTrustPublicKeyEvent struct {
	Header
	CheckID       string        `json:"check_id"`
	PublicKeyInfo PublicKeyInfo `json:"public_key_info"`
	ClientIndex   int           `json:"client_index"`
	ClientsCount  int           `json:"clients_count"`
}

type InformPublicKeyValidationIsFinishedEvent struct {
	Header
	CheckID   string `json:"check_id"`
	IsTrusted bool   `json:"is_trusted"`
	Aborted   bool   `json:"aborted,omitempty"`
}

type RequestCheckDigitalSignatureEvent struct {
	Header
	Info          DigitalSignatureCheckInfo `json:"info"`
	IsAuthCheckOK bool                      `json:"is_auth_check_ok"`
}

type InformProtocolVersionIncompatibleEvent struct {
	Header
	ProtocolVersion     ProtocolVersion `json:"protocol_version"`
	PeerProtocolVersion ProtocolVersion `json:"peer_protocol_version"`
}

type AskPasswordExchangeKeyEvent struct {
	Header
	PublicKeyInfo   PublicKeyInfo `json:"public_key_info"`
	ProfileClientID string        `json:"profile_client_id,omitempty"`
	LobbyID         string        `json:"lobby_id,omitempty"`
}

type GivePasswordExchangeKeyEvent struct {
	Header
	PublicKeyInfo PublicKeyInfo `json:"public_key_info"`
}

type AskJoinCloudSessionEvent struct {
	Header
	EncryptedPassword []byte `json:"encrypted_password"`
}

type YouJoinedSessionEvent struct {
	Header
	Session             SessionInfo `json:"session"`
	EncryptedSessionKey []byte      `json:"encrypted_session_key"`
}

type YouGaveAWrongPasswordEvent struct {
	Header
}

type MemberJoinedSessionEvent struct {
	Header
	Member SessionMember `json:"member"`
}

type MemberQuittedSessionEvent struct {
	Header
}
