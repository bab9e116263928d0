package types

import "time"

// ChallengeRequest opens an authentication handshake with the relay.
type ChallengeRequest struct {
	Endpoint      ClientEndpoint `json:"endpoint"`
	PublicKeyInfo PublicKeyInfo  `json:"public_key_info"`
}

// ChallengeResponse carries the nonce the client must sign.
type ChallengeResponse struct {
	Nonce     []byte    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginRequest proves possession of the signing key announced in the
// challenge.
type LoginRequest struct {
	InstanceID InstanceID `json:"instance_id"`
	Signature  []byte     `json:"signature"`
}

// LoginResponse carries the bearer token for protocol routes.
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Endpoint  ClientEndpoint `json:"endpoint"`
}

// StatusResponse is the body of every relay route that only reports an
// outcome.
type StatusResponse struct {
	Status RelayStatus `json:"status"`
}

type CreateSessionRequest struct {
	ProtocolVersion ProtocolVersion `json:"protocol_version"`
}

type SessionResponse struct {
	Status  RelayStatus `json:"status"`
	Session SessionInfo `json:"session"`
}

type StartTrustCheckRequest struct {
	ProtocolVersion ProtocolVersion `json:"protocol_version"`
	// Members restricts the check to these instances. Empty means every
	// current member.
	Members []InstanceID `json:"members,omitempty"`
}

type StartTrustCheckResponse struct {
	Status                 RelayStatus     `json:"status"`
	SessionProtocolVersion ProtocolVersion `json:"session_protocol_version"`
	Members                []SessionMember `json:"members"`
}

type GiveMemberPublicKeyCheckDataRequest struct {
	To        InstanceID         `json:"to"`
	CheckData PublicKeyCheckData `json:"check_data"`
}

type RequestTrustPublicKeyRequest struct {
	To            InstanceID    `json:"to"`
	CheckID       string        `json:"check_id"`
	PublicKeyInfo PublicKeyInfo `json:"public_key_info"`
	ClientIndex   int           `json:"client_index"`
	ClientsCount  int           `json:"clients_count"`
}

// InformPublicKeyValidationIsFinishedRequest reports our decision in the
// check CheckID. Aborted means we gave up on the check after deciding.
type InformPublicKeyValidationIsFinishedRequest struct {
	To        InstanceID `json:"to"`
	CheckID   string     `json:"check_id"`
	IsTrusted bool       `json:"is_trusted"`
	Aborted   bool       `json:"aborted,omitempty"`
}

type InformProtocolVersionIncompatibleRequest struct {
	To                  InstanceID      `json:"to"`
	ProtocolVersion     ProtocolVersion `json:"protocol_version"`
	PeerProtocolVersion ProtocolVersion `json:"peer_protocol_version"`
}

type SendDigitalSignaturesRequest struct {
	Signatures    []DigitalSignatureCheckInfo `json:"signatures"`
	IsAuthCheckOK bool                        `json:"is_auth_check_ok"`
}

type AskPasswordExchangeKeyRequest struct {
	PublicKeyInfo   PublicKeyInfo `json:"public_key_info"`
	ProfileClientID string        `json:"profile_client_id,omitempty"`
	LobbyID         string        `json:"lobby_id,omitempty"`
}

type GivePasswordExchangeKeyRequest struct {
	To            InstanceID    `json:"to"`
	PublicKeyInfo PublicKeyInfo `json:"public_key_info"`
}

type AskJoinCloudSessionRequest struct {
	EncryptedPassword []byte `json:"encrypted_password"`
}

type ValidateJoinCloudSessionRequest struct {
	Joiner              InstanceID `json:"joiner"`
	EncryptedSessionKey []byte     `json:"encrypted_session_key"`
}

type InformPasswordIsWrongRequest struct {
	Joiner InstanceID `json:"joiner"`
}

type AckEventsRequest struct {
	UpTo uint64 `json:"up_to"`
}
