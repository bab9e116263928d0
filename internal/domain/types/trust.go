package types

import (
	"time"

	"synctrust/internal/protocol/peertrust"
)

// SafetyKeySize is the number of bytes of a SafetyKey, one safety word each.
const SafetyKeySize = 8

// SafetyKey is the short value both parties of a pairwise check derive from
// their two public keys and compare out of band.
type SafetyKey [SafetyKeySize]byte

// PublicKeyCheckData is what a member hands a joiner so the joiner can decide
// whether the member's key needs human confirmation.
type PublicKeyCheckData struct {
	IssuerPublicKeyInfo    PublicKeyInfo   `json:"issuer_public_key_info"`
	IssuerClientInstanceID InstanceID      `json:"issuer_client_instance_id"`
	IssuerPublicKeyHash    Fingerprint     `json:"issuer_public_key_hash"`
	ProtocolVersion        ProtocolVersion `json:"protocol_version"`
	// IsTrustedByIssuer reports whether the issuer already trusts the
	// recipient's key.
	IsTrustedByIssuer bool `json:"is_trusted_by_issuer"`
}

// TrustedPublicKey is a durable record that a client's key was verified.
type TrustedPublicKey struct {
	ClientID       ClientID    `json:"client_id" cbor:"1,keyasint"`
	PublicKey      []byte      `json:"public_key" cbor:"2,keyasint"`
	PublicKeyHash  Fingerprint `json:"public_key_hash" cbor:"3,keyasint"`
	SafetyKey      SafetyKey   `json:"safety_key" cbor:"4,keyasint"`
	ValidationDate time.Time   `json:"validation_date" cbor:"5,keyasint"`
}

// DigitalSignatureCheckInfo carries one signature from issuer to recipient.
type DigitalSignatureCheckInfo struct {
	Issuer    ClientEndpoint `json:"issuer"`
	Recipient ClientEndpoint `json:"recipient"`
	Signature []byte         `json:"signature"`
}

// SignedPayload is the statement covered by a DigitalSignatureCheckInfo
// signature. It is encoded as a deterministic CBOR array.
type SignedPayload struct {
	_                   struct{}    `cbor:",toarray"`
	SessionID           SessionID   `json:"session_id"`
	IssuerInstanceID    InstanceID  `json:"issuer_instance_id"`
	RecipientInstanceID InstanceID  `json:"recipient_instance_id"`
	IssuerKeyHash       Fingerprint `json:"issuer_key_hash"`
	RecipientKeyHash    Fingerprint `json:"recipient_key_hash"`
}

// Decision is the answer of a human to a safety-word comparison.
type Decision int

const (
	DecisionValidate Decision = iota + 1
	DecisionReject
	DecisionCancel
)

func (d Decision) String() string {
	switch d {
	case DecisionValidate:
		return "validate"
	case DecisionReject:
		return "reject"
	case DecisionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// TrustDataParameters is the context of one pairwise check handed to the
// confirmation UI.
type TrustDataParameters struct {
	ClientIndex  int
	ClientsCount int
	IsJoinerSide bool
	SessionID    SessionID
	Process      *peertrust.Process
}

// ConfirmationRequest asks a human to compare safety words with the peer.
type ConfirmationRequest struct {
	Peer              ClientEndpoint
	PeerPublicKeyHash Fingerprint
	MyPublicKeyHash   Fingerprint
	SafetyKey         SafetyKey
	SafetyWords       []string
	Parameters        TrustDataParameters
}

// TrustResult is the aggregate outcome of checking the keys of a set of
// session members.
type TrustResult struct {
	OK               bool
	Status           JoinSessionStatus
	CheckedMemberIDs []InstanceID
}
