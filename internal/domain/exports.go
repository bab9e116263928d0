package domain

import (
	interfaces "synctrust/internal/domain/interfaces"
	types "synctrust/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	SessionID               = types.SessionID
	ClientID                = types.ClientID
	InstanceID              = types.InstanceID
	Fingerprint             = types.Fingerprint
	ProtocolVersion         = types.ProtocolVersion
	Identity                = types.Identity
	LocalParty              = types.LocalParty
	X25519Public            = types.X25519Public
	X25519Private           = types.X25519Private
	Ed25519Public           = types.Ed25519Public
	Ed25519Private          = types.Ed25519Private
	PublicKeyInfo           = types.PublicKeyInfo
	ClientEndpoint          = types.ClientEndpoint
	SafetyKey               = types.SafetyKey
	PublicKeyCheckData      = types.PublicKeyCheckData
	TrustedPublicKey        = types.TrustedPublicKey
	SignedPayload           = types.SignedPayload
	Decision                = types.Decision
	TrustDataParameters     = types.TrustDataParameters
	ConfirmationRequest     = types.ConfirmationRequest
	TrustResult             = types.TrustResult
	SessionMember           = types.SessionMember
	SessionInfo             = types.SessionInfo
	SessionConnectionStatus = types.SessionConnectionStatus
	JoinSessionStatus       = types.JoinSessionStatus
	JoinOptions             = types.JoinOptions
	RelayStatus             = types.RelayStatus
	EventKind               = types.EventKind
	EventEnvelope           = types.EventEnvelope

	DigitalSignatureCheckInfo = types.DigitalSignatureCheckInfo
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService    = interfaces.IdentityService
	IdentityStore      = interfaces.IdentityStore
	TrustStore         = interfaces.TrustStore
	RelayClient        = interfaces.RelayClient
	Confirmer          = interfaces.Confirmer
	TrustVerifier      = interfaces.TrustVerifier
	SignatureExchanger = interfaces.SignatureExchanger
	SessionService     = interfaces.SessionService
)

// CurrentProtocolVersion is the protocol version implemented by this module.
const CurrentProtocolVersion = types.CurrentProtocolVersion

// SplitPublicKey returns the X25519 and Ed25519 halves of an encoded key.
func SplitPublicKey(b []byte) (X25519Public, Ed25519Public, error) {
	return types.SplitPublicKey(b)
}

// JoinPublicKey encodes the two public halves as a single key.
func JoinPublicKey(x X25519Public, ed Ed25519Public) []byte {
	return types.JoinPublicKey(x, ed)
}
