package types

// SessionID identifies a cloud session on the relay.
type SessionID string

// String returns the string form of the session identifier.
func (id SessionID) String() string { return string(id) }

// ClientID identifies one installation. Trust is recorded per ClientID.
type ClientID string

// String returns the string form of the client identifier.
func (id ClientID) String() string { return string(id) }

// InstanceID identifies one running process of an installation. The relay
// routes messages by InstanceID.
type InstanceID string

// String returns the string form of the instance identifier.
func (id InstanceID) String() string { return string(id) }

// Fingerprint is a hex digest of a public key presented to users and
// compared against stored trust records.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// ProtocolVersion is the version of the trust and join protocol spoken by a
// client. A session records the version of its creator.
type ProtocolVersion int

// CurrentProtocolVersion is the protocol version implemented by this module.
const CurrentProtocolVersion ProtocolVersion = 1
