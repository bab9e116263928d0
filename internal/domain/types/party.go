package types

// LocalParty is this process as seen by the protocol: its routable endpoint,
// its identity keys and the protocol version it speaks.
type LocalParty struct {
	Endpoint ClientEndpoint
	Identity Identity
	// Version defaults to CurrentProtocolVersion when zero.
	Version ProtocolVersion
}

// ProtocolVersion returns the version the party speaks.
func (p LocalParty) ProtocolVersion() ProtocolVersion {
	if p.Version == 0 {
		return CurrentProtocolVersion
	}
	return p.Version
}

// PublicKeyInfo returns the public half of the party's identity.
func (p LocalParty) PublicKeyInfo() PublicKeyInfo {
	return PublicKeyInfo{
		ClientID:        p.Identity.ClientID,
		PublicKey:       JoinPublicKey(p.Identity.XPub, p.Identity.EdPub),
		ProtocolVersion: p.ProtocolVersion(),
	}
}
