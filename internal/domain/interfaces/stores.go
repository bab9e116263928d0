package interfaces

import domaintypes "synctrust/internal/domain/types"

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// TrustStore records which client keys were verified. Records are keyed by
// client id and survive restarts.
type TrustStore interface {
	// IsTrusted reports whether info's key is exactly the key on record for
	// its client id.
	IsTrusted(info domaintypes.PublicKeyInfo) (bool, error)
	Trust(key domaintypes.TrustedPublicKey) error
	Get(clientID domaintypes.ClientID) (domaintypes.TrustedPublicKey, bool, error)
	List() ([]domaintypes.TrustedPublicKey, error)
	Revoke(clientID domaintypes.ClientID) error
}
