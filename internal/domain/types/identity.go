package types

// Identity holds the long-term keys of this installation.
type Identity struct {
	ClientID ClientID       `json:"client_id"`
	XPub     X25519Public   `json:"xpub"`
	XPriv    X25519Private  `json:"xpriv"`
	EdPub    Ed25519Public  `json:"edpub"`
	EdPriv   Ed25519Private `json:"edpriv"`
}
