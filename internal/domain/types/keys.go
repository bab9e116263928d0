package types

import "fmt"

// PublicKeySize is the length of an encoded public key: the X25519 key
// followed by the Ed25519 key.
const PublicKeySize = 64

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// PublicKeyInfo is the public half of a client's identity, exchanged freely.
type PublicKeyInfo struct {
	ClientID        ClientID        `json:"client_id"`
	PublicKey       []byte          `json:"public_key"`
	ProtocolVersion ProtocolVersion `json:"protocol_version"`
}

// SplitPublicKey returns the X25519 and Ed25519 halves of an encoded key.
func SplitPublicKey(b []byte) (X25519Public, Ed25519Public, error) {
	var x X25519Public
	var ed Ed25519Public
	if len(b) != PublicKeySize {
		return x, ed, fmt.Errorf("public key: want %d bytes, got %d", PublicKeySize, len(b))
	}
	copy(x[:], b[:32])
	copy(ed[:], b[32:])
	return x, ed, nil
}

// JoinPublicKey encodes the two public halves as a single key.
func JoinPublicKey(x X25519Public, ed Ed25519Public) []byte {
	out := make([]byte, 0, PublicKeySize)
	out = append(out, x[:]...)
	return append(out, ed[:]...)
}
