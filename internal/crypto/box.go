package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"synctrust/internal/domain"
	"synctrust/internal/util/memzero"
)

// SessionKeySize is the length of a symmetric session key.
const SessionKeySize = 32

var (
	// ErrMalformedKey is returned for encoded public keys of the wrong shape.
	ErrMalformedKey = errors.New("crypto: malformed public key")
	// ErrDecrypt is returned when a sealed box cannot be opened.
	ErrDecrypt = errors.New("crypto: cannot open sealed box")
)

func splitKey(publicKey []byte) (domain.X25519Public, domain.Ed25519Public, error) {
	x, ed, err := domain.SplitPublicKey(publicKey)
	if err != nil {
		return x, ed, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return x, ed, nil
}

// Encrypt seals plaintext to the X25519 half of an encoded public key. Only
// the holder of the matching private key can open it; the sender stays
// anonymous.
func Encrypt(publicKey, plaintext []byte) ([]byte, error) {
	x, _, err := splitKey(publicKey)
	if err != nil {
		return nil, err
	}
	pub := [32]byte(x)
	return box.SealAnonymous(nil, plaintext, &pub, rand.Reader)
}

// Decrypt opens a box sealed to the identity's X25519 key.
func Decrypt(id domain.Identity, ciphertext []byte) ([]byte, error) {
	pub := [32]byte(id.XPub)
	priv := [32]byte(id.XPriv)
	defer memzero.Zero(priv[:])

	out, ok := box.OpenAnonymous(nil, ciphertext, &pub, &priv)
	if !ok {
		return nil, ErrDecrypt
	}
	return out, nil
}

// NewSessionKey returns a fresh random session key.
func NewSessionKey() ([]byte, error) {
	k := make([]byte, SessionKeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, err
	}
	return k, nil
}
