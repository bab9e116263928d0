package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"synctrust/internal/domain"
)

// GenerateEd25519 returns a new Ed25519 signing key pair.
func GenerateEd25519() (priv domain.Ed25519Private, pub domain.Ed25519Public, err error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return priv, pub, err
	}
	copy(priv[:], sk)
	copy(pub[:], pk)
	return priv, pub, nil
}

// SignEd25519 signs msg with priv and returns the signature.
func SignEd25519(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv[:]), msg)
}

// VerifyEd25519 verifies sig over msg with pub.
func VerifyEd25519(pub domain.Ed25519Public, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// Sign signs msg with the identity's signing key.
func Sign(id domain.Identity, msg []byte) []byte {
	return SignEd25519(id.EdPriv, msg)
}

// VerifySignature checks sig over msg against the Ed25519 half of an encoded
// public key.
func VerifySignature(publicKey, msg, sig []byte) (bool, error) {
	_, ed, err := splitKey(publicKey)
	if err != nil {
		return false, err
	}
	return VerifyEd25519(ed, msg, sig), nil
}
