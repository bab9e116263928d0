package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"synctrust/internal/domain"
)

// Fingerprint returns the SHA-256 hex digest of an encoded public key. It is
// the hash exchanged in key-check data and stored with trust records.
func Fingerprint(pub []byte) domain.Fingerprint {
	sum := sha256.Sum256(pub)
	return domain.Fingerprint(hex.EncodeToString(sum[:]))
}

// ShortFingerprint truncates a fingerprint to 20 hex chars for display.
func ShortFingerprint(fp domain.Fingerprint) string {
	s := string(fp)
	if len(s) > 20 {
		return s[:20]
	}
	return s
}

// KeyText renders an encoded public key for display and copy-paste.
func KeyText(pub []byte) string { return base64.RawURLEncoding.EncodeToString(pub) }
