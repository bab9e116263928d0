package crypto

import (
	"bytes"
	"crypto/sha256"

	"synctrust/internal/domain"
)

const safetyKeyTag = "synctrust/safety-key/v1"

// ComputeSafetyKey derives the value both parties of a pairwise check
// compare. The two keys are hashed in byte order, so both sides obtain the
// same result whichever key they call "mine".
func ComputeSafetyKey(a, b []byte) (domain.SafetyKey, error) {
	var sk domain.SafetyKey
	if _, _, err := splitKey(a); err != nil {
		return sk, err
	}
	if _, _, err := splitKey(b); err != nil {
		return sk, err
	}
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	h := sha256.New()
	h.Write([]byte(safetyKeyTag))
	h.Write(a)
	h.Write(b)
	copy(sk[:], h.Sum(nil))
	return sk, nil
}

// SafetyWords renders a safety key as one word per byte.
func SafetyWords(sk domain.SafetyKey) []string {
	out := make([]string, len(sk))
	for i, b := range sk {
		out[i] = safetyWords[b]
	}
	return out
}
