// Package crypto exposes the primitives used by the trust protocol.
//
// Contents
//
//   - X25519 and Ed25519 key generation (GenerateX25519, GenerateEd25519)
//   - Signing and verification with the Ed25519 half of an identity (Sign,
//     VerifySignature)
//   - Anonymous public-key encryption to the X25519 half of an identity
//     (Encrypt, Decrypt), used for the session password and session key
//   - Public-key fingerprints (Fingerprint) and safety keys rendered as
//     words (ComputeSafetyKey, SafetyWords)
//
// # Notes
//
// Public keys travel as the 64-byte concatenation described by
// types.PublicKeyInfo. Every function that takes such a key rejects malformed
// input with ErrMalformedKey; callers treat any error from this package as a
// non-retryable failure.
package crypto
