// Package store provides the durable state of a client.
//
//   - IdentityFileStore keeps the long-term identity in a CBOR file sealed
//     with XChaCha20-Poly1305 under an scrypt derived key. The header,
//     cost parameters included, is authenticated.
//   - TrustStore keeps verified client keys in a bbolt database, one CBOR
//     record per client id.
//
// All methods are safe for concurrent use.
package store
