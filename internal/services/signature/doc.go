// Package signature cross-verifies a joiner and the members of a session
// with signed statements, so the relay can tell that every pair proved
// possession of the keys they trusted.
package signature
