// Package peertrust implements the bilateral state of one public-key trust
// check between exactly two parties.
//
// Each side records its own decision and learns the other side's decision
// through the relay. Messages between the two parties are not ordered, so a
// Process accepts either decision first. The pair resolves to Trusted only if
// both sides record trust; a single reject from either side makes it
// Rejected.
//
// A Registry keeps the live processes of a client keyed by session and peer
// instance. Each process belongs to one check id; messages of an older check
// are dropped, and a decision that arrives before its process exists is
// buffered under its check id.
package peertrust
