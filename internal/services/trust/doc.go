// Package trust establishes trust in the keys of session members.
//
// The joiner side asks every member for its key check data, accepts keys
// that both parties already trust, and runs a pairwise check with safety
// words for the others. The member side answers those requests and runs its
// own half of each pairwise check. Keys trusted by both sides are persisted
// in the trust store.
package trust
