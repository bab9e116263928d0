// Package signal provides the one-shot wait used at every suspension point of
// the join protocol.
//
// A Future is set at most once. Wait races the value against the caller's
// context and an optional timer and reports which of the three ended the
// wait, so callers can tell a timeout from a cancellation.
package signal
