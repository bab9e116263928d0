// Package server implements the relay: an echo HTTP service that brokers the
// trust and join protocol between clients without being able to read the
// secrets it forwards.
//
// Clients authenticate with a signed challenge and receive a short-lived
// ES256 token; every protocol route takes the caller from the token, never
// from the request body. Protocol answers carry a types.RelayStatus. Pushed
// events are queued per client instance and fetched with a long poll.
//
// The relay enforces membership before forwarding anything, gates joiners on
// protocol version, and admits a joiner only after it and every member have
// cross-verified each other's signatures.
package server
