// Package app wires application dependencies for the CLI.
//
// NewWire builds the stores and the relay client from Config. Start loads
// the identity into a running App: it logs in to the relay, starts the event
// poller and the session, trust and signature services on a shared event
// bus.
package app
