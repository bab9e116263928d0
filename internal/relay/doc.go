// Package relay provides an HTTP implementation of the domain.RelayClient
// interface.
//
// The relay is an untrusted store-and-forward service: it routes protocol
// messages between session members and joiners and queues push events for
// each client instance. Every protocol route answers with a relay status;
// transport failures and non-2xx answers are returned as errors.
//
// A Client must Authenticate before calling protocol routes. A Poller
// long-polls the event queue and hands each event to an events.Bus.
package relay
