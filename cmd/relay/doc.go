// Package main runs the synctrust relay. The relay routes trust-establishment
// traffic between the instances of a sync session and queues pushed events
// for each instance until it acknowledges them.
//
// HTTP API
//
//	POST /auth/challenge, POST /auth/login
//	    Challenge-response login with the instance's Ed25519 key. The answer
//	    carries a bearer token and the endpoint the relay knows us by.
//
//	GET /events?wait=N, POST /events/ack
//	    Long-poll the instance's event queue and drop delivered events.
//
//	POST /sessions, GET /sessions/{id}, POST /sessions/{id}/quit
//	    Create, inspect and leave a session.
//
//	POST /sessions/{id}/trust/..., POST /sessions/{id}/signatures
//	    Key-check data, pairwise trust decisions, protocol-version
//	    incompatibility and cross-verification signatures.
//
//	POST /sessions/{id}/password-key/..., POST /sessions/{id}/join/...
//	    Password exchange with the validator and finalization.
//
//	GET /healthz, GET /metrics
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Responses are JSON. Protocol outcomes are a status in a 200 answer;
//     malformed requests get a 4xx.
//   - The relay never sees session passwords or keys in clear. It checks
//     addressing and membership, not cryptography.
//   - The default listen address is 127.0.0.1:8080.
package main
