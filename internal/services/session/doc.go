// Package session creates, joins and leaves sync sessions.
//
// Joining runs the whole handshake against the relay: trust in every
// member's key, the password exchange with the session's validator, the
// cross-verification of signatures and finalization. Every failure is
// reported as a *JoinError carrying a JoinSessionStatus.
//
// The same service answers the member side of joins while we are in a
// session: it hands out our exchange key to trusted joiners and, as the
// validator, checks their password and seals the session key to them.
package session
