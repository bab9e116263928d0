// Package connection owns the local state of session connections.
//
// A join or create attempt is an *Attempt: the password, the two futures the
// join flow waits on, a cancellation scope and the wait span. The Store
// hands attempts out by session id so relay event handlers can complete the
// futures, and moves successful attempts to the set of joined sessions.
package connection
