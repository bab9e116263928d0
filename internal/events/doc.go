// Package events is the client-side bus for relay push events.
//
// Each event kind has its own typed Topic. The relay poller decodes every
// envelope and publishes it on the matching topic; protocol code subscribes
// to the kinds it cares about and releases the subscription with the func
// Subscribe returns.
//
// Delivery is synchronous on the publishing goroutine, so handlers must not
// block: they hand work off to a goroutine or complete a future.
package events
