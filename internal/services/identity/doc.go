// Package identity creates and unlocks the long-term identity of a client.
package identity
