// Package memzero wipes key material once it is no longer needed.
package memzero

import "runtime"

// Zero overwrites every given slice with zeros.
func Zero(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
		runtime.KeepAlive(b)
	}
}
