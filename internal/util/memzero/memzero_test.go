package memzero_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"synctrust/internal/util/memzero"
)

func TestZero(t *testing.T) {
	key := []byte("session key")
	pw := []byte("secret password")
	memzero.Zero(key, pw)
	assert.Equal(t, make([]byte, len(key)), key)
	assert.Equal(t, make([]byte, len(pw)), pw)
	memzero.Zero(nil)
	memzero.Zero()
}
