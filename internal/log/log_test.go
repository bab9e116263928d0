package log_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synctrust/internal/log"
)

func TestBackend_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	b, err := log.NewWriter(&buf, "INFO")
	require.NoError(t, err)

	l := b.GetLogger("trust")
	l.Debug("hidden")
	l.Infof("member %s checked", "m1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "trust: member m1 checked")
}

func TestBackend_InvalidLevel(t *testing.T) {
	_, err := log.New("", "LOUD", false)
	assert.Error(t, err)
	assert.False(t, log.ValidLevel("LOUD"))
	assert.True(t, log.ValidLevel("debug"))
}

func TestBackend_FileAndWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	b, err := log.New(path, "DEBUG", false)
	require.NoError(t, err)

	w, err := b.GetLogWriter("http", "INFO")
	require.NoError(t, err)
	_, err = w.Write([]byte("GET /healthz 200\n"))
	require.NoError(t, err)
	require.NoError(t, b.Rotate())
	require.NoError(t, b.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http: GET /healthz 200")
}
