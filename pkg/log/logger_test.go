package log

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithOutput_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	var out bytes.Buffer
	InitWithOutput("debug", &out, FileOptions{Filename: path})
	t.Cleanup(func() { Init("info") })

	WithFields(Fields{"key": "video-bitrate"}).Info("Setting updated")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Setting updated"`)
	assert.Contains(t, string(data), `"key":"video-bitrate"`)
	assert.Equal(t, out.String(), string(data))

	require.NoError(t, Close())
}

func TestClose_WithoutFile(t *testing.T) {
	InitWithOutput("info", &bytes.Buffer{}, FileOptions{})
	t.Cleanup(func() { Init("info") })
	assert.NoError(t, Close())
}
