package filecast

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecast/filecast/pkg/logging"
	bbPool "github.com/filecast/filecast/pkg/pool/bytebuffer"
)

func TestLoadContent(t *testing.T) {
	dir := t.TempDir()
	logger := logging.GetDefaultLogger()

	path := filepath.Join(dir, "motd")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o644))
	bb := loadContent(path, logger)
	assert.Equal(t, "line one\nline two\n", bb.String())
	bbPool.Put(bb)

	for _, p := range []string{filepath.Join(dir, "missing"), dir} {
		bb = loadContent(p, logger)
		assert.Equal(t, FileNotFoundMessage, bb.String(), "path: %s", p)
		bbPool.Put(bb)
	}
}

func TestParseProtoAddr(t *testing.T) {
	network, addr, err := parseProtoAddr("tcp4://:8080")
	require.NoError(t, err)
	assert.Equal(t, "tcp4", network)
	assert.Equal(t, ":8080", addr)

	network, addr, err = parseProtoAddr("127.0.0.1:9000")
	require.NoError(t, err)
	assert.Equal(t, "tcp", network)
	assert.Equal(t, "127.0.0.1:9000", addr)

	_, _, err = parseProtoAddr("unix:///tmp/filecast.sock")
	assert.Error(t, err)
	_, _, err = parseProtoAddr("tcp6://")
	assert.Error(t, err)
}

func TestLoadOptions(t *testing.T) {
	opts := loadOptions()
	assert.True(t, opts.ReuseAddr)
	assert.False(t, opts.ReusePort)
	assert.Equal(t, TCPNoDelay, opts.TCPNoDelay)
	assert.False(t, opts.AsyncFileRead)

	opts = loadOptions(WithReuseAddr(false), WithReusePort(true), WithAsyncFileRead(true),
		WithFileReadWorkers(8), WithLogLevel(logging.WarnLevel), WithLogPath("filecast.log"))
	assert.False(t, opts.ReuseAddr)
	assert.True(t, opts.ReusePort)
	assert.True(t, opts.AsyncFileRead)
	assert.Equal(t, 8, opts.FileReadWorkers)
	assert.Equal(t, logging.WarnLevel, opts.LogLevel)
	assert.Equal(t, "filecast.log", opts.LogPath)

	opts = loadOptions(WithOptions(Options{SocketSendBuffer: 4096}))
	assert.Equal(t, 4096, opts.SocketSendBuffer)
	assert.False(t, opts.ReuseAddr)
}
