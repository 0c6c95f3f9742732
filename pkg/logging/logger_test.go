package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestCreateLoggerAsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filecast.log")
	logger, flush, err := CreateLoggerAsLocalFile(path, WarnLevel)
	require.NoError(t, err)

	logger.Debugf("debug message %d", 1)
	logger.Infof("info message %d", 2)
	logger.Warnf("warn message %d", 3)
	logger.Errorf("error message %d", 4)
	require.NoError(t, flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, prefix+" ")
	assert.Contains(t, out, "warn message 3")
	assert.Contains(t, out, "error message 4")
	assert.NotContains(t, out, "debug message 1")
	assert.NotContains(t, out, "info message 2")
}

func TestCreateLoggerAsLocalFileEmptyPath(t *testing.T) {
	_, _, err := CreateLoggerAsLocalFile("", InfoLevel)
	assert.Error(t, err)
}

func TestPrefixEncoder(t *testing.T) {
	enc := newEncoder(zap.NewProductionEncoderConfig())
	clone := enc.Clone()
	require.IsType(t, enc, clone, "cloned encoder lost the prefix")

	buf, err := clone.EncodeEntry(zapcore.Entry{Level: WarnLevel, Message: "disk is slow"}, nil)
	require.NoError(t, err)
	defer buf.Free()
	assert.True(t, strings.HasPrefix(buf.String(), prefix+" "))
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "disk is slow")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"":      InfoLevel,
		"-1":    DebugLevel,
		"2":     ErrorLevel,
		"debug": DebugLevel,
		"warn":  WarnLevel,
		"ERROR": ErrorLevel,
	} {
		lvl, err := parseLevel(in)
		require.NoError(t, err, "level %q", in)
		assert.Equal(t, want, lvl, "level %q", in)
	}

	for _, in := range []string{"9", "-2", "verbose"} {
		_, err := parseLevel(in)
		assert.Error(t, err, "level %q", in)
	}
}

func TestDefaultLogger(t *testing.T) {
	assert.NotNil(t, GetDefaultLogger())
	assert.NotNil(t, GetDefaultFlusher())
	assert.NotEmpty(t, LogLevel())
	Error(nil)
	Debugf("default logger is %s", "alive")
}
