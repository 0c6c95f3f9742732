package bytebuffer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	content := make([]byte, 3*64*1024+17)
	for i := range content {
		content[i] = byte(i * 31)
	}
	require.NoError(t, os.WriteFile(path, content, 0o644))

	bb, err := ReadFile(path)
	require.NoError(t, err)
	defer Put(bb)
	assert.Equal(t, content, bb.B)
}

func TestReadFileFailures(t *testing.T) {
	dir := t.TempDir()
	bb, err := ReadFile(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(err))
	assert.Nil(t, bb)

	bb, err = ReadFile(dir)
	assert.Error(t, err, "a directory can't be read as a file")
	assert.Nil(t, bb)
}

func TestFromString(t *testing.T) {
	bb := FromString("Error: File not found.")
	assert.Equal(t, "Error: File not found.", bb.String())
	Put(bb)
	Put(nil)
}
