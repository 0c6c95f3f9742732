//go:build linux || freebsd || dragonfly || darwin
// +build linux freebsd dragonfly darwin

package main

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsage(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"8080"},
		{"8080", "motd", "extra"},
		{"-no-such-flag", "8080", "motd"},
	} {
		var stderr bytes.Buffer
		assert.Equal(t, 1, run(args, &stderr), "args: %q", args)
		assert.Contains(t, stderr.String(), usage)
	}
}

func TestInvalidPort(t *testing.T) {
	for _, port := range []string{"http", "65536", "99999999999", "8o8o", ""} {
		var stderr bytes.Buffer
		assert.Equal(t, 0, run([]string{port, "motd"}, &stderr))
		assert.Contains(t, stderr.String(), "Exception: ")
		assert.NotContains(t, stderr.String(), usage)
	}
}

func TestPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp4", ":0")
	require.NoError(t, err)
	defer ln.Close() //nolint:errcheck
	port := ln.Addr().(*net.TCPAddr).Port

	var stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{strconv.Itoa(port), "motd"}, &stderr))
	assert.Contains(t, stderr.String(), "Exception: ")
	assert.Contains(t, stderr.String(), "bind")
}

func freePort(t *testing.T) int {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestServeUntilSignaled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd")
	require.NoError(t, os.WriteFile(path, []byte("hello, filecast"), 0o644))
	port := freePort(t)

	var stderr bytes.Buffer
	exit := make(chan int, 1)
	go func() {
		exit <- run([]string{"-async-read", "-log-path", filepath.Join(t.TempDir(), "filecast.log"),
			strconv.Itoa(port), path}, &stderr)
	}()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	var data []byte
	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		defer c.Close() //nolint:errcheck
		_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
		data, err = io.ReadAll(c)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "hello, filecast", string(data))

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	select {
	case code := <-exit:
		assert.Equal(t, 0, code)
	case <-time.After(15 * time.Second):
		t.Fatal("server didn't exit after SIGTERM")
	}
	assert.Empty(t, stderr.String())
}
