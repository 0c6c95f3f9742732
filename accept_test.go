//go:build linux || freebsd || dragonfly || darwin
// +build linux freebsd dragonfly darwin

package filecast

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	errorx "github.com/filecast/filecast/pkg/errors"
	"github.com/filecast/filecast/pkg/logging"
)

// acceptLogger records the accept failures reported through Warnf.
type acceptLogger struct {
	logging.Logger

	mu       sync.Mutex
	reports  int
	lastErr  error
	failures int
}

func (l *acceptLogger) Warnf(format string, args ...interface{}) {
	if len(args) == 2 {
		if err, ok := args[0].(error); ok && errors.Is(err, errorx.ErrAcceptSocket) {
			l.mu.Lock()
			l.reports++
			l.lastErr = err
			l.failures, _ = args[1].(int)
			l.mu.Unlock()
		}
	}
	l.Logger.Warnf(format, args...)
}

func (l *acceptLogger) stats() (reports int, lastErr error, failures int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reports, l.lastErr, l.failures
}

func TestAcceptFailuresAreThrottled(t *testing.T) {
	logger := &acceptLogger{Logger: logging.GetDefaultLogger()}
	el := &eventloop{engine: &engine{opts: &Options{Logger: logger}}}

	for i := 0; i < 100; i++ {
		el.acceptFailed(unix.EMFILE)
	}
	reports, lastErr, failures := logger.stats()
	assert.Equal(t, 1, reports)
	assert.Equal(t, 1, failures)
	assert.ErrorIs(t, lastErr, errorx.ErrAcceptSocket)
	assert.Contains(t, lastErr.Error(), unix.EMFILE.Error())
	assert.Equal(t, 99, el.acceptErrs)

	el.acceptErrLogTime = el.acceptErrLogTime.Add(-acceptErrLogInterval)
	el.acceptFailed(unix.ENFILE)
	reports, lastErr, failures = logger.stats()
	assert.Equal(t, 2, reports)
	assert.Equal(t, 100, failures)
	assert.Contains(t, lastErr.Error(), unix.ENFILE.Error())
	assert.Zero(t, el.acceptErrs)
}

const (
	fdExhaustionEnv = "FILECAST_TEST_EXHAUST_FDS"
	listeningPrefix = "listening on "
)

// TestAcceptErrorKeepsServing runs a server out of file-descriptors in a child process:
// accept fails with EMFILE while a client waits, and the client is served once
// descriptors are available again.
func TestAcceptErrorKeepsServing(t *testing.T) {
	if os.Getenv(fdExhaustionEnv) == "1" {
		serveWithoutFds(t)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestAcceptErrorKeepsServing$", "-test.v")
	cmd.Env = append(os.Environ(), fdExhaustionEnv+"=1")
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	var (
		addr   string
		output strings.Builder
	)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		output.WriteString(line + "\n")
		if strings.HasPrefix(line, listeningPrefix) {
			addr = strings.TrimPrefix(line, listeningPrefix)
			break
		}
	}
	if addr == "" {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		t.Fatalf("child never reported its address:\n%s", output.String())
	}

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck
	_, err = io.WriteString(stdin, "dialed\n")
	require.NoError(t, err)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(10*time.Second)))
	data, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Equal(t, "served after EMFILE", string(data))
	require.NoError(t, stdin.Close())

	for scanner.Scan() {
		output.WriteString(scanner.Text() + "\n")
	}
	assert.NoError(t, cmd.Wait(), output.String())
}

func serveWithoutFds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd")
	writeFile(t, path, []byte("served after EMFILE"))
	logger := &acceptLogger{Logger: logging.GetDefaultLogger()}
	ts := startServer(t, path, WithLogger(logger))

	var saved unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_NOFILE, &saved))
	lowered := saved
	if lowered.Cur > 1024 {
		lowered.Cur = 1024
	}
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &lowered))

	var spare []int
	for {
		fd, err := unix.Open(os.DevNull, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			require.Equal(t, unix.EMFILE, err)
			break
		}
		spare = append(spare, fd)
	}

	fmt.Printf("%s%s\n", listeningPrefix, ts.addr())
	stdin := bufio.NewReader(os.Stdin)
	_, err := stdin.ReadString('\n')
	require.NoError(t, err)

	// The pending connection can't be accepted, the event-loop keeps running into EMFILE.
	require.Eventually(t, func() bool {
		reports, _, _ := logger.stats()
		return reports > 0
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	for _, fd := range spare {
		_ = unix.Close(fd)
	}
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &saved))

	// Wait for the parent to read the content.
	_, _ = io.Copy(io.Discard, stdin)

	reports, lastErr, _ := logger.stats()
	assert.Equal(t, 1, reports, "failing accepts should be reported once per interval")
	assert.ErrorIs(t, lastErr, errorx.ErrAcceptSocket)
	assert.Contains(t, lastErr.Error(), unix.EMFILE.Error())
}
