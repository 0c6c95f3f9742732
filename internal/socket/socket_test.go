//go:build linux || freebsd || dragonfly || darwin
// +build linux freebsd dragonfly darwin

package socket

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/filecast/filecast/pkg/errors"
)

func TestTCPSocketAcceptsOnEphemeralPort(t *testing.T) {
	fd, addr, err := TCPSocket("tcp4", "127.0.0.1:0", Option{SetSockopt: SetReuseAddr, Opt: 1})
	require.NoError(t, err)
	defer unix.Close(fd) //nolint:errcheck

	tcpAddr, ok := addr.(*net.TCPAddr)
	require.True(t, ok)
	assert.NotZero(t, tcpAddr.Port)
	assert.True(t, tcpAddr.IP.Equal(net.IPv4(127, 0, 0, 1)))

	// Nothing is pending yet and the listener never blocks.
	_, _, err = Accept(fd)
	assert.Equal(t, unix.EAGAIN, err)

	c, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	var (
		nfd    int
		remote net.Addr
	)
	require.Eventually(t, func() bool {
		nfd, remote, err = Accept(fd)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	defer unix.Close(nfd) //nolint:errcheck
	assert.Equal(t, c.LocalAddr().String(), remote.String())

	flags, err := unix.FcntlInt(uintptr(nfd), unix.F_GETFL, 0)
	require.NoError(t, err)
	assert.NotZero(t, flags&unix.O_NONBLOCK, "accepted socket should be non-blocking")

	require.NoError(t, SetNoDelay(nfd, 1))
	require.NoError(t, SetKeepAlivePeriod(nfd, 30))
	require.NoError(t, SetSendBuffer(nfd, 8192))
	assert.Error(t, SetKeepAlivePeriod(nfd, 0))

	_, err = unix.Write(nfd, []byte("hi"))
	require.NoError(t, err)
	buf := make([]byte, 2)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf))
}

func TestTCPSocketAddressInUse(t *testing.T) {
	fd, addr, err := TCPSocket("tcp4", "127.0.0.1:0", Option{SetSockopt: SetReuseAddr, Opt: 1})
	require.NoError(t, err)
	defer unix.Close(fd) //nolint:errcheck

	_, _, err = TCPSocket("tcp4", addr.String(), Option{SetSockopt: SetReuseAddr, Opt: 1})
	assert.ErrorIs(t, err, unix.EADDRINUSE)

	fd2, _, err := TCPSocket("tcp4", addr.String(),
		Option{SetSockopt: SetReuseAddr, Opt: 1}, Option{SetSockopt: SetReuseport, Opt: 1})
	if err == nil {
		// SO_REUSEPORT only lets a second socket in when the first one opted in as well.
		_ = unix.Close(fd2)
		t.Fatal("binding a port in use should fail without SO_REUSEPORT on the first socket")
	}
}

func TestTCPSocketBadAddress(t *testing.T) {
	_, _, err := TCPSocket("tcp4", "no-port")
	assert.Error(t, err)
	_, _, err = TCPSocket("tcp4", "[::1]:0")
	assert.Error(t, err)
}

func TestDetermineTCPProto(t *testing.T) {
	proto, err := determineTCPProto("tcp", &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, "tcp4", proto)

	proto, err = determineTCPProto("tcp", &net.TCPAddr{IP: net.IPv6loopback})
	require.NoError(t, err)
	assert.Equal(t, "tcp6", proto)

	proto, err = determineTCPProto("tcp6", &net.TCPAddr{})
	require.NoError(t, err)
	assert.Equal(t, "tcp6", proto)

	_, err = determineTCPProto("udp", &net.TCPAddr{})
	assert.ErrorIs(t, err, errors.ErrUnsupportedTCPProtocol)
}

func TestSockaddrToTCPAddr(t *testing.T) {
	addr := SockaddrToTCPAddr(&unix.SockaddrInet4{Port: 8080, Addr: [4]byte{192, 168, 0, 10}})
	assert.Equal(t, "192.168.0.10:8080", addr.String())

	sa6 := &unix.SockaddrInet6{Port: 9000}
	copy(sa6.Addr[:], net.IPv6loopback)
	addr = SockaddrToTCPAddr(sa6)
	assert.Equal(t, "[::1]:9000", addr.String())

	assert.Nil(t, SockaddrToTCPAddr(&unix.SockaddrUnix{Name: "/tmp/sock"}))
}
