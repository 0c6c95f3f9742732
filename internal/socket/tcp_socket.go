// Copyright (c) 2023 The Filecast Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux || freebsd || dragonfly || darwin
// +build linux freebsd dragonfly darwin

package socket

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/filecast/filecast/pkg/errors"
)

var listenerBacklogMaxSize = maxListenerBacklog()

// tcpSockaddr resolves addr into the sockaddr to bind, ipv6only is set for an explicit tcp6.
func tcpSockaddr(proto, addr string) (sa unix.Sockaddr, family int, ipv6only bool, err error) {
	tcpAddr, err := net.ResolveTCPAddr(proto, addr)
	if err != nil {
		return
	}
	version, err := determineTCPProto(proto, tcpAddr)
	if err != nil {
		return
	}

	if version == "tcp4" {
		sa4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 := tcpAddr.IP.To4(); ip4 != nil {
			copy(sa4.Addr[:], ip4)
		}
		return sa4, unix.AF_INET, false, nil
	}

	// Plain "tcp" without a host binds a dual-stack IPv6 socket.
	sa6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
	if ip6 := tcpAddr.IP.To16(); ip6 != nil {
		copy(sa6.Addr[:], ip6)
	}
	if tcpAddr.Zone != "" {
		var iface *net.Interface
		if iface, err = net.InterfaceByName(tcpAddr.Zone); err != nil {
			return
		}
		sa6.ZoneId = uint32(iface.Index)
	}
	return sa6, unix.AF_INET6, version == "tcp6", nil
}

// determineTCPProto picks the IP version from the resolved address,
// falling back to proto when no host was given.
func determineTCPProto(proto string, addr *net.TCPAddr) (string, error) {
	if addr.IP.To4() != nil {
		return "tcp4", nil
	}

	if addr.IP.To16() != nil {
		return "tcp6", nil
	}

	switch proto {
	case "tcp", "tcp4", "tcp6":
		return proto, nil
	}

	return "", errors.ErrUnsupportedTCPProtocol
}

// tcpSocket creates a listening endpoint and returns a file descriptor that refers to that endpoint,
// along with the address it is actually bound to, which matters when port 0 is requested.
func tcpSocket(proto, addr string, sockOpts ...Option) (fd int, netAddr net.Addr, err error) {
	var (
		family   int
		ipv6only bool
		sockAddr unix.Sockaddr
	)

	if sockAddr, family, ipv6only, err = tcpSockaddr(proto, addr); err != nil {
		return
	}

	if fd, err = sysSocket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP); err != nil {
		err = os.NewSyscallError("socket", err)
		return
	}
	defer func() {
		if err != nil {
			_ = unix.Close(fd)
		}
	}()

	if family == unix.AF_INET6 && ipv6only {
		if err = SetIPv6Only(fd, 1); err != nil {
			return
		}
	}

	for _, sockOpt := range sockOpts {
		if err = sockOpt.SetSockopt(fd, sockOpt.Opt); err != nil {
			return
		}
	}

	if err = os.NewSyscallError("bind", unix.Bind(fd, sockAddr)); err != nil {
		return
	}

	// Set backlog size to the maximum.
	if err = os.NewSyscallError("listen", unix.Listen(fd, listenerBacklogMaxSize)); err != nil {
		return
	}

	var bound unix.Sockaddr
	if bound, err = unix.Getsockname(fd); err != nil {
		err = os.NewSyscallError("getsockname", err)
		return
	}
	netAddr = SockaddrToTCPAddr(bound)

	return
}
