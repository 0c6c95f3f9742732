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
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func setsockoptInt(fd, level, opt, value int) error {
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, level, opt, value))
}

// SetNoDelay sets TCP_NODELAY, noDelay=1 turns Nagle's algorithm off.
func SetNoDelay(fd, noDelay int) error {
	return setsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, noDelay)
}

// SetSendBuffer sets the size of the kernel send buffer (SO_SNDBUF).
func SetSendBuffer(fd, size int) error {
	return setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, size)
}

// SetReuseport sets SO_REUSEPORT.
func SetReuseport(fd, reusePort int) error {
	return setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, reusePort)
}

// SetReuseAddr sets SO_REUSEADDR.
func SetReuseAddr(fd, reuseAddr int) error {
	return setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, reuseAddr)
}

// SetIPv6Only restricts an IPv6 socket to IPv6 traffic when ipv6only=1.
func SetIPv6Only(fd, ipv6only int) error {
	return setsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, ipv6only)
}

// SetKeepAlivePeriod turns on SO_KEEPALIVE and sends a probe after secs of idleness,
// then every secs until the peer answers.
func SetKeepAlivePeriod(fd, secs int) error {
	if secs <= 0 {
		return errors.New("invalid time duration")
	}
	if err := setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	if err := setsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); err != nil {
		return err
	}
	return setsockoptInt(fd, unix.IPPROTO_TCP, tcpKeepIdle, secs)
}
