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

package filecast

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	bbPool "github.com/filecast/filecast/pkg/pool/bytebuffer"
)

// conn is one accepted connection together with the bytes it is owed.
// It lives in the connection table of its event-loop from accept until close,
// which keeps it around across the writable events of a partial write.
type conn struct {
	fd         int                // file descriptor
	localAddr  net.Addr           // local addr
	remoteAddr net.Addr           // remote addr
	content    *bbPool.ByteBuffer // file content read at accept time
	written    int                // bytes of content already written
	polling    bool               // whether fd is registered for writable events
	opened     bool               // whether OnOpen has fired
}

func newConn(fd int, localAddr, remoteAddr net.Addr) *conn {
	return &conn{
		fd:         fd,
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
	}
}

// flush writes the rest of the content, it reports done once every byte is written
// and returns without error when the socket would block.
func (c *conn) flush() (done bool, err error) {
	if c.content == nil {
		return true, nil
	}
	buf := c.content.B
	for c.written < len(buf) {
		n, err := unix.Write(c.fd, buf[c.written:])
		switch err {
		case nil:
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return false, nil
		default:
			return false, os.NewSyscallError("write", err)
		}
		c.written += n
	}
	return true, nil
}

func (c *conn) release() {
	bbPool.Put(c.content)
	c.content = nil
}

// ================================= Public APIs of filecast.Conn =================================

func (c *conn) Fd() int              { return c.fd }
func (c *conn) LocalAddr() net.Addr  { return c.localAddr }
func (c *conn) RemoteAddr() net.Addr { return c.remoteAddr }
func (c *conn) Written() int         { return c.written }

func (c *conn) Len() int {
	if c.content == nil {
		return 0
	}
	return c.content.Len()
}
