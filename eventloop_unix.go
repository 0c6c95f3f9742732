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
	"errors"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/filecast/filecast/internal/netpoll"
	errorx "github.com/filecast/filecast/pkg/errors"
	"github.com/filecast/filecast/pkg/logging"
)

const (
	// drainBufferCap is the size of the scratch buffer used to discard what peers send.
	drainBufferCap = 0x4000

	// maxDrainRounds bounds how long a closing connection may keep the event-loop busy with peer input.
	maxDrainRounds = 16

	// acceptErrLogInterval is the minimum gap between two reports of failing accepts,
	// the listener keeps firing while a failure such as EMFILE lasts.
	acceptErrLogInterval = time.Second
)

type eventloop struct {
	ln           *listener       // listener
	engine       *engine         // engine in loop
	poller       *netpoll.Poller // epoll or kqueue
	buffer       []byte          // scratch buffer for discarding peer input
	connections  map[int]*conn   // connections being served, keyed by fd
	eventHandler EventHandler    // user eventHandler

	acceptErrs       int       // accept failures not reported yet
	acceptErrLogTime time.Time // when an accept failure was last reported
}

func (el *eventloop) getLogger() logging.Logger {
	return el.engine.opts.Logger
}

func (el *eventloop) addConn(c *conn) {
	if _, ok := el.connections[c.fd]; !ok {
		el.connections[c.fd] = c
		atomic.AddInt32(&el.engine.connCount, 1)
	}
}

func (el *eventloop) delConn(c *conn) bool {
	if el.connections[c.fd] != c {
		return false
	}
	delete(el.connections, c.fd)
	atomic.AddInt32(&el.engine.connCount, -1)
	return true
}

func (el *eventloop) closeConns() {
	// Close loops and all outstanding connections
	for _, c := range el.connections {
		_ = el.close(c, errorx.ErrEngineShutdown)
	}
}

func (el *eventloop) run() error {
	if el.engine.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	err := el.poller.Polling(el.handleEvent)
	if errors.Is(err, errorx.ErrEngineShutdown) {
		el.getLogger().Debugf("event-loop is exiting in terms of the demand from user, %v", err)
		err = nil
	} else if err != nil {
		el.getLogger().Errorf("event-loop is exiting due to error: %v", err)
	}

	el.engine.shutdown(err)

	return err
}

func (el *eventloop) handleEvent(fd int, ev netpoll.IOEvent) error {
	if fd == el.ln.fd {
		return el.accept(fd, ev)
	}
	if c, ok := el.connections[fd]; ok {
		return el.write(c)
	}
	return nil
}

// open starts serving c, which must have its content loaded already.
func (el *eventloop) open(c *conn) error {
	el.addConn(c)
	c.opened = true
	el.eventHandler.OnOpen(c)
	return el.write(c)
}

func (el *eventloop) write(c *conn) error {
	done, err := c.flush()
	if err != nil {
		return el.close(c, err)
	}
	if done {
		return el.close(c, nil)
	}
	if c.polling {
		return nil
	}

	// The socket buffer is full, resume writing on the next writable event.
	if err = el.poller.AddWrite(c.fd); err != nil {
		return el.close(c, err)
	}
	c.polling = true
	return nil
}

func (el *eventloop) close(c *conn, err error) error {
	if !el.delConn(c) {
		return nil // ignore stale connections
	}

	if err != nil && !errors.Is(err, errorx.ErrEngineShutdown) {
		el.getLogger().Warnf("failed to write %d/%d bytes to %s (fd=%d): %v",
			c.Len()-c.Written(), c.Len(), c.remoteAddr, c.fd, err)
	}

	if c.polling {
		if err0 := el.poller.Delete(c.fd); err0 != nil {
			el.getLogger().Debugf("failed to delete fd=%d from poller: %v", c.fd, err0)
		}
	}
	el.drain(c.fd)
	if err1 := unix.Close(c.fd); err1 != nil {
		el.getLogger().Errorf("failed to close fd=%d: %v", c.fd, os.NewSyscallError("close", err1))
	}

	if c.opened {
		el.eventHandler.OnClose(c, err)
	}
	c.release()

	return nil
}

// drain discards whatever the peer has sent and nobody is going to read,
// unread input would make close(2) reset the connection instead of ending it with FIN.
func (el *eventloop) drain(fd int) {
	for i := 0; i < maxDrainRounds; i++ {
		n, err := unix.Read(fd, el.buffer)
		if n <= 0 || err != nil {
			return
		}
	}
}
