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
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/filecast/filecast/internal/netpoll"
	"github.com/filecast/filecast/internal/socket"
	errorx "github.com/filecast/filecast/pkg/errors"
	bbPool "github.com/filecast/filecast/pkg/pool/bytebuffer"
)

// accept takes one pending connection off the listener. The listener stays registered,
// so the poller reports it again while the accept queue is not empty.
func (el *eventloop) accept(fd int, _ netpoll.IOEvent) error {
	nfd, remoteAddr, err := socket.Accept(fd)
	if err != nil {
		switch err {
		case unix.EINTR, unix.EAGAIN, unix.ECONNABORTED:
			// ECONNABORTED means that a socket on the listen
			// queue was closed before we Accept()ed it;
			// it's a silly error, so try again.
			return nil
		default:
			el.acceptFailed(err)
			return nil
		}
	}

	if err = el.engine.configureConn(nfd); err != nil {
		el.getLogger().Warnf("failed to set up the connection from %s (fd=%d): %v", remoteAddr, nfd, err)
		_ = unix.Close(nfd)
		return nil
	}

	c := newConn(nfd, el.ln.addr, remoteAddr)
	if el.engine.readers.Pool != nil {
		return el.openAsync(c)
	}
	c.content = loadContent(el.engine.filePath, el.getLogger())
	return el.open(c)
}

// acceptFailed reports failing accepts at most once per acceptErrLogInterval,
// along with how many failed in between. The pending connection stays in the
// backlog and is accepted once the failure clears.
func (el *eventloop) acceptFailed(err error) {
	el.acceptErrs++
	now := time.Now()
	if now.Sub(el.acceptErrLogTime) < acceptErrLogInterval {
		return
	}
	el.getLogger().Warnf("%v (%d failures since the last report)",
		fmt.Errorf("%w: %v", errorx.ErrAcceptSocket, err), el.acceptErrs)
	el.acceptErrs, el.acceptErrLogTime = 0, now
}

func (eng *engine) configureConn(fd int) error {
	if eng.opts.TCPNoDelay == TCPNoDelay {
		if err := socket.SetNoDelay(fd, 1); err != nil {
			return err
		}
	}
	if eng.opts.TCPKeepAlive > 0 {
		if err := socket.SetKeepAlivePeriod(fd, int(eng.opts.TCPKeepAlive/time.Second)); err != nil {
			return err
		}
	}
	if eng.opts.SocketSendBuffer > 0 {
		if err := socket.SetSendBuffer(fd, eng.opts.SocketSendBuffer); err != nil {
			return err
		}
	}
	return nil
}

type loadedContent struct {
	c       *conn
	content *bbPool.ByteBuffer
}

// openAsync reads the file on the goroutine pool and hands the content back to the event-loop,
// c sits in the connection table meanwhile so that a shutdown still closes it.
func (el *eventloop) openAsync(c *conn) error {
	el.addConn(c)

	eng := el.engine
	eng.readers.pending.Add(1)
	err := eng.readers.Submit(func() {
		defer eng.readers.pending.Done()
		lc := &loadedContent{c: c, content: loadContent(eng.filePath, eng.opts.Logger)}
		if err := el.poller.Trigger(el.openLoaded, lc); err != nil {
			eng.opts.Logger.Errorf("failed to hand the content of fd=%d back to event-loop: %v", c.fd, err)
			bbPool.Put(lc.content)
		}
	})
	if err != nil {
		eng.readers.pending.Done()
		el.getLogger().Debugf("failed to submit the file read of fd=%d to the pool, reading in event-loop: %v", c.fd, err)
		c.content = loadContent(eng.filePath, el.getLogger())
		return el.open(c)
	}
	return nil
}

func (el *eventloop) openLoaded(arg interface{}) error {
	lc := arg.(*loadedContent)
	if el.connections[lc.c.fd] != lc.c {
		bbPool.Put(lc.content)
		return nil
	}
	lc.c.content = lc.content
	return el.open(lc.c)
}
