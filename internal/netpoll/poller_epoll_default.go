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

//go:build linux
// +build linux

package netpoll

import (
	"errors"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/filecast/filecast/internal/queue"
	errorx "github.com/filecast/filecast/pkg/errors"
	"github.com/filecast/filecast/pkg/logging"
)

// Poller represents a poller which is in charge of monitoring file-descriptors.
type Poller struct {
	fd             int    // epoll fd
	efd            int    // eventfd
	efdBuf         []byte // efd buffer to read an 8-byte integer
	wakeupCall     int32
	asyncTaskQueue queue.AsyncTaskQueue
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		poller = nil
		err = os.NewSyscallError("epoll_create1", err)
		return
	}
	if poller.efd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		_ = unix.Close(poller.fd)
		poller = nil
		err = os.NewSyscallError("eventfd", err)
		return
	}
	poller.efdBuf = make([]byte, 8)
	if err = poller.AddRead(poller.efd); err != nil {
		_ = poller.Close()
		poller = nil
		return
	}
	poller.asyncTaskQueue = queue.NewTaskQueue()
	return
}

// Close closes the poller.
func (p *Poller) Close() error {
	_ = unix.Close(p.efd)
	return os.NewSyscallError("close", unix.Close(p.fd))
}

// wakeupBuf is the 8-byte counter increment written to the eventfd, in host byte order.
var wakeupBuf = func() []byte {
	one := uint64(1)
	return (*(*[8]byte)(unsafe.Pointer(&one)))[:]
}()

// Trigger enqueues task and wakes up the poller to process pending tasks,
// it is the only method of Poller that is safe to call from other goroutines.
func (p *Poller) Trigger(fn queue.Func, param interface{}) error {
	task := queue.GetTask()
	task.Exec, task.Param = fn, param
	p.asyncTaskQueue.Enqueue(task)
	if !atomic.CompareAndSwapInt32(&p.wakeupCall, 0, 1) {
		return nil // a wakeup is already on its way
	}
	return p.wakeup()
}

func (p *Poller) wakeup() error {
	for {
		_, err := unix.Write(p.efd, wakeupBuf)
		if err != unix.EAGAIN {
			return os.NewSyscallError("write", err)
		}
		// The counter is saturated, reset it and try again.
		_, _ = unix.Read(p.efd, p.efdBuf)
	}
}

// runTasks executes at most MaxAsyncTasksAtOneTime queued tasks and re-arms
// the wakeup if some are left over.
func (p *Poller) runTasks() error {
	_, _ = unix.Read(p.efd, p.efdBuf)
	for i := 0; i < MaxAsyncTasksAtOneTime; i++ {
		task := p.asyncTaskQueue.Dequeue()
		if task == nil {
			break
		}
		err := task.Exec(task.Param)
		queue.PutTask(task)
		if errors.Is(err, errorx.ErrEngineShutdown) {
			return err
		}
	}
	atomic.StoreInt32(&p.wakeupCall, 0)
	if !p.asyncTaskQueue.IsEmpty() && atomic.CompareAndSwapInt32(&p.wakeupCall, 0, 1) {
		if err := p.wakeup(); err != nil {
			logging.Errorf("failed to wake up poller for the leftover tasks: %v", err)
		}
	}
	return nil
}

// Polling blocks the current goroutine, waiting for network-events.
// It returns only when the callback or a triggered task reports errors.ErrEngineShutdown,
// or when epoll_wait fails.
func (p *Poller) Polling(callback PollEventHandler) error {
	el := newEventList(InitPollEventsCap)

	for {
		n, err := unix.EpollWait(p.fd, el.events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			err = os.NewSyscallError("epoll_wait", err)
			logging.Errorf("error occurs in epoll: %v", err)
			return err
		}

		woken := false
		for _, ev := range el.events[:n] {
			if fd := int(ev.Fd); fd == p.efd {
				woken = true
			} else if err = callback(fd, ev.Events); errors.Is(err, errorx.ErrEngineShutdown) {
				return err
			}
		}
		if woken {
			if err = p.runTasks(); err != nil {
				return err
			}
		}

		switch {
		case n == el.size:
			el.expand()
		case n < el.size>>1:
			el.shrink()
		}
	}
}

// AddRead registers the given file-descriptor with readable event to the poller.
func (p *Poller) AddRead(fd int) error {
	return os.NewSyscallError("epoll_ctl add",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: unix.EPOLLIN | unix.EPOLLPRI}))
}

// AddWrite registers the given file-descriptor with writable event to the poller.
func (p *Poller) AddWrite(fd int) error {
	return os.NewSyscallError("epoll_ctl add",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: unix.EPOLLOUT}))
}

// Delete removes the given file-descriptor from the poller.
func (p *Poller) Delete(fd int) error {
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
}
