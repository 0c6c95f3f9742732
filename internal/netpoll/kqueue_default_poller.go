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

//go:build freebsd || dragonfly || darwin
// +build freebsd dragonfly darwin

package netpoll

import (
	"errors"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/filecast/filecast/internal/queue"
	errorx "github.com/filecast/filecast/pkg/errors"
	"github.com/filecast/filecast/pkg/logging"
)

// Poller represents a poller which is in charge of monitoring file-descriptors.
type Poller struct {
	fd             int // kqueue fd
	wakeupCall     int32
	asyncTaskQueue queue.AsyncTaskQueue
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.Kqueue(); err != nil {
		poller = nil
		err = os.NewSyscallError("kqueue", err)
		return
	}
	unix.CloseOnExec(poller.fd)
	if _, err = unix.Kevent(poller.fd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil); err != nil {
		_ = poller.Close()
		poller = nil
		err = os.NewSyscallError("kevent add|clear", err)
		return
	}
	poller.asyncTaskQueue = queue.NewTaskQueue()
	return
}

// Close closes the poller.
func (p *Poller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.fd))
}

var note = []unix.Kevent_t{{
	Ident:  0,
	Filter: unix.EVFILT_USER,
	Fflags: unix.NOTE_TRIGGER,
}}

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
	_, err := unix.Kevent(p.fd, note, nil, nil)
	if err == unix.EAGAIN {
		return nil
	}
	return os.NewSyscallError("kevent trigger", err)
}

// runTasks executes at most MaxAsyncTasksAtOneTime queued tasks and re-arms
// the wakeup if some are left over.
func (p *Poller) runTasks() error {
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
// or when kevent fails.
func (p *Poller) Polling(callback PollEventHandler) error {
	el := newEventList(InitPollEventsCap)

	for {
		n, err := unix.Kevent(p.fd, nil, el.events, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			err = os.NewSyscallError("kevent wait", err)
			logging.Errorf("error occurs in kqueue: %v", err)
			return err
		}

		woken := false
		for _, ev := range el.events[:n] {
			if ev.Filter == unix.EVFILT_USER {
				woken = true
			} else if err = callback(int(ev.Ident), ev.Filter); errors.Is(err, errorx.ErrEngineShutdown) {
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
	return p.add(fd, unix.EVFILT_READ)
}

// AddWrite registers the given file-descriptor with writable event to the poller.
func (p *Poller) AddWrite(fd int) error {
	return p.add(fd, unix.EVFILT_WRITE)
}

func (p *Poller) add(fd, filter int) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, filter, unix.EV_ADD)
	_, err := unix.Kevent(p.fd, []unix.Kevent_t{ev}, nil, nil)
	return os.NewSyscallError("kevent add", err)
}

// Delete removes the given file-descriptor from the poller.
// kqueue drops the registered filters by itself once the file-descriptor is closed,
// so there is nothing to do here.
func (*Poller) Delete(_ int) error {
	return nil
}
