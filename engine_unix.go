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
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/filecast/filecast/internal/netpoll"
	errorx "github.com/filecast/filecast/pkg/errors"
	goPool "github.com/filecast/filecast/pkg/pool/goroutine"
)

type engine struct {
	ln         *listener  // the listener for accepting new connections
	opts       *Options   // options with engine
	filePath   string     // the file served to every connection
	loop       *eventloop // the only event-loop, it accepts and writes
	inShutdown int32      // whether the engine is in shutdown
	connCount  int32      // number of connections being served, updated by the event-loop
	workerPool struct {
		*errgroup.Group

		shutdownCtx context.Context
		shutdown    context.CancelFunc
		once        sync.Once
	}
	readers struct {
		*goPool.Pool // nil unless AsyncFileRead is on

		pending sync.WaitGroup // file reads that haven't been handed back to the event-loop
	}
	eventHandler EventHandler // user eventHandler
}

func (eng *engine) isInShutdown() bool {
	return atomic.LoadInt32(&eng.inShutdown) == 1
}

// shutdown signals the engine to shut down.
func (eng *engine) shutdown(err error) {
	if err != nil && !errors.Is(err, errorx.ErrEngineShutdown) {
		eng.opts.Logger.Errorf("engine is being shutdown with error: %v", err)
	}

	eng.workerPool.once.Do(func() {
		eng.workerPool.shutdown()
	})
}

func (eng *engine) addr() net.Addr {
	return eng.ln.addr
}

func (eng *engine) countConn() int {
	return int(atomic.LoadInt32(&eng.connCount))
}

func (eng *engine) start() error {
	p, err := netpoll.OpenPoller()
	if err != nil {
		return err
	}
	el := new(eventloop)
	el.ln = eng.ln
	el.engine = eng
	el.poller = p
	el.buffer = make([]byte, drainBufferCap)
	el.connections = make(map[int]*conn)
	el.eventHandler = eng.eventHandler
	eng.loop = el
	if err = el.poller.AddRead(el.ln.fd); err != nil {
		return err
	}

	// Start the event-loop in background.
	eng.workerPool.Go(el.run)

	eng.opts.Logger.Infof("filecast engine is listening on %s://%s, serving %q",
		eng.ln.network, eng.ln.addr, eng.filePath)
	return nil
}

func (eng *engine) closeEventLoop() {
	eng.ln.close()
	if eng.loop != nil {
		if err := eng.loop.poller.Close(); err != nil {
			eng.opts.Logger.Errorf("failed to close poller when stopping engine: %v", err)
		}
	}
}

func (eng *engine) releaseReaders() {
	if eng.readers.Pool == nil {
		return
	}
	eng.readers.pending.Wait()
	eng.readers.Release()
}

func (eng *engine) stop(s Engine) (err error) {
	// Wait on a signal for shutdown
	<-eng.workerPool.shutdownCtx.Done()

	eng.eventHandler.OnShutdown(s)

	// Notify the event-loop to exit.
	if err = eng.loop.poller.Trigger(func(_ interface{}) error { return errorx.ErrEngineShutdown }, nil); err != nil {
		eng.opts.Logger.Errorf("failed to call Trigger on event-loop when stopping engine: %v", err)
	}

	if err = eng.workerPool.Wait(); err != nil {
		eng.opts.Logger.Errorf("engine shutdown error: %v", err)
	}

	// Every read in flight must land in the task queue before the poller goes away.
	eng.releaseReaders()

	// Close outstanding connections, then the listener and the poller.
	eng.loop.closeConns()
	eng.closeEventLoop()

	// Put the engine into the shutdown state.
	atomic.StoreInt32(&eng.inShutdown, 1)

	return
}

func run(eventHandler EventHandler, network, address, filePath string, options *Options, protoAddr string) error {
	ln, err := initListener(network, address, options)
	if err != nil {
		return err
	}
	defer ln.close()

	shutdownCtx, shutdown := context.WithCancel(context.Background())
	eng := engine{
		ln:           ln,
		opts:         options,
		filePath:     filePath,
		eventHandler: eventHandler,
	}
	eng.workerPool.Group = &errgroup.Group{}
	eng.workerPool.shutdownCtx, eng.workerPool.shutdown = shutdownCtx, shutdown
	defer shutdown()

	if options.AsyncFileRead {
		if eng.readers.Pool, err = goPool.New(options.FileReadWorkers); err != nil {
			return err
		}
	}

	allEngines.Store(protoAddr, &eng)
	defer allEngines.Delete(protoAddr)

	e := Engine{&eng}
	switch eng.eventHandler.OnBoot(e) {
	case None:
	case Shutdown:
		eng.releaseReaders()
		atomic.StoreInt32(&eng.inShutdown, 1)
		return nil
	}

	if err = eng.start(); err != nil {
		eng.releaseReaders()
		eng.closeEventLoop()
		atomic.StoreInt32(&eng.inShutdown, 1)
		eng.opts.Logger.Errorf("filecast engine is stopping with error: %v", err)
		return err
	}

	return eng.stop(e)
}
