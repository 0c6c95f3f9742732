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

package filecast

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	errorx "github.com/filecast/filecast/pkg/errors"
	"github.com/filecast/filecast/pkg/logging"
)

// FileNotFoundMessage is served in place of the file content when the file can not be read.
const FileNotFoundMessage = "Error: File not found."

// Action is an action that occurs after the completion of an event.
type Action int

const (
	// None indicates that no action should occur following an event.
	None Action = iota

	// Shutdown shutdowns the engine.
	Shutdown
)

// Engine represents an engine context which provides some functions.
type Engine struct {
	// eng is the internal engine struct.
	eng *engine
}

// Validate checks whether the engine is available.
func (e Engine) Validate() error {
	if e.eng == nil {
		return errorx.ErrEmptyEngine
	}
	if e.eng.isInShutdown() {
		return errorx.ErrEngineInShutdown
	}
	return nil
}

// Addr returns the address the engine is listening on, with the real port
// filled in when port 0 was requested.
func (e Engine) Addr() net.Addr {
	if e.eng == nil {
		return nil
	}
	return e.eng.addr()
}

// CountConnections counts the number of connections currently being served.
func (e Engine) CountConnections() (count int) {
	if e.Validate() != nil {
		return -1
	}
	return e.eng.countConn()
}

// Stop gracefully shuts down this Engine: it stops accepting, closes the connections
// still being written and waits until the event-loop exits or ctx is done.
func (e Engine) Stop(ctx context.Context) error {
	if err := e.Validate(); err != nil {
		return err
	}

	e.eng.shutdown(nil)

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	for {
		if e.eng.isInShutdown() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Conn is the connection being served, it is only valid within the callbacks of EventHandler.
type Conn interface {
	// Fd returns the underlying file descriptor.
	Fd() int

	// LocalAddr is the connection's local socket address.
	LocalAddr() net.Addr

	// RemoteAddr is the connection's remote peer address.
	RemoteAddr() net.Addr

	// Len returns the number of bytes this connection is going to be sent.
	Len() int

	// Written returns the number of bytes that have been handed to the kernel so far.
	Written() int
}

type (
	// EventHandler represents the engine events' callbacks for the Run call.
	// Each event has an Action return value that is used manage the state
	// of the engine.
	EventHandler interface {
		// OnBoot fires when the engine is ready for accepting connections.
		// The parameter engine has information and various utilities.
		OnBoot(eng Engine) (action Action)

		// OnShutdown fires when the engine is being shut down, it is called right after
		// all event-loops and connections are closed.
		OnShutdown(eng Engine)

		// OnOpen fires when a new connection has been accepted and its content loaded,
		// right before the first write.
		OnOpen(c Conn)

		// OnClose fires when a connection has been closed, only for connections
		// that OnOpen fired for: one still waiting for its asynchronous file read
		// when the engine shuts down is closed silently.
		// The parameter err is nil when the whole content was written,
		// otherwise it is the error that stopped the write.
		OnClose(c Conn, err error)
	}

	// BuiltinEventEngine is a built-in implementation of EventHandler which sets up each method with a default implementation,
	// you can compose it with your own implementation of EventHandler when you don't want to implement all methods
	// in EventHandler.
	BuiltinEventEngine struct{}
)

// OnBoot fires when the engine is ready for accepting connections.
// The parameter engine has information and various utilities.
func (*BuiltinEventEngine) OnBoot(_ Engine) (action Action) {
	return
}

// OnShutdown fires when the engine is being shut down, it is called right after
// all event-loops and connections are closed.
func (*BuiltinEventEngine) OnShutdown(_ Engine) {
}

// OnOpen fires when a new connection has been accepted.
func (*BuiltinEventEngine) OnOpen(_ Conn) {
}

// OnClose fires when a connection has been closed.
func (*BuiltinEventEngine) OnClose(_ Conn, _ error) {
}

// Run starts handling events on the specified address and serves the file at filePath
// to every connection, it blocks until the engine is shut down.
//
// Address should use a scheme prefix and be formatted
// like `tcp://192.168.0.10:9851` or `tcp4://:9000`.
// Valid network schemes:
//
//	tcp   - bind to both IPv4 and IPv6
//	tcp4  - IPv4
//	tcp6  - IPv6
//
// The "tcp" network scheme is assumed when one is not specified.
func Run(eventHandler EventHandler, protoAddr, filePath string, opts ...Option) (err error) {
	options := loadOptions(opts...)

	logging.Debugf("default logging level is %s", logging.LogLevel())

	var (
		logger logging.Logger
		flush  func() error
	)
	if options.LogPath != "" {
		if logger, flush, err = logging.CreateLoggerAsLocalFile(options.LogPath, options.LogLevel); err != nil {
			return
		}
	} else {
		logger = logging.GetDefaultLogger()
	}
	if options.Logger == nil {
		options.Logger = logger
	}
	defer func() {
		if flush != nil {
			_ = flush()
		}
		logging.Cleanup()
	}()

	if eventHandler == nil {
		eventHandler = new(BuiltinEventEngine)
	}
	if filePath == "" {
		return errorx.ErrEmptyFilePath
	}

	network, addr, err := parseProtoAddr(protoAddr)
	if err != nil {
		return
	}

	return run(eventHandler, network, addr, filePath, options, protoAddr)
}

var (
	allEngines sync.Map

	// shutdownPollInterval is how often we poll to check whether engine has been shut down during filecast.Stop().
	shutdownPollInterval = 100 * time.Millisecond
)

// Stop gracefully shuts down the engine started on protoAddr without interrupting the event-loop,
// it waits for the event-loop to exit and the connections to be closed, or for ctx to be done.
func Stop(ctx context.Context, protoAddr string) error {
	if eng, ok := allEngines.Load(protoAddr); ok {
		return Engine{eng.(*engine)}.Stop(ctx)
	}
	return errorx.ErrEngineInShutdown
}

func parseProtoAddr(protoAddr string) (network, addr string, err error) {
	network = "tcp"
	addr = strings.ToLower(protoAddr)
	if strings.Contains(addr, "://") {
		pair := strings.Split(addr, "://")
		network = pair[0]
		addr = pair[1]
	}
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return "", "", errorx.ErrUnsupportedProtocol
	}
	if addr == "" {
		return "", "", errorx.ErrInvalidNetworkAddress
	}
	return
}
