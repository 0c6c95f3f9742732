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

// Command filecast serves one file to every TCP client that connects:
//
//	server [flags] <port> <file_path>
//
// The file is read again for each connection, so clients always get
// what is on disk at the time they connect.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/filecast/filecast"
	"github.com/filecast/filecast/pkg/logging"
)

const usage = "Usage: server <port> <file_path>"

// shutdownTimeout bounds how long a signal waits for the engine to stop.
const shutdownTimeout = 10 * time.Second

type server struct {
	*filecast.BuiltinEventEngine

	signals <-chan os.Signal
}

func (s *server) OnBoot(eng filecast.Engine) (action filecast.Action) {
	go func() {
		sig, ok := <-s.signals
		if !ok {
			return
		}
		logging.Infof("received signal %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := eng.Stop(ctx); err != nil {
			logging.Errorf("failed to stop engine: %v", err)
		}
	}()
	return
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	var (
		asyncRead bool
		reusePort bool
		logPath   string
	)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	fs.BoolVar(&asyncRead, "async-read", false, "read the file on a goroutine pool instead of the event-loop")
	fs.BoolVar(&reusePort, "reuseport", false, "set SO_REUSEPORT on the listener")
	fs.StringVar(&logPath, "log-path", "", "write logs to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}

	port, err := strconv.ParseUint(fs.Arg(0), 10, 16)
	if err != nil {
		fmt.Fprintf(stderr, "Exception: invalid port %q: %v\n", fs.Arg(0), err)
		return 0
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()

	opts := []filecast.Option{
		filecast.WithAsyncFileRead(asyncRead),
		filecast.WithReusePort(reusePort),
	}
	if logPath != "" {
		opts = append(opts, filecast.WithLogPath(logPath), filecast.WithLogLevel(logging.InfoLevel))
	}

	err = filecast.Run(&server{signals: sigs}, fmt.Sprintf("tcp4://:%d", port), fs.Arg(1), opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Exception: %v\n", err)
	}
	return 0
}
