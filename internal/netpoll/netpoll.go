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

// Package netpoll wraps epoll on Linux and kqueue on BSD-like systems into a Poller
// that drives one event-loop: it reports readiness of registered file-descriptors and
// runs tasks handed over by other goroutines through Trigger.
package netpoll

// PollEventHandler is the callback for I/O events notified by the poller.
type PollEventHandler func(fd int, ev IOEvent) error
