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

//go:build !linux && !freebsd && !dragonfly && !darwin
// +build !linux,!freebsd,!dragonfly,!darwin

package filecast

import (
	"net"

	errorx "github.com/filecast/filecast/pkg/errors"
)

type engine struct{}

func (eng *engine) isInShutdown() bool {
	return true
}

func (eng *engine) shutdown(_ error) {}

func (eng *engine) addr() net.Addr {
	return nil
}

func (eng *engine) countConn() int {
	return 0
}

func run(_ EventHandler, _, _, _ string, _ *Options, _ string) error {
	return errorx.ErrUnsupportedPlatform
}
