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

// Package bytebuffer is a pool of bytebufferpool.ByteBuffer.
package bytebuffer

import (
	"os"

	"github.com/valyala/bytebufferpool"
)

// ByteBuffer is the alias of bytebufferpool.ByteBuffer.
type ByteBuffer = bytebufferpool.ByteBuffer

var (
	// Get returns an empty byte buffer from the pool, exported from filecast/bytebuffer.
	Get = bytebufferpool.Get
	// Put returns byte buffer to the pool, exported from filecast/bytebuffer.
	Put = func(b *ByteBuffer) {
		if b != nil {
			bytebufferpool.Put(b)
		}
	}
)

// ReadFile reads the whole named file into a pooled byte buffer.
// The caller owns the returned buffer and must give it back with Put.
func ReadFile(name string) (*ByteBuffer, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	bb := Get()
	if _, err = bb.ReadFrom(f); err != nil {
		Put(bb)
		return nil, err
	}
	return bb, nil
}

// FromString returns a pooled byte buffer holding s.
func FromString(s string) *ByteBuffer {
	bb := Get()
	_, _ = bb.WriteString(s)
	return bb
}
