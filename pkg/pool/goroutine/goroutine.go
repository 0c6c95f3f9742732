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

// Package goroutine wraps ants for the blocking work that must stay off the event-loop,
// such as reading the served file from disk.
package goroutine

import (
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	// DefaultAntsPoolSize sets up the capacity of worker pool, 256 * 1024.
	DefaultAntsPoolSize = 1 << 18

	// ExpiryDuration is the interval time to clean up those expired workers.
	ExpiryDuration = 10 * time.Second

	// Nonblocking decides what to do when submitting a new task to a full worker pool: waiting for a available worker
	// or returning ants.ErrPoolOverload directly.
	Nonblocking = true
)

// ErrPoolOverload is returned by Submit when the pool is full and non-blocking.
var ErrPoolOverload = ants.ErrPoolOverload

func init() {
	// It releases the default pool from ants.
	ants.Release()
}

// Pool is the alias of ants.Pool.
type Pool = ants.Pool

// New instantiates a non-blocking *Pool with the given capacity,
// a non-positive size means DefaultAntsPoolSize.
func New(size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultAntsPoolSize
	}
	options := ants.Options{ExpiryDuration: ExpiryDuration, Nonblocking: Nonblocking}
	return ants.NewPool(size, ants.WithOptions(options))
}
