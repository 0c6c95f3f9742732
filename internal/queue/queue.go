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

// Package queue holds the tasks that other goroutines hand over to an event-loop.
package queue

import "sync"

// Func is the callback function executed by poller.
type Func func(interface{}) error

// Task is a wrapper that contains function and its argument.
type Task struct {
	Exec  Func
	Param interface{}
}

var taskPool = sync.Pool{New: func() interface{} { return new(Task) }}

// GetTask gets a cached Task from pool.
func GetTask() *Task {
	return taskPool.Get().(*Task)
}

// PutTask puts the trashy Task back in pool.
func PutTask(task *Task) {
	task.Exec, task.Param = nil, nil
	taskPool.Put(task)
}

// AsyncTaskQueue is a queue storing asynchronous tasks.
type AsyncTaskQueue interface {
	Enqueue(*Task)
	Dequeue() *Task
	IsEmpty() bool
	Length() int
}

// taskQueue is a FIFO guarded by a mutex, producers are arbitrary goroutines
// and the only consumer is the event-loop that owns the poller.
type taskQueue struct {
	mu    sync.Mutex
	tasks []*Task
	head  int
}

// NewTaskQueue instantiates and returns an empty AsyncTaskQueue.
func NewTaskQueue() AsyncTaskQueue {
	return new(taskQueue)
}

// Enqueue puts the given task at the tail of the queue.
func (q *taskQueue) Enqueue(task *Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Dequeue removes and returns the task at the head of the queue.
// It returns nil if the queue is empty.
func (q *taskQueue) Dequeue() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.tasks) {
		return nil
	}
	task := q.tasks[q.head]
	q.tasks[q.head] = nil
	q.head++
	if q.head == len(q.tasks) {
		q.tasks, q.head = q.tasks[:0], 0
	}
	return task
}

// IsEmpty indicates whether this queue is empty or not.
func (q *taskQueue) IsEmpty() bool {
	return q.Length() == 0
}

// Length returns the number of pending tasks.
func (q *taskQueue) Length() int {
	q.mu.Lock()
	n := len(q.tasks) - q.head
	q.mu.Unlock()
	return n
}
