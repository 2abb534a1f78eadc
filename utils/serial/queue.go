// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package serial provides a single-writer task queue: closures submitted to a
// Queue run one at a time, in submission order, on one dedicated goroutine.
package serial

import (
	"errors"
	"sync"

	"github.com/ava-labs/worldstate/utils/buffer"
)

var ErrClosed = errors.New("queue closed")

type Queue struct {
	tasks *buffer.UnboundedBlockingDeque[func()]

	lock    sync.Mutex
	closing bool
	done    chan struct{}
}

// New returns a running queue. Close must be called to stop its worker.
func New() *Queue {
	q := &Queue{
		tasks: buffer.NewUnboundedBlockingDeque[func()](16),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		task, ok := q.tasks.PopLeft()
		if !ok {
			return
		}
		if task == nil {
			// Every task submitted before Close has run.
			q.tasks.Close()
			return
		}
		task()
	}
}

// Submit enqueues [task] without waiting for it to run.
func (q *Queue) Submit(task func()) error {
	if task == nil {
		return nil
	}

	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closing || !q.tasks.PushRight(task) {
		return ErrClosed
	}
	return nil
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	return q.tasks.Len()
}

// Close stops accepting tasks, waits for the already submitted ones to run
// and stops the worker. Calling Close more than once is allowed.
func (q *Queue) Close() {
	q.lock.Lock()
	if !q.closing {
		q.closing = true
		q.tasks.PushRight(nil)
	}
	q.lock.Unlock()

	<-q.done
}

// Do runs [fn] on [q] and waits for its result.
func Do[T any](q *Queue, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
		ran    = make(chan struct{})
	)
	if submitErr := q.Submit(func() {
		defer close(ran)
		result, err = fn()
	}); submitErr != nil {
		return result, submitErr
	}
	<-ran
	return result, err
}

// Exec runs [fn] on [q] and waits for it to return.
func Exec(q *Queue, fn func() error) error {
	_, err := Do(q, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
