// Package executor runs engine calls on one dedicated goroutine per client
// and blocks the caller until the call returns.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("executor: closed")

// PanicError carries a panic recovered from a submitted function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("executor: panic: %v", e.Value)
}

// Options configures an Executor.
type Options struct {
	// LockOSThread pins the worker goroutine to one OS thread.
	LockOSThread bool

	// QueueSize is the number of calls that may wait for the worker.
	QueueSize int
}

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Executor serialises calls onto a single worker goroutine.
type Executor struct {
	tasks chan task
	quit  chan struct{}
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// New starts the worker goroutine.
func New(optFns ...func(o *Options)) (*Executor, error) {
	opts := Options{QueueSize: 16}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.QueueSize < 0 {
		return nil, fmt.Errorf("executor: invalid queue size %d", opts.QueueSize)
	}

	e := &Executor{
		tasks: make(chan task, opts.QueueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go e.loop(opts.LockOSThread)
	return e, nil
}

func (e *Executor) loop(lock bool) {
	defer close(e.done)
	if lock {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	for {
		select {
		case t := <-e.tasks:
			t.done <- invoke(t)
		case <-e.quit:
			// Drain what was accepted before Close.
			for {
				select {
				case t := <-e.tasks:
					t.done <- invoke(t)
				default:
					return
				}
			}
		}
	}
}

func invoke(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	if err := t.ctx.Err(); err != nil {
		return err
	}
	return t.fn(t.ctx)
}

// Run executes fn on the worker and waits for it to return. Calls are
// executed one at a time in submission order.
func (e *Executor) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrClosed
	}

	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case e.tasks <- t:
		e.mu.RUnlock()
	case <-ctx.Done():
		e.mu.RUnlock()
		return ctx.Err()
	}

	return <-t.done
}

// Close stops accepting work, waits for accepted calls and stops the worker.
func (e *Executor) Close() {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		close(e.quit)
		<-e.done
	})
}
