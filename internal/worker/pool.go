// Package worker provides the bounded worker pool used by streams for
// asynchronous backend calls, and the futures returned by it.
//
// A pool is created per open stream and is started lazily on first use.
// There is no explicit shutdown: workers are plain goroutines gated by a
// weighted semaphore and exit as soon as their task completes. Submitted
// tasks always run to completion; closing a stream waits for its futures
// instead of cancelling them.
package worker

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Future holds the eventual result of a task submitted to a Pool.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Result blocks until the task completes and returns its value and error.
// Result may be called any number of times.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// Done reports whether the task has completed without blocking.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Pool bounds the number of concurrently running tasks. The zero value is
// not usable; create pools with New.
type Pool struct {
	max  int64
	once sync.Once
	sem  *semaphore.Weighted
}

// New returns a pool allowing up to max concurrent tasks. A max of zero or
// less selects a default based on the number of CPUs.
func New(max int) *Pool {
	if max <= 0 {
		max = runtime.NumCPU() * 2
	}
	return &Pool{max: int64(max)}
}

// init constructs the semaphore on first submission so that read-only or
// never-flushed streams pay nothing for their pool.
func (p *Pool) init() {
	p.once.Do(func() {
		p.sem = semaphore.NewWeighted(p.max)
	})
}

// Submit schedules fn on the pool and returns a future for its result.
// Submission never blocks: tasks over the concurrency cap queue up as
// parked goroutines waiting on the semaphore.
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	p.init()
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		// Background context: tasks are never cancelled at this layer.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		f.val, f.err = fn()
		close(f.done)
	}()
	return f
}

// FirstAhead submits the first call of next to the pool and returns a
// sequence that yields the prefetched value before continuing with next
// synchronously. Used by hierarchical listing to overlap the first backend
// page with caller setup.
func FirstAhead[T any](p *Pool, next func() (T, bool)) func() (T, bool) {
	type item struct {
		val T
		ok  bool
	}
	first := Submit(p, func() (item, error) {
		v, ok := next()
		return item{v, ok}, nil
	})
	delivered := false
	return func() (T, bool) {
		if !delivered {
			delivered = true
			it, _ := first.Result()
			return it.val, it.ok
		}
		return next()
	}
}
