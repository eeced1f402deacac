// Package promises provides deferred results settled on an event loop.
//
// A Promise is created pending and is settled at most once, either fulfilled
// with a value or rejected with an error. Reactions registered with Then are
// never run synchronously: they are queued as jobs on the loop, so a reaction
// always observes a later turn than the code that registered it.
package promises

import (
	"fmt"
)

// Scheduler queues jobs on the loop goroutine.
type Scheduler interface {
	EnqueueJob(job func())
}

// Loop is a Scheduler that also accepts callbacks from other goroutines.
type Loop interface {
	Scheduler
	RegisterCallback() func(func() error)
}

// State is the settlement state of a Promise.
type State uint8

const (
	// StatePending promises are neither fulfilled nor rejected yet.
	StatePending State = iota
	// StateFulfilled promises hold a value.
	StateFulfilled
	// StateRejected promises hold an error.
	StateRejected
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFulfilled:
		return "fulfilled"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Promise is a deferred result of type T.
type Promise[T any] struct {
	sched     Scheduler
	state     State
	value     T
	err       error
	reactions []func()
}

// New creates a pending promise along with the functions settling it.
// Only the first call to either resolve or reject has any effect.
//
// A typical usage would be:
//
//	func readNext(loop promises.Scheduler) *promises.Promise[string] {
//		p, resolve, reject := promises.New[string](loop)
//		source.onLine(func(line string, err error) {
//			if err != nil {
//				reject(err)
//				return
//			}
//			resolve(line)
//		})
//		return p
//	}
func New[T any](sched Scheduler) (p *Promise[T], resolve func(T), reject func(error)) {
	p = &Promise[T]{sched: sched}
	return p, p.resolve, p.reject
}

// Resolved returns a promise already fulfilled with v.
func Resolved[T any](sched Scheduler, v T) *Promise[T] {
	p, resolve, _ := New[T](sched)
	resolve(v)
	return p
}

// Rejected returns a promise already rejected with err.
func Rejected[T any](sched Scheduler, err error) *Promise[T] {
	p, _, reject := New[T](sched)
	reject(err)
	return p
}

func (p *Promise[T]) resolve(v T) {
	if p.state != StatePending {
		return
	}
	p.state, p.value = StateFulfilled, v
	p.flush()
}

func (p *Promise[T]) reject(err error) {
	if p.state != StatePending {
		return
	}
	p.state, p.err = StateRejected, err
	p.flush()
}

func (p *Promise[T]) flush() {
	reactions := p.reactions
	p.reactions = nil
	for _, r := range reactions {
		p.sched.EnqueueJob(r)
	}
}

// State returns the current settlement state.
func (p *Promise[T]) State() State {
	return p.state
}

// Value returns the fulfillment value, or the zero T if p is not fulfilled.
func (p *Promise[T]) Value() T {
	return p.value
}

// Err returns the rejection reason, or nil if p is not rejected.
func (p *Promise[T]) Err() error {
	return p.err
}

// Then registers reactions to the settlement of p. Either function may be nil.
func (p *Promise[T]) Then(onFulfilled func(T), onRejected func(error)) {
	reaction := func() {
		switch p.state {
		case StateFulfilled:
			if onFulfilled != nil {
				onFulfilled(p.value)
			}
		case StateRejected:
			if onRejected != nil {
				onRejected(p.err)
			}
		case StatePending:
			panic("promise reaction run while pending")
		}
	}

	if p.state == StatePending {
		p.reactions = append(p.reactions, reaction)
		return
	}
	p.sched.EnqueueJob(reaction)
}

// Then chains a new promise on the settlement of p.
//
// A nil onFulfilled fulfills the result with the zero U; a nil onRejected
// rejects the result with the same error as p.
func Then[T, U any](
	p *Promise[T], onFulfilled func(T) (U, error), onRejected func(error) (U, error),
) *Promise[U] {
	next, resolve, reject := New[U](p.sched)
	settle := func(v U, err error) {
		if err != nil {
			reject(err)
			return
		}
		resolve(v)
	}

	p.Then(
		func(v T) {
			if onFulfilled == nil {
				var zero U
				resolve(zero)
				return
			}
			settle(onFulfilled(v))
		},
		func(err error) {
			if onRejected == nil {
				reject(err)
				return
			}
			settle(onRejected(err))
		},
	)

	return next
}

// Async runs fn on its own goroutine and settles the returned promise with its
// result back on the loop.
func Async[T any](loop Loop, fn func() (T, error)) *Promise[T] {
	p, resolve, reject := New[T](loop)
	callback := loop.RegisterCallback()

	go func() {
		v, err := fn()
		callback(func() error {
			if err != nil {
				reject(err)
				return nil
			}
			resolve(v)
			return nil
		})
	}()

	return p
}
