// Package eventloop implements a single-threaded cooperative event loop.
//
// Callbacks reach the loop from any goroutine through RegisterCallback, while
// jobs (promise reactions) are queued from the loop goroutine itself and are all
// drained after every callback, before the next one is run.
package eventloop

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// EventLoop implements an event loop with a cross-goroutine callback queue and
// a loop-local job queue.
type EventLoop struct {
	queueLock           sync.Mutex
	queue               []func() error
	wakeupCh            chan struct{}
	registeredCallbacks int

	// jobs is only ever touched from the loop goroutine.
	jobs []func()

	logger logrus.FieldLogger
}

// New returns a new event loop reporting to the given logger.
func New(logger logrus.FieldLogger) *EventLoop {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &EventLoop{
		wakeupCh: make(chan struct{}, 1),
		logger:   logger,
	}
}

// Logger returns the logger the loop was created with.
func (e *EventLoop) Logger() logrus.FieldLogger {
	return e.logger
}

func (e *EventLoop) wakeup() {
	select {
	case e.wakeupCh <- struct{}{}:
	default:
	}
}

// RegisterCallback signals to the event loop that you are going to do some
// asynchronous work off the main thread and that you may need to execute some
// code back on the main thread when you are done. So, once you call this
// method, the event loop will wait for you to finish and give it the callback
// it needs to run back on the main thread before it can end the whole current
// script iteration.
//
// RegisterCallback() *must* be called from the main thread. The returned
// function can be called from any goroutine, but exactly once.
func (e *EventLoop) RegisterCallback() (enqueueCallback func(func() error)) {
	e.queueLock.Lock()
	var callbackCalled bool
	e.registeredCallbacks++
	e.queueLock.Unlock()

	return func(f func() error) {
		e.queueLock.Lock()
		defer e.queueLock.Unlock()

		if callbackCalled {
			panic("RegisterCallback called twice")
		}
		callbackCalled = true
		e.queue = append(e.queue, f)
		e.registeredCallbacks--
		e.wakeup()
	}
}

// EnqueueJob queues a job to be run once the current callback, and every job
// queued before this one, has finished. It must only be called on the loop goroutine.
func (e *EventLoop) EnqueueJob(job func()) {
	e.jobs = append(e.jobs, job)
}

func (e *EventLoop) popAll() (queue []func() error, awaiting bool) {
	e.queueLock.Lock()
	queue = e.queue
	e.queue = make([]func() error, 0, len(queue))
	awaiting = e.registeredCallbacks != 0
	e.queueLock.Unlock()
	return
}

func (e *EventLoop) putInfront(queue []func() error) {
	e.queueLock.Lock()
	e.queue = append(queue, e.queue...)
	e.queueLock.Unlock()
}

// Start will run the event loop until it's empty and there are no uninvoked
// registered callbacks or a queued function returns an error. The provided
// firstCallback will be the first thing executed, followed by the callbacks
// left queued by a previous Start that stopped on an error. After Start returns
// the event loop can be reused as long as WaitOnRegistered is called.
func (e *EventLoop) Start(firstCallback func() error) error {
	e.queueLock.Lock()
	e.queue = append([]func() error{firstCallback}, e.queue...)
	e.queueLock.Unlock()
	for {
		queue, awaiting := e.popAll()

		if len(queue) == 0 {
			if !awaiting {
				return nil
			}
			<-e.wakeupCh
			continue
		}

		for i, f := range queue {
			if err := e.run(f); err != nil {
				e.putInfront(queue[i+1:])
				e.logger.WithError(err).Debug("Event loop stopped by a callback error")
				return err
			}
		}
	}
}

// run invokes a single callback and then drains the job queue, including the
// jobs queued by jobs.
func (e *EventLoop) run(f func() error) error {
	err := f()
	for len(e.jobs) > 0 {
		job := e.jobs[0]
		e.jobs[0] = nil
		e.jobs = e.jobs[1:]
		job()
	}
	return err
}

// WaitOnRegistered waits on all registered callbacks so we know nothing is still doing work.
func (e *EventLoop) WaitOnRegistered() {
	for {
		_, awaiting := e.popAll()
		if !awaiting {
			return
		}
		<-e.wakeupCh
	}
}
