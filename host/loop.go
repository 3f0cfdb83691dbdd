// Package host orchestrates plugin loading: version resolution, contract
// verification, instantiation, lifecycle hooks, and guaranteed cleanup.
package host

import (
	"sync"
	"time"
)

// Loop is the host's cooperative run loop. All plugin callbacks (commands,
// event handlers, timers) execute on this single goroutine, mirroring a
// UI-thread-bound runtime. A callback that never yields blocks the whole
// host; the design accepts that rather than preempting.
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
}

// NewLoop creates a stopped loop. Call Run to start draining tasks.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 256),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run drains tasks until Stop is called. It is the loop goroutine; callers
// usually start it with `go loop.Run()`.
func (l *Loop) Run() {
	defer close(l.done)
	for {
		select {
		case task := <-l.tasks:
			task()
		case <-l.quit:
			// Drain what was already queued, then exit.
			for {
				select {
				case task := <-l.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Post queues a task for execution on the loop. Returns false when the
// loop has stopped and the task was dropped.
func (l *Loop) Post(task func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- task:
		return true
	case <-l.quit:
		return false
	}
}

// PostWait runs a task on the loop and blocks until it completes. Must not
// be called from the loop goroutine itself.
func (l *Loop) PostWait(task func()) bool {
	doneCh := make(chan struct{})
	ok := l.Post(func() {
		defer close(doneCh)
		task()
	})
	if !ok {
		return false
	}
	select {
	case <-doneCh:
		return true
	case <-l.done:
		return false
	}
}

// SetInterval schedules fn to run on the loop every interval. The returned
// cancel function stops the timer and is idempotent.
func (l *Loop) SetInterval(every time.Duration, fn func()) (cancel func()) {
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Post(fn)
			case <-stop:
				return
			case <-l.quit:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(stop) }) }
}

// Stop shuts the loop down after the queued tasks drain. Idempotent.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
	<-l.done
}
