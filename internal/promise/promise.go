// Package promise implements the one-shot, multi-waiter result cell used by
// the cache's value initializer. A Promise is created by the first caller
// that discovers a key is missing; every later caller for the same key
// waits on the same Promise instead of re-running the producer function.
package promise

import "sync"

// Poisoned is the error delivered to all waiters when the producer function
// aborted abnormally (panicked) instead of returning a value or an error.
type Poisoned struct {
	// Recovered is the value passed to panic() by the producer.
	Recovered interface{}
}

func (p *Poisoned) Error() string {
	return "promise: producer aborted abnormally"
}

// Promise is a single-assignment result cell with a one-shot broadcast
// signal. Multiple goroutines may call Wait concurrently; all of them
// observe the same Value/Err once Resolve or Reject has been called.
type Promise[V any] struct {
	done  chan struct{}
	once  sync.Once
	value V
	err   error
}

// New returns an unresolved Promise.
func New[V any]() *Promise[V] {
	return &Promise[V]{done: make(chan struct{})}
}

// Resolve publishes a successful value to every current and future waiter.
// Only the first call has an effect.
func (p *Promise[V]) Resolve(v V) {
	p.once.Do(func() {
		p.value = v
		close(p.done)
	})
}

// Reject publishes a failure to every current and future waiter. Only the
// first call (whichever of Resolve/Reject happens first) has an effect.
func (p *Promise[V]) Reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Wait blocks until the promise is resolved or rejected and returns the
// published value and error. A waiter that stops waiting (e.g. its calling
// context is cancelled by the caller) does not affect the producer or other
// waiters — it simply stops reading from Wait's return; cancellation is the
// caller's responsibility via a select on Done().
func (p *Promise[V]) Wait() (V, error) {
	<-p.done
	return p.value, p.err
}

// Done returns a channel that is closed once the promise settles, for
// callers that want to select on cancellation alongside completion.
func (p *Promise[V]) Done() <-chan struct{} {
	return p.done
}

// Run executes fn and resolves or rejects the promise with its outcome. If
// fn panics, the panic is recovered and every waiter receives a *Poisoned
// error instead of the panic propagating out of Run's caller — the producer
// goroutine survives and the promise is still settled so subsequent callers
// for the key may retry (per §4.8, a poisoned promise is not reused).
func (p *Promise[V]) Run(fn func() (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			p.Reject(&Poisoned{Recovered: r})
		}
	}()

	v, err := fn()
	if err != nil {
		p.Reject(err)
		return
	}
	p.Resolve(v)
}
