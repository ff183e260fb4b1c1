package tlfu

import (
	"github.com/cachekit/tlfu/internal/promise"
)

// GetWith returns the cached value for key, computing and storing it via
// init if no live entry exists. Concurrent callers that all miss on the
// same key share a single invocation of init instead of each running it
// (spec.md §4.8); a panic inside init is recovered and delivered to every
// such caller as *InitPanicError rather than crashing the producer's
// goroutine.
func (c *Cache[K, V]) GetWith(key K, init func() V) (V, error) {
	return c.TryGetWith(key, func() (V, error) { return init(), nil })
}

// TryGetWith is GetWith for an init function that can itself fail. On
// success the returned value is stored exactly as Insert would store it,
// before the in-flight invocation is removed from the wait map. On failure,
// every caller waiting on this invocation receives an *InitFailureError
// wrapping the same error value, but the failure is not cached — the next call for key
// retries init from scratch, since a poisoned or failed attempt is removed
// from the wait map as soon as it settles (spec.md §4.8).
func (c *Cache[K, V]) TryGetWith(key K, init func() (V, error)) (V, error) {
	var zero V

	if v, ok := c.Get(key); ok {
		return v, nil
	}

	hash := c.cfg.Hasher(key)
	sh := c.init.shardFor(hash)
	p, created := sh.getOrCreate(key)

	var insertErr error
	if created {
		func() {
			defer sh.forget(key, p)
			p.Run(init)
			if v, err := p.Wait(); err == nil {
				insertErr = c.Insert(key, v)
			}
		}()
	}

	v, err := p.Wait()
	if err != nil {
		if poisoned, ok := err.(*promise.Poisoned); ok {
			return zero, &InitPanicError{Recovered: poisoned.Recovered}
		}
		return zero, &InitFailureError{Err: err}
	}

	if insertErr != nil {
		return v, insertErr
	}
	return v, nil
}
