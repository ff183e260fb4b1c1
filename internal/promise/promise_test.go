package promise_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cachekit/tlfu/internal/promise"
)

func TestResolveDeliversValueToAllWaiters(t *testing.T) {
	p := promise.New[int]()

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := p.Wait()
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	p.Resolve(42)
	wg.Wait()

	for i, v := range results {
		require.Equal(t, 42, v, "waiter %d", i)
	}
}

func TestRejectDeliversErrorToWaiter(t *testing.T) {
	p := promise.New[int]()
	boom := errors.New("boom")

	p.Reject(boom)

	v, err := p.Wait()
	require.Equal(t, 0, v)
	require.Equal(t, boom, err)
}

func TestOnlyFirstSettleWins(t *testing.T) {
	p := promise.New[int]()

	p.Resolve(1)
	p.Resolve(2)
	p.Reject(errors.New("too late"))

	v, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestRunRecoversPanicIntoPoisoned(t *testing.T) {
	p := promise.New[int]()

	p.Run(func() (int, error) {
		panic("kaboom")
	})

	_, err := p.Wait()
	var poisoned *promise.Poisoned
	require.ErrorAs(t, err, &poisoned)
	require.Equal(t, "kaboom", poisoned.Recovered)
}

func TestRunResolvesOnSuccess(t *testing.T) {
	p := promise.New[string]()

	p.Run(func() (string, error) {
		return "ok", nil
	})

	v, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestDoneClosesOnceSettled(t *testing.T) {
	p := promise.New[int]()

	select {
	case <-p.Done():
		t.Fatal("Done() closed before the promise settled")
	default:
	}

	p.Resolve(1)

	select {
	case <-p.Done():
	default:
		t.Fatal("Done() did not close after Resolve")
	}
}
