package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayMonotonicWithoutJitter(t *testing.T) {
	p := RetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		BackoffBase:  2,
	}
	prev := time.Duration(0)
	for k := 0; k < 10; k++ {
		d := p.Delay(k)
		assert.GreaterOrEqual(t, d, prev, "delay(%d) must not shrink", k)
		assert.LessOrEqual(t, d, p.MaxDelay)
		prev = d
	}
}

func TestDelayCappedAtMax(t *testing.T) {
	p := RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     3 * time.Second,
		BackoffBase:  2,
	}
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 3*time.Second, p.Delay(2))
	assert.Equal(t, 3*time.Second, p.Delay(9))
}

func TestDelayJitterBounds(t *testing.T) {
	p := RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		BackoffBase:  2,
		Jitter:       true,
	}
	for i := 0; i < 200; i++ {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, time.Second, "jitter floor is half the base delay")
		assert.Less(t, d, 2*time.Second)
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffBase: 2}
	calls := 0
	retries, err := p.Do(context.Background(), func(int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffBase: 2}
	calls := 0
	retries, err := p.Do(context.Background(), func(int) error {
		calls++
		if calls < 3 {
			return NewTypedError(ErrorTimeout, "navigation timed out")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, retries)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, InitialDelay: time.Millisecond, BackoffBase: 2}
	calls := 0
	boom := NewTypedError(ErrorValidation, "not a domain")
	retries, err := p.Do(context.Background(), func(int) error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, calls)
}

func TestDoSurfacesLastErrorAfterBudget(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffBase: 2}
	calls := 0
	retries, err := p.Do(context.Background(), func(try int) error {
		calls++
		return NewTypedError(ErrorNetwork, "connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, "connection refused", err.Error())
	assert.Equal(t, 2, retries)
	assert.Equal(t, 3, calls)
}

func TestDoHonorsCancellation(t *testing.T) {
	p := RetryPolicy{MaxRetries: 10, InitialDelay: time.Hour, BackoffBase: 2}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.Do(ctx, func(int) error {
		return NewTypedError(ErrorTimeout, "timed out")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWithMaxRetriesDoesNotMutate(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2}
	q := p.WithMaxRetries(5)
	assert.Equal(t, 2, p.MaxRetries)
	assert.Equal(t, 5, q.MaxRetries)
}
