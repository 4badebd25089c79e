package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replay records one call per byte: 'f' for a failure, anything else a success.
func replay(b *Breaker, calls string) {
	for _, c := range calls {
		if c == 'f' {
			b.RecordFailure()
		} else {
			b.RecordSuccess()
		}
	}
}

func TestBreaker_NewIsClosed(t *testing.T) {
	b := New("storefront-api")

	assert.Equal(t, "storefront-api", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())
}

func TestBreaker_StateAfterCalls(t *testing.T) {
	tests := []struct {
		name  string
		calls string
		opts  []Option
		want  State
	}{
		{name: "below failure threshold", calls: "ff", opts: []Option{WithFailureThreshold(3)}, want: StateClosed},
		{name: "at failure threshold", calls: "fff", opts: []Option{WithFailureThreshold(3)}, want: StateOpen},
		{name: "success resets consecutive failures", calls: "ffsff", opts: []Option{WithFailureThreshold(3)}, want: StateClosed},
		{name: "default threshold is five", calls: "fffff", want: StateOpen},
		{name: "one success does not close", calls: "fs", opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, want: StateOpen},
		{name: "success threshold closes", calls: "fss", opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, want: StateClosed},
		{name: "failure while open restarts success count", calls: "fssfss", opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(3)}, want: StateOpen},
		{name: "non-positive thresholds keep defaults", calls: "ffff", opts: []Option{WithFailureThreshold(0), WithSuccessThreshold(-1)}, want: StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("storefront-api", tt.opts...)
			replay(b, tt.calls)
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreaker_ReportsTransitions(t *testing.T) {
	b := New("storefront-api", WithFailureThreshold(2), WithSuccessThreshold(1))

	fallback, change := b.RecordFailure()
	assert.False(t, fallback)
	assert.Equal(t, StateChange{}, change)

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)

	fallback, change = b.RecordFailure()
	assert.True(t, fallback, "still open")
	assert.False(t, change.Opened, "already open")

	primary, change := b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.Equal(t, "closed", b.State().String())
}

func TestBreaker_AllowHonoursCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("storefront-api", WithFailureThreshold(1), WithCooldown(5*time.Second), WithClock(func() time.Time { return now }))

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow())
	assert.Equal(t, "open", b.State().String())

	now = now.Add(4 * time.Second)
	assert.False(t, b.Allow(), "still cooling down")

	now = now.Add(time.Second)
	assert.True(t, b.Allow(), "cooldown elapsed")

	b.RecordFailure()
	assert.False(t, b.Allow(), "a failed trial restarts the cooldown")
}

func TestBreaker_Reset(t *testing.T) {
	b := New("storefront-api", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()

	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}

func TestBreaker_ConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("storefront-api", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	assert.True(t, b.IsOpen())
}
