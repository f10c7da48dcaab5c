package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errUpstream = errors.New("upstream failed")

func fail() error    { return errUpstream }
func succeed() error { return nil }

func tripAfter(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		calls    []bool // true = success
		advance  time.Duration
		expected State
	}{
		{name: "stays closed on successes", calls: []bool{true, true, true}, expected: StateClosed},
		{name: "stays closed below threshold", calls: []bool{false, false, true, false}, expected: StateClosed},
		{name: "opens after consecutive failures", calls: []bool{false, false, false}, expected: StateOpen},
		{name: "half-open after timeout", calls: []bool{false, false, false}, advance: 2 * time.Second, expected: StateHalfOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := newClock()
			b := New("test", Settings{Timeout: time.Second, ReadyToTrip: tripAfter(3), Now: clk.Now})

			for _, ok := range tt.calls {
				if ok {
					_ = b.Do(succeed)
				} else {
					_ = b.Do(fail)
				}
			}
			clk.Advance(tt.advance)

			assert.Equal(t, tt.expected, b.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	clk := newClock()
	b := New("test", Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1), Now: clk.Now})

	assert.ErrorIs(t, b.Do(fail), errUpstream)

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clk := newClock()
	var transitions []string
	b := New("tutor", Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		ReadyToTrip: tripAfter(1),
		Now:         clk.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, fmt.Sprintf("%s:%s->%s", name, from, to))
		},
	})

	require.Error(t, b.Do(fail))
	clk.Advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(succeed))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(succeed))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{
		"tutor:closed->open",
		"tutor:open->half-open",
		"tutor:half-open->closed",
	}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := newClock()
	b := New("test", Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1), Now: clk.Now})

	require.Error(t, b.Do(fail))
	clk.Advance(2 * time.Second)

	assert.ErrorIs(t, b.Do(fail), errUpstream)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsTrials(t *testing.T) {
	clk := newClock()
	b := New("test", Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1), Now: clk.Now})

	require.Error(t, b.Do(fail))
	clk.Advance(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, b.Do(succeed), ErrTooManyRequests)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerCounts(t *testing.T) {
	b := New("test", Settings{Now: newClock().Now})

	_ = b.Do(succeed)
	_ = b.Do(succeed)
	_ = b.Do(fail)

	c := b.Counts()
	assert.Equal(t, uint32(3), c.Requests)
	assert.Equal(t, uint32(2), c.TotalSuccesses)
	assert.Equal(t, uint32(1), c.TotalFailures)
	assert.Equal(t, uint32(1), c.ConsecutiveFailures)
	assert.Equal(t, uint32(0), c.ConsecutiveSuccesses)
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	clk := newClock()
	b := New("test", Settings{Interval: time.Minute, ReadyToTrip: tripAfter(2), Now: clk.Now})

	_ = b.Do(fail)
	clk.Advance(2 * time.Minute)
	_ = b.Do(fail)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	b := New("test", Settings{ReadyToTrip: tripAfter(1), Now: newClock().Now})

	err := b.Do(func() error { return fmt.Errorf("request: %w", context.Canceled) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(0), b.Counts().TotalFailures)
}

func TestExecuteReturnsResult(t *testing.T) {
	b := New("test", Settings{})

	got, err := Execute(b, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	_, err = Execute(b, func() (int, error) { return 0, errUpstream })
	assert.ErrorIs(t, err, errUpstream)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b := New("test", Settings{ReadyToTrip: tripAfter(1), Now: newClock().Now})

	assert.Panics(t, func() {
		_ = b.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
