package timeutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()
	assert.False(t, got.Before(before) || got.After(after))
}

func TestRealClock_Sleep(t *testing.T) {
	c := RealClock{}
	start := time.Now()
	assert.NoError(t, c.Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, c.Since(start), 5*time.Millisecond)
}

func TestRealClock_SleepCancelled(t *testing.T) {
	c := RealClock{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Hour), context.Canceled)
}

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, time.Minute, c.Since(start))

	assert.NoError(t, c.Sleep(context.Background(), 5*time.Second))
	assert.NoError(t, c.Sleep(context.Background(), 2*time.Second))
	assert.Equal(t, []time.Duration{5 * time.Second, 2 * time.Second}, c.Sleeps())
	assert.Equal(t, start.Add(time.Minute+7*time.Second), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestMockClock_SleepCancelled(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.Sleep(ctx, time.Second))
	assert.Empty(t, c.Sleeps())
}
