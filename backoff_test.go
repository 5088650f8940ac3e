package eventstream

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffCapped(t *testing.T) {
	p := BackoffPolicy{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-3, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{60, 30 * time.Second},
		{5000, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Capped(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDelayJitterBounds(t *testing.T) {
	p := DefaultPolicy()

	t.Run("extremes", func(t *testing.T) {
		assert.Equal(t, 900*time.Millisecond, Delay(0, p, func() float64 { return -1 }))
		assert.Equal(t, 1100*time.Millisecond, Delay(0, p, func() float64 { return 1 }))
		assert.Equal(t, 4*time.Second, Delay(2, p, func() float64 { return 0 }))
		assert.Equal(t, 33*time.Second, Delay(10, p, func() float64 { return 1 }))
	})

	t.Run("out of range draws are clamped", func(t *testing.T) {
		assert.Equal(t, 900*time.Millisecond, Delay(0, p, func() float64 { return -7 }))
		assert.Equal(t, 1100*time.Millisecond, Delay(0, p, func() float64 { return 7 }))
	})

	t.Run("random draws stay in band", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		jitter := func() float64 { return rng.Float64()*2 - 1 }
		for n := 0; n < 40; n++ {
			capped := p.Capped(n)
			lo := capped - capped/10 - time.Millisecond
			hi := capped + capped/10 + time.Millisecond
			for i := 0; i < 50; i++ {
				d := Delay(n, p, jitter)
				assert.GreaterOrEqual(t, d, lo)
				assert.LessOrEqual(t, d, hi)
				assert.GreaterOrEqual(t, d, time.Duration(0))
			}
		}
	})

	t.Run("default source", func(t *testing.T) {
		d := Delay(1, p, nil)
		assert.GreaterOrEqual(t, d, 1800*time.Millisecond)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	})
}

func TestDelayRoundsToMillisecond(t *testing.T) {
	p := BackoffPolicy{Initial: 1500 * time.Microsecond, Max: time.Second, Multiplier: 2}
	assert.Equal(t, 2*time.Millisecond, Delay(0, p, func() float64 { return 0 }))
}

func TestBackoffValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.ErrorIs(t, BackoffPolicy{Initial: 0, Multiplier: 2}.Validate(), ErrInvalidPolicy)
	assert.ErrorIs(t, BackoffPolicy{Initial: time.Second, Multiplier: 1}.Validate(), ErrInvalidPolicy)
	assert.True(t, DefaultPolicy().Unlimited())
	assert.False(t, BackoffPolicy{MaxAttempts: 3}.Unlimited())
}

func TestDelayWithoutCapSaturates(t *testing.T) {
	p := BackoffPolicy{Initial: time.Second, Multiplier: 2}
	zero := func() float64 { return 0 }

	assert.Equal(t, 8*time.Second, Delay(3, p, zero))
	for _, attempt := range []int{63, 100, 5000} {
		assert.Equal(t, maxDelay, p.Capped(attempt), "attempt %d", attempt)
		assert.Equal(t, maxDelay, Delay(attempt, p, zero), "attempt %d", attempt)
		assert.Equal(t, maxDelay, Delay(attempt, p, func() float64 { return 1 }), "attempt %d", attempt)
		assert.Greater(t, Delay(attempt, p, func() float64 { return -1 }), time.Duration(0), "attempt %d", attempt)
	}
}
