package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstant_SameDelayEveryAttempt(t *testing.T) {
	s := NewConstant(3 * time.Second)

	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, 3*time.Second, s.Delay(attempt))
	}
	assert.Equal(t, "constant", s.Name())
}

func TestExponential_Doubling(t *testing.T) {
	s := Exponential{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    false, // Disable for predictable tests
	}

	assert.Equal(t, 100*time.Millisecond, s.Delay(1))
	assert.Equal(t, 200*time.Millisecond, s.Delay(2))
	assert.Equal(t, 400*time.Millisecond, s.Delay(3))
}

func TestExponential_CapsAtMaxDelay(t *testing.T) {
	s := Exponential{
		InitialDelay: 1 * time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
		AddJitter:    false,
	}

	assert.Equal(t, 4*time.Second, s.Delay(10))
}

func TestExponential_JitterStaysBounded(t *testing.T) {
	s := NewExponential(1*time.Second, 10*time.Second)

	for i := 0; i < 20; i++ {
		d := s.Delay(1)
		assert.GreaterOrEqual(t, d, 1*time.Second)
		assert.Less(t, d, 1250*time.Millisecond)
	}
}

func TestExponential_ZeroValueDefaults(t *testing.T) {
	var s Exponential
	assert.Equal(t, time.Second, s.Delay(1))
}
