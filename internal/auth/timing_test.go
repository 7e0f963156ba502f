package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnumerationDelay_WaitStaysInBounds(t *testing.T) {
	min := 100 * time.Millisecond
	max := 500 * time.Millisecond

	var slept time.Duration
	d := NewEnumerationDelay(min, max)
	d.sleep = func(dur time.Duration) { slept = dur }

	for i := 0; i < 50; i++ {
		d.Wait()
		assert.GreaterOrEqual(t, slept, min)
		assert.LessOrEqual(t, slept, max)
	}
}

func TestEnumerationDelay_ZeroDisables(t *testing.T) {
	d := NewEnumerationDelay(0, 0)
	d.sleep = func(time.Duration) { t.Fatal("disabled delay must not sleep") }

	d.Wait()
}

func TestEnumerationDelay_MaxBelowMinClamps(t *testing.T) {
	var slept time.Duration
	d := NewEnumerationDelay(200*time.Millisecond, 100*time.Millisecond)
	d.sleep = func(dur time.Duration) { slept = dur }

	d.Wait()
	assert.Equal(t, 200*time.Millisecond, slept)
}
