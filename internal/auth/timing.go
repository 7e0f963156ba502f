package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// EnumerationDelay pads failure paths that would otherwise reveal, by their
// response time, whether a username exists. A randomized delay between Min
// and Max is applied so the unknown-user exit looks like a hash verification.
type EnumerationDelay struct {
	min time.Duration
	max time.Duration

	// sleep is swappable in tests
	sleep func(time.Duration)
}

// NewEnumerationDelay creates a delay with the given bounds. Bounds at or
// below zero disable the delay.
func NewEnumerationDelay(min, max time.Duration) *EnumerationDelay {
	if max < min {
		max = min
	}
	return &EnumerationDelay{min: min, max: max, sleep: time.Sleep}
}

// Wait blocks for a random duration in [min, max].
func (d *EnumerationDelay) Wait() {
	if d.max <= 0 {
		return
	}

	span := d.max - d.min
	delay := d.min
	if span > 0 {
		delay += time.Duration(cryptoRandInt64(int64(span)))
	}
	d.sleep(delay)
}

// cryptoRandInt64 returns a random value in [0, max). math/rand is avoided on
// security-adjacent paths.
func cryptoRandInt64(max int64) int64 {
	if max <= 0 {
		return 0
	}

	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(raw[:]) % uint64(max))
}
