package client

import (
	"math"
	"time"
)

// Backoff computes reconnect delays: Initial * Multiplier^(attempt-1), capped at Max.
type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

// Delay returns the wait before reconnect attempt n (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(b.Initial) * math.Pow(mult, float64(attempt-1))
	if b.Max > 0 && d >= float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}
