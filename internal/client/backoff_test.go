package client

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 3 * time.Second, Multiplier: 1.5, Max: 30 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 3 * time.Second},
		{1, 3 * time.Second},
		{2, 4500 * time.Millisecond},
		{3, 6750 * time.Millisecond},
		{5, 15187500 * time.Microsecond},
		{7, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffWithoutCap(t *testing.T) {
	b := Backoff{Initial: time.Second, Multiplier: 2}
	if got := b.Delay(11); got != 1024*time.Second {
		t.Errorf("Delay(11) = %v, want 1024s", got)
	}
}
