package signal

import (
	"testing"
	"time"
)

func TestCommandRateLimiter(t *testing.T) {
	rl := NewCommandRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.Allow("c1") {
			t.Fatalf("Allow() = false on attempt %d, want true", i+1)
		}
	}
	if rl.Allow("c1") {
		t.Error("Allow() = true past the limit, want false")
	}

	// Other connections have independent windows.
	if !rl.Allow("c2") {
		t.Error("Allow(c2) = false, want independent budget")
	}
}

func TestCommandRateLimiterWindowSlides(t *testing.T) {
	rl := NewCommandRateLimiter(2, 50*time.Millisecond)

	if !rl.Allow("c1") || !rl.Allow("c1") {
		t.Fatal("initial attempts rejected")
	}
	if rl.Allow("c1") {
		t.Fatal("Allow() = true past the limit, want false")
	}

	time.Sleep(60 * time.Millisecond)

	if !rl.Allow("c1") {
		t.Error("Allow() = false after the window expired, want true")
	}
}
