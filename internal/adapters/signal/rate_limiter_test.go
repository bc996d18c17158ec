package signal

import (
	"testing"
	"time"
)

func TestRateLimiterCapsWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("alice") {
			t.Fatalf("attempt %d denied inside the limit", i+1)
		}
	}
	if rl.Allow("alice") {
		t.Error("attempt over the limit allowed")
	}
}

func TestRateLimiterIsPerUser(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	if !rl.Allow("alice") {
		t.Fatal("alice denied her first attempt")
	}
	if !rl.Allow("bob") {
		t.Error("bob throttled by alice's history")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)
	if !rl.Allow("alice") {
		t.Fatal("first attempt denied")
	}
	if rl.Allow("alice") {
		t.Fatal("second attempt allowed inside the window")
	}
	time.Sleep(15 * time.Millisecond)
	if !rl.Allow("alice") {
		t.Error("attempt denied after the window expired")
	}
}
