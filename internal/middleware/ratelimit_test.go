package middleware

import (
	"testing"
	"time"
)

func TestSlidingWindowLimit(t *testing.T) {
	sw := NewSlidingWindow(time.Minute, 3)

	for i := 0; i < 3; i++ {
		if !sw.Allow("user-1") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if sw.Allow("user-1") {
		t.Error("call above the limit should be denied")
	}
}

func TestSlidingWindowKeysIsolated(t *testing.T) {
	sw := NewSlidingWindow(time.Minute, 1)

	if !sw.Allow("user-1") {
		t.Fatal("first call for user-1 should be allowed")
	}
	if !sw.Allow("user-2") {
		t.Error("user-2 must not be affected by user-1's hits")
	}
	if sw.Allow("user-1") {
		t.Error("second call for user-1 should be denied")
	}
}

func TestSlidingWindowExpiry(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sw := NewSlidingWindow(time.Minute, 2)
	sw.now = func() time.Time { return current }

	if !sw.Allow("user-1") || !sw.Allow("user-1") {
		t.Fatal("calls within the limit should be allowed")
	}
	if sw.Allow("user-1") {
		t.Fatal("third call in the window should be denied")
	}

	// Just inside the window the hits still count.
	current = current.Add(59 * time.Second)
	if sw.Allow("user-1") {
		t.Error("hits still inside the window should keep denying")
	}

	// Once the window slides past the first hits the key frees up.
	current = current.Add(2 * time.Second)
	if !sw.Allow("user-1") {
		t.Error("expired hits should no longer count against the limit")
	}
}

func TestSlidingWindowDeniedCallRecordsNothing(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sw := NewSlidingWindow(time.Minute, 1)
	sw.now = func() time.Time { return current }

	if !sw.Allow("user-1") {
		t.Fatal("first call should be allowed")
	}

	// Hammering while denied must not extend the lockout.
	for i := 0; i < 5; i++ {
		current = current.Add(10 * time.Second)
		sw.Allow("user-1")
	}

	current = current.Add(11 * time.Second) // 61s after the only recorded hit
	if !sw.Allow("user-1") {
		t.Error("denied calls must not be recorded as hits")
	}
}

func TestSlidingWindowReset(t *testing.T) {
	sw := NewSlidingWindow(time.Minute, 1)

	if !sw.Allow("user-1") {
		t.Fatal("first call should be allowed")
	}
	if sw.Allow("user-1") {
		t.Fatal("second call should be denied")
	}

	sw.Reset()
	if !sw.Allow("user-1") {
		t.Error("Reset should clear recorded hits")
	}
}
