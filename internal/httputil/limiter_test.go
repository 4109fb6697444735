package httputil

import "testing"

func TestLimiterPerIP(t *testing.T) {
	l := NewLimiter(1, 10)

	if !l.Acquire("1.2.3.4") {
		t.Fatal("first acquire should succeed")
	}
	if l.Acquire("1.2.3.4") {
		t.Error("second acquire for same IP should fail")
	}
	if !l.Acquire("5.6.7.8") {
		t.Error("acquire for a different IP should succeed")
	}

	l.Release("1.2.3.4")
	if l.InFlight("1.2.3.4") != 0 {
		t.Errorf("in flight = %d, want 0", l.InFlight("1.2.3.4"))
	}
	if !l.Acquire("1.2.3.4") {
		t.Error("acquire after release should succeed")
	}
}

func TestLimiterGlobal(t *testing.T) {
	l := NewLimiter(5, 2)
	if !l.Acquire("a") || !l.Acquire("b") {
		t.Fatal("acquires under the global cap should succeed")
	}
	if l.Acquire("c") {
		t.Error("acquire over the global cap should fail")
	}
}

func TestLimiterReleaseUnknown(t *testing.T) {
	l := NewLimiter(1, 1)
	l.Release("never-acquired")
	if !l.Acquire("x") {
		t.Error("stray release must not corrupt the counters")
	}
	if l.Acquire("y") {
		t.Error("global cap of 1 should still hold")
	}
}
