package httputil

import "sync"

// Limiter caps concurrent in-flight operations per client key and globally.
type Limiter struct {
	mu       sync.Mutex
	inFlight map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewLimiter creates a Limiter allowing maxPerIP operations per key and
// maxTotal overall. Non-positive values fall back to 1 and 100.
func NewLimiter(maxPerIP, maxTotal int) *Limiter {
	if maxPerIP <= 0 {
		maxPerIP = 1
	}
	if maxTotal <= 0 {
		maxTotal = 100
	}
	return &Limiter{
		inFlight: make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// Acquire attempts to register a new operation for ip.
// Returns false if the per-IP or global limit has been reached.
func (l *Limiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return false
	}
	if l.inFlight[ip] >= l.maxPerIP {
		return false
	}

	l.inFlight[ip]++
	l.total++
	return true
}

// Release ends one operation for ip.
func (l *Limiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight[ip] <= 0 {
		return
	}
	l.inFlight[ip]--
	l.total--
	if l.inFlight[ip] == 0 {
		delete(l.inFlight, ip)
	}
}

// InFlight returns the number of active operations for ip.
func (l *Limiter) InFlight(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[ip]
}
