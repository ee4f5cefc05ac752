package metrics

import (
	"strconv"
	"sync"
)

// LCPCache holds the latest largest-contentful-paint candidate reported by
// the page observer. The zero value is empty and ready to use. A nil cache
// reads as empty.
type LCPCache struct {
	mu      sync.RWMutex
	seconds float64
	set     bool
}

// Observe records a candidate start time in milliseconds. The value is kept
// rounded to hundredths of a second, which is also the value that is tiered.
// Rounding works on the exact binary value, so 995ms is 0.99s.
func (c *LCPCache) Observe(startTimeMs float64) float64 {
	v := roundHundredths(startTimeMs / 1000)
	c.mu.Lock()
	c.seconds = v
	c.set = true
	c.mu.Unlock()
	return v
}

// Seconds returns the cached value and whether one has been observed.
func (c *LCPCache) Seconds() (float64, bool) {
	if c == nil {
		return 0, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seconds, c.set
}

func roundHundredths(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return r
}
