package chunk

import "fmt"

const (
	digitMin = 33
	digitMax = 125

	// MaxFragments is the number of distinct position tags a counter can produce.
	MaxFragments = (digitMax - digitMin + 1) * (digitMax - digitMin + 1)
)

// Counter is a two-digit base-93 position counter over the printable
// characters '!' (33) to '}' (125).
type Counter struct {
	hi, lo byte
}

// NewCounter returns a counter at its start value (33, 33).
func NewCounter() Counter {
	return Counter{hi: digitMin, lo: digitMin}
}

// CounterAt restores a counter from its two digits.
func CounterAt(hi, lo byte) (Counter, error) {
	if hi < digitMin || hi > digitMax || lo < digitMin || lo > digitMax {
		return Counter{}, fmt.Errorf("counter digits out of range: (%d, %d)", hi, lo)
	}
	return Counter{hi: hi, lo: lo}, nil
}

// Current returns the two digits.
func (c Counter) Current() (hi, lo byte) {
	return c.hi, c.lo
}

// String returns the 2-character position tag.
func (c Counter) String() string {
	return string([]byte{c.hi, c.lo})
}

// Next advances the counter. It returns false, leaving the counter
// unchanged, once (125, 125) is reached.
func (c *Counter) Next() bool {
	if c.hi == digitMax && c.lo == digitMax {
		return false
	}
	c.lo++
	if c.lo > digitMax {
		c.lo = digitMin
		c.hi++
	}
	return true
}

// NextWrap advances the counter and wraps to the start value after (125, 125).
func (c *Counter) NextWrap() {
	if !c.Next() {
		*c = NewCounter()
	}
}
