package engine

import "sync/atomic"

// SeqClock hands out run sequence numbers. Next must never return the same
// value twice for one clock; Current reports the last value handed out.
type SeqClock interface {
	Next() int64
	Current() int64
}

// Clock stamps runs with a logical seq. Recorded runs are ordered by seq
// alone, so two runs in the same nanosecond still have a total order.
// Safe for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt returns a clock whose first Next is last+1. Pass the store's
// LastSeq so new runs continue the recorded sequence.
func NewClockAt(last int64) *Clock {
	c := new(Clock)
	c.last.Store(last)
	return c
}

func (c *Clock) Next() int64    { return c.last.Add(1) }
func (c *Clock) Current() int64 { return c.last.Load() }
