package indicator

import (
	"fmt"

	"spotengine/pkg/exception"
)

// Extremum tracks the maximum (or minimum) over a sliding window that skips
// the most recent nearN samples.
//
// With lag 0 being the sample just inserted, the window covers lags
// nearN..farN-1. Next reports 0 while the window holds no sample yet.
type Extremum struct {
	buf    []float64
	nearN  int
	seen   int
	best   int
	better func(a, b float64) bool
}

// NewMaxInRange creates a windowed maximum tracker.
func NewMaxInRange(farN, nearN int) (*Extremum, error) {
	return newExtremum(farN, nearN, func(a, b float64) bool { return a > b })
}

// NewMinInRange creates a windowed minimum tracker.
func NewMinInRange(farN, nearN int) (*Extremum, error) {
	return newExtremum(farN, nearN, func(a, b float64) bool { return a < b })
}

func newExtremum(farN, nearN int, better func(a, b float64) bool) (*Extremum, error) {
	if nearN < 0 || farN <= nearN {
		return nil, fmt.Errorf("%w: far=%d near=%d", exception.ErrIndicatorWindow, farN, nearN)
	}
	return &Extremum{
		buf:    make([]float64, farN),
		nearN:  nearN,
		best:   -1,
		better: better,
	}, nil
}

// Next inserts x and returns the extreme of the lagged window.
func (e *Extremum) Next(x float64) float64 {
	now := e.seen
	e.buf[now%len(e.buf)] = x
	e.seen++

	hi := now - e.nearN
	if hi < 0 {
		return 0
	}
	lo := max(now-len(e.buf)+1, 0)

	// sample hi is the only one entering the window on this step
	if e.best < lo {
		e.rescan(lo, hi)
	} else if !e.better(e.at(e.best), e.at(hi)) {
		e.best = hi
	}
	return e.at(e.best)
}

// Ready reports whether the lagged window holds at least one sample.
func (e *Extremum) Ready() bool {
	return e.seen > e.nearN
}

func (e *Extremum) rescan(lo, hi int) {
	e.best = lo
	for i := lo + 1; i <= hi; i++ {
		if !e.better(e.at(e.best), e.at(i)) {
			e.best = i
		}
	}
}

func (e *Extremum) at(abs int) float64 {
	return e.buf[abs%len(e.buf)]
}
