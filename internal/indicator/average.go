package indicator

import (
	"fmt"

	"spotengine/pkg/exception"
)

// EMA is a streaming exponential moving average seeded with its first input.
type EMA struct {
	n      int
	k      float64
	value  float64
	seeded bool
}

// NewEMA creates an EMA with smoothing factor 2/(n+1).
func NewEMA(n int) (*EMA, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: ema length %d", exception.ErrIndicatorWindow, n)
	}
	return &EMA{n: n, k: 2 / float64(n+1)}, nil
}

// Next folds x into the average and returns the new value.
func (e *EMA) Next(x float64) float64 {
	if !e.seeded {
		e.value = x
		e.seeded = true
		return e.value
	}
	e.value = e.k*x + (1-e.k)*e.value
	return e.value
}

// Value returns the latest average.
func (e *EMA) Value() float64 { return e.value }

// Len returns the configured lookback.
func (e *EMA) Len() int { return e.n }

// SMA is a streaming simple moving average. Until the window is full it
// averages the samples seen so far.
type SMA struct {
	buf   []float64
	idx   int
	count int
	sum   float64
}

// NewSMA creates an SMA over n samples.
func NewSMA(n int) (*SMA, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: sma length %d", exception.ErrIndicatorWindow, n)
	}
	return &SMA{buf: make([]float64, n)}, nil
}

// Next pushes x and returns the average of the current window.
func (s *SMA) Next(x float64) float64 {
	if s.count == len(s.buf) {
		s.sum -= s.buf[s.idx]
	} else {
		s.count++
	}
	s.buf[s.idx] = x
	s.sum += x
	s.idx++
	if s.idx == len(s.buf) {
		s.idx = 0
		// rebuild the running sum once per window to bound accumulated error
		s.sum = 0
		for _, v := range s.buf[:s.count] {
			s.sum += v
		}
	}
	return s.Value()
}

// Value returns the latest average, 0 before any sample.
func (s *SMA) Value() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// Len returns the configured lookback.
func (s *SMA) Len() int { return len(s.buf) }
