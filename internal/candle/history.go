package candle

import "sort"

// History is a bounded FIFO of closed candles for one ticker.
type History struct {
	limit   int
	candles []Candle
	warmed  bool
}

// NewHistory creates an empty history holding at most limit candles.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit, candles: make([]Candle, 0, limit+1)}
}

// Append stores c if it is a closed bar newer than the last one, evicting the
// oldest bar past the limit. It reports whether strategies should evaluate:
// true once the history has first reached its limit and on every accepted
// close afterwards.
func (h *History) Append(c Candle) bool {
	return h.push(c) && h.warmed
}

// Seed merges a batch of historical candles into the history by start time
// and returns how many new bars were kept. Bars already stored win over a
// batch bar with the same start; the newest limit bars survive.
func (h *History) Seed(candles []Candle) int {
	known := make(map[int64]struct{}, len(h.candles))
	for _, c := range h.candles {
		known[c.StartTime] = struct{}{}
	}

	merged := append(make([]Candle, 0, len(h.candles)+len(candles)), h.candles...)
	added := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if !c.Closed {
			continue
		}
		if _, ok := known[c.StartTime]; ok {
			continue
		}
		known[c.StartTime] = struct{}{}
		added[c.StartTime] = struct{}{}
		merged = append(merged, c)
	}
	if len(added) == 0 {
		return 0
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].StartTime < merged[j].StartTime })
	if over := len(merged) - h.limit; over > 0 {
		merged = merged[over:]
	}
	h.candles = append(h.candles[:0], merged...)
	if len(h.candles) == h.limit {
		h.warmed = true
	}

	kept := 0
	for _, c := range h.candles {
		if _, ok := added[c.StartTime]; ok {
			kept++
		}
	}
	return kept
}

func (h *History) push(c Candle) bool {
	if !c.Closed {
		return false
	}
	if n := len(h.candles); n > 0 && c.StartTime <= h.candles[n-1].StartTime {
		return false
	}

	h.candles = append(h.candles, c)
	if over := len(h.candles) - h.limit; over > 0 {
		copy(h.candles, h.candles[over:])
		h.candles = h.candles[:h.limit]
	}
	if len(h.candles) == h.limit {
		h.warmed = true
	}
	return true
}

// Warmed reports whether the history has reached its limit at least once.
func (h *History) Warmed() bool { return h.warmed }

// Len returns the number of stored candles.
func (h *History) Len() int { return len(h.candles) }

// Limit returns the configured capacity.
func (h *History) Limit() int { return h.limit }

// Last returns the newest candle, zero value if empty.
func (h *History) Last() Candle {
	if len(h.candles) == 0 {
		return Candle{}
	}
	return h.candles[len(h.candles)-1]
}

// Candles returns a copy of the stored bars, oldest first.
func (h *History) Candles() []Candle {
	out := make([]Candle, len(h.candles))
	copy(out, h.candles)
	return out
}
