package strategy

// supplementalCapacity bounds each diagnostic series to one day of minute bars.
const supplementalCapacity = 1440

// series is a fixed-capacity ring of diagnostic values.
type series struct {
	values []float64
	start  int
	full   bool
}

func newSeries() *series {
	return &series{values: make([]float64, 0, supplementalCapacity)}
}

func (s *series) push(v float64) {
	if !s.full {
		s.values = append(s.values, v)
		s.full = len(s.values) == cap(s.values)
		return
	}
	s.values[s.start] = v
	s.start = (s.start + 1) % len(s.values)
}

// snapshot returns the values oldest first.
func (s *series) snapshot() []float64 {
	out := make([]float64, 0, len(s.values))
	out = append(out, s.values[s.start:]...)
	return append(out, s.values[:s.start]...)
}

func snapshots(all ...*series) [][]float64 {
	out := make([][]float64, len(all))
	for i, s := range all {
		out[i] = s.snapshot()
	}
	return out
}
