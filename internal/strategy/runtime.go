package strategy

import (
	"strconv"
	"strings"

	"spotengine/internal/candle"
)

// RunAll feeds c to every strategy and returns the signals in registration
// order. Index i lines up with portfolio slot i.
func RunAll(c candle.Candle, strategies []Strategy) []Signal {
	signals := make([]Signal, len(strategies))
	for i, s := range strategies {
		signals[i] = s.Run(c)
	}
	return signals
}

// CollectDiagnostics renders one line per strategy pairing each supplemental
// label with the latest value of its series.
func CollectDiagnostics(strategies []Strategy) []string {
	lines := make([]string, 0, len(strategies))
	for _, s := range strategies {
		labels, series := s.Supplemental()

		var b strings.Builder
		b.WriteString(s.Describe())
		b.WriteString(":")
		for i, label := range labels {
			b.WriteString(" ")
			b.WriteString(label)
			b.WriteString("-")
			if i < len(series) && len(series[i]) > 0 {
				b.WriteString(strconv.FormatFloat(series[i][len(series[i])-1], 'f', 4, 64))
			} else {
				b.WriteString("n/a")
			}
		}
		lines = append(lines, b.String())
	}
	return lines
}
