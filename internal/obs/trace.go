package obs

import (
	"strconv"
	"sync/atomic"
	"time"
)

// DecisionIDs hands out monotonically increasing ids used to correlate the
// log records of one evaluation: signal, transition, order and outcome.
type DecisionIDs struct {
	prefix string
	next   uint64
}

// NewDecisionIDs seeds the sequence from the wall clock so ids stay unique
// across restarts.
func NewDecisionIDs(prefix string) *DecisionIDs {
	return &DecisionIDs{prefix: prefix, next: uint64(time.Now().UTC().Unix()) << 20}
}

// Next returns the next id.
func (g *DecisionIDs) Next() string {
	if g == nil {
		return ""
	}
	return g.prefix + strconv.FormatUint(atomic.AddUint64(&g.next, 1), 36)
}
