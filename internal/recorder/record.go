package recorder

import (
	"time"

	"github.com/bytedance/sonic"
)

const (
	FieldTimestamp = "timestamp"
	FieldKind      = "kind"
)

// Record kinds written by the engine.
const (
	KindSignal     = "signal"
	KindTransition = "transition"
	KindOrder      = "order"
	KindSkip       = "skip"
	KindBalances   = "balances"
	KindCommand    = "command"
	KindStatus     = "status"
)

// Record is one JSON line. Fields are flattened next to kind and timestamp.
type Record struct {
	Kind   string
	Time   time.Time
	Fields map[string]any
}

func (r Record) encode() ([]byte, error) {
	line := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		line[k] = v
	}
	line[FieldKind] = r.Kind
	line[FieldTimestamp] = r.Time.UTC().Format(time.RFC3339Nano)

	data, err := sonic.Marshal(line)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
