package strategy

import (
	"fmt"
	"math"

	"spotengine/internal/candle"
	"spotengine/pkg/exception"
)

// Signal is the position a strategy wants for one ticker.
type Signal int

const (
	Flat Signal = 0
	Long Signal = 1
)

func (s Signal) String() string {
	switch s {
	case Flat:
		return "FLAT"
	case Long:
		return "LONG"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// Kind names one of the built-in strategy variants.
type Kind string

const (
	KindEMASMACrossover Kind = "ema_sma_crossover"
	KindEMASMAADX       Kind = "ema_sma_adx"
	KindADXThreshold    Kind = "adx_threshold"
	KindSMACrossover    Kind = "sma_crossover"
)

// DefaultADXThreshold is the trend strength above which ADX filters pass.
const DefaultADXThreshold = 25.0

// Spec selects a variant and its positional parameters.
type Spec struct {
	Kind   Kind      `yaml:"kind" json:"kind"`
	Params []float64 `yaml:"params" json:"params"`
}

// Strategy consumes closed candles and emits one signal per candle.
type Strategy interface {
	// Run folds c into the indicator state and returns the resulting signal.
	Run(c candle.Candle) Signal
	// Describe returns the static configuration summary.
	Describe() string
	// Supplemental returns diagnostic series. They never drive decisions.
	Supplemental() (labels []string, series [][]float64)
}

type builder func(params []float64) (Strategy, error)

var builders = map[Kind]builder{
	KindEMASMACrossover: newEMASMACrossover,
	KindEMASMAADX:       newEMASMAADX,
	KindADXThreshold:    newADXThreshold,
	KindSMACrossover:    newSMACrossover,
}

// Build constructs the variant named by spec.
func Build(spec Spec) (Strategy, error) {
	b, ok := builders[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", exception.ErrStrategyUnknownKind, spec.Kind)
	}
	return b(spec.Params)
}

// BuildAll constructs one strategy per spec, keeping spec order.
func BuildAll(specs []Spec) ([]Strategy, error) {
	out := make([]Strategy, 0, len(specs))
	for i, spec := range specs {
		s, err := Build(spec)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func intParam(kind Kind, params []float64, i int) (int, error) {
	if i >= len(params) {
		return 0, fmt.Errorf("%w: %s needs param #%d", exception.ErrStrategyParams, kind, i)
	}
	v := params[i]
	if v < 1 || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %s param #%d must be a positive integer, got %v", exception.ErrStrategyParams, kind, i, v)
	}
	return int(v), nil
}

func thresholdParam(kind Kind, params []float64, i int) (float64, error) {
	if i >= len(params) {
		return DefaultADXThreshold, nil
	}
	v := params[i]
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: %s threshold must be within [0,100], got %v", exception.ErrStrategyParams, kind, v)
	}
	return v, nil
}

func checkArity(kind Kind, params []float64, lo, hi int) error {
	if len(params) < lo || len(params) > hi {
		return fmt.Errorf("%w: %s takes %d..%d params, got %d", exception.ErrStrategyParams, kind, lo, hi, len(params))
	}
	return nil
}
