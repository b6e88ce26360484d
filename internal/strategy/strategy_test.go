package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotengine/internal/candle"
	"spotengine/pkg/exception"
)

func closeAt(i int, price float64) candle.Candle {
	return candle.Candle{
		Symbol:    "ETHUSDT",
		Open:      price,
		High:      price + 0.5,
		Low:       price - 0.5,
		Close:     price,
		StartTime: int64(i) * 60_000,
		EndTime:   int64(i)*60_000 + 59_999,
		Closed:    true,
	}
}

func TestBuildKnownKinds(t *testing.T) {
	specs := []Spec{
		{Kind: KindEMASMACrossover, Params: []float64{720, 1440}},
		{Kind: KindEMASMAADX, Params: []float64{10, 20, 5, 3}},
		{Kind: KindEMASMAADX, Params: []float64{10, 20, 5, 3, 30}},
		{Kind: KindADXThreshold, Params: []float64{5, 3}},
		{Kind: KindSMACrossover, Params: []float64{5, 20}},
	}
	strategies, err := BuildAll(specs)
	require.NoError(t, err)
	require.Len(t, strategies, len(specs))

	assert.Equal(t, "ema_sma_crossover[ema=720 sma=1440]", strategies[0].Describe())
	assert.Equal(t, "ema_sma_adx[ema=10 sma=20 adx=5x3 threshold=25]", strategies[1].Describe())
	assert.Equal(t, "ema_sma_adx[ema=10 sma=20 adx=5x3 threshold=30]", strategies[2].Describe())
	assert.Equal(t, "adx_threshold[adx=5x3 threshold=25]", strategies[3].Describe())
	assert.Equal(t, "sma_crossover[short=5 long=20]", strategies[4].Describe())
}

func TestBuildRejectsBadSpecs(t *testing.T) {
	_, err := Build(Spec{Kind: "martingale"})
	assert.ErrorIs(t, err, exception.ErrStrategyUnknownKind)

	cases := []Spec{
		{Kind: KindEMASMACrossover, Params: []float64{720}},
		{Kind: KindEMASMACrossover, Params: []float64{720, 0}},
		{Kind: KindEMASMACrossover, Params: []float64{7.5, 10}},
		{Kind: KindADXThreshold, Params: []float64{5, 3, 120}},
		{Kind: KindSMACrossover, Params: []float64{1, 2, 3}},
	}
	for _, spec := range cases {
		_, err := Build(spec)
		assert.ErrorIsf(t, err, exception.ErrStrategyParams, "spec %+v", spec)
	}

	_, err = BuildAll([]Spec{{Kind: KindSMACrossover, Params: []float64{2, 3}}, {Kind: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot 1")
}

func TestEMASMACrossoverSignals(t *testing.T) {
	s, err := Build(Spec{Kind: KindEMASMACrossover, Params: []float64{3, 6}})
	require.NoError(t, err)

	var sig Signal
	for i := 0; i < 20; i++ {
		sig = s.Run(closeAt(i, 100+float64(i)))
	}
	assert.Equal(t, Long, sig)

	for i := 20; i < 40; i++ {
		sig = s.Run(closeAt(i, 120-float64(i-20)*2))
	}
	assert.Equal(t, Flat, sig)
}

func TestSMACrossoverSignals(t *testing.T) {
	s, err := Build(Spec{Kind: KindSMACrossover, Params: []float64{1, 3}})
	require.NoError(t, err)

	// equal averages are not a crossover
	assert.Equal(t, Flat, s.Run(closeAt(0, 10)))
	assert.Equal(t, Long, s.Run(closeAt(1, 20)))
	for i := 2; i < 10; i++ {
		s.Run(closeAt(i, 20-float64(i)))
	}
	assert.Equal(t, Flat, s.Run(closeAt(10, 5)))
}

func TestADXStrategiesFollowTrendStrength(t *testing.T) {
	adxOnly, err := Build(Spec{Kind: KindADXThreshold, Params: []float64{2, 10}})
	require.NoError(t, err)
	filtered, err := Build(Spec{Kind: KindEMASMAADX, Params: []float64{3, 6, 2, 10}})
	require.NoError(t, err)

	var a, f Signal
	for i := 0; i < 60; i++ {
		c := closeAt(i, 100+float64(i))
		a = adxOnly.Run(c)
		f = filtered.Run(c)
	}
	assert.Equal(t, Long, a)
	assert.Equal(t, Long, f)

	// a three-bar oscillation balances +DM and -DM so trend strength fades
	flat := Signal(-1)
	for i := 60; i < 200; i++ {
		c := closeAt(i, 160+float64(i%3))
		a = adxOnly.Run(c)
		flat = filtered.Run(c)
	}
	assert.Equal(t, Flat, a)
	assert.Equal(t, Flat, flat)
}

func TestRunAllKeepsRegistrationOrder(t *testing.T) {
	up, err := Build(Spec{Kind: KindSMACrossover, Params: []float64{1, 2}})
	require.NoError(t, err)
	down, err := Build(Spec{Kind: KindSMACrossover, Params: []float64{2, 1}})
	require.NoError(t, err)

	RunAll(closeAt(0, 10), []Strategy{up, down})
	signals := RunAll(closeAt(1, 20), []Strategy{up, down})
	assert.Equal(t, []Signal{Long, Flat}, signals)
}

func TestCollectDiagnostics(t *testing.T) {
	s, err := Build(Spec{Kind: KindEMASMACrossover, Params: []float64{3, 3}})
	require.NoError(t, err)

	lines := CollectDiagnostics([]Strategy{s})
	require.Len(t, lines, 1)
	assert.Equal(t, "ema_sma_crossover[ema=3 sma=3]: ema-n/a sma-n/a", lines[0])

	s.Run(closeAt(0, 10))
	s.Run(closeAt(1, 20))
	lines = CollectDiagnostics([]Strategy{s})
	assert.Equal(t, "ema_sma_crossover[ema=3 sma=3]: ema-15.0000 sma-15.0000", lines[0])
}

func TestSupplementalSeriesBounded(t *testing.T) {
	s, err := Build(Spec{Kind: KindSMACrossover, Params: []float64{1, 2}})
	require.NoError(t, err)

	total := supplementalCapacity + 25
	for i := 0; i < total; i++ {
		s.Run(closeAt(i, float64(i)))
	}
	labels, series := s.Supplemental()
	assert.Equal(t, []string{"sma_short", "sma_long"}, labels)
	require.Len(t, series[0], supplementalCapacity)
	assert.Equal(t, float64(total-supplementalCapacity), series[0][0])
	assert.Equal(t, float64(total-1), series[0][len(series[0])-1])
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "FLAT", Flat.String())
	assert.Equal(t, "LONG", Long.String())
	assert.True(t, strings.HasPrefix(Signal(3).String(), "Signal("))
}
