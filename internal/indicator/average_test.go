package indicator

import (
	"math"
	"math/rand"
	"testing"

	talib "github.com/markcheno/go-talib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomWalk(seed int64, n int, start float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	price := start
	for i := range out {
		price += rng.NormFloat64()
		out[i] = price
	}
	return out
}

func TestEMASeededWithFirstInput(t *testing.T) {
	ema, err := NewEMA(3)
	require.NoError(t, err)

	assert.Equal(t, 10.0, ema.Next(10))
	// k = 2/(3+1) = 0.5
	assert.InDelta(t, 15.0, ema.Next(20), 1e-12)
	assert.InDelta(t, 12.5, ema.Next(10), 1e-12)
	assert.InDelta(t, 12.5, ema.Value(), 1e-12)
}

func TestEMAConvergesToReference(t *testing.T) {
	prices := randomWalk(7, 400, 100)
	ema, err := NewEMA(10)
	require.NoError(t, err)

	var got float64
	for _, p := range prices {
		got = ema.Next(p)
	}
	ref := talib.Ema(prices, 10)
	assert.InDelta(t, ref[len(ref)-1], got, 1e-9)
}

func TestSMAWarmUpAveragesAvailableSamples(t *testing.T) {
	sma, err := NewSMA(4)
	require.NoError(t, err)

	assert.Equal(t, 0.0, sma.Value())
	assert.Equal(t, 2.0, sma.Next(2))
	assert.Equal(t, 3.0, sma.Next(4))
	assert.Equal(t, 4.0, sma.Next(6))
	assert.Equal(t, 5.0, sma.Next(8))
	assert.Equal(t, 7.0, sma.Next(10))
}

func TestSMAMatchesReferenceAfterWarmUp(t *testing.T) {
	prices := randomWalk(11, 1000, 2500)
	const n = 20
	sma, err := NewSMA(n)
	require.NoError(t, err)
	ref := talib.Sma(prices, n)

	for i, p := range prices {
		got := sma.Next(p)
		if i < n-1 {
			continue
		}
		if math.Abs(got-ref[i]) > 1e-9 {
			t.Fatalf("sma mismatch at %d: got %v want %v", i, got, ref[i])
		}
	}
}

func TestAverageRejectsNonPositiveLength(t *testing.T) {
	_, err := NewEMA(0)
	assert.Error(t, err)
	_, err = NewSMA(-1)
	assert.Error(t, err)
}
