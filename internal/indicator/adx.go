package indicator

import (
	"fmt"
	"math"

	"spotengine/pkg/exception"
)

// ADX is the average directional index computed from two lagged windows.
//
// The previous window spans lags p..2p-1 and the current one lags 0..p-1.
// Their high and low deltas give +DM and -DM, which are smoothed into +DI and
// -DI by EMAs of length p*periods. ADX is 100 times the EMA of DX.
type ADX struct {
	prevMax, prevMin *Extremum
	currMax, currMin *Extremum
	pdi, ndi, dx     *EMA
	value            float64
}

// NewADX creates an ADX with the given period length and period count.
func NewADX(periodLength, numPeriods int) (*ADX, error) {
	if periodLength < 1 || numPeriods < 1 {
		return nil, fmt.Errorf("%w: adx period=%d periods=%d", exception.ErrIndicatorWindow, periodLength, numPeriods)
	}

	var (
		a   ADX
		err error
	)
	if a.prevMax, err = NewMaxInRange(2*periodLength, periodLength); err != nil {
		return nil, err
	}
	if a.prevMin, err = NewMinInRange(2*periodLength, periodLength); err != nil {
		return nil, err
	}
	if a.currMax, err = NewMaxInRange(periodLength, 0); err != nil {
		return nil, err
	}
	if a.currMin, err = NewMinInRange(periodLength, 0); err != nil {
		return nil, err
	}
	smoothing := periodLength * numPeriods
	if a.pdi, err = NewEMA(smoothing); err != nil {
		return nil, err
	}
	if a.ndi, err = NewEMA(smoothing); err != nil {
		return nil, err
	}
	if a.dx, err = NewEMA(smoothing); err != nil {
		return nil, err
	}
	return &a, nil
}

// Next feeds one bar and returns the ADX in [0, 100]. It stays 0 until the
// previous window has data.
func (a *ADX) Next(high, low float64) float64 {
	prevHigh := a.prevMax.Next(high)
	prevLow := a.prevMin.Next(low)
	currHigh := a.currMax.Next(high)
	currLow := a.currMin.Next(low)
	if !a.prevMax.Ready() {
		return 0
	}

	up := currHigh - prevHigh
	down := prevLow - currLow
	var pdm, ndm float64
	if up > down && up > 0 {
		pdm = up
	}
	if down > up && down > 0 {
		ndm = down
	}

	pdi := 100 * a.pdi.Next(pdm)
	ndi := 100 * a.ndi.Next(ndm)

	var dx float64
	if sum := pdi + ndi; sum > 0 {
		dx = math.Abs(pdi-ndi) / sum
	}
	a.value = 100 * a.dx.Next(dx)
	return a.value
}

// Value returns the latest ADX.
func (a *ADX) Value() float64 { return a.value }

// DI returns the latest +DI and -DI.
func (a *ADX) DI() (float64, float64) {
	return 100 * a.pdi.Value(), 100 * a.ndi.Value()
}
