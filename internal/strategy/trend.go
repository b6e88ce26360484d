package strategy

import (
	"fmt"

	"spotengine/internal/candle"
	"spotengine/internal/indicator"
)

// emaSMAADX is the EMA/SMA crossover gated by ADX trend strength.
type emaSMAADX struct {
	ema        *indicator.EMA
	sma        *indicator.SMA
	adx        *indicator.ADX
	adxPeriod  int
	adxPeriods int
	threshold  float64

	emaSeries *series
	smaSeries *series
	adxSeries *series
}

func newEMASMAADX(params []float64) (Strategy, error) {
	if err := checkArity(KindEMASMAADX, params, 4, 5); err != nil {
		return nil, err
	}
	ints := make([]int, 4)
	for i := range ints {
		v, err := intParam(KindEMASMAADX, params, i)
		if err != nil {
			return nil, err
		}
		ints[i] = v
	}
	threshold, err := thresholdParam(KindEMASMAADX, params, 4)
	if err != nil {
		return nil, err
	}

	s := &emaSMAADX{
		adxPeriod:  ints[2],
		adxPeriods: ints[3],
		threshold:  threshold,
		emaSeries:  newSeries(),
		smaSeries:  newSeries(),
		adxSeries:  newSeries(),
	}
	if s.ema, err = indicator.NewEMA(ints[0]); err != nil {
		return nil, err
	}
	if s.sma, err = indicator.NewSMA(ints[1]); err != nil {
		return nil, err
	}
	if s.adx, err = indicator.NewADX(ints[2], ints[3]); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *emaSMAADX) Run(c candle.Candle) Signal {
	ema := s.ema.Next(c.Close)
	sma := s.sma.Next(c.Close)
	adx := s.adx.Next(c.High, c.Low)
	s.emaSeries.push(ema)
	s.smaSeries.push(sma)
	s.adxSeries.push(adx)
	if ema > sma && adx > s.threshold {
		return Long
	}
	return Flat
}

func (s *emaSMAADX) Describe() string {
	return fmt.Sprintf("%s[ema=%d sma=%d adx=%dx%d threshold=%g]",
		KindEMASMAADX, s.ema.Len(), s.sma.Len(), s.adxPeriod, s.adxPeriods, s.threshold)
}

func (s *emaSMAADX) Supplemental() ([]string, [][]float64) {
	return []string{"ema", "sma", "adx"}, snapshots(s.emaSeries, s.smaSeries, s.adxSeries)
}

// adxThreshold is long while ADX trend strength exceeds the threshold.
type adxThreshold struct {
	adx        *indicator.ADX
	adxPeriod  int
	adxPeriods int
	threshold  float64

	adxSeries *series
	pdiSeries *series
	ndiSeries *series
}

func newADXThreshold(params []float64) (Strategy, error) {
	if err := checkArity(KindADXThreshold, params, 2, 3); err != nil {
		return nil, err
	}
	period, err := intParam(KindADXThreshold, params, 0)
	if err != nil {
		return nil, err
	}
	periods, err := intParam(KindADXThreshold, params, 1)
	if err != nil {
		return nil, err
	}
	threshold, err := thresholdParam(KindADXThreshold, params, 2)
	if err != nil {
		return nil, err
	}
	adx, err := indicator.NewADX(period, periods)
	if err != nil {
		return nil, err
	}
	return &adxThreshold{
		adx:        adx,
		adxPeriod:  period,
		adxPeriods: periods,
		threshold:  threshold,
		adxSeries:  newSeries(),
		pdiSeries:  newSeries(),
		ndiSeries:  newSeries(),
	}, nil
}

func (s *adxThreshold) Run(c candle.Candle) Signal {
	adx := s.adx.Next(c.High, c.Low)
	pdi, ndi := s.adx.DI()
	s.adxSeries.push(adx)
	s.pdiSeries.push(pdi)
	s.ndiSeries.push(ndi)
	if adx > s.threshold {
		return Long
	}
	return Flat
}

func (s *adxThreshold) Describe() string {
	return fmt.Sprintf("%s[adx=%dx%d threshold=%g]", KindADXThreshold, s.adxPeriod, s.adxPeriods, s.threshold)
}

func (s *adxThreshold) Supplemental() ([]string, [][]float64) {
	return []string{"adx", "+di", "-di"}, snapshots(s.adxSeries, s.pdiSeries, s.ndiSeries)
}
