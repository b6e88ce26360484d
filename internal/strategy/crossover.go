package strategy

import (
	"fmt"

	"spotengine/internal/candle"
	"spotengine/internal/indicator"
)

// emaSMACrossover is long while the EMA of closes sits above the SMA.
type emaSMACrossover struct {
	ema       *indicator.EMA
	sma       *indicator.SMA
	emaSeries *series
	smaSeries *series
}

func newEMASMACrossover(params []float64) (Strategy, error) {
	if err := checkArity(KindEMASMACrossover, params, 2, 2); err != nil {
		return nil, err
	}
	emaN, err := intParam(KindEMASMACrossover, params, 0)
	if err != nil {
		return nil, err
	}
	smaN, err := intParam(KindEMASMACrossover, params, 1)
	if err != nil {
		return nil, err
	}
	ema, err := indicator.NewEMA(emaN)
	if err != nil {
		return nil, err
	}
	sma, err := indicator.NewSMA(smaN)
	if err != nil {
		return nil, err
	}
	return &emaSMACrossover{ema: ema, sma: sma, emaSeries: newSeries(), smaSeries: newSeries()}, nil
}

func (s *emaSMACrossover) Run(c candle.Candle) Signal {
	ema := s.ema.Next(c.Close)
	sma := s.sma.Next(c.Close)
	s.emaSeries.push(ema)
	s.smaSeries.push(sma)
	if ema > sma {
		return Long
	}
	return Flat
}

func (s *emaSMACrossover) Describe() string {
	return fmt.Sprintf("%s[ema=%d sma=%d]", KindEMASMACrossover, s.ema.Len(), s.sma.Len())
}

func (s *emaSMACrossover) Supplemental() ([]string, [][]float64) {
	return []string{"ema", "sma"}, snapshots(s.emaSeries, s.smaSeries)
}

// smaCrossover is long while the short SMA sits above the long SMA.
type smaCrossover struct {
	short       *indicator.SMA
	long        *indicator.SMA
	shortSeries *series
	longSeries  *series
}

func newSMACrossover(params []float64) (Strategy, error) {
	if err := checkArity(KindSMACrossover, params, 2, 2); err != nil {
		return nil, err
	}
	shortN, err := intParam(KindSMACrossover, params, 0)
	if err != nil {
		return nil, err
	}
	longN, err := intParam(KindSMACrossover, params, 1)
	if err != nil {
		return nil, err
	}
	short, err := indicator.NewSMA(shortN)
	if err != nil {
		return nil, err
	}
	long, err := indicator.NewSMA(longN)
	if err != nil {
		return nil, err
	}
	return &smaCrossover{short: short, long: long, shortSeries: newSeries(), longSeries: newSeries()}, nil
}

func (s *smaCrossover) Run(c candle.Candle) Signal {
	short := s.short.Next(c.Close)
	long := s.long.Next(c.Close)
	s.shortSeries.push(short)
	s.longSeries.push(long)
	if short > long {
		return Long
	}
	return Flat
}

func (s *smaCrossover) Describe() string {
	return fmt.Sprintf("%s[short=%d long=%d]", KindSMACrossover, s.short.Len(), s.long.Len())
}

func (s *smaCrossover) Supplemental() ([]string, [][]float64) {
	return []string{"sma_short", "sma_long"}, snapshots(s.shortSeries, s.longSeries)
}
