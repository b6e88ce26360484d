package portfolio

import (
	"fmt"
	"math"

	"spotengine/internal/strategy"
	"spotengine/pkg/exception"
)

// Cash is the slot state meaning the slot holds the base currency.
const Cash = 0

// Kind tells an entry from an exit.
type Kind int

const (
	Entry Kind = iota + 1
	Exit
)

func (k Kind) String() string {
	switch k {
	case Entry:
		return "entry"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Transition is a permitted change of one slot's holding.
type Transition struct {
	Slot   int
	Ticker string
	Kind   Kind
	From   int
	To     int
}

// Book holds the per-slot position state. State k>0 means the slot holds
// tickers[k-1]; Cash means it holds the base currency.
//
// Book is not safe for concurrent use; the scheduler owns it.
type Book struct {
	tickers []string
	index   map[string]int
	split   []float64
	status  []int
}

// NewBook creates a book with every slot in cash.
func NewBook(tickers []string, split []float64) (*Book, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers", exception.ErrInvalidArgument)
	}
	if len(split) == 0 {
		return nil, fmt.Errorf("%w: no slots", exception.ErrInvalidSplit)
	}
	var total float64
	for i, w := range split {
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: slot %d weight %v", exception.ErrInvalidSplit, i, w)
		}
		total += w
	}
	if total > 1+1e-9 {
		return nil, fmt.Errorf("%w: weights sum to %v", exception.ErrInvalidSplit, total)
	}

	index := make(map[string]int, len(tickers))
	for i, t := range tickers {
		if _, dup := index[t]; dup {
			return nil, fmt.Errorf("%w: duplicate ticker %s", exception.ErrInvalidArgument, t)
		}
		index[t] = i + 1
	}
	return &Book{
		tickers: append([]string(nil), tickers...),
		index:   index,
		split:   append([]float64(nil), split...),
		status:  make([]int, len(split)),
	}, nil
}

// Slots returns the number of strategy slots.
func (b *Book) Slots() int { return len(b.status) }

// Status returns a copy of every slot's state.
func (b *Book) Status() []int {
	return append([]int(nil), b.status...)
}

// Split returns a copy of the configured weights.
func (b *Book) Split() []float64 {
	return append([]float64(nil), b.split...)
}

// StateOf returns the slot state that means "holding ticker", 0 if unknown.
func (b *Book) StateOf(ticker string) int {
	return b.index[ticker]
}

// Ticker returns the ticker held in state, empty for Cash.
func (b *Book) Ticker(state int) string {
	if state <= 0 || state > len(b.tickers) {
		return ""
	}
	return b.tickers[state-1]
}

// Decide returns the transition a signal on ticker permits for slot, if any.
// An entry needs LONG while in cash; an exit needs FLAT on the ticker the
// slot currently holds. Everything else holds.
func (b *Book) Decide(slot int, ticker string, sig strategy.Signal) (Transition, bool) {
	if slot < 0 || slot >= len(b.status) {
		return Transition{}, false
	}
	target := b.index[ticker]
	if target == Cash {
		return Transition{}, false
	}

	current := b.status[slot]
	switch {
	case sig == strategy.Long && current == Cash:
		return Transition{Slot: slot, Ticker: ticker, Kind: Entry, From: Cash, To: target}, true
	case sig == strategy.Flat && current == target:
		return Transition{Slot: slot, Ticker: ticker, Kind: Exit, From: target, To: Cash}, true
	}
	return Transition{}, false
}

// RelativeSplit normalizes the slot weight against every slot sharing its
// current state.
func (b *Book) RelativeSplit(slot int) float64 {
	state := b.status[slot]
	var pool float64
	for j, s := range b.status {
		if s == state {
			pool += b.split[j]
		}
	}
	if pool == 0 {
		return 0
	}
	return b.split[slot] / pool
}

// Apply commits a dispatched transition.
func (b *Book) Apply(tr Transition) {
	if tr.Slot < 0 || tr.Slot >= len(b.status) || b.status[tr.Slot] != tr.From {
		return
	}
	b.status[tr.Slot] = tr.To
}

// Restore replaces every slot state at once. Invalid input leaves the book
// untouched.
func (b *Book) Restore(status []int) error {
	if len(status) != len(b.status) {
		return fmt.Errorf("%w: got %d slots want %d", exception.ErrInvalidStatus, len(status), len(b.status))
	}
	for i, s := range status {
		if s < Cash || s > len(b.tickers) {
			return fmt.Errorf("%w: slot %d state %d", exception.ErrInvalidStatus, i, s)
		}
	}
	copy(b.status, status)
	return nil
}

// Release moves every slot holding ticker back to cash.
func (b *Book) Release(ticker string) {
	target := b.index[ticker]
	if target == Cash {
		return
	}
	for i, s := range b.status {
		if s == target {
			b.status[i] = Cash
		}
	}
}

// Reset moves every slot back to cash.
func (b *Book) Reset() {
	for i := range b.status {
		b.status[i] = Cash
	}
}
