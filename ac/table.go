package ac

import (
	"sort"

	"github.com/pkg/errors"
)

// A Table is a cumulative frequency table.
// Symbol s owns the half-open interval [cum[s], cum[s+1]) of [0, Total()).
// A Table is never modified after construction and may be shared between goroutines.
type Table struct {
	cum []uint64
}

// NewTable builds a Table from per symbol weights, indexed by Symbol.
// Every weight must be positive and their sum at most MaxTotal.
func NewTable(weights []uint64) (*Table, error) {
	if len(weights) == 0 {
		return nil, errors.Wrap(ErrPrecisionOverflow, "empty weight table")
	}
	cum := make([]uint64, len(weights)+1)
	for i, w := range weights {
		if w == 0 {
			return nil, errors.Wrapf(ErrPrecisionOverflow, "symbol %d has zero weight", i)
		}
		cum[i+1] = cum[i] + w
		if cum[i+1] > MaxTotal {
			return nil, errors.Wrapf(ErrPrecisionOverflow, "total weight exceeds %d", MaxTotal)
		}
	}
	return &Table{cum: cum}, nil
}

// Uniform returns a table of n equally weighted symbols.
func Uniform(n int) *Table {
	cum := make([]uint64, n+1)
	for i := 1; i <= n; i++ {
		cum[i] = uint64(i)
	}
	return &Table{cum: cum}
}

// Len returns the number of symbols in t.
func (t *Table) Len() int {
	return len(t.cum) - 1
}

// Total returns the sum of all weights.
func (t *Table) Total() uint64 {
	return t.cum[len(t.cum)-1]
}

// Interval returns the cumulative bounds [lo, hi) of s.
// ok is false if s is not in the table.
func (t *Table) Interval(s Symbol) (lo, hi uint64, ok bool) {
	if int(s) >= t.Len() {
		return 0, 0, false
	}
	return t.cum[s], t.cum[s+1], true
}

// Weight returns hi-lo of s, or 0 if s is not in the table.
func (t *Table) Weight(s Symbol) uint64 {
	lo, hi, ok := t.Interval(s)
	if !ok {
		return 0
	}
	return hi - lo
}

// Find returns the symbol whose interval contains target.
// ok is false if target is not below Total().
func (t *Table) Find(target uint64) (Symbol, bool) {
	if target >= t.Total() {
		return 0, false
	}
	// The first boundary strictly above target closes the interval holding it.
	i := sort.Search(len(t.cum)-1, func(i int) bool { return t.cum[i+1] > target })
	return Symbol(i), true
}
