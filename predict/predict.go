// Package predict turns external next-symbol predictions into coding tables.
//
// A Predictor is any model that, given the symbols coded so far, returns one probability per symbol of the vocabulary,
// including the reserved ac.Escape and ac.EOF. Adaptive quantizes those probabilities to integers deterministically,
// so an encoder and a decoder consulting the same Predictor code against identical tables.
package predict

import (
	"math"
	"sort"

	"github.com/fumin/tokcodec/ac"
	"github.com/pkg/errors"
)

const (
	// DefaultPrecision is the default number of bits of a quantized table total.
	DefaultPrecision = 16

	// MaxPrecision keeps quantized totals within ac.MaxTotal.
	MaxPrecision = 30
)

// A Predictor returns the probability of each symbol following context.
// Predict must be a pure function of context: repeated calls with equal contexts return equal vectors.
type Predictor interface {
	Predict(context []ac.Symbol) ([]float64, error)
}

// PredictorFunc adapts a function to a Predictor.
type PredictorFunc func(context []ac.Symbol) ([]float64, error)

// Predict calls f(context).
func (f PredictorFunc) Predict(context []ac.Symbol) ([]float64, error) {
	return f(context)
}

// Adaptive is an ac.Source backed by a Predictor.
type Adaptive struct {
	p     Predictor
	n     int
	total uint64
}

// NewAdaptive returns a source over numSymbols symbols whose tables total 2^precision.
func NewAdaptive(p Predictor, numSymbols int, precision uint) (*Adaptive, error) {
	if precision == 0 || precision > MaxPrecision {
		return nil, errors.Wrapf(ac.ErrPrecisionOverflow, "precision %d not in [1, %d]", precision, MaxPrecision)
	}
	total := uint64(1) << precision
	if uint64(numSymbols) > total {
		return nil, errors.Wrapf(ac.ErrPrecisionOverflow, "%d symbols do not fit %d bits of precision", numSymbols, precision)
	}
	return &Adaptive{p: p, n: numSymbols, total: total}, nil
}

// Distribution queries the predictor and quantizes its answer.
func (a *Adaptive) Distribution(context []ac.Symbol) (*ac.Table, error) {
	probs, err := a.p.Predict(context)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	if len(probs) != a.n {
		return nil, errors.Wrapf(ac.ErrVocabularyMismatch, "predictor returned %d probabilities for %d symbols", len(probs), a.n)
	}
	weights, err := Quantize(probs, a.total)
	if err != nil {
		return nil, err
	}
	return ac.NewTable(weights)
}

// Quantize maps probabilities to positive integer weights summing exactly to total.
// Every symbol first receives a weight of 1, and the remaining total-len(probs) units are shared in proportion to probs
// by the largest remainder method. Equal remainders favour the lower index.
// probs need not be normalized, but must be finite, non-negative and not all zero.
func Quantize(probs []float64, total uint64) ([]uint64, error) {
	n := len(probs)
	if n == 0 {
		return nil, errors.Wrap(ac.ErrVocabularyMismatch, "empty probability vector")
	}
	if uint64(n) > total {
		return nil, errors.Wrapf(ac.ErrPrecisionOverflow, "%d symbols exceed total %d", n, total)
	}
	var sum float64
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return nil, errors.Wrapf(ac.ErrVocabularyMismatch, "probability %v at %d", p, i)
		}
		sum += p
	}
	if sum <= 0 || math.IsInf(sum, 0) {
		return nil, errors.Wrapf(ac.ErrVocabularyMismatch, "probabilities sum to %v", sum)
	}

	spare := total - uint64(n)
	weights := make([]uint64, n)
	frac := make([]float64, n)
	var assigned uint64
	for i, p := range probs {
		share := p / sum * float64(spare)
		f := math.Floor(share)
		if f > float64(spare) {
			f = float64(spare)
		}
		weights[i] = uint64(f)
		frac[i] = share - f
		assigned += weights[i]
	}
	// Rounding in share may hand out a few units too many.
	for assigned > spare {
		j := 0
		for i := range weights {
			if weights[i] > weights[j] {
				j = i
			}
		}
		weights[j]--
		assigned--
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return frac[order[a]] > frac[order[b]] })
	for k := uint64(0); assigned < spare; k++ {
		weights[order[k%uint64(n)]]++
		assigned++
	}

	for i := range weights {
		weights[i]++
	}
	return weights, nil
}
