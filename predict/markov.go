package predict

import (
	"github.com/fumin/tokcodec/ac"
	"github.com/fumin/tokcodec/vocab"
)

// Default mixing weights of a Markov predictor.
const (
	DefaultAlpha = 0.1
	DefaultBeta  = 0.5
)

// Markov is an order-1 predictor that learns from the message being coded.
// The probability of s is proportional to
//
//	prior(s) + alpha*count(s) + beta*count(last, s)
//
// where prior is the vocabulary distribution, count(s) the occurrences of s in the context,
// and count(last, s) the occurrences of s right after the last symbol of the context.
type Markov struct {
	prior []float64
	alpha float64
	beta  float64
}

// NewMarkov returns a Markov predictor over the symbols of v.
func NewMarkov(v *vocab.Vocabulary, alpha, beta float64) *Markov {
	total := float64(v.Total())
	prior := make([]float64, v.NumSymbols())
	for s := range prior {
		prior[s] = float64(v.Weight(ac.Symbol(s))) / total
	}
	return &Markov{prior: prior, alpha: alpha, beta: beta}
}

// Predict implements Predictor.
func (m *Markov) Predict(context []ac.Symbol) ([]float64, error) {
	probs := append([]float64(nil), m.prior...)
	if len(context) == 0 {
		return probs, nil
	}
	last := context[len(context)-1]
	for i, s := range context {
		if int(s) >= len(probs) {
			continue
		}
		probs[s] += m.alpha
		if i > 0 && context[i-1] == last {
			probs[s] += m.beta
		}
	}
	return probs, nil
}
