package tokcodec

import (
	"math"

	"github.com/fumin/tokcodec/ac"
	"github.com/fumin/tokcodec/escape"
)

// An Analysis describes how well the vocabulary of a Codec covers a text, without coding it.
type Analysis struct {
	Tokens        int     `json:"tokens"`
	Known         int     `json:"known"`
	Unknown       int     `json:"unknown"`
	UniqueTokens  int     `json:"unique_tokens"`
	Coverage      float64 `json:"coverage"`
	OriginalBits  int64   `json:"original_bits"`
	EstimatedBits float64 `json:"estimated_bits"`
	BitsPerToken  float64 `json:"bits_per_token"`
}

// Analyze tokenizes text and estimates its static coding cost.
// Known tokens cost -log2 of their vocabulary probability, or their codeword length for the prefix backend.
// Unknown tokens also pay for their escaped bytes.
func (c *Codec) Analyze(text string) (Analysis, error) {
	tokens, err := c.tok.Tokenize(text)
	if err != nil {
		return Analysis{}, err
	}

	total := float64(c.v.Total())
	cost := func(s ac.Symbol) float64 {
		if c.code != nil {
			return float64(c.code.Length(s))
		}
		return math.Log2(total / float64(c.v.Weight(s)))
	}

	a := Analysis{Tokens: len(tokens), OriginalBits: 8 * int64(len(text))}
	unique := make(map[string]struct{})
	for _, tok := range tokens {
		unique[tok] = struct{}{}
		if s, ok := c.v.Lookup(tok); ok {
			a.Known++
			a.EstimatedBits += cost(s)
			continue
		}
		a.Unknown++
		a.EstimatedBits += cost(ac.Escape) + float64(escape.Cost(tok))
	}
	if c.code == nil && len(tokens) > 0 {
		a.EstimatedBits += cost(ac.EOF)
	}
	a.UniqueTokens = len(unique)
	if a.Tokens > 0 {
		a.Coverage = float64(a.Known) / float64(a.Tokens)
		a.BitsPerToken = a.EstimatedBits / float64(a.Tokens)
	}
	return a, nil
}
