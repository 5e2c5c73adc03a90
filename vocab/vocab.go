// Package vocab maps tokens to dense symbols and owns the weights of the static model.
//
// A Vocabulary is immutable once trained and is safe to share between any number of encoders and decoders.
// Symbol assignment is a function of the weights alone: tokens are numbered from ac.FirstToken by descending weight,
// ties broken by ascending token string, so two vocabularies trained on the same frequency data agree on every ID.
package vocab

import (
	"hash/crc32"
	"math"
	"math/bits"
	"sort"
	"unicode/utf8"

	"github.com/fumin/tokcodec/ac"
	"github.com/pkg/errors"
)

// An Entry is a token with its training weight, usually a corpus frequency.
type Entry struct {
	Token  string `json:"token"`
	Weight uint64 `json:"weight"`
}

// A Vocabulary is a trained symbol table.
type Vocabulary struct {
	tokens   []string
	weights  []uint64
	ids      map[string]ac.Symbol
	table    *ac.Table
	checksum uint32
}

type config struct {
	maxSize      int
	minWeight    uint64
	escapeWeight uint64
	eofWeight    uint64
}

// Option configures Train.
type Option func(*config)

// WithMaxSize keeps only the n heaviest tokens.
func WithMaxSize(n int) Option {
	return func(c *config) {
		c.maxSize = n
	}
}

// WithMinWeight drops tokens lighter than w.
func WithMinWeight(w uint64) Option {
	return func(c *config) {
		c.minWeight = w
	}
}

// WithEscapeWeight sets the weight of ac.Escape.
// By default it is a tenth of the weight of dropped tokens, and at least 1.
func WithEscapeWeight(w uint64) Option {
	return func(c *config) {
		c.escapeWeight = w
	}
}

// WithEOFWeight sets the weight of ac.EOF, 1 by default.
func WithEOFWeight(w uint64) Option {
	return func(c *config) {
		c.eofWeight = w
	}
}

// Train builds a Vocabulary from (token, weight) pairs.
// Repeated tokens have their weights summed and zero weights are raised to 1, so every symbol stays encodable.
// Weights whose total exceeds ac.MaxTotal are scaled down proportionally.
func Train(entries []Entry, opts ...Option) (*Vocabulary, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	merged := make(map[string]uint64, len(entries))
	for _, e := range entries {
		if e.Token == "" {
			continue
		}
		if !utf8.ValidString(e.Token) {
			return nil, errors.Wrapf(ac.ErrMalformedInput, "token %q is not valid UTF-8", e.Token)
		}
		sum, carry := bits.Add64(merged[e.Token], e.Weight, 0)
		if carry != 0 {
			return nil, errors.Wrapf(ac.ErrPrecisionOverflow, "weight of %q overflows", e.Token)
		}
		merged[e.Token] = sum
	}
	ranked := make([]Entry, 0, len(merged))
	for tok, w := range merged {
		if w == 0 {
			w = 1
		}
		ranked = append(ranked, Entry{Token: tok, Weight: w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Weight != ranked[j].Weight {
			return ranked[i].Weight > ranked[j].Weight
		}
		return ranked[i].Token < ranked[j].Token
	})

	var dropped uint64
	kept := ranked[:0]
	for i, e := range ranked {
		if e.Weight < cfg.minWeight || (cfg.maxSize > 0 && i >= cfg.maxSize) {
			dropped = saturatingAdd(dropped, e.Weight)
			continue
		}
		kept = append(kept, e)
	}

	escape := cfg.escapeWeight
	if escape == 0 {
		escape = dropped / 10
		if escape == 0 {
			escape = 1
		}
	}
	eof := cfg.eofWeight
	if eof == 0 {
		eof = 1
	}

	tokens := make([]string, int(ac.FirstToken), len(kept)+int(ac.FirstToken))
	weights := make([]uint64, int(ac.FirstToken), len(kept)+int(ac.FirstToken))
	weights[ac.Escape] = escape
	weights[ac.EOF] = eof
	for _, e := range kept {
		tokens = append(tokens, e.Token)
		weights = append(weights, e.Weight)
	}

	weights, err := fitWeights(weights)
	if err != nil {
		return nil, err
	}
	return newVocabulary(tokens, weights)
}

// fitWeights scales weights down so that they sum to at most ac.MaxTotal, keeping each at least 1.
func fitWeights(weights []uint64) ([]uint64, error) {
	n := uint64(len(weights))
	if n > ac.MaxTotal {
		return nil, errors.Wrapf(ac.ErrPrecisionOverflow, "%d symbols exceed the precision budget", n)
	}
	total, overflow := sumWeights(weights)
	if !overflow && total <= ac.MaxTotal {
		return weights, nil
	}
	// Halve everything until the total fits in 64 bits.
	for overflow {
		for i, w := range weights {
			weights[i] = w/2 + w%2
		}
		total, overflow = sumWeights(weights)
	}

	// Floors of w*budget/total add up to at most budget, leaving room for one extra unit per symbol.
	budget := ac.MaxTotal - n
	scaled := make([]uint64, len(weights))
	for i, w := range weights {
		hi, lo := bits.Mul64(w, budget)
		q, _ := bits.Div64(hi, lo, total)
		if q == 0 {
			q = 1
		}
		scaled[i] = q
	}
	return scaled, nil
}

func sumWeights(weights []uint64) (total uint64, overflow bool) {
	for _, w := range weights {
		var carry uint64
		total, carry = bits.Add64(total, w, 0)
		if carry != 0 {
			overflow = true
		}
	}
	return total, overflow
}

func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// newVocabulary assembles a Vocabulary keeping the given symbol order.
func newVocabulary(tokens []string, weights []uint64) (*Vocabulary, error) {
	table, err := ac.NewTable(weights)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]ac.Symbol, len(tokens))
	for i := int(ac.FirstToken); i < len(tokens); i++ {
		if _, dup := ids[tokens[i]]; dup {
			return nil, errors.Wrapf(ac.ErrMalformedArtifact, "duplicate token %q", tokens[i])
		}
		ids[tokens[i]] = ac.Symbol(i)
	}
	v := &Vocabulary{tokens: tokens, weights: weights, ids: ids, table: table}
	snapshot, err := v.MarshalBinary()
	if err != nil {
		return nil, err
	}
	v.checksum = crc32.ChecksumIEEE(snapshot)
	return v, nil
}

// Lookup returns the symbol of token. ok is false for out-of-vocabulary tokens.
func (v *Vocabulary) Lookup(token string) (s ac.Symbol, ok bool) {
	s, ok = v.ids[token]
	return s, ok
}

// Token returns the token of s. ok is false for reserved or unknown symbols.
func (v *Vocabulary) Token(s ac.Symbol) (string, bool) {
	if s < ac.FirstToken || int(s) >= len(v.tokens) {
		return "", false
	}
	return v.tokens[s], true
}

// Weight returns the weight of s, or 0 if s is unknown.
func (v *Vocabulary) Weight(s ac.Symbol) uint64 {
	if int(s) >= len(v.weights) {
		return 0
	}
	return v.weights[s]
}

// Weights returns a copy of all weights indexed by symbol.
func (v *Vocabulary) Weights() []uint64 {
	return append([]uint64(nil), v.weights...)
}

// Size returns the number of in-vocabulary tokens.
func (v *Vocabulary) Size() int {
	return len(v.tokens) - int(ac.FirstToken)
}

// NumSymbols returns the number of symbols including the reserved ones.
func (v *Vocabulary) NumSymbols() int {
	return len(v.tokens)
}

// Total returns the sum of all weights.
func (v *Vocabulary) Total() uint64 {
	return v.table.Total()
}

// Table returns the cumulative frequency table over all symbols.
func (v *Vocabulary) Table() *ac.Table {
	return v.table
}

// Distribution makes a Vocabulary the static ac.Source: the context is ignored.
func (v *Vocabulary) Distribution([]ac.Symbol) (*ac.Table, error) {
	return v.table, nil
}

// Entries returns the tokens and weights in symbol order.
func (v *Vocabulary) Entries() []Entry {
	entries := make([]Entry, 0, v.Size())
	for i := int(ac.FirstToken); i < len(v.tokens); i++ {
		entries = append(entries, Entry{Token: v.tokens[i], Weight: v.weights[i]})
	}
	return entries
}

// Entropy returns the Shannon entropy of the weight distribution in bits per symbol.
func (v *Vocabulary) Entropy() float64 {
	total := float64(v.Total())
	var h float64
	for _, w := range v.weights {
		p := float64(w) / total
		h -= p * math.Log2(p)
	}
	return h
}

// Checksum returns the CRC-32 of the vocabulary snapshot.
func (v *Vocabulary) Checksum() uint32 {
	return v.checksum
}

// CountTokens counts token occurrences over tokenized documents.
// The result is sorted by token.
func CountTokens(docs [][]string) []Entry {
	counts := make(map[string]uint64)
	for _, doc := range docs {
		for _, tok := range doc {
			counts[tok]++
		}
	}
	entries := make([]Entry, 0, len(counts))
	for tok, c := range counts {
		entries = append(entries, Entry{Token: tok, Weight: c})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Token < entries[j].Token })
	return entries
}
