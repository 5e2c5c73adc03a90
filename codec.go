// Package tokcodec compresses text token by token.
//
// Text is split into words, punctuation and whitespace runs, each token is mapped to a symbol of a trained vocabulary,
// and the symbols are entropy coded with either a Huffman code or an arithmetic coder.
// The arithmetic coder can be driven by the static vocabulary distribution or by a predictor that adapts to the message.
// Tokens missing from the vocabulary are escaped and carried as raw bytes, so any valid UTF-8 text round trips.
package tokcodec

import (
	"strings"

	"github.com/fumin/tokcodec/ac"
	"github.com/fumin/tokcodec/container"
	"github.com/fumin/tokcodec/predict"
	"github.com/fumin/tokcodec/prefix"
	"github.com/fumin/tokcodec/tokenize"
	"github.com/fumin/tokcodec/vocab"
	"github.com/pkg/errors"
)

// A Backend is an entropy coder.
type Backend int

const (
	// Range is arithmetic coding, which spends fractional bits per token.
	Range Backend = iota

	// Prefix is Huffman coding, which spends a whole number of bits per token.
	Prefix
)

func (b Backend) String() string {
	switch b {
	case Prefix:
		return "prefix"
	default:
		return "range"
	}
}

// ParseBackend parses the names printed by Backend.String.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "range", "arithmetic":
		return Range, nil
	case "prefix", "huffman":
		return Prefix, nil
	default:
		return 0, errors.Errorf("unknown backend %q", s)
	}
}

// ParseVocabMode parses the names printed by container.VocabMode.String.
func ParseVocabMode(s string) (container.VocabMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "absent", "none":
		return container.VocabAbsent, nil
	case "embedded", "raw":
		return container.VocabEmbedded, nil
	case "compressed", "zstd":
		return container.VocabCompressed, nil
	default:
		return 0, errors.Errorf("unknown vocabulary mode %q", s)
	}
}

// A Codec encodes and decodes token sequences against one vocabulary.
// A Codec is safe for concurrent use; each Encode or Decode call is an independent session.
type Codec struct {
	v         *vocab.Vocabulary
	backend   Backend
	predictor predict.Predictor
	precision uint
	mode      container.VocabMode
	tok       *tokenize.Tokenizer

	code   *prefix.Code
	source ac.Source
}

// Option configures a Codec.
type Option func(*Codec)

// WithBackend selects the entropy coder, Range by default.
func WithBackend(b Backend) Option {
	return func(c *Codec) {
		c.backend = b
	}
}

// WithPredictor drives the Range backend with p instead of the static vocabulary distribution.
// p must return one probability per symbol of the vocabulary.
func WithPredictor(p predict.Predictor) Option {
	return func(c *Codec) {
		c.predictor = p
	}
}

// WithPrecision sets the number of bits of quantized predictor tables, predict.DefaultPrecision by default.
func WithPrecision(bits uint) Option {
	return func(c *Codec) {
		c.precision = bits
	}
}

// WithVocabularyMode controls whether artifacts carry the vocabulary, container.VocabAbsent by default.
func WithVocabularyMode(m container.VocabMode) Option {
	return func(c *Codec) {
		c.mode = m
	}
}

// WithTokenizer sets the tokenizer of EncodeText, a lossless tokenize.New() by default.
func WithTokenizer(t *tokenize.Tokenizer) Option {
	return func(c *Codec) {
		c.tok = t
	}
}

// Train builds a vocabulary from (token, weight) pairs.
func Train(entries []vocab.Entry, opts ...vocab.Option) (*vocab.Vocabulary, error) {
	return vocab.Train(entries, opts...)
}

// TrainText builds a vocabulary from the token frequencies of texts.
func TrainText(texts []string, tok *tokenize.Tokenizer, opts ...vocab.Option) (*vocab.Vocabulary, error) {
	docs := make([][]string, 0, len(texts))
	for i, text := range texts {
		tokens, err := tok.Tokenize(text)
		if err != nil {
			return nil, errors.Wrapf(err, "text %d", i)
		}
		docs = append(docs, tokens)
	}
	return vocab.Train(vocab.CountTokens(docs), opts...)
}

// New returns a Codec for v.
func New(v *vocab.Vocabulary, opts ...Option) (*Codec, error) {
	c := &Codec{v: v, precision: predict.DefaultPrecision}
	for _, opt := range opts {
		opt(c)
	}
	if c.tok == nil {
		c.tok = tokenize.New()
	}

	switch c.backend {
	case Prefix:
		if c.predictor != nil {
			return nil, errors.New("the prefix backend cannot use a predictor")
		}
		code, err := newPrefixCode(v)
		if err != nil {
			return nil, err
		}
		c.code = code
	case Range:
		source, err := c.newSource(v)
		if err != nil {
			return nil, err
		}
		c.source = source
	default:
		return nil, errors.Errorf("unknown backend %d", c.backend)
	}
	switch c.mode {
	case container.VocabAbsent, container.VocabEmbedded, container.VocabCompressed:
	default:
		return nil, errors.Errorf("unknown vocabulary mode %d", c.mode)
	}
	return c, nil
}

// newPrefixCode builds the Huffman code of v. EOF is never coded, since the payload bit length ends a message.
func newPrefixCode(v *vocab.Vocabulary) (*prefix.Code, error) {
	weights := v.Weights()
	weights[ac.EOF] = 0
	return prefix.New(weights)
}

func (c *Codec) newSource(v *vocab.Vocabulary) (ac.Source, error) {
	if c.predictor == nil {
		return v, nil
	}
	return predict.NewAdaptive(c.predictor, v.NumSymbols(), c.precision)
}

// Vocabulary returns the vocabulary of c.
func (c *Codec) Vocabulary() *vocab.Vocabulary {
	return c.v
}

// Tokenizer returns the tokenizer of c.
func (c *Codec) Tokenizer() *tokenize.Tokenizer {
	return c.tok
}

// Format returns the format of the artifacts c produces.
func (c *Codec) Format() container.Format {
	switch {
	case c.backend == Prefix:
		return container.PrefixStatic
	case c.predictor != nil:
		return container.RangeAdaptive
	default:
		return container.RangeStatic
	}
}
