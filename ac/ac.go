// Package ac defines what the entropy coding backends require: symbols, cumulative frequency tables and the probability sources producing them.
// See its subpackages for particular finite precision realizations of arithmetic coding.
package ac

import (
	"github.com/pkg/errors"
)

// A Symbol identifies a vocabulary slot.
type Symbol uint32

const (
	// Escape is the out-of-vocabulary sentinel. A token coded as Escape is followed by its raw bytes.
	Escape Symbol = 0

	// EOF terminates a range coded message.
	EOF Symbol = 1

	// FirstToken is the first symbol assigned to an in-vocabulary token.
	FirstToken Symbol = 2
)

// MaxTotal is the largest total weight a Table may have.
// A 32 bit coding interval never narrows below a quarter of its range, so every symbol of a table within this budget keeps a non-empty sub-interval.
const MaxTotal = uint64(1) << 30

var (
	// ErrMalformedInput is returned when text handed to the codec is not valid UTF-8.
	ErrMalformedInput = errors.New("malformed input")

	// ErrPrecisionOverflow is returned when weights do not fit in the precision budget.
	ErrPrecisionOverflow = errors.New("precision overflow")

	// ErrVocabularyMismatch is returned when decoding cannot resolve a symbol, which means the encoder used a different vocabulary or predictor.
	ErrVocabularyMismatch = errors.New("vocabulary mismatch")

	// ErrTruncatedArtifact is returned when there are insufficient bits to reconstruct the original data.
	ErrTruncatedArtifact = errors.New("truncated artifact")

	// ErrMalformedArtifact is returned for artifacts with an unknown format tag or layout.
	ErrMalformedArtifact = errors.New("malformed artifact")
)

// IsInput reports whether err was caused by the caller's input, such as malformed text or unusable weights.
func IsInput(err error) bool {
	return errors.Is(err, ErrMalformedInput) || errors.Is(err, ErrPrecisionOverflow)
}

// IsIntegrity reports whether err signals a damaged artifact or mismatched codebooks.
// Retrying with a different vocabulary or predictor may help for these.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrVocabularyMismatch) || errors.Is(err, ErrTruncatedArtifact) || errors.Is(err, ErrMalformedArtifact)
}

// A Source is a probabilistic model on a sequence of symbols, as expected by the arithmetic coding algorithm.
type Source interface {
	// Distribution returns the cumulative frequency table of the next symbol given the symbols coded so far.
	// Implementations must only look at context, and return identical tables for identical contexts.
	Distribution(context []Symbol) (*Table, error)
}
