// Package tokenize splits text into words, punctuation and whitespace runs.
// Joining the tokens of a text gives back the text, unless a lossy policy was requested.
package tokenize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fumin/tokcodec/ac"
	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// CasePolicy controls letter case handling.
type CasePolicy int

const (
	// PreserveCase keeps tokens as they appear. It is lossless.
	PreserveCase CasePolicy = iota

	// Lowercase folds every token to lower case. Original casing cannot be restored.
	Lowercase
)

func (p CasePolicy) String() string {
	switch p {
	case Lowercase:
		return "lowercase"
	default:
		return "preserve"
	}
}

type class int

const (
	classWord class = iota
	classSpace
	classPunct
)

func classify(r rune) class {
	switch {
	case r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r):
		return classWord
	case unicode.IsSpace(r):
		return classSpace
	default:
		return classPunct
	}
}

// A Tokenizer is safe for concurrent use.
type Tokenizer struct {
	casePolicy CasePolicy
	nfc        bool
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithCase sets the case policy.
func WithCase(p CasePolicy) Option {
	return func(t *Tokenizer) {
		t.casePolicy = p
	}
}

// WithNFC normalizes text to Unicode NFC before splitting.
func WithNFC() Option {
	return func(t *Tokenizer) {
		t.nfc = true
	}
}

// New returns a Tokenizer. Without options it preserves case and does not normalize.
func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Lossless reports whether Join(Tokenize(text)) == text holds for every valid text.
func (t *Tokenizer) Lossless() bool {
	return t.casePolicy == PreserveCase && !t.nfc
}

// Tokenize splits text using maximal munch: a run of word characters, a run of whitespace, or a single other character.
// Invalid UTF-8 is rejected with ac.ErrMalformedInput.
func (t *Tokenizer) Tokenize(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, errors.Wrap(ac.ErrMalformedInput, "text is not valid UTF-8")
	}
	if t.nfc {
		text = norm.NFC.String(text)
	}

	tokens := []string{}
	for start := 0; start < len(text); {
		r, size := utf8.DecodeRuneInString(text[start:])
		c := classify(r)
		end := start + size
		if c != classPunct {
			for end < len(text) {
				r, size := utf8.DecodeRuneInString(text[end:])
				if classify(r) != c {
					break
				}
				end += size
			}
		}
		tokens = append(tokens, text[start:end])
		start = end
	}

	if t.casePolicy == Lowercase {
		// A Caser keeps state, so each call gets its own.
		caser := cases.Lower(language.Und)
		for i, tok := range tokens {
			tokens[i] = caser.String(tok)
		}
	}
	return tokens, nil
}

// Join concatenates tokens back into text.
func Join(tokens []string) string {
	return strings.Join(tokens, "")
}
