package tokcodec

import (
	"github.com/fumin/tokcodec/container"
	"github.com/fumin/tokcodec/tokenize"
	"github.com/fumin/tokcodec/vocab"
	"github.com/pkg/errors"
)

// CompressStandalone trains a vocabulary on text alone and returns an artifact embedding it,
// so that it decodes without any shared vocabulary.
// Without a WithVocabularyMode option the vocabulary is embedded compressed.
func CompressStandalone(text string, opts ...Option) (*container.Artifact, error) {
	settings := &Codec{tok: tokenize.New()}
	for _, opt := range opts {
		opt(settings)
	}
	if settings.predictor != nil {
		return nil, errors.New("a standalone artifact cannot depend on a predictor")
	}
	tokens, err := settings.tok.Tokenize(text)
	if err != nil {
		return nil, err
	}
	v, err := vocab.Train(vocab.CountTokens([][]string{tokens}))
	if err != nil {
		return nil, errors.Wrap(err, "train")
	}

	if settings.mode == container.VocabAbsent {
		opts = append(opts, WithVocabularyMode(container.VocabCompressed))
	}
	c, err := New(v, opts...)
	if err != nil {
		return nil, err
	}
	return c.Encode(tokens)
}

// DecompressStandalone decodes an artifact that embeds its vocabulary.
func DecompressStandalone(a *container.Artifact) (string, error) {
	if a.Mode == container.VocabAbsent {
		return "", errors.New("artifact does not embed a vocabulary")
	}
	v := new(vocab.Vocabulary)
	if err := v.UnmarshalBinary(a.Vocabulary); err != nil {
		return "", errors.Wrap(err, "embedded vocabulary")
	}
	backend := Range
	if a.Format == container.PrefixStatic {
		backend = Prefix
	}
	c, err := New(v, WithBackend(backend))
	if err != nil {
		return "", err
	}
	return c.DecodeText(a)
}
