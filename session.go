package tokcodec

import (
	"bytes"
	"unicode/utf8"

	"github.com/fumin/tokcodec/ac"
	"github.com/fumin/tokcodec/ac/witten"
	"github.com/fumin/tokcodec/container"
	"github.com/fumin/tokcodec/escape"
	"github.com/fumin/tokcodec/prefix"
	"github.com/fumin/tokcodec/tokenize"
	"github.com/fumin/tokcodec/vocab"
	"github.com/pkg/errors"
)

// EncodeText tokenizes text and encodes the tokens.
func (c *Codec) EncodeText(text string) (*container.Artifact, error) {
	tokens, err := c.tok.Tokenize(text)
	if err != nil {
		return nil, err
	}
	return c.Encode(tokens)
}

// Encode codes tokens in one session.
func (c *Codec) Encode(tokens []string) (*container.Artifact, error) {
	for i, tok := range tokens {
		if !utf8.ValidString(tok) {
			return nil, errors.Wrapf(ac.ErrMalformedInput, "token %d is not valid UTF-8", i)
		}
	}

	var buf bytes.Buffer
	var bitLen int64
	var err error
	if c.backend == Prefix {
		bitLen, err = encodePrefix(&buf, c.code, c.v, tokens)
	} else {
		bitLen, err = encodeRange(&buf, c.source, c.v, tokens)
	}
	if err != nil {
		return nil, err
	}

	a := &container.Artifact{
		Format:  c.Format(),
		Mode:    c.mode,
		BitLen:  bitLen,
		Payload: buf.Bytes(),
	}
	switch c.mode {
	case container.VocabAbsent:
		a.Check = c.v.Checksum()
	default:
		snapshot, err := c.v.MarshalBinary()
		if err != nil {
			return nil, err
		}
		a.Vocabulary = snapshot
	}
	return a, nil
}

func encodePrefix(buf *bytes.Buffer, code *prefix.Code, v *vocab.Vocabulary, tokens []string) (int64, error) {
	enc := prefix.NewEncoder(buf, code)
	for i, tok := range tokens {
		s, ok := v.Lookup(tok)
		if !ok {
			s = ac.Escape
		}
		if err := enc.Encode(s); err != nil {
			return 0, errors.Wrapf(err, "token %d", i)
		}
		if s == ac.Escape {
			if err := escape.Write(enc, tok); err != nil {
				return 0, errors.Wrapf(err, "token %d", i)
			}
		}
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return enc.Bits(), nil
}

func encodeRange(buf *bytes.Buffer, source ac.Source, v *vocab.Vocabulary, tokens []string) (int64, error) {
	// An empty message is an empty payload.
	if len(tokens) == 0 {
		return 0, nil
	}

	enc := witten.NewEncoder(buf)
	context := make([]ac.Symbol, 0, len(tokens))
	for i, tok := range tokens {
		s, ok := v.Lookup(tok)
		if !ok {
			s = ac.Escape
		}
		t, err := source.Distribution(context)
		if err != nil {
			return 0, errors.Wrapf(err, "token %d", i)
		}
		if err := enc.Encode(t, s); err != nil {
			return 0, errors.Wrapf(err, "token %d", i)
		}
		if s == ac.Escape {
			if err := escape.Write(enc, tok); err != nil {
				return 0, errors.Wrapf(err, "token %d", i)
			}
		}
		context = append(context, s)
	}
	t, err := source.Distribution(context)
	if err != nil {
		return 0, errors.Wrap(err, "end of message")
	}
	if err := enc.Encode(t, ac.EOF); err != nil {
		return 0, errors.Wrap(err, "end of message")
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return enc.Bits(), nil
}

// DecodeText decodes a and joins the tokens.
func (c *Codec) DecodeText(a *container.Artifact) (string, error) {
	tokens, err := c.Decode(a)
	if err != nil {
		return "", err
	}
	return tokenize.Join(tokens), nil
}

// Decode reconstructs the tokens of a.
// An embedded vocabulary takes precedence over the vocabulary of c.
func (c *Codec) Decode(a *container.Artifact) ([]string, error) {
	v := c.v
	switch a.Mode {
	case container.VocabAbsent:
		if a.Check != c.v.Checksum() {
			return nil, errors.Wrapf(ac.ErrVocabularyMismatch, "artifact vocabulary checksum %08x, have %08x", a.Check, c.v.Checksum())
		}
	default:
		v = new(vocab.Vocabulary)
		if err := v.UnmarshalBinary(a.Vocabulary); err != nil {
			return nil, errors.Wrap(err, "embedded vocabulary")
		}
	}
	r := bytes.NewReader(a.Payload)

	switch a.Format {
	case container.PrefixStatic:
		code := c.code
		if code == nil || v != c.v {
			var err error
			if code, err = newPrefixCode(v); err != nil {
				return nil, errors.Wrap(ac.ErrVocabularyMismatch, err.Error())
			}
		}
		return decodePrefix(prefix.NewDecoder(r, code, a.BitLen), v)
	case container.RangeStatic:
		return decodeRange(r, a.BitLen, v, v)
	case container.RangeAdaptive:
		if c.predictor == nil {
			return nil, errors.Wrap(ac.ErrVocabularyMismatch, "adaptive artifact needs a predictor")
		}
		source := c.source
		if source == nil || v != c.v {
			var err error
			if source, err = c.newSource(v); err != nil {
				return nil, err
			}
		}
		return decodeRange(r, a.BitLen, source, v)
	default:
		return nil, errors.Wrapf(ac.ErrMalformedArtifact, "unknown format %#x", byte(a.Format))
	}
}

func decodePrefix(dec *prefix.Decoder, v *vocab.Vocabulary) ([]string, error) {
	tokens := []string{}
	for dec.More() {
		s, err := dec.Decode()
		if err != nil {
			return nil, errors.Wrapf(err, "token %d", len(tokens))
		}
		tok, err := resolve(dec, v, s)
		if err != nil {
			return nil, errors.Wrapf(err, "token %d", len(tokens))
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func decodeRange(r *bytes.Reader, bitLen int64, source ac.Source, v *vocab.Vocabulary) ([]string, error) {
	tokens := []string{}
	if bitLen == 0 {
		return tokens, nil
	}
	dec, err := witten.NewDecoder(r, bitLen)
	if err != nil {
		return nil, err
	}
	context := []ac.Symbol{}
	for {
		t, err := source.Distribution(context)
		if err != nil {
			return nil, errors.Wrapf(err, "token %d", len(tokens))
		}
		s, err := dec.Decode(t)
		if err != nil {
			return nil, errors.Wrapf(err, "token %d", len(tokens))
		}
		if s == ac.EOF {
			return tokens, nil
		}
		tok, err := resolve(dec, v, s)
		if err != nil {
			return nil, errors.Wrapf(err, "token %d", len(tokens))
		}
		tokens = append(tokens, tok)
		context = append(context, s)
	}
}

// resolve maps a decoded symbol back to its token, reading escaped tokens from src.
func resolve(src escape.ByteSource, v *vocab.Vocabulary, s ac.Symbol) (string, error) {
	if s == ac.Escape {
		return escape.Read(src)
	}
	tok, ok := v.Token(s)
	if !ok {
		return "", errors.Wrapf(ac.ErrVocabularyMismatch, "symbol %d not in vocabulary", s)
	}
	return tok, nil
}
