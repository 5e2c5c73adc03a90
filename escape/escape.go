// Package escape carries out-of-vocabulary tokens through an entropy coder as raw bytes.
//
// After the ac.Escape symbol, a token is written as the uvarint of its byte length followed by its UTF-8 bytes.
// Every byte goes through the active backend, so the cost of a token t is 8*(uvarintLen(len(t))+len(t)) bits.
package escape

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/fumin/tokcodec/ac"
	"github.com/pkg/errors"
)

// MaxTokenBytes bounds the length of a decoded token.
const MaxTokenBytes = 1 << 20

// A ByteSink writes raw bytes into a coding session.
type ByteSink interface {
	WriteRawByte(b byte) error
}

// A ByteSource reads raw bytes from a coding session.
type ByteSource interface {
	ReadRawByte() (byte, error)
}

// Write emits token to sink.
func Write(sink ByteSink, token string) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(token)))
	for _, b := range lenBuf[:n] {
		if err := sink.WriteRawByte(b); err != nil {
			return err
		}
	}
	for i := 0; i < len(token); i++ {
		if err := sink.WriteRawByte(token[i]); err != nil {
			return err
		}
	}
	return nil
}

// Read consumes a token written by Write.
func Read(src ByteSource) (string, error) {
	n, err := binary.ReadUvarint(byteReader{src})
	if err != nil {
		if ac.IsIntegrity(err) {
			return "", err
		}
		return "", errors.Wrapf(ac.ErrVocabularyMismatch, "escape length: %v", err)
	}
	if n > MaxTokenBytes {
		return "", errors.Wrapf(ac.ErrVocabularyMismatch, "escaped token of %d bytes", n)
	}
	b := make([]byte, n)
	for i := range b {
		if b[i], err = src.ReadRawByte(); err != nil {
			return "", err
		}
	}
	if !utf8.Valid(b) {
		return "", errors.Wrap(ac.ErrVocabularyMismatch, "escaped token is not valid UTF-8")
	}
	return string(b), nil
}

// Cost returns the number of bits Write spends on token.
func Cost(token string) int {
	var lenBuf [binary.MaxVarintLen64]byte
	return 8 * (binary.PutUvarint(lenBuf[:], uint64(len(token))) + len(token))
}

type byteReader struct {
	src ByteSource
}

func (r byteReader) ReadByte() (byte, error) {
	return r.src.ReadRawByte()
}
