package prefix

import (
	"io"

	"github.com/fumin/tokcodec/ac"
	"github.com/icza/bitio"
	"github.com/pkg/errors"
)

// An Encoder writes codewords MSB-first.
// An Encoder must not be used from multiple goroutines.
type Encoder struct {
	c    *Code
	w    *bitio.Writer
	bits int64
}

// NewEncoder returns an Encoder writing codewords of c to w.
func NewEncoder(w io.Writer, c *Code) *Encoder {
	return &Encoder{c: c, w: bitio.NewWriter(w)}
}

// Encode writes the codeword of s.
func (e *Encoder) Encode(s ac.Symbol) error {
	if int(s) >= len(e.c.words) || e.c.words[s].width == 0 {
		return errors.Wrapf(ac.ErrVocabularyMismatch, "symbol %d has no codeword", s)
	}
	cw := e.c.words[s]
	if err := e.w.WriteBits(cw.bits, cw.width); err != nil {
		return errors.Wrap(err, "")
	}
	e.bits += int64(cw.width)
	return nil
}

// WriteRawByte writes b as eight plain bits.
func (e *Encoder) WriteRawByte(b byte) error {
	if err := e.w.WriteBits(uint64(b), 8); err != nil {
		return errors.Wrap(err, "")
	}
	e.bits += 8
	return nil
}

// Close pads the last byte with zeros. It does not close the underlying writer.
func (e *Encoder) Close() error {
	if err := e.w.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Bits returns the number of bits written so far, excluding padding.
func (e *Encoder) Bits() int64 {
	return e.bits
}

// A Decoder reads the codewords written by an Encoder.
// A Decoder must not be used from multiple goroutines.
type Decoder struct {
	c         *Code
	r         *bitio.Reader
	remaining int64
}

// NewDecoder returns a Decoder reading exactly bitLen bits of r.
func NewDecoder(r io.Reader, c *Code, bitLen int64) *Decoder {
	return &Decoder{c: c, r: bitio.NewReader(r), remaining: bitLen}
}

// More reports whether unread payload bits remain.
func (d *Decoder) More() bool {
	return d.remaining > 0
}

func (d *Decoder) readBit() (bool, error) {
	if d.remaining <= 0 {
		return false, errors.Wrap(ac.ErrTruncatedArtifact, "payload ends inside a codeword")
	}
	d.remaining--
	b, err := d.r.ReadBool()
	if err != nil {
		return false, errors.Wrapf(ac.ErrTruncatedArtifact, "%v", err)
	}
	return b, nil
}

// Decode walks the code tree from the root to a leaf.
func (d *Decoder) Decode() (ac.Symbol, error) {
	n := d.c.root
	if n.leaf() {
		b, err := d.readBit()
		if err != nil {
			return 0, err
		}
		if b {
			return 0, errors.Wrap(ac.ErrVocabularyMismatch, "unknown codeword 1")
		}
		return n.sym, nil
	}
	for !n.leaf() {
		b, err := d.readBit()
		if err != nil {
			return 0, err
		}
		if b {
			n = n.one
		} else {
			n = n.zero
		}
	}
	return n.sym, nil
}

// ReadRawByte reads eight plain bits.
func (d *Decoder) ReadRawByte() (byte, error) {
	var b byte
	for i := 0; i < 8; i++ {
		bit, err := d.readBit()
		if err != nil {
			return 0, err
		}
		b <<= 1
		if bit {
			b |= 1
		}
	}
	return b, nil
}
