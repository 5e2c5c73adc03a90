// Package witten implements the arithmetic coding algorithm described in
// Witten, Ian H.; Neal, Radford M.; Cleary, John G. (June 1987). "Arithmetic Coding for Data Compression". Communications of the ACM 30 (6): 520–540.
//
// Symbols are coded against cumulative frequency tables supplied per call, so the same coder serves static and adaptive models.
package witten

import (
	"io"

	"github.com/fumin/tokcodec/ac"
	"github.com/icza/bitio"
	"github.com/pkg/errors"
)

const (
	codeValueBits = 32
	topValue      = (uint64(1) << codeValueBits) - 1
	firstQtr      = topValue/4 + 1
	half          = 2 * firstQtr
	thirdQtr      = 3 * firstQtr
)

// byteTable codes raw bytes, eight bits each.
var byteTable = ac.Uniform(256)

// An Encoder carries the state required by an encoder.
// An Encoder must not be used from multiple goroutines.
type Encoder struct {
	w     *bitio.Writer
	low   uint64
	high  uint64
	fbits uint64
	bits  int64
}

// NewEncoder returns an Encoder writing MSB-first bits to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bitio.NewWriter(w), high: topValue}
}

func (e *Encoder) writeBit(bit uint64) error {
	if err := e.w.WriteBits(bit, 1); err != nil {
		return errors.Wrap(err, "")
	}
	e.bits++
	return nil
}

func (e *Encoder) bitPlusFollow(bit uint64) error {
	if err := e.writeBit(bit); err != nil {
		return err
	}
	for e.fbits > 0 {
		if err := e.writeBit(bit ^ 1); err != nil {
			return err
		}
		e.fbits -= 1
	}
	return nil
}

// Encode narrows the coding interval to the sub-interval of s in t.
func (e *Encoder) Encode(t *ac.Table, s ac.Symbol) error {
	total := t.Total()
	if total > ac.MaxTotal {
		return errors.Wrapf(ac.ErrPrecisionOverflow, "table total %d", total)
	}
	lo, hi, ok := t.Interval(s)
	if !ok {
		return errors.Wrapf(ac.ErrVocabularyMismatch, "symbol %d outside table of %d symbols", s, t.Len())
	}

	// narrow range
	arange := (e.high - e.low) + 1
	e.high = e.low + arange*hi/total - 1
	e.low = e.low + arange*lo/total

	for {
		if e.high < half {
			if err := e.bitPlusFollow(0); err != nil {
				return err
			}
		} else if e.low >= half {
			if err := e.bitPlusFollow(1); err != nil {
				return err
			}
			e.low -= half
			e.high -= half
		} else if e.low >= firstQtr && e.high < thirdQtr {
			e.fbits += 1
			e.low -= firstQtr
			e.high -= firstQtr
		} else {
			break
		}

		e.low = 2 * e.low
		e.high = 2*e.high + 1
	}
	return nil
}

// WriteRawByte codes b against a uniform table, costing exactly eight bits.
func (e *Encoder) WriteRawByte(b byte) error {
	return e.Encode(byteTable, ac.Symbol(b))
}

// Close emits the bits that disambiguate the final interval and pads the last byte with zeros.
// Close does not close the underlying writer.
func (e *Encoder) Close() error {
	e.fbits += 1
	var err error
	if e.low < firstQtr {
		err = e.bitPlusFollow(0)
	} else {
		err = e.bitPlusFollow(1)
	}
	if err != nil {
		return err
	}
	if err := e.w.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Bits returns the number of bits written so far, excluding padding.
func (e *Encoder) Bits() int64 {
	return e.bits
}

// A Decoder mirrors an Encoder.
// A Decoder must not be used from multiple goroutines.
type Decoder struct {
	r     *bitio.Reader
	low   uint64
	high  uint64
	value uint64

	remaining   int64
	garbageBits int
}

// NewDecoder returns a Decoder reading the first bitLen bits of r.
func NewDecoder(r io.Reader, bitLen int64) (*Decoder, error) {
	d := &Decoder{r: bitio.NewReader(r), high: topValue, remaining: bitLen}
	for i := 1; i <= codeValueBits; i++ {
		inb, err := d.readBit()
		if err != nil {
			return nil, err
		}
		d.value = 2*d.value + inb
	}
	return d, nil
}

// readBit returns the next payload bit.
// Past the end of the payload it returns zeros, which never change the decoded symbols,
// up to the number of bits an encoder may leave unwritten.
func (d *Decoder) readBit() (uint64, error) {
	if d.remaining > 0 {
		d.remaining--
		b, err := d.r.ReadBool()
		if err != nil {
			return 0, errors.Wrapf(ac.ErrTruncatedArtifact, "%v", err)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	}
	d.garbageBits++
	if d.garbageBits > codeValueBits-2 {
		return 0, errors.Wrap(ac.ErrTruncatedArtifact, "insufficient bits sent to decoder")
	}
	return 0, nil
}

// Decode returns the symbol of t whose sub-interval holds the code value, and narrows the interval as Encode did.
func (d *Decoder) Decode(t *ac.Table) (ac.Symbol, error) {
	total := t.Total()
	if total > ac.MaxTotal {
		return 0, errors.Wrapf(ac.ErrPrecisionOverflow, "table total %d", total)
	}
	if d.value < d.low || d.value > d.high {
		return 0, errors.Wrap(ac.ErrVocabularyMismatch, "code value left the coding interval")
	}

	arange := (d.high - d.low) + 1
	scaled := ((d.value-d.low+1)*total - 1) / arange
	s, ok := t.Find(scaled)
	if !ok {
		return 0, errors.Wrapf(ac.ErrVocabularyMismatch, "no symbol at %d of %d", scaled, total)
	}
	lo, hi, _ := t.Interval(s)

	// narrow range
	d.high = d.low + arange*hi/total - 1
	d.low = d.low + arange*lo/total

	// rescale interval
	for {
		if d.high < half {
			// do nothing
		} else if d.low >= half {
			d.value -= half
			d.low -= half
			d.high -= half
		} else if d.low >= firstQtr && d.high < thirdQtr {
			d.value -= firstQtr
			d.low -= firstQtr
			d.high -= firstQtr
		} else {
			break
		}

		d.low = 2 * d.low
		d.high = 2*d.high + 1
		inb, err := d.readBit()
		if err != nil {
			return 0, err
		}
		d.value = 2*d.value + inb
	}
	return s, nil
}

// ReadRawByte decodes a byte written by WriteRawByte.
func (d *Decoder) ReadRawByte() (byte, error) {
	s, err := d.Decode(byteTable)
	if err != nil {
		return 0, err
	}
	return byte(s), nil
}
