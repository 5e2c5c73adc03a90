// Package container frames coded payloads.
//
// An artifact is laid out as
//
//	tag            1 byte, the backend and probability source
//	flag           uvarint, the vocabulary mode: 0 absent, 1 embedded, 2 embedded with zstd
//	check          uvarint, CRC-32 of the vocabulary snapshot, only when absent
//	vocabulary     uvarint length and snapshot, only for embedded modes
//	bit length     uvarint, number of meaningful payload bits
//	payload        ceil(bit length / 8) bytes, MSB-first, zero padded
package container

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/fumin/tokcodec/ac"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// A Format identifies how a payload was coded.
type Format byte

const (
	// PrefixStatic is Huffman coding against a static vocabulary.
	PrefixStatic Format = 0x01

	// RangeStatic is arithmetic coding against a static vocabulary.
	RangeStatic Format = 0x02

	// RangeAdaptive is arithmetic coding against a predictor.
	RangeAdaptive Format = 0x12
)

func (f Format) String() string {
	switch f {
	case PrefixStatic:
		return "prefix/static"
	case RangeStatic:
		return "range/static"
	case RangeAdaptive:
		return "range/adaptive"
	default:
		return "unknown"
	}
}

func (f Format) valid() bool {
	return f == PrefixStatic || f == RangeStatic || f == RangeAdaptive
}

// A VocabMode says whether and how the vocabulary travels with the payload.
type VocabMode uint8

const (
	// VocabAbsent leaves the vocabulary out. The decoder must already have it.
	VocabAbsent VocabMode = 0

	// VocabEmbedded embeds the vocabulary snapshot as is.
	VocabEmbedded VocabMode = 1

	// VocabCompressed embeds the vocabulary snapshot compressed with zstd.
	VocabCompressed VocabMode = 2
)

func (m VocabMode) String() string {
	switch m {
	case VocabAbsent:
		return "absent"
	case VocabEmbedded:
		return "embedded"
	case VocabCompressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// maxSnapshot bounds a decompressed vocabulary.
const maxSnapshot = 256 << 20

// An Artifact is a framed payload. Artifacts are not modified after construction.
type Artifact struct {
	Format Format
	Mode   VocabMode

	// Check is the checksum of the vocabulary the payload was coded with when Mode is VocabAbsent.
	Check uint32

	// Vocabulary is the uncompressed snapshot when Mode embeds one.
	Vocabulary []byte

	BitLen  int64
	Payload []byte
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxSnapshot))
	})
	if zstdErr != nil {
		return nil, nil, errors.Wrap(zstdErr, "zstd")
	}
	return zstdEnc, zstdDec, nil
}

// MarshalBinary lays out a.
func (a *Artifact) MarshalBinary() ([]byte, error) {
	if !a.Format.valid() {
		return nil, errors.Wrapf(ac.ErrMalformedArtifact, "unknown format %#x", byte(a.Format))
	}
	if want := (a.BitLen + 7) / 8; a.BitLen < 0 || int64(len(a.Payload)) != want {
		return nil, errors.Wrapf(ac.ErrMalformedArtifact, "%d payload bytes for %d bits", len(a.Payload), a.BitLen)
	}

	b := make([]byte, 0, 8+len(a.Vocabulary)+len(a.Payload))
	b = append(b, byte(a.Format))
	switch a.Mode {
	case VocabAbsent:
		b = binary.AppendUvarint(b, uint64(a.Mode))
		b = binary.AppendUvarint(b, uint64(a.Check))
	case VocabEmbedded:
		b = binary.AppendUvarint(b, uint64(a.Mode))
		b = binary.AppendUvarint(b, uint64(len(a.Vocabulary)))
		b = append(b, a.Vocabulary...)
	case VocabCompressed:
		enc, _, err := zstdCodecs()
		if err != nil {
			return nil, err
		}
		compressed := enc.EncodeAll(a.Vocabulary, nil)
		b = binary.AppendUvarint(b, uint64(a.Mode))
		b = binary.AppendUvarint(b, uint64(len(compressed)))
		b = append(b, compressed...)
	default:
		return nil, errors.Wrapf(ac.ErrMalformedArtifact, "unknown vocabulary mode %d", a.Mode)
	}
	b = binary.AppendUvarint(b, uint64(a.BitLen))
	b = append(b, a.Payload...)
	return b, nil
}

// WriteTo writes the layout of a to w.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	b, err := a.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	if err != nil {
		return int64(n), errors.Wrap(err, "")
	}
	return int64(n), nil
}

// Size returns the length of the layout of a in bytes.
func (a *Artifact) Size() (int, error) {
	b, err := a.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Unmarshal parses an artifact, decompressing an embedded vocabulary if needed.
func Unmarshal(data []byte) (*Artifact, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ac.ErrTruncatedArtifact, "empty artifact")
	}
	a := &Artifact{Format: Format(data[0])}
	if !a.Format.valid() {
		return nil, errors.Wrapf(ac.ErrMalformedArtifact, "unknown format %#x", data[0])
	}
	r := bytes.NewReader(data[1:])

	flag, err := readUvarint(r, "flag")
	if err != nil {
		return nil, err
	}
	a.Mode = VocabMode(flag)
	switch {
	case flag > uint64(VocabCompressed):
		return nil, errors.Wrapf(ac.ErrMalformedArtifact, "unknown vocabulary mode %d", flag)
	case a.Mode == VocabAbsent:
		check, err := readUvarint(r, "vocabulary check")
		if err != nil {
			return nil, err
		}
		if check > math.MaxUint32 {
			return nil, errors.Wrapf(ac.ErrMalformedArtifact, "vocabulary check %d", check)
		}
		a.Check = uint32(check)
	default:
		snapshot, err := readBytes(r, "vocabulary")
		if err != nil {
			return nil, err
		}
		if a.Mode == VocabCompressed {
			_, dec, err := zstdCodecs()
			if err != nil {
				return nil, err
			}
			if snapshot, err = dec.DecodeAll(snapshot, nil); err != nil {
				return nil, errors.Wrapf(ac.ErrMalformedArtifact, "vocabulary: %v", err)
			}
		}
		a.Vocabulary = snapshot
	}

	bitLen, err := readUvarint(r, "bit length")
	if err != nil {
		return nil, err
	}
	rest := uint64(r.Len())
	if bitLen > 8*rest {
		return nil, errors.Wrapf(ac.ErrTruncatedArtifact, "%d payload bits in %d bytes", bitLen, rest)
	}
	if need := (bitLen + 7) / 8; rest > need {
		return nil, errors.Wrapf(ac.ErrMalformedArtifact, "%d trailing bytes", rest-need)
	}
	a.BitLen = int64(bitLen)
	a.Payload = make([]byte, rest)
	if _, err := io.ReadFull(r, a.Payload); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return a, nil
}

// ReadFrom reads and parses a whole artifact from r.
func ReadFrom(r io.Reader) (*Artifact, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return Unmarshal(data)
}

func readUvarint(r *bytes.Reader, field string) (uint64, error) {
	x, err := binary.ReadUvarint(r)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return 0, errors.Wrapf(ac.ErrTruncatedArtifact, "%s cut short", field)
	case err != nil:
		return 0, errors.Wrapf(ac.ErrMalformedArtifact, "%s: %v", field, err)
	}
	return x, nil
}

func readBytes(r *bytes.Reader, field string) ([]byte, error) {
	n, err := readUvarint(r, field)
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, errors.Wrapf(ac.ErrTruncatedArtifact, "%s of %d bytes cut short", field, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return b, nil
}
