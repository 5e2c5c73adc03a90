package vocab

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"unicode/utf8"

	"github.com/fumin/tokcodec/ac"
	"github.com/pkg/errors"
)

const snapshotVersion = 1

// MarshalBinary encodes v as
// uvarint(version) uvarint(escape weight) uvarint(EOF weight) uvarint(N) followed by N times uvarint(len) token uvarint(weight),
// in symbol order.
func (v *Vocabulary) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 16+8*len(v.tokens))
	b = binary.AppendUvarint(b, snapshotVersion)
	b = binary.AppendUvarint(b, v.weights[ac.Escape])
	b = binary.AppendUvarint(b, v.weights[ac.EOF])
	b = binary.AppendUvarint(b, uint64(v.Size()))
	for i := int(ac.FirstToken); i < len(v.tokens); i++ {
		b = binary.AppendUvarint(b, uint64(len(v.tokens[i])))
		b = append(b, v.tokens[i]...)
		b = binary.AppendUvarint(b, v.weights[i])
	}
	return b, nil
}

// UnmarshalBinary restores a Vocabulary written by MarshalBinary, keeping its symbol assignment.
// It must be called on a new zero Vocabulary.
func (v *Vocabulary) UnmarshalBinary(data []byte) error {
	r := snapshotReader{b: data}
	if version := r.uvarint(); r.err == nil && version != snapshotVersion {
		return errors.Wrapf(ac.ErrMalformedArtifact, "unknown vocabulary version %d", version)
	}
	escape := r.uvarint()
	eof := r.uvarint()
	n := r.uvarint()
	if r.err != nil {
		return r.err
	}
	// Each token takes at least three bytes.
	if n > uint64(len(r.b))/3+1 {
		return errors.Wrapf(ac.ErrTruncatedArtifact, "%d tokens in %d bytes", n, len(r.b))
	}

	tokens := make([]string, int(ac.FirstToken), int(n)+int(ac.FirstToken))
	weights := make([]uint64, int(ac.FirstToken), int(n)+int(ac.FirstToken))
	weights[ac.Escape] = escape
	weights[ac.EOF] = eof
	for i := uint64(0); i < n; i++ {
		tok := r.bytes(r.uvarint())
		w := r.uvarint()
		if r.err != nil {
			return r.err
		}
		tokens = append(tokens, string(tok))
		weights = append(weights, w)
	}
	if len(r.b) != 0 {
		return errors.Wrapf(ac.ErrMalformedArtifact, "%d trailing bytes after vocabulary", len(r.b))
	}

	restored, err := restore(tokens, weights)
	if err != nil {
		return err
	}
	*v = *restored
	return nil
}

// restore validates decoded tokens and weights before assembling them.
func restore(tokens []string, weights []uint64) (*Vocabulary, error) {
	var total uint64
	for i, w := range weights {
		if w == 0 || w > ac.MaxTotal {
			return nil, errors.Wrapf(ac.ErrMalformedArtifact, "symbol %d has weight %d", i, w)
		}
		total += w
		if total > ac.MaxTotal {
			return nil, errors.Wrapf(ac.ErrMalformedArtifact, "total weight exceeds %d", ac.MaxTotal)
		}
	}
	for i := int(ac.FirstToken); i < len(tokens); i++ {
		if tokens[i] == "" || !utf8.ValidString(tokens[i]) {
			return nil, errors.Wrapf(ac.ErrMalformedArtifact, "bad token %q at symbol %d", tokens[i], i)
		}
	}
	return newVocabulary(tokens, weights)
}

type snapshotReader struct {
	b   []byte
	err error
}

func (r *snapshotReader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	x, n := binary.Uvarint(r.b)
	switch {
	case n == 0:
		r.err = errors.Wrap(ac.ErrTruncatedArtifact, "vocabulary snapshot cut short")
		return 0
	case n < 0:
		r.err = errors.Wrap(ac.ErrMalformedArtifact, "varint overflow in vocabulary snapshot")
		return 0
	}
	r.b = r.b[n:]
	return x
}

func (r *snapshotReader) bytes(n uint64) []byte {
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.b)) {
		r.err = errors.Wrap(ac.ErrTruncatedArtifact, "vocabulary snapshot cut short")
		return nil
	}
	b := r.b[:n]
	r.b = r.b[n:]
	return b
}

// file is the JSON representation of a vocabulary.
type file struct {
	EscapeWeight uint64  `json:"escape_weight"`
	EOFWeight    uint64  `json:"eof_weight"`
	Entropy      float64 `json:"entropy"`
	Tokens       []Entry `json:"tokens"`
}

// Save writes v as JSON. Tokens are listed in symbol order.
func (v *Vocabulary) Save(w io.Writer) error {
	f := file{
		EscapeWeight: v.weights[ac.Escape],
		EOFWeight:    v.weights[ac.EOF],
		Entropy:      v.Entropy(),
		Tokens:       v.Entries(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Load reads a vocabulary written by Save.
func Load(r io.Reader) (*Vocabulary, error) {
	var f file
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrapf(ac.ErrMalformedArtifact, "%v", err)
	}
	tokens := make([]string, int(ac.FirstToken), len(f.Tokens)+int(ac.FirstToken))
	weights := make([]uint64, int(ac.FirstToken), len(f.Tokens)+int(ac.FirstToken))
	weights[ac.Escape] = f.EscapeWeight
	weights[ac.EOF] = f.EOFWeight
	for _, e := range f.Tokens {
		tokens = append(tokens, e.Token)
		weights = append(weights, e.Weight)
	}
	return restore(tokens, weights)
}
