package vocab

import (
	"bytes"
	"math"
	"reflect"
	"testing"

	"github.com/fumin/tokcodec/ac"
	"github.com/pkg/errors"
)

func TestTrainOrdering(t *testing.T) {
	v, err := Train([]Entry{
		{Token: "b", Weight: 5},
		{Token: "a", Weight: 5},
		{Token: "c", Weight: 9},
		{Token: "a", Weight: 2},
		{Token: "z", Weight: 0},
	})
	if err != nil {
		t.Fatalf("%+v", err)
	}

	want := []Entry{{"c", 9}, {"a", 7}, {"b", 5}, {"z", 1}}
	if got := v.Entries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("entries %v, want %v", got, want)
	}
	for i, e := range want {
		s, ok := v.Lookup(e.Token)
		if !ok || s != ac.FirstToken+ac.Symbol(i) {
			t.Errorf("Lookup(%q) = %d, %v", e.Token, s, ok)
		}
		tok, ok := v.Token(s)
		if !ok || tok != e.Token {
			t.Errorf("Token(%d) = %q, %v", s, tok, ok)
		}
	}
	if _, ok := v.Lookup("missing"); ok {
		t.Errorf("found a token that was never trained")
	}
	if _, ok := v.Token(ac.Escape); ok {
		t.Errorf("reserved symbol resolved to a token")
	}
	if v.Size() != 4 || v.NumSymbols() != 6 {
		t.Errorf("size %d, symbols %d", v.Size(), v.NumSymbols())
	}
	if v.Weight(ac.Escape) != 1 || v.Weight(ac.EOF) != 1 {
		t.Errorf("reserved weights %d %d", v.Weight(ac.Escape), v.Weight(ac.EOF))
	}
	if v.Total() != 9+7+5+1+2 {
		t.Errorf("total %d", v.Total())
	}
}

func TestTrainDeterministic(t *testing.T) {
	entries := []Entry{{"x", 3}, {"y", 3}, {"w", 3}, {"q", 10}}
	reversed := []Entry{{"q", 10}, {"w", 3}, {"y", 3}, {"x", 3}}
	v1, err := Train(entries)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	v2, err := Train(reversed)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v1.Checksum() != v2.Checksum() {
		t.Errorf("checksums differ: %x %x", v1.Checksum(), v2.Checksum())
	}
	if !reflect.DeepEqual(v1.Entries(), v2.Entries()) {
		t.Errorf("%v != %v", v1.Entries(), v2.Entries())
	}
}

func TestTrainOptions(t *testing.T) {
	entries := []Entry{{"a", 100}, {"b", 50}, {"c", 40}, {"d", 30}, {"e", 1}}

	v, err := Train(entries, WithMaxSize(2))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v.Size() != 2 {
		t.Errorf("size %d, want 2", v.Size())
	}
	// Dropped weight is 40+30+1.
	if v.Weight(ac.Escape) != 7 {
		t.Errorf("escape weight %d, want 7", v.Weight(ac.Escape))
	}

	v, err = Train(entries, WithMinWeight(35), WithEscapeWeight(3), WithEOFWeight(4))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v.Size() != 3 {
		t.Errorf("size %d, want 3", v.Size())
	}
	if v.Weight(ac.Escape) != 3 || v.Weight(ac.EOF) != 4 {
		t.Errorf("reserved weights %d %d", v.Weight(ac.Escape), v.Weight(ac.EOF))
	}
}

func TestTrainRescales(t *testing.T) {
	v, err := Train([]Entry{{"big", math.MaxUint64}, {"big", 0}, {"small", 1}})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v.Total() > ac.MaxTotal {
		t.Errorf("total %d above %d", v.Total(), ac.MaxTotal)
	}
	for s := ac.Symbol(0); int(s) < v.NumSymbols(); s++ {
		if v.Weight(s) == 0 {
			t.Errorf("symbol %d lost its weight", s)
		}
	}
	big, _ := v.Lookup("big")
	small, _ := v.Lookup("small")
	if v.Weight(big) <= v.Weight(small) {
		t.Errorf("rescaling broke the order: %d <= %d", v.Weight(big), v.Weight(small))
	}

	_, err = Train([]Entry{{"a", math.MaxUint64}, {"a", 1}})
	if !errors.Is(err, ac.ErrPrecisionOverflow) {
		t.Errorf("err = %v, want ErrPrecisionOverflow", err)
	}
}

func TestTrainRescalesHugeTotals(t *testing.T) {
	v, err := Train([]Entry{{"a", math.MaxUint64}, {"b", math.MaxUint64}, {"c", math.MaxUint64}})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v.Total() > ac.MaxTotal {
		t.Errorf("total %d above %d", v.Total(), ac.MaxTotal)
	}
	var weights []uint64
	for _, tok := range []string{"a", "b", "c"} {
		s, ok := v.Lookup(tok)
		if !ok {
			t.Fatalf("%q missing", tok)
		}
		weights = append(weights, v.Weight(s))
	}
	if weights[0] != weights[1] || weights[1] != weights[2] {
		t.Errorf("equal weights rescaled unequally: %v", weights)
	}
	if weights[0] < ac.MaxTotal/4 {
		t.Errorf("weight %d, want about a third of %d", weights[0], ac.MaxTotal)
	}
}

func TestTrainMalformed(t *testing.T) {
	_, err := Train([]Entry{{"\xff", 1}})
	if !errors.Is(err, ac.ErrMalformedInput) {
		t.Fatalf("err = %v, want ErrMalformedInput", err)
	}
}

func TestEmptyVocabulary(t *testing.T) {
	v, err := Train(nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v.Size() != 0 || v.Table().Len() != 2 {
		t.Errorf("size %d, table %d", v.Size(), v.Table().Len())
	}
}

func TestDistributionIsStatic(t *testing.T) {
	v, err := Train([]Entry{{"a", 3}, {"b", 1}})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	t1, err := v.Distribution(nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	t2, err := v.Distribution([]ac.Symbol{2, 3, 2})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if t1 != t2 || t1 != v.Table() {
		t.Errorf("static source returned different tables")
	}
}

func TestEntropy(t *testing.T) {
	// Four equally weighted symbols, escape and EOF included.
	v, err := Train([]Entry{{"a", 1}, {"b", 1}})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if h := v.Entropy(); math.Abs(h-2) > 1e-9 {
		t.Errorf("entropy %f, want 2", h)
	}
}

func TestSnapshot(t *testing.T) {
	v, err := Train([]Entry{{"hello", 10}, {" ", 100}, {"世界", 3}}, WithEscapeWeight(5))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	b, err := v.MarshalBinary()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	restored := new(Vocabulary)
	if err := restored.UnmarshalBinary(b); err != nil {
		t.Fatalf("%+v", err)
	}
	if !reflect.DeepEqual(restored.Weights(), v.Weights()) || !reflect.DeepEqual(restored.Entries(), v.Entries()) {
		t.Errorf("restored %v, want %v", restored.Entries(), v.Entries())
	}
	if restored.Checksum() != v.Checksum() {
		t.Errorf("checksum %x, want %x", restored.Checksum(), v.Checksum())
	}

	for i := 0; i < len(b); i++ {
		err := new(Vocabulary).UnmarshalBinary(b[:i])
		if !ac.IsIntegrity(err) {
			t.Fatalf("prefix %d: err = %v, want an integrity error", i, err)
		}
	}
	err = new(Vocabulary).UnmarshalBinary(append(append([]byte{}, b...), 0))
	if !errors.Is(err, ac.ErrMalformedArtifact) {
		t.Errorf("trailing byte: err = %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	v, err := Train(CountTokens([][]string{{"a", " ", "b"}, {"a", "!"}}))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var buf bytes.Buffer
	if err := v.Save(&buf); err != nil {
		t.Fatalf("%+v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if loaded.Checksum() != v.Checksum() {
		t.Errorf("checksum %x, want %x", loaded.Checksum(), v.Checksum())
	}

	_, err = Load(bytes.NewBufferString(`{"escape_weight": 0, "eof_weight": 1, "tokens": []}`))
	if !errors.Is(err, ac.ErrMalformedArtifact) {
		t.Errorf("err = %v, want ErrMalformedArtifact", err)
	}
	_, err = Load(bytes.NewBufferString(`{"escape_weight": 1, "eof_weight": 1, "tokens": [{"token": "a", "weight": 1}, {"token": "a", "weight": 2}]}`))
	if !errors.Is(err, ac.ErrMalformedArtifact) {
		t.Errorf("duplicate token: err = %v", err)
	}
}

func TestCountTokens(t *testing.T) {
	got := CountTokens([][]string{{"b", "a", "b"}, {"c"}})
	want := []Entry{{"a", 1}, {"b", 2}, {"c", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
