package predict

import (
	"math"
	"reflect"
	"testing"

	"github.com/fumin/tokcodec/ac"
	"github.com/pkg/errors"
)

// TestUpdateSunehag tests the examples in the slides by Peter Sunehag and Marcus Hutter
// http://cs.anu.edu.au/courses/COMP4620/2013/slides-ctw.pdf
func TestUpdateSunehag(t *testing.T) {
	root := &treeNode{}
	depth := 3
	bits := []uint8{1, 1, 0}

	source := []uint8{0, 1, 0, 0, 1, 1, 0}
	for _, b := range source {
		update(root, bits[len(bits)-depth:], b)
		bits = append(bits, b)
	}
	if math.Abs(root.logProb-math.Log(7.0/2048)) > 1e-8 {
		t.Errorf("%f", root.logProb)
	}

	b := uint8(0)
	update(root, bits[len(bits)-depth:], b)
	if math.Abs(root.logProb-math.Log(153.0/65536)) > 1e-8 {
		t.Errorf("%f", root.logProb)
	}
}

// TestUpdateEIDMA tests the examle in the EIDMA report by F.M.J. Willems and Tj. J. Tjalkens.
func TestUpdateEIDMA(t *testing.T) {
	root := &treeNode{}
	depth := 3
	bits := []uint8{0, 1, 0}

	source := []uint8{0, 1, 1, 0, 1, 0, 0}
	for _, b := range source {
		update(root, bits[len(bits)-depth:], b)
		bits = append(bits, b)
	}
	if math.Abs(root.logProb-math.Log(95.0/32768)) > 1e-8 {
		t.Errorf("%f", root.logProb)
	}
}

// TestRevert tests that a reverted update leaves the tree exactly as it was, new nodes included.
func TestRevert(t *testing.T) {
	build := func() *treeNode {
		root := &treeNode{}
		bits := []uint8{0, 1, 0}
		for _, b := range []uint8{0, 1, 1, 0, 1} {
			update(root, bits[len(bits)-3:], b)
			bits = append(bits, b)
		}
		return root
	}
	want := build()

	root := build()
	for _, context := range [][]uint8{{1, 1, 1}, {0, 0, 0}, {1, 0, 1}} {
		for _, b := range []uint8{0, 1} {
			traversed := update(root, context, b)
			revert(traversed)
			if !reflect.DeepEqual(root, want) {
				t.Fatalf("context %v bit %d: tree changed", context, b)
			}
		}
	}
}

func TestCTWSumsToOne(t *testing.T) {
	for _, n := range []int{1, 2, 5, 8, 13} {
		m, err := NewCTW(n, 0)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		contexts := [][]ac.Symbol{{}, {0}, {ac.Symbol(n - 1), 0, ac.Symbol(n - 1)}}
		for _, context := range contexts {
			probs, err := m.Predict(context)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if len(probs) != n {
				t.Fatalf("%d probabilities, want %d", len(probs), n)
			}
			var sum float64
			for _, p := range probs {
				if p <= 0 {
					t.Errorf("n %d context %v: probability %v", n, context, p)
				}
				sum += p
			}
			// Bit strings beyond n-1 take some mass when n is not a power of two.
			if sum > 1+1e-9 || (n > 1 && n&(n-1) == 0 && math.Abs(sum-1) > 1e-9) {
				t.Errorf("n %d context %v: sum %v", n, context, sum)
			}
		}
	}
}

func TestCTWDependsOnlyOnContext(t *testing.T) {
	context := []ac.Symbol{3, 4, 3, 4, 3, 2, 5, 3, 4}

	fresh, err := NewCTW(6, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	want, err := fresh.Predict(context)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	m, err := NewCTW(6, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for i := range context {
		if _, err := m.Predict(context[:i]); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	// Grown one symbol at a time, then repeated, then rebuilt after an unrelated context.
	for i, other := range [][]ac.Symbol{nil, nil, {1, 1, 1}} {
		if other != nil {
			if _, err := m.Predict(other); err != nil {
				t.Fatalf("%+v", err)
			}
		}
		got, err := m.Predict(context)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("call %d: got %v, want %v", i, got, want)
		}
	}
}

func TestCTWLearns(t *testing.T) {
	m, err := NewCTW(10, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var context []ac.Symbol
	for i := 0; i < 30; i++ {
		context = append(context, 7, 2)
	}
	probs, err := m.Predict(context)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if probs[7] < 0.5 {
		t.Errorf("P(7 after 7 2 ...) = %f, want above 0.5", probs[7])
	}
	probs, err = m.Predict(append(context, 7))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if probs[2] < 0.5 {
		t.Errorf("P(2 after ... 7) = %f, want above 0.5", probs[2])
	}
}

func TestCTWErrors(t *testing.T) {
	if _, err := NewCTW(0, 0); err == nil {
		t.Errorf("zero symbols should fail")
	}
	if _, err := NewCTW(4, MaxDepth+1); err == nil {
		t.Errorf("depth %d should fail", MaxDepth+1)
	}
	m, err := NewCTW(4, 4)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := m.Predict([]ac.Symbol{1, 4}); !errors.Is(err, ac.ErrVocabularyMismatch) {
		t.Errorf("err = %v, want ErrVocabularyMismatch", err)
	}
}

func TestCTWQuantizes(t *testing.T) {
	m, err := NewCTW(7, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	a, err := NewAdaptive(m, 7, 12)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	table, err := a.Distribution([]ac.Symbol{2, 3, 2, 3})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if table.Total() != 1<<12 || table.Len() != 7 {
		t.Errorf("total %d len %d", table.Total(), table.Len())
	}
}
