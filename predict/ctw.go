package predict

import (
	"math"
	"math/bits"
	"sync"

	"github.com/fumin/tokcodec/ac"
	"github.com/pkg/errors"
)

// MaxDepth bounds the context of a CTW in bits.
const MaxDepth = 64

// logaddexp performs log(exp(x) + exp(y))
func logaddexp(x, y float64) float64 {
	if x > y {
		return x + math.Log1p(math.Exp(y-x))
	}
	return y + math.Log1p(math.Exp(x-y))
}

// treeNode is a suffix of the bit history in a Context Tree Weighting.
// It holds the log probability of the bits that followed the suffix.
type treeNode struct {
	logProb float64 // weighted log probability of suffix

	zeros uint32  // number of zeros with suffix
	ones  uint32  // number of ones with suffix
	lktp  float64 // log probability of the Krichevsky-Trofimov (KT) estimate, given zeros and ones

	one  *treeNode // the longer suffix that ends with one
	zero *treeNode // the longer suffix that ends with zero
}

type snapshot struct {
	node  *treeNode
	state treeNode
	isNew bool
}

// revert undoes the update that traversed the given nodes.
// Nodes created by the update are detached again, so that a reverted tree equals the tree before the update.
func revert(traversed []snapshot) {
	for i, ss := range traversed {
		if ss.isNew {
			// Deeper nodes hang below this one.
			parent := traversed[i-1].node
			if parent.zero == ss.node {
				parent.zero = nil
			} else {
				parent.one = nil
			}
			return
		}
		node := ss.node
		node.logProb = ss.state.logProb
		node.zeros = ss.state.zeros
		node.ones = ss.state.ones
		node.lktp = ss.state.lktp
	}
}

// update updates the tree according to the rules of CTW.
// context holds the preceding bits, most recent last, and len(context) is the depth of the tree.
// bit is the new bit following the context.
func update(root *treeNode, context []uint8, bit uint8) []snapshot {
	// Update the counts of zeros and ones of each node.
	traversed := make([]snapshot, 0, len(context)+1)
	node := root
	traversed = append(traversed, snapshot{node: node, state: *node})
	krichevskyTrofimov(node, bit)

	for d := 0; d < len(context); d++ {
		isNew := false
		if context[len(context)-1-d] == 0 {
			if node.zero == nil {
				node.zero = &treeNode{}
				isNew = true
			}
			node = node.zero
		} else {
			if node.one == nil {
				node.one = &treeNode{}
				isNew = true
			}
			node = node.one
		}
		traversed = append(traversed, snapshot{node: node, state: *node, isNew: isNew})
		krichevskyTrofimov(node, bit)
	}

	// Update the weighted probabilities bottom up.
	for i := len(traversed) - 1; i >= 0; i-- {
		node := traversed[i].node
		if node.zero == nil && node.one == nil {
			node.logProb = node.lktp
			continue
		}
		var lp, rp float64
		if node.one != nil {
			lp = node.one.logProb
		}
		if node.zero != nil {
			rp = node.zero.logProb
		}
		node.logProb = logaddexp(math.Log(0.5)+node.lktp, math.Log(0.5)+lp+rp)
	}
	return traversed
}

// krichevskyTrofimov updates the Krichevsky-Trofimov estimate of a node given a new observed bit.
func krichevskyTrofimov(node *treeNode, bit uint8) {
	a := float64(node.zeros)
	b := float64(node.ones)
	if bit == 0 {
		node.lktp += math.Log(a+0.5) - math.Log(a+b+1)
		node.zeros++
	} else {
		node.lktp += math.Log(b+0.5) - math.Log(a+b+1)
		node.ones++
	}
}

// A CTW is a Context Tree Weighting predictor.
// Each symbol is written as a fixed width bit string, most significant bit first,
// and a context tree over the last depth bits of the history weighs every bit.
// The probability of a symbol is the product of the probabilities of its bits.
//
// A CTW learns from the context it is asked about. It keeps the tree of the last context
// and extends it when the next context continues that one, as within a coding session,
// and rebuilds it otherwise. Calls are serialized, so concurrent sessions should use their own CTW.
// A prediction walks the bits of every symbol, so wrap large vocabularies in a Cache.
type CTW struct {
	n     int
	width int

	mu      sync.Mutex
	root    *treeNode
	bits    []uint8 // last depth bits of the history, most recent last
	history []ac.Symbol
}

// NewCTW returns a CTW over numSymbols symbols whose contexts span depth bits.
// A depth of 0 selects two symbols' worth of bits.
func NewCTW(numSymbols, depth int) (*CTW, error) {
	if numSymbols < 1 {
		return nil, errors.Errorf("%d symbols", numSymbols)
	}
	width := bits.Len(uint(numSymbols - 1))
	if width == 0 {
		width = 1
	}
	if depth == 0 {
		depth = min(2*width, MaxDepth)
	}
	if depth < 0 || depth > MaxDepth {
		return nil, errors.Errorf("depth %d not in [1, %d]", depth, MaxDepth)
	}
	m := &CTW{n: numSymbols, width: width, bits: make([]uint8, depth)}
	m.reset()
	return m, nil
}

func (m *CTW) reset() {
	m.root = &treeNode{}
	clear(m.bits)
	m.history = m.history[:0]
}

// Predict implements Predictor.
func (m *CTW) Predict(context []ac.Symbol) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !extends(context, m.history) {
		m.reset()
	}
	for _, s := range context[len(m.history):] {
		if int(s) >= m.n {
			return nil, errors.Wrapf(ac.ErrVocabularyMismatch, "symbol %d not among %d", s, m.n)
		}
		m.observe(s)
	}

	probs := make([]float64, m.n)
	m.fill(probs, 0, 0, 1)
	return probs, nil
}

func extends(context, history []ac.Symbol) bool {
	if len(context) < len(history) {
		return false
	}
	for i, s := range history {
		if context[i] != s {
			return false
		}
	}
	return true
}

func (m *CTW) observe(s ac.Symbol) {
	for i := m.width - 1; i >= 0; i-- {
		bit := uint8(s>>uint(i)) & 1
		update(m.root, m.bits, bit)
		m.push(bit)
	}
	m.history = append(m.history, s)
}

// fill writes the probability of every symbol starting with the level bits of prefix,
// p being the probability of the prefix itself.
// Each branch is tried on the tree and reverted afterwards.
func (m *CTW) fill(probs []float64, prefix uint64, level int, p float64) {
	if level == m.width {
		probs[prefix] = p
		return
	}
	before := m.root.logProb
	for bit := uint8(0); bit < 2; bit++ {
		child := prefix<<1 | uint64(bit)
		// Skip bit strings that name no symbol.
		if child<<uint(m.width-level-1) >= uint64(m.n) {
			continue
		}
		traversed := update(m.root, m.bits, bit)
		pb := math.Exp(m.root.logProb - before)
		dropped := m.push(bit)
		m.fill(probs, child, level+1, p*pb)
		m.pop(dropped)
		revert(traversed)
	}
}

// push appends bit to the context and returns the bit that fell out of it.
func (m *CTW) push(bit uint8) uint8 {
	dropped := m.bits[0]
	copy(m.bits, m.bits[1:])
	m.bits[len(m.bits)-1] = bit
	return dropped
}

// pop undoes push.
func (m *CTW) pop(dropped uint8) {
	copy(m.bits[1:], m.bits[:len(m.bits)-1])
	m.bits[0] = dropped
}
