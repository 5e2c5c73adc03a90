// Package prefix implements Huffman coding of symbols.
//
// Code construction is deterministic. Nodes are merged in order of (weight, key), where a leaf's key is its symbol
// and merged nodes receive increasing keys after all leaves, in creation order.
// The first node taken from the queue becomes the 0 branch and the second the 1 branch.
// A code with a single symbol assigns it the one bit codeword 0.
package prefix

import (
	"container/heap"
	"strings"

	"github.com/fumin/tokcodec/ac"
	"github.com/pkg/errors"
)

type node struct {
	weight uint64
	key    int
	sym    ac.Symbol
	zero   *node
	one    *node
}

func (n *node) leaf() bool {
	return n.zero == nil
}

// nodeHeap is the priority queue used during tree building.
type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].key < h[j].key
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) {
	*h = append(*h, x.(*node))
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type codeword struct {
	bits  uint64
	width uint8
}

// A Code is an immutable Huffman code, safe for concurrent use.
type Code struct {
	root    *node
	words   []codeword
	weights []uint64
}

// New builds a Huffman code from weights indexed by symbol.
// Symbols of zero weight receive no codeword.
// The total weight must not exceed ac.MaxTotal, which bounds codewords well below 64 bits.
func New(weights []uint64) (*Code, error) {
	h := make(nodeHeap, 0, len(weights))
	var total uint64
	for i, w := range weights {
		if w == 0 {
			continue
		}
		total += w
		if total > ac.MaxTotal {
			return nil, errors.Wrapf(ac.ErrPrecisionOverflow, "total weight exceeds %d", ac.MaxTotal)
		}
		h = append(h, &node{weight: w, key: i, sym: ac.Symbol(i)})
	}
	if len(h) == 0 {
		return nil, errors.Wrap(ac.ErrPrecisionOverflow, "no symbol to code")
	}
	heap.Init(&h)

	key := len(weights)
	for h.Len() > 1 {
		a := heap.Pop(&h).(*node)
		b := heap.Pop(&h).(*node)
		heap.Push(&h, &node{weight: a.weight + b.weight, key: key, zero: a, one: b})
		key++
	}

	c := &Code{
		root:    h[0],
		words:   make([]codeword, len(weights)),
		weights: append([]uint64(nil), weights...),
	}
	if c.root.leaf() {
		c.words[c.root.sym] = codeword{bits: 0, width: 1}
	} else {
		c.assign(c.root, 0, 0)
	}
	return c, nil
}

func (c *Code) assign(n *node, bits uint64, width uint8) {
	if n.leaf() {
		c.words[n.sym] = codeword{bits: bits, width: width}
		return
	}
	c.assign(n.zero, bits<<1, width+1)
	c.assign(n.one, bits<<1|1, width+1)
}

// Codeword returns the codeword of s as a string of '0' and '1'.
// ok is false for symbols without a codeword.
func (c *Code) Codeword(s ac.Symbol) (string, bool) {
	if int(s) >= len(c.words) || c.words[s].width == 0 {
		return "", false
	}
	cw := c.words[s]
	var b strings.Builder
	for i := int(cw.width) - 1; i >= 0; i-- {
		if cw.bits>>uint(i)&1 == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String(), true
}

// Codebook returns the codewords of all coded symbols.
func (c *Code) Codebook() map[ac.Symbol]string {
	book := make(map[ac.Symbol]string)
	for s := range c.words {
		if cw, ok := c.Codeword(ac.Symbol(s)); ok {
			book[ac.Symbol(s)] = cw
		}
	}
	return book
}

// Length returns the codeword length of s, or 0 if s has no codeword.
func (c *Code) Length(s ac.Symbol) int {
	if int(s) >= len(c.words) {
		return 0
	}
	return int(c.words[s].width)
}

// AverageLength returns the expected codeword length in bits under the weights the code was built from.
func (c *Code) AverageLength() float64 {
	var total, sum float64
	for s, w := range c.weights {
		total += float64(w)
		sum += float64(w) * float64(c.words[s].width)
	}
	return sum / total
}
