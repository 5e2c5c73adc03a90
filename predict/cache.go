package predict

import (
	"encoding/binary"

	"github.com/fumin/tokcodec/ac"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// Cache memoizes a Predictor by context.
// Batch sessions over similar texts repeat short contexts often, and every session starts from the empty one.
// A Cache is safe for concurrent use if the wrapped Predictor is.
type Cache struct {
	p   Predictor
	lru *lru.Cache[string, []float64]
}

// NewCache keeps the predictions of up to size distinct contexts.
func NewCache(p Predictor, size int) (*Cache, error) {
	l, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &Cache{p: p, lru: l}, nil
}

// Predict returns the cached vector for context, calling the wrapped Predictor on a miss.
// The returned slice is shared and must not be modified.
func (c *Cache) Predict(context []ac.Symbol) ([]float64, error) {
	key := contextKey(context)
	if probs, ok := c.lru.Get(key); ok {
		return probs, nil
	}
	probs, err := c.p.Predict(context)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, probs)
	return probs, nil
}

// Len returns the number of cached contexts.
func (c *Cache) Len() int {
	return c.lru.Len()
}

func contextKey(context []ac.Symbol) string {
	b := make([]byte, 0, 2*len(context))
	for _, s := range context {
		b = binary.AppendUvarint(b, uint64(s))
	}
	return string(b)
}
