package wake

import (
	"math/rand"
	"sync"
)

// ResponsePicker selects a spoken response from a configured pool. The random
// source is injected so tests can make selection deterministic.
type ResponsePicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewResponsePicker creates a picker backed by the given source.
func NewResponsePicker(src rand.Source) *ResponsePicker {
	return &ResponsePicker{rng: rand.New(src)}
}

// Pick returns a uniformly random element of pool, or "" for an empty pool.
func (p *ResponsePicker) Pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return pool[p.rng.Intn(len(pool))]
}
