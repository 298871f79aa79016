// Package ident generates client-side message identifiers.
package ident

import (
	"strconv"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// suffixLength is the number of shortuuid characters kept per id.
const suffixLength = 9

// Generator produces ids of the form <unix-ms base36>-<counter base36>-<random>.
// The counter makes ids unique within one generator even when the clock
// does not advance between calls.
type Generator struct {
	now func() time.Time

	mu      sync.Mutex
	counter uint64
}

// New returns a Generator reading time from now. A nil now uses time.Now.
func New(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Next returns a new identifier.
func (g *Generator) Next() string {
	g.mu.Lock()
	g.counter++
	n := g.counter
	g.mu.Unlock()

	suffix := shortuuid.New()
	if len(suffix) > suffixLength {
		suffix = suffix[:suffixLength]
	}

	return strconv.FormatInt(g.now().UnixMilli(), 36) + "-" +
		strconv.FormatUint(n, 36) + "-" + suffix
}
