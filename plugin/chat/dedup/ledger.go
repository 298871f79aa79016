// Package dedup records which inbound chat events were already admitted.
package dedup

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

const (
	// DefaultCapacity is the size at which a key set is compacted.
	DefaultCapacity = 100

	// FingerprintLength is the number of leading runes hashed when an
	// event carries no message id.
	FingerprintLength = 50
)

// Event is the part of an inbound event the ledger looks at.
type Event struct {
	MessageID string
	Content   string
}

// Ledger admits each message id or content fingerprint at most once.
// Ids and fingerprints are tracked in separate sets; each set keeps
// insertion order and is compacted to its newest half when full, so
// entries dropped by compaction may be admitted again.
type Ledger struct {
	mu           sync.Mutex
	ids          *keySet
	fingerprints *keySet
}

// New creates a ledger. A capacity below 2 uses DefaultCapacity.
func New(capacity int) *Ledger {
	if capacity <= 1 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		ids:          newKeySet(capacity),
		fingerprints: newKeySet(capacity),
	}
}

// Admit reports whether ev is new, recording it if so.
func (l *Ledger) Admit(ev Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.MessageID != "" {
		return l.ids.add(ev.MessageID)
	}
	return l.fingerprints.add(Fingerprint(ev.Content))
}

// Contains reports whether the message id is currently recorded.
func (l *Ledger) Contains(messageID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids.index[messageID]
	return ok
}

// Len returns the number of recorded message ids.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ids.order.Len()
}

// Fingerprints returns the number of recorded content fingerprints.
func (l *Ledger) Fingerprints() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fingerprints.order.Len()
}

// IDs returns the recorded message ids, oldest first.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ids.keys()
}

// Fingerprint hashes the first FingerprintLength runes of content.
func Fingerprint(content string) string {
	runes := []rune(content)
	if len(runes) > FingerprintLength {
		runes = runes[:FingerprintLength]
	}
	sum := sha256.Sum256([]byte(string(runes)))
	return hex.EncodeToString(sum[:])
}

// keySet is an insertion ordered set of strings.
type keySet struct {
	capacity int
	retain   int
	index    map[string]*list.Element
	order    *list.List
}

func newKeySet(capacity int) *keySet {
	return &keySet{
		capacity: capacity,
		retain:   capacity / 2,
		index:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// add inserts key and reports whether it was absent.
func (s *keySet) add(key string) bool {
	if _, ok := s.index[key]; ok {
		return false
	}
	if s.order.Len() >= s.capacity {
		s.compact()
	}
	s.index[key] = s.order.PushBack(key)
	return true
}

// compact drops the oldest entries until retain remain.
func (s *keySet) compact() {
	for s.order.Len() > s.retain {
		front := s.order.Front()
		s.order.Remove(front)
		delete(s.index, front.Value.(string))
	}
}

func (s *keySet) keys() []string {
	out := make([]string, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(string))
	}
	return out
}
