// Package trie stores every distinct training token with its total occurrence count
// and answers prefix enumeration queries over a Patricia trie.
package trie

import (
	"errors"
	"fmt"
	"iter"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

var (
	// ErrInvalidToken is returned when an empty token is inserted.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidCount is returned when a negative count is inserted.
	ErrInvalidCount = errors.New("invalid count")
	// ErrFrozen is returned when inserting into a trie that was already frozen.
	ErrFrozen = errors.New("trie is frozen")

	errStopVisit = errors.New("stop visit")
)

// Trie is a frequency trie. Nodes holding an item are complete tokens, the item being
// the accumulated frequency. Interior nodes exist only as prefixes of longer tokens.
//
// Insert is not safe for concurrent use. After Freeze the trie is read-only and
// may be queried from any number of goroutines.
type Trie struct {
	root         *patricia.Trie
	size         int
	total        int
	maxFrequency int
	frozen       bool
}

// New returns an empty trie in its accumulation phase.
func New() *Trie {
	return &Trie{root: patricia.NewTrie()}
}

// Insert adds count to the stored frequency of token, marking it complete.
// Repeated inserts accumulate.
func (t *Trie) Insert(token string, count int) error {
	if t.frozen {
		return ErrFrozen
	}
	if token == "" {
		return fmt.Errorf("insert: %w: empty token", ErrInvalidToken)
	}
	if count < 0 {
		return fmt.Errorf("insert %q: %w: %d", token, ErrInvalidCount, count)
	}

	key := patricia.Prefix(token)
	freq := count
	if item := t.root.Get(key); item != nil {
		freq += frequencyOf(item, token)
	} else {
		t.size++
	}
	t.root.Set(key, freq)

	t.total += count
	if freq > t.maxFrequency {
		t.maxFrequency = freq
	}
	return nil
}

// Frequency returns the stored frequency of an exact token, or 0 when the token was
// never inserted.
func (t *Trie) Frequency(token string) int {
	if token == "" {
		return 0
	}
	item := t.root.Get(patricia.Prefix(token))
	if item == nil {
		return 0
	}
	return frequencyOf(item, token)
}

// Contains reports whether token is a complete token in the trie.
func (t *Trie) Contains(token string) bool {
	return token != "" && t.root.Get(patricia.Prefix(token)) != nil
}

// WithPrefix returns a lazy sequence of (token, frequency) pairs for every complete
// token below prefix, including prefix itself when it is a token. Each call starts a
// fresh traversal limited to the prefix subtree; an unknown prefix yields nothing.
// The traversal order is unspecified.
func (t *Trie) WithPrefix(prefix string) iter.Seq2[string, int] {
	return func(yield func(string, int) bool) {
		visit := func(p patricia.Prefix, item patricia.Item) error {
			word := string(p)
			if !yield(word, frequencyOf(item, word)) {
				return errStopVisit
			}
			return nil
		}

		var err error
		if prefix == "" {
			err = t.root.Visit(visit)
		} else {
			err = t.root.VisitSubtree(patricia.Prefix(prefix), visit)
		}
		if err != nil && !errors.Is(err, errStopVisit) {
			log.Errorf("Error visiting trie subtree %q: %v", prefix, err)
		}
	}
}

// All enumerates every complete token in the trie.
func (t *Trie) All() iter.Seq2[string, int] {
	return t.WithPrefix("")
}

// Freeze ends the accumulation phase. Subsequent inserts fail with ErrFrozen.
func (t *Trie) Freeze() {
	t.frozen = true
}

// Frozen reports whether Freeze was called.
func (t *Trie) Frozen() bool {
	return t.frozen
}

// Len returns the number of distinct complete tokens.
func (t *Trie) Len() int {
	return t.size
}

// Total returns the sum of all inserted counts.
func (t *Trie) Total() int {
	return t.total
}

// MaxFrequency returns the highest frequency of any single token.
func (t *Trie) MaxFrequency() int {
	return t.maxFrequency
}

func frequencyOf(item patricia.Item, token string) int {
	switch v := item.(type) {
	case int:
		return v
	default:
		log.Errorf("Unknown item type: %T for token %s", item, token)
		return 0
	}
}
