// Package model pairs the frequency trie and the n-gram table into one trained
// language model. A Model is built by Train or FromSnapshot and is read-only once
// returned.
package model

import (
	"errors"
	"fmt"

	"github.com/bastiangx/nextword/pkg/ngram"
	"github.com/bastiangx/nextword/pkg/trie"
)

// DefaultOrder is the trigram order.
const DefaultOrder = 3

var (
	// ErrInvalidToken is returned when training meets an empty token.
	ErrInvalidToken = trie.ErrInvalidToken
	// ErrMalformedModel is returned when persisted state violates model invariants.
	ErrMalformedModel = errors.New("malformed model")
)

// Model is a trained backoff language model.
type Model struct {
	Trie   *trie.Trie
	NGrams *ngram.Table
}

// New returns an empty, unfrozen model of the given order.
func New(order int) (*Model, error) {
	tbl, err := ngram.NewTable(order)
	if err != nil {
		return nil, err
	}
	return &Model{Trie: trie.New(), NGrams: tbl}, nil
}

// Order returns the n-gram order of the model.
func (m *Model) Order() int {
	return m.NGrams.Order()
}

// Freeze makes both structures read-only.
func (m *Model) Freeze() {
	m.Trie.Freeze()
	m.NGrams.Freeze()
}

// Frozen reports whether the model is ready for querying.
func (m *Model) Frozen() bool {
	return m.Trie.Frozen() && m.NGrams.Frozen()
}

// Stats summarizes the size of the model.
type Stats struct {
	Order        int
	Vocabulary   int
	Tokens       int
	MaxFrequency int
	Contexts     []int
}

// Stats returns counts describing the model.
func (m *Model) Stats() Stats {
	s := Stats{
		Order:        m.Order(),
		Vocabulary:   m.Trie.Len(),
		Tokens:       m.Trie.Total(),
		MaxFrequency: m.Trie.MaxFrequency(),
		Contexts:     make([]int, m.Order()),
	}
	for i := range s.Contexts {
		s.Contexts[i] = m.NGrams.Rows(i)
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("order=%d vocabulary=%d tokens=%d max_frequency=%d contexts=%v",
		s.Order, s.Vocabulary, s.Tokens, s.MaxFrequency, s.Contexts)
}
