package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bastiangx/nextword/pkg/ngram"
)

// SnapshotVersion is the current snapshot layout version.
const SnapshotVersion = 1

// maxReportedViolations bounds the errors joined into one ErrMalformedModel.
const maxReportedViolations = 16

// TokenCount is one trie entry.
type TokenCount struct {
	Token string `msgpack:"t" json:"token"`
	Count int    `msgpack:"c" json:"count"`
}

// NGramCount is one (context, next) transition count.
type NGramCount struct {
	Context []string `msgpack:"x" json:"context"`
	Next    string   `msgpack:"n" json:"next"`
	Count   int      `msgpack:"c" json:"count"`
}

// Snapshot is the serializable form of a Model, sufficient to rebuild it exactly.
type Snapshot struct {
	Version    int          `msgpack:"v" json:"version"`
	Order      int          `msgpack:"o" json:"order"`
	Vocabulary []TokenCount `msgpack:"voc" json:"vocabulary"`
	NGrams     []NGramCount `msgpack:"ng" json:"ngrams"`
}

// Snapshot captures the model in a deterministic order: vocabulary by token, n-grams by
// context length, context and next token.
func (m *Model) Snapshot() *Snapshot {
	s := &Snapshot{
		Version:    SnapshotVersion,
		Order:      m.Order(),
		Vocabulary: make([]TokenCount, 0, m.Trie.Len()),
	}
	for tok, c := range m.Trie.All() {
		s.Vocabulary = append(s.Vocabulary, TokenCount{Token: tok, Count: c})
	}
	slices.SortFunc(s.Vocabulary, func(a, b TokenCount) int {
		return strings.Compare(a.Token, b.Token)
	})

	for size := 0; size < m.Order(); size++ {
		start := len(s.NGrams)
		for ctx, row := range m.NGrams.Contexts(size) {
			tokens := ctx.Tokens()
			for next, c := range row.All() {
				s.NGrams = append(s.NGrams, NGramCount{Context: tokens, Next: next, Count: c})
			}
		}
		slices.SortFunc(s.NGrams[start:], compareNGram)
	}
	return s
}

func compareNGram(a, b NGramCount) int {
	if c := slices.Compare(a.Context, b.Context); c != 0 {
		return c
	}
	return strings.Compare(a.Next, b.Next)
}

// FromSnapshot validates s and rebuilds a frozen model. Every invariant violation is
// reported, joined under ErrMalformedModel; no model is returned in that case.
func FromSnapshot(s *Snapshot) (*Model, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrMalformedModel)
	}
	if errs := s.validate(); len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrMalformedModel}, errs...)...)
	}

	m, err := New(s.Order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedModel, err)
	}
	for _, tc := range s.Vocabulary {
		if err := m.Trie.Insert(tc.Token, tc.Count); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedModel, err)
		}
	}
	for _, ng := range s.NGrams {
		if err := m.NGrams.Add(ngram.NewContext(ng.Context...), ng.Next, ng.Count); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedModel, err)
		}
	}
	m.Freeze()
	return m, nil
}

func (s *Snapshot) validate() []error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	full := func() bool { return len(errs) >= maxReportedViolations }

	if s.Version != SnapshotVersion {
		bad("unsupported snapshot version %d", s.Version)
	}
	if s.Order < 1 || s.Order > ngram.MaxOrder {
		bad("order %d out of range 1..%d", s.Order, ngram.MaxOrder)
		return errs
	}

	vocab := make(map[string]struct{}, len(s.Vocabulary))
	for i, tc := range s.Vocabulary {
		if tc.Token == "" {
			bad("vocabulary[%d]: empty token", i)
		} else if _, dup := vocab[tc.Token]; dup {
			bad("vocabulary[%d]: duplicate token %q", i, tc.Token)
		}
		if tc.Count < 0 {
			bad("vocabulary[%d] %q: negative count %d", i, tc.Token, tc.Count)
		}
		vocab[tc.Token] = struct{}{}
		if full() {
			return errs
		}
	}

	seen := make(map[string]struct{}, len(s.NGrams))
	for i, ng := range s.NGrams {
		if len(ng.Context) >= s.Order {
			bad("ngrams[%d]: context of %d tokens exceeds order %d", i, len(ng.Context), s.Order)
		}
		if ng.Count <= 0 {
			bad("ngrams[%d]: non-positive count %d", i, ng.Count)
		}
		for _, tok := range ng.Context {
			if _, known := vocab[tok]; !known || tok == "" {
				bad("ngrams[%d]: context token %q not in vocabulary", i, tok)
			}
		}
		if _, known := vocab[ng.Next]; !known || ng.Next == "" {
			bad("ngrams[%d]: next token %q not in vocabulary", i, ng.Next)
		}
		key := strings.Join(ng.Context, "\x00") + "\x01" + ng.Next
		if _, dup := seen[key]; dup {
			bad("ngrams[%d]: duplicate transition %v -> %q", i, ng.Context, ng.Next)
		}
		seen[key] = struct{}{}
		if full() {
			return errs
		}
	}
	return errs
}
