// Package ngram holds the conditional next-token counts of a backoff language model.
//
// A Table of order n keeps one layer per context length 0..n-1. Each layer maps a
// Context to a Row of next-token counts. Probabilities are derived on demand as
// count/total within a row, so they always sum to 1 for any observed context.
package ngram

import (
	"errors"
	"fmt"
	"iter"
	"sort"
)

var (
	// ErrInvalidOrder is returned for orders outside 1..MaxOrder.
	ErrInvalidOrder = errors.New("invalid n-gram order")
	// ErrContextTooLong is returned when a context is not shorter than the table order.
	ErrContextTooLong = errors.New("context too long for table order")
	// ErrInvalidToken is returned for empty tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidCount is returned for non-positive counts.
	ErrInvalidCount = errors.New("invalid count")
	// ErrFrozen is returned when observing into a frozen table.
	ErrFrozen = errors.New("table is frozen")
)

// Entry is one next-token candidate of a row.
type Entry struct {
	Token       string
	Count       int
	Probability float64
}

// Row is the next-token distribution following one context.
type Row struct {
	counts map[string]int
	total  int
	// ranked holds the tokens sorted by count desc, token asc. Built by Freeze.
	ranked []string
}

func newRow() *Row {
	return &Row{counts: make(map[string]int)}
}

// Count returns the number of times token followed this row's context.
func (r *Row) Count(token string) int {
	return r.counts[token]
}

// Total returns the sum of all counts in the row.
func (r *Row) Total() int {
	return r.total
}

// Len returns the number of distinct next tokens.
func (r *Row) Len() int {
	return len(r.counts)
}

// All enumerates the row's (token, count) pairs in unspecified order.
func (r *Row) All() iter.Seq2[string, int] {
	return func(yield func(string, int) bool) {
		for tok, c := range r.counts {
			if !yield(tok, c) {
				return
			}
		}
	}
}

func (r *Row) add(token string, count int) {
	r.counts[token] += count
	r.total += count
	r.ranked = nil
}

func (r *Row) rank() []string {
	if r.ranked != nil {
		return r.ranked
	}
	ranked := make([]string, 0, len(r.counts))
	for tok := range r.counts {
		ranked = append(ranked, tok)
	}
	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := r.counts[ranked[i]], r.counts[ranked[j]]
		if ci != cj {
			return ci > cj
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

func (r *Row) entry(token string) Entry {
	c := r.counts[token]
	var p float64
	if r.total > 0 {
		p = float64(c) / float64(r.total)
	}
	return Entry{Token: token, Count: c, Probability: p}
}

// layer holds every row whose context has the same length.
type layer struct {
	rows map[Context]*Row
}

func (l *layer) getOrCreateRow(ctx Context) *Row {
	row, ok := l.rows[ctx]
	if !ok {
		row = newRow()
		l.rows[ctx] = row
	}
	return row
}

// Table is an n-gram count table. Observe is not safe for concurrent use; after
// Freeze the table is read-only and safe for concurrent queries.
type Table struct {
	order  int
	layers []*layer
	frozen bool
}

// NewTable returns an empty table of order n (1 = unigram, 2 = bigram, ...).
func NewTable(n int) (*Table, error) {
	if n < 1 || n > MaxOrder {
		return nil, fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidOrder, n, MaxOrder)
	}
	t := &Table{order: n, layers: make([]*layer, n)}
	for i := range t.layers {
		t.layers[i] = &layer{rows: make(map[Context]*Row)}
	}
	return t, nil
}

// Order returns the table order n. Contexts are at most n-1 tokens long.
func (t *Table) Order() int {
	return t.order
}

// Observe records one occurrence of next following ctx.
func (t *Table) Observe(ctx Context, next string) error {
	return t.Add(ctx, next, 1)
}

// Add records count occurrences of next following ctx.
func (t *Table) Add(ctx Context, next string, count int) error {
	if t.frozen {
		return ErrFrozen
	}
	if ctx.Len() >= t.order {
		return fmt.Errorf("%w: %d tokens for order %d", ErrContextTooLong, ctx.Len(), t.order)
	}
	if next == "" {
		return fmt.Errorf("%w: empty next token", ErrInvalidToken)
	}
	for _, tok := range ctx.tokens[:ctx.size] {
		if tok == "" {
			return fmt.Errorf("%w: empty context token in %q", ErrInvalidToken, ctx)
		}
	}
	if count <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	t.layers[ctx.Len()].getOrCreateRow(ctx).add(next, count)
	return nil
}

// ObserveSentence slides every window of length 1..n over tokens and records each
// one. Windows never extend beyond the slice, so callers bound them by passing one
// sentence at a time.
func (t *Table) ObserveSentence(tokens []string) error {
	for i, next := range tokens {
		for k := 0; k < t.order && k <= i; k++ {
			if err := t.Observe(Tail(tokens[:i], k), next); err != nil {
				return err
			}
		}
	}
	return nil
}

// Row returns the row for ctx, if ctx was ever observed.
func (t *Table) Row(ctx Context) (*Row, bool) {
	if ctx.Len() >= t.order {
		return nil, false
	}
	row, ok := t.layers[ctx.Len()].rows[ctx]
	return row, ok
}

// Seen reports whether ctx was ever observed with a non-zero total.
func (t *Table) Seen(ctx Context) bool {
	row, ok := t.Row(ctx)
	return ok && row.total > 0
}

// Count returns how often next followed ctx.
func (t *Table) Count(ctx Context, next string) int {
	if row, ok := t.Row(ctx); ok {
		return row.counts[next]
	}
	return 0
}

// Total returns the total count of ctx's row, 0 if unseen.
func (t *Table) Total(ctx Context) int {
	if row, ok := t.Row(ctx); ok {
		return row.total
	}
	return 0
}

// Probability returns P(next | ctx) without backoff.
func (t *Table) Probability(ctx Context, next string) float64 {
	row, ok := t.Row(ctx)
	if !ok || row.total == 0 {
		return 0
	}
	return float64(row.counts[next]) / float64(row.total)
}

// ProbabilityRow returns the full conditional distribution for ctx, or nil if the
// context was never observed.
func (t *Table) ProbabilityRow(ctx Context) map[string]float64 {
	row, ok := t.Row(ctx)
	if !ok || row.total == 0 {
		return nil
	}
	out := make(map[string]float64, len(row.counts))
	for tok, c := range row.counts {
		out[tok] = float64(c) / float64(row.total)
	}
	return out
}

// TopN returns the n most probable next tokens for ctx, ordered by probability desc,
// then count desc, then token asc. n <= 0 returns the whole row.
func (t *Table) TopN(ctx Context, n int) []Entry {
	row, ok := t.Row(ctx)
	if !ok || row.total == 0 {
		return nil
	}
	ranked := row.rank()
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	out := make([]Entry, len(ranked))
	for i, tok := range ranked {
		out[i] = row.entry(tok)
	}
	return out
}

// TopNWithTies is TopN extended with every further entry whose count equals the
// n-th one, so callers can apply their own tie-breaks before truncating.
func (t *Table) TopNWithTies(ctx Context, n int) []Entry {
	row, ok := t.Row(ctx)
	if !ok || row.total == 0 {
		return nil
	}
	ranked := row.rank()
	if n > 0 && n < len(ranked) {
		cut := n
		last := row.counts[ranked[n-1]]
		for cut < len(ranked) && row.counts[ranked[cut]] == last {
			cut++
		}
		ranked = ranked[:cut]
	}
	out := make([]Entry, len(ranked))
	for i, tok := range ranked {
		out[i] = row.entry(tok)
	}
	return out
}

// Contexts enumerates every observed context of the given length with its row.
func (t *Table) Contexts(size int) iter.Seq2[Context, *Row] {
	return func(yield func(Context, *Row) bool) {
		if size < 0 || size >= t.order {
			return
		}
		for ctx, row := range t.layers[size].rows {
			if !yield(ctx, row) {
				return
			}
		}
	}
}

// Rows returns the number of observed contexts of the given length.
func (t *Table) Rows(size int) int {
	if size < 0 || size >= t.order {
		return 0
	}
	return len(t.layers[size].rows)
}

// Freeze ends accumulation and precomputes each row's ranking.
func (t *Table) Freeze() {
	if t.frozen {
		return
	}
	for _, l := range t.layers {
		for _, row := range l.rows {
			row.ranked = row.rank()
		}
	}
	t.frozen = true
}

// Frozen reports whether Freeze was called.
func (t *Table) Frozen() bool {
	return t.frozen
}
