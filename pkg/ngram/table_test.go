package ngram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(3)
	require.NoError(t, err)
	require.NoError(t, tbl.ObserveSentence([]string{"the", "cat", "sat", "on", "the", "mat"}))
	require.NoError(t, tbl.ObserveSentence([]string{"the", "cat", "ran"}))
	tbl.Freeze()
	return tbl
}

func TestNewTableOrder(t *testing.T) {
	for _, n := range []int{0, -1, MaxOrder + 1} {
		_, err := NewTable(n)
		assert.ErrorIs(t, err, ErrInvalidOrder, "order %d", n)
	}
	tbl, err := NewTable(MaxOrder)
	require.NoError(t, err)
	assert.Equal(t, MaxOrder, tbl.Order())
}

func TestObserveSentenceCounts(t *testing.T) {
	tbl := catTable(t)

	assert.Equal(t, 9, tbl.Total(Context{}))
	assert.Equal(t, 3, tbl.Count(Context{}, "the"))
	assert.Equal(t, 2, tbl.Count(NewContext("the"), "cat"))
	assert.Equal(t, 1, tbl.Count(NewContext("the"), "mat"))
	assert.Equal(t, 1, tbl.Count(NewContext("the", "cat"), "sat"))
	assert.Equal(t, 1, tbl.Count(NewContext("the", "cat"), "ran"))

	// no window crosses the sentence boundary
	assert.Zero(t, tbl.Count(NewContext("mat"), "the"))
	assert.False(t, tbl.Seen(NewContext("mat")))
	assert.False(t, tbl.Seen(NewContext("on", "the", "mat")))
}

func TestObserveRejects(t *testing.T) {
	tbl, err := NewTable(2)
	require.NoError(t, err)

	assert.ErrorIs(t, tbl.Observe(NewContext("a", "b"), "c"), ErrContextTooLong)
	assert.ErrorIs(t, tbl.Observe(Context{}, ""), ErrInvalidToken)
	assert.ErrorIs(t, tbl.Observe(NewContext(""), "x"), ErrInvalidToken)
	assert.ErrorIs(t, tbl.Add(Context{}, "x", 0), ErrInvalidCount)

	tbl.Freeze()
	assert.ErrorIs(t, tbl.Observe(Context{}, "x"), ErrFrozen)
}

func TestProbabilityRowSumsToOne(t *testing.T) {
	tbl := catTable(t)

	for size := 0; size < tbl.Order(); size++ {
		for ctx := range tbl.Contexts(size) {
			row := tbl.ProbabilityRow(ctx)
			require.NotEmpty(t, row, "context %s", ctx)
			var sum float64
			for _, p := range row {
				assert.True(t, p > 0 && p <= 1, "probability %f out of range", p)
				sum += p
			}
			assert.InDelta(t, 1.0, sum, 1e-9, "context %s", ctx)
		}
	}
	assert.Nil(t, tbl.ProbabilityRow(NewContext("unseen")))
}

func TestTopNOrdering(t *testing.T) {
	tbl := catTable(t)

	got := tbl.TopN(NewContext("the"), 0)
	require.Len(t, got, 2)
	assert.Equal(t, "cat", got[0].Token)
	assert.InDelta(t, 2.0/3.0, got[0].Probability, 1e-9)
	assert.Equal(t, "mat", got[1].Token)
	assert.InDelta(t, 1.0/3.0, got[1].Probability, 1e-9)

	tied := tbl.TopN(NewContext("the", "cat"), 0)
	require.Len(t, tied, 2)
	assert.Equal(t, []string{"ran", "sat"}, []string{tied[0].Token, tied[1].Token})

	one := tbl.TopN(NewContext("the", "cat"), 1)
	require.Len(t, one, 1)
	assert.Equal(t, "ran", one[0].Token)

	assert.Nil(t, tbl.TopN(NewContext("nope"), 3))
}

func TestTopNWithTies(t *testing.T) {
	tbl, err := NewTable(1)
	require.NoError(t, err)
	for tok, c := range map[string]int{"a": 5, "b": 3, "c": 3, "d": 3, "e": 1} {
		require.NoError(t, tbl.Add(Context{}, tok, c))
	}
	tbl.Freeze()

	got := tbl.TopNWithTies(Context{}, 2)
	var toks []string
	for _, e := range got {
		toks = append(toks, e.Token)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, toks)
	assert.Len(t, tbl.TopN(Context{}, 2), 2)
}

func TestTopNBeforeFreeze(t *testing.T) {
	tbl, err := NewTable(2)
	require.NoError(t, err)
	require.NoError(t, tbl.Observe(Context{}, "x"))
	require.NoError(t, tbl.Observe(Context{}, "y"))
	require.NoError(t, tbl.Observe(Context{}, "y"))

	got := tbl.TopN(Context{}, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "y", got[0].Token)

	require.NoError(t, tbl.Add(Context{}, "x", 5))
	got = tbl.TopN(Context{}, 1)
	assert.Equal(t, "x", got[0].Token, "ranking must follow new counts")
}

func TestProbability(t *testing.T) {
	tbl := catTable(t)
	assert.InDelta(t, 2.0/3.0, tbl.Probability(NewContext("the"), "cat"), 1e-9)
	assert.Zero(t, tbl.Probability(NewContext("the"), "dog"))
	assert.Zero(t, tbl.Probability(NewContext("zebra"), "cat"))
	assert.False(t, math.IsNaN(tbl.Probability(Context{}, "ghost")))
}

func TestContextsAndRows(t *testing.T) {
	tbl := catTable(t)
	assert.Equal(t, 1, tbl.Rows(0))
	assert.Equal(t, 4, tbl.Rows(1))
	assert.Zero(t, tbl.Rows(3))

	n := 0
	for range tbl.Contexts(2) {
		n++
	}
	assert.Equal(t, tbl.Rows(2), n)
}

func TestContext(t *testing.T) {
	c := NewContext("a", "b", "c")
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "a b c", c.String())
	assert.Equal(t, NewContext("b", "c"), c.Shorten())
	assert.Equal(t, Context{}, NewContext("x").Shorten())
	assert.Equal(t, "<empty>", Context{}.String())

	assert.Equal(t, NewContext("c"), Tail([]string{"a", "b", "c"}, 1))
	assert.Equal(t, NewContext("a", "b"), Tail([]string{"a", "b"}, 5))
	assert.Equal(t, Context{}, Tail([]string{"a"}, 0))

	long := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}
	assert.Equal(t, MaxOrder-1, NewContext(long...).Len())
	assert.Equal(t, []string{"3", "4", "5", "6", "7", "8", "9"}, NewContext(long...).Tokens())

	toks := c.Tokens()
	toks[0] = "mutated"
	assert.Equal(t, "a b c", c.String())
}
