package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/bastiangx/nextword/pkg/ngram"
	"github.com/bastiangx/nextword/pkg/tokenize"
	"github.com/bastiangx/nextword/pkg/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func morningCorpus() [][]string {
	return [][]string{
		{"good", "morning", "everyone"},
		{"good", "morning", "sunshine"},
		{"good", "night"},
	}
}

func TestTrainBuildsFrozenModel(t *testing.T) {
	m, stats, err := Train(morningCorpus())
	require.NoError(t, err)

	assert.True(t, m.Frozen())
	assert.Equal(t, DefaultOrder, m.Order())
	assert.Equal(t, TrainStats{Sentences: 3, Tokens: 8, Vocabulary: 5}, stats)

	assert.Equal(t, 3, m.Trie.Frequency("good"))
	assert.Equal(t, 2, m.Trie.Frequency("morning"))
	assert.Equal(t, 1, m.Trie.Frequency("sunshine"))

	assert.Equal(t, 2, m.NGrams.Count(ngram.NewContext("good"), "morning"))
	assert.Equal(t, 1, m.NGrams.Count(ngram.NewContext("good", "morning"), "sunshine"))
	assert.Equal(t, 8, m.NGrams.Total(ngram.Context{}))

	assert.ErrorIs(t, m.Trie.Insert("late", 1), trie.ErrFrozen)
	assert.ErrorIs(t, m.NGrams.Observe(ngram.Context{}, "late"), ngram.ErrFrozen)
}

func TestTrainAbortsOnEmptyToken(t *testing.T) {
	corpus := [][]string{{"ok", "fine"}, {"bad", "", "token"}}

	m, stats, err := Train(corpus)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, m)
	assert.Equal(t, 2, stats.Sentences)
}

func TestTrainSkipInvalid(t *testing.T) {
	corpus := [][]string{{"a", "b", "", "c", "d"}}

	m, stats, err := Train(corpus, SkipInvalid(true))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 4, stats.Tokens)

	assert.Equal(t, 1, m.NGrams.Count(ngram.NewContext("a"), "b"))
	assert.Equal(t, 1, m.NGrams.Count(ngram.NewContext("c"), "d"))
	assert.Zero(t, m.NGrams.Count(ngram.NewContext("b"), "c"), "skipped token must split the sentence")
}

func TestTrainInvalidOrder(t *testing.T) {
	_, _, err := Train(morningCorpus(), WithOrder(0))
	assert.ErrorIs(t, err, ngram.ErrInvalidOrder)
}

func TestTrainSeq(t *testing.T) {
	text := "Good morning everyone.\nGood morning sunshine.\n\nGood night"
	fromSeq, _, err := TrainSeq(tokenize.Stream(strings.NewReader(text)))
	require.NoError(t, err)
	fromSlice, _, err := Train(tokenize.Sentences(text))
	require.NoError(t, err)

	assert.Equal(t, fromSlice.Snapshot(), fromSeq.Snapshot())
}

func TestTrainerStopsAfterError(t *testing.T) {
	tr, err := NewTrainer()
	require.NoError(t, err)
	require.Error(t, tr.Add([]string{""}))
	assert.ErrorIs(t, tr.Add([]string{"fine"}), ErrInvalidToken)
	_, _, err = tr.Model()
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSnapshotRoundTrip(t *testing.T) {
	m, _, err := Train(morningCorpus())
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Len(t, snap.Vocabulary, 5)
	assert.Equal(t, "everyone", snap.Vocabulary[0].Token)

	restored, err := FromSnapshot(snap)
	require.NoError(t, err)
	assert.True(t, restored.Frozen())
	assert.Equal(t, snap, restored.Snapshot())
	assert.Equal(t, m.Stats(), restored.Stats())
}

func TestFromSnapshotRejectsMalformed(t *testing.T) {
	valid := func() *Snapshot {
		m, _, err := Train(morningCorpus())
		require.NoError(t, err)
		return m.Snapshot()
	}

	testCases := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"negative vocabulary count", func(s *Snapshot) { s.Vocabulary[0].Count = -1 }},
		{"negative ngram count", func(s *Snapshot) { s.NGrams[0].Count = -3 }},
		{"empty vocabulary token", func(s *Snapshot) { s.Vocabulary[1].Token = "" }},
		{"duplicate vocabulary token", func(s *Snapshot) {
			s.Vocabulary = append(s.Vocabulary, s.Vocabulary[0])
		}},
		{"dangling next token", func(s *Snapshot) {
			s.NGrams = append(s.NGrams, NGramCount{Next: "ghost", Count: 1})
		}},
		{"dangling context token", func(s *Snapshot) {
			s.NGrams = append(s.NGrams, NGramCount{Context: []string{"ghost"}, Next: "good", Count: 1})
		}},
		{"context too long", func(s *Snapshot) {
			s.NGrams = append(s.NGrams, NGramCount{Context: []string{"good", "morning", "good"}, Next: "night", Count: 1})
		}},
		{"duplicate transition", func(s *Snapshot) { s.NGrams = append(s.NGrams, s.NGrams[0]) }},
		{"order out of range", func(s *Snapshot) { s.Order = ngram.MaxOrder + 1 }},
		{"unknown version", func(s *Snapshot) { s.Version = 99 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := valid()
			tc.mutate(s)
			m, err := FromSnapshot(s)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, ErrMalformedModel)
		})
	}

	m, err := FromSnapshot(nil)
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, ErrMalformedModel))
}

func TestFromSnapshotReportsEveryViolation(t *testing.T) {
	s := &Snapshot{
		Version:    SnapshotVersion,
		Order:      2,
		Vocabulary: []TokenCount{{Token: "a", Count: -1}, {Token: "b", Count: -2}},
	}
	_, err := FromSnapshot(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"a": negative count -1`)
	assert.Contains(t, err.Error(), `"b": negative count -2`)
}

func TestEmptyModel(t *testing.T) {
	m, _, err := Train(nil)
	require.NoError(t, err)
	assert.Zero(t, m.Trie.Len())

	restored, err := FromSnapshot(m.Snapshot())
	require.NoError(t, err)
	assert.Zero(t, restored.Stats().Vocabulary)
}

func TestPunctuationTokensAreOrdinary(t *testing.T) {
	m, _, err := Train(tokenize.Sentences("Well, hello there. Well, goodbye now. Oh well then."))
	require.NoError(t, err)

	assert.Equal(t, 3, m.Trie.Frequency("."))
	assert.Equal(t, 2, m.Trie.Frequency(","))

	tests := []struct {
		name    string
		context []string
		next    string
		want    int
	}{
		{"comma follows word", []string{"well"}, ",", 2},
		{"word follows comma", []string{","}, "hello", 1},
		{"trigram through comma", []string{"well", ","}, "goodbye", 1},
		{"period ends sentence", []string{"hello", "there"}, ".", 1},
		{"period unigram", nil, ".", 3},
		{"no window across sentences", []string{"."}, "well", 0},
		{"no trigram across sentences", []string{"now", "."}, "oh", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.NGrams.Count(ngram.NewContext(tt.context...), tt.next))
		})
	}
}
