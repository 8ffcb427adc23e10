package suggest

import (
	"testing"

	"github.com/bastiangx/nextword/pkg/model"
	"github.com/bastiangx/nextword/pkg/tokenize"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

func trainEngine(t *testing.T, text string, opts ...Option) *Engine {
	t.Helper()
	m, _, err := model.Train(tokenize.Sentences(text))
	require.NoError(t, err)
	return NewEngine(m, opts...)
}

func morningEngine(t *testing.T, opts ...Option) *Engine {
	return trainEngine(t, "good morning everyone\n\ngood morning sunshine\n\ngood night", opts...)
}

func words(s []Suggestion) []string {
	out := make([]string, len(s))
	for i := range s {
		out[i] = s[i].Word
	}
	return out
}

func punctuationEngine(t *testing.T) *Engine {
	return trainEngine(t, "Well, hello there. Well, goodbye now. Oh well then.")
}

func TestPunctuationInContext(t *testing.T) {
	e := punctuationEngine(t)

	got := e.PredictNext([]string{"well", ","}, 3)
	assert.Equal(t, []string{"goodbye", "hello"}, words(got))
	for _, s := range got {
		assert.InDelta(t, 0.5, s.Score, 1e-9)
	}

	// the comma alone is a bigram context
	assert.Equal(t, []string{"goodbye", "hello"}, words(e.PredictNext([]string{","}, 3)))

	// a word after punctuation still reaches the trigram row
	assert.Equal(t, []string{"there"}, words(e.PredictNext([]string{",", "hello"}, 3)))
}

func TestPunctuationPredicted(t *testing.T) {
	e := punctuationEngine(t)

	got := e.PredictNext([]string{"hello", "there"}, 3)
	require.Len(t, got, 1)
	assert.Equal(t, ".", got[0].Word)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, 3, got[0].Frequency)

	// "well" is followed by "," twice and "then" once
	got = e.PredictNext([]string{"well"}, 2)
	assert.Equal(t, []string{",", "then"}, words(got))
	assert.InDelta(t, 2.0/3.0, got[0].Score, 1e-9)
}

func TestPunctuationInCombinedContext(t *testing.T) {
	e := punctuationEngine(t)

	got := e.PredictCombined([]string{"well", ","}, "h", 3)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Word)
	assert.InDelta(t, 0.7*1.0+0.3*0.5, got[0].Score, 1e-9)

	got = e.Predict(Request{Context: []string{"well", ","}, Prefix: "g", Limit: 3})
	require.Len(t, got, 1)
	assert.Equal(t, "goodbye", got[0].Word)
	assert.InDelta(t, 0.85, got[0].Score, 1e-9)
}

func TestCombinedScoring(t *testing.T) {
	e := morningEngine(t)

	got := e.PredictCombined([]string{"good", "morning"}, "sun", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "sunshine", got[0].Word)
	// P(sunshine | good morning) = 1/2
	assert.InDelta(t, 0.7*1.0+0.3*0.5, got[0].Score, 1e-9)
	assert.Equal(t, 1, got[0].Frequency)
}

func TestCombinedPenalizesUnknownToContext(t *testing.T) {
	e := morningEngine(t)

	got := e.PredictCombined([]string{"good"}, "sun", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "sunshine", got[0].Word)
	assert.InDelta(t, 0.7, got[0].Score, 1e-9)
}

func TestCombinedReranksByContext(t *testing.T) {
	e := trainEngine(t, "the cat sat\n\nthe cat sat\n\nthe cat sat\n\na car went\n\na car went\n\na car went\n\na car went\n\na cab went")

	plain := e.PredictCompletion("ca", 3)
	assert.Equal(t, []string{"car", "cat", "cab"}, words(plain))

	withContext := e.PredictCombined([]string{"the"}, "ca", 3)
	assert.Equal(t, []string{"cat", "car", "cab"}, words(withContext))
	// cat: 0.7*3/8 + 0.3*1.0
	assert.InDelta(t, 0.7*3.0/8.0+0.3, withContext[0].Score, 1e-9)
	assert.InDelta(t, 0.7*4.0/8.0, withContext[1].Score, 1e-9)
}

func TestCombinedWithoutContextIsCompletion(t *testing.T) {
	e := morningEngine(t)
	assert.Equal(t, e.PredictCompletion("g", 3), e.PredictCombined(nil, "g", 3))
	assert.Empty(t, e.PredictCombined([]string{"good"}, "zzz", 3))
}

func TestCombinedBacksOffUnknownContext(t *testing.T) {
	e := morningEngine(t)
	// unknown context backs off to the unigram row
	got := e.PredictCombined([]string{"zebra"}, "mo", 3)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.7*1.0+0.3*2.0/8.0, got[0].Score, 1e-9)
}

func TestNextWordScenario(t *testing.T) {
	e := trainEngine(t, "the cat sat on the mat the cat ran")

	got := e.PredictNext([]string{"the"}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"cat", "mat"}, words(got))
	assert.InDelta(t, 2.0/3.0, got[0].Score, 1e-9)
	assert.InDelta(t, 1.0/3.0, got[1].Score, 1e-9)
}

func TestBackoffDeterminism(t *testing.T) {
	e := trainEngine(t, "the cat sat on the mat the cat ran")

	testCases := []struct {
		name    string
		context []string
		bigram  []string
	}{
		{"unseen trigram", []string{"sat", "the"}, []string{"the"}},
		{"unknown first token", []string{"zebra", "cat"}, []string{"cat"}},
		{"long context uses tail", []string{"x", "y", "z", "on"}, []string{"on"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, e.PredictNext(tc.bigram, 10), e.PredictNext(tc.context, 10))
		})
	}

	// a seen trigram answers alone
	got := e.PredictNext([]string{"on", "the"}, 10)
	assert.Equal(t, []string{"mat"}, words(got))
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestBackoffToUnigram(t *testing.T) {
	e := morningEngine(t)

	for _, context := range [][]string{nil, {"unknown"}, {"unknown", "words"}} {
		got := e.PredictNext(context, 2)
		require.Len(t, got, 2, "context %v", context)
		assert.Equal(t, []string{"good", "morning"}, words(got))
		assert.InDelta(t, 3.0/8.0, got[0].Score, 1e-9)
	}
}

func TestEmptyInputLaws(t *testing.T) {
	empty := NewEngine(nil)

	assert.Empty(t, empty.PredictCompletion("", 0))
	assert.Empty(t, empty.PredictNext(nil, 5))
	assert.Empty(t, empty.PredictNext([]string{"any"}, 5))
	assert.Empty(t, empty.PredictCombined([]string{"any"}, "a", 5))
	assert.NotNil(t, empty.PredictNext(nil, 5))

	e := morningEngine(t)
	assert.Empty(t, e.PredictCompletion("xyz", 5))
}

func TestCompletion(t *testing.T) {
	e := trainEngine(t, "the then there the the then this")

	got := e.PredictCompletion("th", 0)
	assert.Equal(t, []string{"the", "then", "there", "this"}, words(got))
	assert.InDelta(t, 3.0/7.0, got[0].Score, 1e-9)

	var sum float64
	for _, s := range got {
		sum += s.Score
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// the typed word itself is not offered
	assert.Equal(t, []string{"then", "there"}, words(e.PredictCompletion("the", 5)))

	assert.Len(t, e.PredictCompletion("th", 2), 2)
	assert.Len(t, e.PredictCompletion("", 0), 4)
	assert.Equal(t, words(got), words(e.PredictCompletion("TH", 0)), "prefix is case-insensitive")
}

func TestTieBreakByFrequencyThenWord(t *testing.T) {
	m, err := model.FromSnapshot(&model.Snapshot{
		Version: model.SnapshotVersion,
		Order:   2,
		Vocabulary: []model.TokenCount{
			{Token: "a", Count: 1}, {Token: "x", Count: 2}, {Token: "y", Count: 5}, {Token: "z", Count: 2},
		},
		NGrams: []model.NGramCount{
			{Context: []string{"a"}, Next: "x", Count: 1},
			{Context: []string{"a"}, Next: "y", Count: 1},
			{Context: []string{"a"}, Next: "z", Count: 1},
		},
	})
	require.NoError(t, err)
	e := NewEngine(m)

	assert.Equal(t, []string{"y"}, words(e.PredictNext([]string{"a"}, 1)))
	assert.Equal(t, []string{"y", "x", "z"}, words(e.PredictNext([]string{"a"}, 0)))
}

func TestPredictDispatch(t *testing.T) {
	e := morningEngine(t)

	testCases := []struct {
		req  Request
		mode Mode
	}{
		{Request{Context: []string{"good"}, Limit: 3}, ModeNext},
		{Request{Prefix: "mo", Limit: 3}, ModeCompletion},
		{Request{Context: []string{"good", "morning"}, Prefix: "s", Limit: 3}, ModeCombined},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.mode, ModeOf(tc.req))
		var want []Suggestion
		switch tc.mode {
		case ModeNext:
			want = e.PredictNext(tc.req.Context, tc.req.Limit)
		case ModeCompletion:
			want = e.PredictCompletion(tc.req.Prefix, tc.req.Limit)
		case ModeCombined:
			want = e.PredictCombined(tc.req.Context, tc.req.Prefix, tc.req.Limit)
		}
		assert.Equal(t, want, e.Predict(tc.req), "mode %s", tc.mode)
	}
	assert.Equal(t, "unknown", Mode(42).String())
}

func TestContextIsNormalized(t *testing.T) {
	e := morningEngine(t)
	assert.Equal(t, e.PredictNext([]string{"good"}, 5), e.PredictNext([]string{"GOOD", ""}, 5))
}

func TestWeights(t *testing.T) {
	e := morningEngine(t, WithWeights(0.5, 0.5))
	got := e.PredictCombined([]string{"good", "morning"}, "sun", 5)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.5+0.25, got[0].Score, 1e-9)

	normalized := morningEngine(t, WithWeights(2, 2))
	got = normalized.PredictCombined([]string{"good", "morning"}, "sun", 5)
	assert.InDelta(t, 0.75, got[0].Score, 1e-9)

	ignored := morningEngine(t, WithWeights(-1, 0.3))
	got = ignored.PredictCombined([]string{"good", "morning"}, "sun", 5)
	assert.InDelta(t, 0.85, got[0].Score, 1e-9)
}

func TestEngineCache(t *testing.T) {
	e := morningEngine(t, WithCache(16))

	miss := e.PredictNext([]string{"good"}, 3)
	hit := e.PredictNext([]string{"good"}, 3)
	assert.Equal(t, miss, hit)

	stats := e.Stats()
	assert.Equal(t, 1, stats["cacheHits"])
	assert.Equal(t, 1, stats["cacheMisses"])
	assert.Equal(t, 1, stats["cache"])

	hit[0].Word = "mutated"
	again := e.PredictNext([]string{"good"}, 3)
	assert.Equal(t, "morning", again[0].Word)

	// tokens beyond what the model conditions on share a cache entry
	before := e.Stats()["cacheEntries"]
	e.PredictNext([]string{"x", "y", "good"}, 3)
	e.PredictNext([]string{"y", "good"}, 3)
	assert.Equal(t, before+1, e.Stats()["cacheEntries"])
}

func TestStats(t *testing.T) {
	e := morningEngine(t)
	stats := e.Stats()
	assert.Equal(t, 5, stats["vocabulary"])
	assert.Equal(t, 8, stats["tokens"])
	assert.Equal(t, 3, stats["maxFrequency"])
	assert.Equal(t, 3, stats["order"])
	assert.Equal(t, 1, stats["contexts0"])
	assert.Equal(t, 0, stats["cache"])
}
