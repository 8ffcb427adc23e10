// Package storetest holds conformance checks shared by the store backends' tests.
package storetest

import (
	"context"
	"testing"

	"github.com/bastiangx/nextword/pkg/model"
	"github.com/bastiangx/nextword/pkg/store"
	"github.com/bastiangx/nextword/pkg/suggest"
	"github.com/bastiangx/nextword/pkg/tokenize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Corpus is a small text exercising words, punctuation and every backoff order.
const Corpus = `Good morning everyone. Good morning sunshine!
Good night, moon.

The cat sat on the mat. The cat ran. Did the dog run?`

// Queries is a fixed battery replayed against a model before and after a round trip.
var Queries = []suggest.Request{
	{Limit: 5},
	{Context: []string{"good"}, Limit: 5},
	{Context: []string{"good", "morning"}, Limit: 5},
	{Context: []string{"the"}, Limit: 0},
	{Context: []string{"never", "seen"}, Limit: 3},
	{Prefix: "m", Limit: 5},
	{Prefix: "s", Limit: 0},
	{Prefix: "zz", Limit: 5},
	{Context: []string{"good", "morning"}, Prefix: "sun", Limit: 5},
	{Context: []string{"the"}, Prefix: "c", Limit: 5},
	{Context: []string{"good"}, Prefix: ",", Limit: 5},
}

// TrainModel trains the Corpus model.
func TrainModel(t testing.TB) *model.Model {
	t.Helper()
	m, _, err := model.Train(tokenize.Sentences(Corpus))
	require.NoError(t, err)
	return m
}

// RoundTrip saves a model into s, loads it back and checks that the snapshot and
// every query in Queries are unchanged.
func RoundTrip(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, store.ErrNotFound, "empty store must report ErrNotFound")

	original := TrainModel(t)
	require.NoError(t, s.Save(ctx, original))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, loaded.Frozen())
	assert.Equal(t, original.Snapshot(), loaded.Snapshot())

	before := suggest.NewEngine(original)
	after := suggest.NewEngine(loaded)
	for _, q := range Queries {
		assert.Equal(t, before.Predict(q), after.Predict(q), "query %+v", q)
	}

	// saving again replaces the previous model
	small, _, err := model.Train([][]string{{"only", "words"}}, model.WithOrder(2))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, small))
	reloaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, small.Snapshot(), reloaded.Snapshot())
}
