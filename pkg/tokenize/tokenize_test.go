package tokenize

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "The cat sat", []string{"the", "cat", "sat"}},
		{"punctuation", "Hello, world!", []string{"hello", ",", "world", "!"}},
		{"apostrophe", "don't", []string{"don", "'", "t"}},
		{"digits and underscore", "route_66 is 2x", []string{"route_66", "is", "2x"}},
		{"whitespace runs", "  a\t\tb \n c  ", []string{"a", "b", "c"}},
		{"control chars dropped", "a\x00b\x1fc", []string{"a", "b", "c"}},
		{"unicode letters", "Ça Marche", []string{"ça", "marche"}},
		{"empty", "", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Tokenize(tc.in))
		})
	}
}

func TestNormalizeComposes(t *testing.T) {
	decomposed := "Cafe\u0301"
	assert.Equal(t, "café", Normalize(decomposed))
	assert.Equal(t, []string{"café"}, Tokenize(decomposed))
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"good", "morning", "sunshine"}, Words("Good morning, sunshine!"))
	assert.Empty(t, Words("?!"))
}

func TestSentences(t *testing.T) {
	text := "The cat sat on the mat. The dog ran!\nWhy?\n\nNo terminal here\n\n\nlast one"
	got := Sentences(text)

	want := [][]string{
		{"the", "cat", "sat", "on", "the", "mat", "."},
		{"the", "dog", "ran", "!"},
		{"why", "?"},
		{"no", "terminal", "here"},
		{"last", "one"},
	}
	assert.Equal(t, want, got)
}

func TestSentencesDoNotAlias(t *testing.T) {
	got := Sentences("a b. c d.")
	require.Len(t, got, 2)
	got[0] = append(got[0], "x")
	assert.Equal(t, []string{"c", "d", "."}, got[1])
}

func TestStreamMatchesSentences(t *testing.T) {
	text := "Good morning everyone.\nGood morning sunshine.\n\nGood night moon"

	var streamed [][]string
	for s, err := range Stream(strings.NewReader(text)) {
		require.NoError(t, err)
		streamed = append(streamed, s)
	}
	assert.Equal(t, Sentences(text), streamed)
}

func TestStreamReportsReadError(t *testing.T) {
	boom := errors.New("boom")
	r := iotest.ErrReader(boom)

	var gotErr error
	for _, err := range Stream(r) {
		if err != nil {
			gotErr = err
		}
	}
	assert.ErrorIs(t, gotErr, boom)
}
