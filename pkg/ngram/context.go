package ngram

import "strings"

// MaxOrder is the highest n-gram order a Table supports.
const MaxOrder = 8

// Context is the ordered tuple of tokens immediately preceding a predicted token.
// It is comparable and used directly as a row key. The zero value is the empty
// context, which keys the unigram row.
type Context struct {
	tokens [MaxOrder - 1]string
	size   int
}

// NewContext builds a context from tokens. Only the last MaxOrder-1 tokens are kept.
func NewContext(tokens ...string) Context {
	return Tail(tokens, MaxOrder-1)
}

// Tail builds a context from the last k tokens, or from all of them when fewer than k
// are given.
func Tail(tokens []string, k int) Context {
	var c Context
	if k > MaxOrder-1 {
		k = MaxOrder - 1
	}
	if k > len(tokens) {
		k = len(tokens)
	}
	if k <= 0 {
		return c
	}
	c.size = copy(c.tokens[:], tokens[len(tokens)-k:])
	return c
}

// Len returns the number of tokens in the context.
func (c Context) Len() int {
	return c.size
}

// Tokens returns a copy of the context tokens, oldest first.
func (c Context) Tokens() []string {
	if c.size == 0 {
		return nil
	}
	out := make([]string, c.size)
	copy(out, c.tokens[:c.size])
	return out
}

// Shorten drops the oldest token.
func (c Context) Shorten() Context {
	if c.size == 0 {
		return c
	}
	return Tail(c.tokens[:c.size], c.size-1)
}

func (c Context) String() string {
	if c.size == 0 {
		return "<empty>"
	}
	return strings.Join(c.tokens[:c.size], " ")
}
