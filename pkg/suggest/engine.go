package suggest

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/nextword/internal/observe"
	"github.com/bastiangx/nextword/pkg/model"
	"github.com/bastiangx/nextword/pkg/tokenize"
	"github.com/charmbracelet/log"
)

const (
	// DefaultPrefixWeight weights the completion probability in combined mode.
	DefaultPrefixWeight = 0.7
	// DefaultContextWeight weights the context probability in combined mode.
	DefaultContextWeight = 0.3
	// DefaultCompletionFactor scales the limit when gathering completions to re-rank.
	DefaultCompletionFactor = 2
	// DefaultContextFactor scales the limit when gathering context predictions.
	DefaultContextFactor = 3
)

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables a prediction cache of the given size. size <= 0 disables it.
func WithCache(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.cache = NewCache(size)
		} else {
			e.cache = nil
		}
	}
}

// WithMetrics records query metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithWeights sets the combined-mode weights. Negative weights are ignored; weights
// summing above 1 are normalized so scores stay in [0,1].
func WithWeights(prefix, history float64) Option {
	return func(e *Engine) {
		if prefix < 0 || history < 0 || prefix+history == 0 {
			log.Warnf("Ignoring invalid prediction weights %.2f/%.2f", prefix, history)
			return
		}
		if sum := prefix + history; sum > 1 {
			prefix, history = prefix/sum, history/sum
		}
		e.prefixWeight, e.contextWeight = prefix, history
	}
}

// WithCandidateFactors sets how many completions and context predictions combined
// mode gathers, as multiples of the requested limit.
func WithCandidateFactors(completion, history int) Option {
	return func(e *Engine) {
		if completion > 0 {
			e.completionFactor = completion
		}
		if history > 0 {
			e.contextFactor = history
		}
	}
}

// Engine answers prediction queries over a frozen model. It is safe for concurrent
// use.
type Engine struct {
	model            *model.Model
	cache            *Cache
	metrics          *observe.Metrics
	prefixWeight     float64
	contextWeight    float64
	completionFactor int
	contextFactor    int
}

var _ Predictor = (*Engine)(nil)

// NewEngine wraps m, freezing it if it was not already. A nil model behaves as an
// untrained one and answers every query with no suggestions.
func NewEngine(m *model.Model, opts ...Option) *Engine {
	if m == nil {
		m, _ = model.New(model.DefaultOrder)
	}
	m.Freeze()

	e := &Engine{
		model:            m,
		prefixWeight:     DefaultPrefixWeight,
		contextWeight:    DefaultContextWeight,
		completionFactor: DefaultCompletionFactor,
		contextFactor:    DefaultContextFactor,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the underlying model.
func (e *Engine) Model() *model.Model {
	return e.model
}

// Predict dispatches req to the mode chosen by ModeOf.
func (e *Engine) Predict(req Request) []Suggestion {
	switch ModeOf(req) {
	case ModeNext:
		return e.PredictNext(req.Context, req.Limit)
	case ModeCompletion:
		return e.PredictCompletion(req.Prefix, req.Limit)
	default:
		return e.PredictCombined(req.Context, req.Prefix, req.Limit)
	}
}

// PredictNext ranks the tokens most likely to follow history, backing off from the
// longest usable context to the unigram distribution.
func (e *Engine) PredictNext(history []string, limit int) []Suggestion {
	return e.run(ModeNext, history, "", limit)
}

// PredictCompletion ranks the tokens extending prefix by their share of the prefix's
// total frequency. The token equal to prefix is not offered.
func (e *Engine) PredictCompletion(prefix string, limit int) []Suggestion {
	return e.run(ModeCompletion, nil, prefix, limit)
}

// PredictCombined ranks completions of prefix, blending each one's completion
// probability with its probability of following history.
func (e *Engine) PredictCombined(history []string, prefix string, limit int) []Suggestion {
	return e.run(ModeCombined, history, prefix, limit)
}

func (e *Engine) run(mode Mode, history []string, prefix string, limit int) []Suggestion {
	start := time.Now()
	ctx := context.Background()

	words := e.normalizeContext(history)
	prefix = tokenize.Normalize(prefix)
	if limit < 0 {
		limit = 0
	}

	var key string
	if e.cache != nil {
		key = cacheKey(mode, words, prefix, limit)
		if cached, ok := e.cache.Get(key); ok {
			e.metrics.RecordCacheLookup(ctx, true)
			e.metrics.RecordPrediction(ctx, mode.String(), time.Since(start), len(cached))
			return cached
		}
		e.metrics.RecordCacheLookup(ctx, false)
	}

	var out []Suggestion
	switch mode {
	case ModeNext:
		out = e.next(ctx, words, limit)
	case ModeCompletion:
		out = e.completion(prefix, limit)
	default:
		out = e.combined(ctx, words, prefix, limit)
	}

	if e.cache != nil {
		e.cache.Put(key, out)
	}
	e.metrics.RecordPrediction(ctx, mode.String(), time.Since(start), len(out))
	log.Debugf("Predicted %d %s suggestions for context=%v prefix=%q in %v",
		len(out), mode, words, prefix, time.Since(start))
	return out
}

// normalizeContext lower-cases the context tokens, drops empty ones and keeps only
// the tail the model can condition on.
func (e *Engine) normalizeContext(history []string) []string {
	keep := e.model.Order() - 1
	if keep <= 0 || len(history) == 0 {
		return nil
	}
	words := make([]string, 0, min(len(history), keep))
	for i := len(history) - 1; i >= 0 && len(words) < keep; i-- {
		if w := tokenize.Normalize(history[i]); w != "" {
			words = append(words, w)
		}
	}
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return words
}

func cacheKey(mode Mode, words []string, prefix string, limit int) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(mode)))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(limit))
	b.WriteByte('|')
	b.WriteString(prefix)
	for _, w := range words {
		b.WriteByte(0)
		b.WriteString(w)
	}
	return b.String()
}

// Stats returns statistics about the model and the cache.
func (e *Engine) Stats() map[string]int {
	ms := e.model.Stats()
	stats := map[string]int{
		"order":        ms.Order,
		"vocabulary":   ms.Vocabulary,
		"tokens":       ms.Tokens,
		"maxFrequency": ms.MaxFrequency,
	}
	for size, n := range ms.Contexts {
		stats["contexts"+strconv.Itoa(size)] = n
	}

	if e.cache != nil {
		for k, v := range e.cache.Stats() {
			stats[k] = v
		}
		stats["cache"] = 1
	} else {
		stats["cache"] = 0
	}
	return stats
}
