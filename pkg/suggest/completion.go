package suggest

import (
	"context"
	"sort"

	"github.com/bastiangx/nextword/pkg/ngram"
)

// next walks the backoff chain from the longest context the model supports down to
// the unigram row. The first order with data answers alone.
func (e *Engine) next(ctx context.Context, words []string, limit int) []Suggestion {
	tbl := e.model.NGrams
	for k := min(len(words), tbl.Order()-1); k >= 0; k-- {
		entries := tbl.TopNWithTies(ngram.Tail(words, k), limit)
		if len(entries) == 0 {
			continue
		}
		e.metrics.RecordBackoff(ctx, k)

		suggestions := make([]Suggestion, len(entries))
		for i, entry := range entries {
			suggestions[i] = Suggestion{
				Word:      entry.Token,
				Score:     entry.Probability,
				Frequency: e.model.Trie.Frequency(entry.Token),
			}
		}
		return rankAndLimit(suggestions, limit)
	}
	e.metrics.RecordBackoff(ctx, -1)
	return []Suggestion{}
}

// completion enumerates the prefix subtree. Each candidate scores its frequency over
// the summed frequency of all candidates.
func (e *Engine) completion(prefix string, limit int) []Suggestion {
	var (
		suggestions []Suggestion
		total       int
	)
	for word, freq := range e.model.Trie.WithPrefix(prefix) {
		// skip the word already typed
		if word == prefix {
			continue
		}
		suggestions = append(suggestions, Suggestion{Word: word, Frequency: freq})
		total += freq
	}
	if len(suggestions) == 0 {
		return []Suggestion{}
	}

	if total > 0 {
		for i := range suggestions {
			suggestions[i].Score = float64(suggestions[i].Frequency) / float64(total)
		}
	}
	return rankAndLimit(suggestions, limit)
}

// combined re-ranks a widened completion list by blending in context probabilities.
// Completions the context knows nothing about keep only their weighted completion
// score.
func (e *Engine) combined(ctx context.Context, words []string, prefix string, limit int) []Suggestion {
	completions := e.completion(prefix, scaleLimit(limit, e.completionFactor))
	if len(completions) == 0 {
		return completions
	}
	if len(words) == 0 {
		return rankAndLimit(completions, limit)
	}

	predictions := e.next(ctx, words, scaleLimit(limit, e.contextFactor))
	if len(predictions) == 0 {
		return rankAndLimit(completions, limit)
	}

	contextProb := make(map[string]float64, len(predictions))
	for _, p := range predictions {
		contextProb[p.Word] = p.Score
	}

	for i := range completions {
		score := e.prefixWeight * completions[i].Score
		if p, ok := contextProb[completions[i].Word]; ok {
			score += e.contextWeight * p
		}
		completions[i].Score = score
	}
	return rankAndLimit(completions, limit)
}

// rankAndLimit orders by score desc, frequency desc, word asc and truncates to limit.
func rankAndLimit(suggestions []Suggestion, limit int) []Suggestion {
	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Word < b.Word
	})
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

func scaleLimit(limit, factor int) int {
	if limit <= 0 {
		return 0
	}
	return limit * factor
}
