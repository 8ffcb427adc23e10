// Package eval measures prediction quality on held-out text: for every position in a
// sentence it asks the engine for the token that actually follows and records where
// it ranked.
package eval

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/bastiangx/nextword/pkg/ngram"
	"github.com/bastiangx/nextword/pkg/suggest"
	"github.com/bastiangx/nextword/pkg/tokenize"
	"golang.org/x/sync/errgroup"
)

// Case is one prediction with a known answer.
type Case struct {
	Context  []string `json:"context,omitempty"`
	Prefix   string   `json:"prefix,omitempty"`
	Expected string   `json:"expected"`
}

// Request turns the case into an engine query.
func (c Case) Request(limit int) suggest.Request {
	return suggest.Request{Context: c.Context, Prefix: c.Prefix, Limit: limit}
}

// CaseOptions controls case generation.
type CaseOptions struct {
	// Order bounds the context kept per case to Order-1 tokens. Default 3.
	Order int
	// PrefixLen is how many runes of the expected word are typed for completion
	// cases. Zero disables completion and combined cases.
	PrefixLen int
	// WordsOnly skips cases whose expected token is punctuation.
	WordsOnly bool
}

// BuildCases generates a next-word case for every token of every sentence and, when
// PrefixLen is set, a completion (sentence start) or combined case for every word
// longer than the prefix.
func BuildCases(sentences [][]string, opts CaseOptions) []Case {
	if opts.Order < 1 || opts.Order > ngram.MaxOrder {
		opts.Order = 3
	}

	var cases []Case
	for _, sentence := range sentences {
		for i, expected := range sentence {
			if opts.WordsOnly && !tokenize.IsWord(expected) {
				continue
			}
			context := ngram.Tail(sentence[:i], opts.Order-1).Tokens()
			cases = append(cases, Case{Context: context, Expected: expected})

			if opts.PrefixLen <= 0 || !tokenize.IsWord(expected) {
				continue
			}
			runes := []rune(expected)
			if len(runes) <= opts.PrefixLen {
				continue
			}
			cases = append(cases, Case{
				Context:  context,
				Prefix:   string(runes[:opts.PrefixLen]),
				Expected: expected,
			})
		}
	}
	return cases
}

// Result aggregates the ranks of a set of cases.
type Result struct {
	Total int
	Top1  int
	Top3  int
	// sum of 1/rank over hits
	ReciprocalRank float64
}

func (r *Result) add(rank int) {
	r.Total++
	if rank == 0 {
		return
	}
	if rank == 1 {
		r.Top1++
	}
	if rank <= 3 {
		r.Top3++
	}
	r.ReciprocalRank += 1 / float64(rank)
}

// Top1Accuracy is the share of cases answered first.
func (r Result) Top1Accuracy() float64 { return ratio(r.Top1, r.Total) }

// Top3Accuracy is the share of cases answered within the first three.
func (r Result) Top3Accuracy() float64 { return ratio(r.Top3, r.Total) }

// MRR is the mean reciprocal rank, counting misses as zero.
func (r Result) MRR() float64 {
	if r.Total == 0 {
		return 0
	}
	return r.ReciprocalRank / float64(r.Total)
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Report holds the results per prediction mode and overall.
type Report struct {
	Modes   map[suggest.Mode]Result
	Overall Result
}

func (r Report) String() string {
	var b strings.Builder
	line := func(name string, res Result) {
		fmt.Fprintf(&b, "%-11s cases=%-7d top1=%6.2f%% top3=%6.2f%% mrr=%.3f\n",
			name, res.Total, 100*res.Top1Accuracy(), 100*res.Top3Accuracy(), res.MRR())
	}
	for _, mode := range []suggest.Mode{suggest.ModeNext, suggest.ModeCompletion, suggest.ModeCombined} {
		if res, ok := r.Modes[mode]; ok {
			line(mode.String(), res)
		}
	}
	line("overall", r.Overall)
	return b.String()
}

// RunOptions controls evaluation.
type RunOptions struct {
	// Workers bounds concurrent queries. Default 1.
	Workers int
	// Limit is the number of suggestions requested per case. Default 10.
	Limit int
}

// Run replays cases against p concurrently and aggregates where the expected token
// ranked. It stops early when ctx is cancelled.
func Run(ctx context.Context, p suggest.Predictor, cases []Case, opts RunOptions) (Report, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}

	ranks := make([]int, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, c := range cases {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ranks[i] = rankOf(p.Predict(c.Request(opts.Limit)), c.Expected)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	report := Report{Modes: make(map[suggest.Mode]Result)}
	for i, c := range cases {
		mode := suggest.ModeOf(c.Request(opts.Limit))
		res := report.Modes[mode]
		res.add(ranks[i])
		report.Modes[mode] = res
		report.Overall.add(ranks[i])
	}
	return report, nil
}

func rankOf(suggestions []suggest.Suggestion, expected string) int {
	i := slices.IndexFunc(suggestions, func(s suggest.Suggestion) bool { return s.Word == expected })
	return i + 1
}

// Split shuffles sentences deterministically by seed and returns the first ratio of
// them for training and the rest for evaluation. Both keep the input order.
func Split(sentences [][]string, ratio float64, seed uint64) (train, test [][]string) {
	ratio = min(max(ratio, 0), 1)
	n := len(sentences)
	cut := int(float64(n) * ratio)

	perm := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n)
	inTrain := make([]bool, n)
	for _, idx := range perm[:cut] {
		inTrain[idx] = true
	}

	train = make([][]string, 0, cut)
	test = make([][]string, 0, n-cut)
	for i, s := range sentences {
		if inTrain[i] {
			train = append(train, s)
		} else {
			test = append(test, s)
		}
	}
	return train, test
}
