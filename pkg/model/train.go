package model

import (
	"fmt"
	"iter"

	"github.com/charmbracelet/log"
)

// TrainOption configures a Trainer.
type TrainOption func(*Trainer)

// WithOrder sets the n-gram order. Defaults to DefaultOrder.
func WithOrder(n int) TrainOption {
	return func(t *Trainer) { t.order = n }
}

// SkipInvalid makes training drop invalid tokens instead of aborting. A dropped token
// splits its sentence so no n-gram spans the gap.
func SkipInvalid(skip bool) TrainOption {
	return func(t *Trainer) { t.skipInvalid = skip }
}

// TrainStats reports what a training pass consumed.
type TrainStats struct {
	Sentences  int
	Tokens     int
	Skipped    int
	Vocabulary int
}

// Trainer accumulates sentences into a model. It is single-use and not safe for
// concurrent use.
type Trainer struct {
	order       int
	skipInvalid bool
	model       *Model
	stats       TrainStats
	err         error
	done        bool
}

// NewTrainer returns a trainer ready to accept sentences.
func NewTrainer(opts ...TrainOption) (*Trainer, error) {
	t := &Trainer{order: DefaultOrder}
	for _, opt := range opts {
		opt(t)
	}
	m, err := New(t.order)
	if err != nil {
		return nil, err
	}
	t.model = m
	return t, nil
}

// Add trains on one sentence. After the first error every later call returns it.
func (t *Trainer) Add(sentence []string) error {
	if t.err != nil {
		return t.err
	}
	if t.done {
		return fmt.Errorf("trainer already finished")
	}

	t.stats.Sentences++
	start := 0
	for i, tok := range sentence {
		if tok != "" {
			continue
		}
		if !t.skipInvalid {
			t.err = fmt.Errorf("sentence %d, token %d: %w: empty token", t.stats.Sentences, i, ErrInvalidToken)
			return t.err
		}
		t.stats.Skipped++
		log.Debugf("Skipping empty token at sentence %d, position %d", t.stats.Sentences, i)
		if err := t.observe(sentence[start:i]); err != nil {
			return err
		}
		start = i + 1
	}
	return t.observe(sentence[start:])
}

func (t *Trainer) observe(tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	for _, tok := range tokens {
		if err := t.model.Trie.Insert(tok, 1); err != nil {
			t.err = err
			return err
		}
	}
	if err := t.model.NGrams.ObserveSentence(tokens); err != nil {
		t.err = err
		return err
	}
	t.stats.Tokens += len(tokens)
	return nil
}

// Model freezes and returns the trained model. A trainer that met an error returns
// that error and no model.
func (t *Trainer) Model() (*Model, TrainStats, error) {
	if t.err != nil {
		return nil, t.stats, t.err
	}
	t.done = true
	t.model.Freeze()
	t.stats.Vocabulary = t.model.Trie.Len()
	return t.model, t.stats, nil
}

// Train builds a frozen model from sentences in a single pass.
func Train(sentences [][]string, opts ...TrainOption) (*Model, TrainStats, error) {
	t, err := NewTrainer(opts...)
	if err != nil {
		return nil, TrainStats{}, err
	}
	for _, s := range sentences {
		if err := t.Add(s); err != nil {
			return nil, t.stats, fmt.Errorf("training aborted: %w", err)
		}
	}
	return t.Model()
}

// TrainSeq is Train over a sentence stream such as tokenize.Stream. A stream error
// aborts training.
func TrainSeq(sentences iter.Seq2[[]string, error], opts ...TrainOption) (*Model, TrainStats, error) {
	t, err := NewTrainer(opts...)
	if err != nil {
		return nil, TrainStats{}, err
	}
	for s, err := range sentences {
		if err != nil {
			return nil, t.stats, fmt.Errorf("reading training text: %w", err)
		}
		if err := t.Add(s); err != nil {
			return nil, t.stats, fmt.Errorf("training aborted: %w", err)
		}
	}
	return t.Model()
}
