// Package boltstore persists models in a bbolt database. Importing it registers the
// "bolt" scheme with the store package.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/bastiangx/nextword/internal/utils"
	"github.com/bastiangx/nextword/pkg/model"
	"github.com/bastiangx/nextword/pkg/store"
	"github.com/charmbracelet/log"
	bolt "go.etcd.io/bbolt"
)

var (
	metaBucket  = []byte("meta")
	vocabBucket = []byte("vocab")
	ngramBucket = []byte("ngrams")

	orderKey   = []byte("order")
	versionKey = []byte("version")
)

const sep = 0x00

func init() {
	store.Register(store.SchemeBolt, func(location string) (store.Store, error) {
		return Open(location)
	})
}

// Store keeps one model in three buckets: meta (order, version), vocab (token ->
// count) and ngrams (context length byte + NUL-terminated context tokens + next
// token -> count). Counts are big-endian uint64.
type Store struct {
	db *bolt.DB
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := utils.EnsureParentDir(path); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Save replaces the stored model with m in one transaction.
func (s *Store) Save(ctx context.Context, m *model.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := m.Snapshot()

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, vocabBucket, ngramBucket} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
		}
		meta, err := tx.CreateBucket(metaBucket)
		if err != nil {
			return err
		}
		vocab, err := tx.CreateBucket(vocabBucket)
		if err != nil {
			return err
		}
		ngrams, err := tx.CreateBucket(ngramBucket)
		if err != nil {
			return err
		}

		if err := meta.Put(orderKey, itob(uint64(snap.Order))); err != nil {
			return err
		}
		if err := meta.Put(versionKey, itob(uint64(snap.Version))); err != nil {
			return err
		}

		for _, tc := range snap.Vocabulary {
			if err := vocab.Put([]byte(tc.Token), itob(uint64(tc.Count))); err != nil {
				return fmt.Errorf("vocab %q: %w", tc.Token, err)
			}
		}
		for i, ng := range snap.NGrams {
			if i%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			key, err := ngramKey(ng.Context, ng.Next)
			if err != nil {
				return err
			}
			if err := ngrams.Put(key, itob(uint64(ng.Count))); err != nil {
				return err
			}
		}
		log.Debugf("Saved %d tokens and %d n-grams to %s", len(snap.Vocabulary), len(snap.NGrams), s.db.Path())
		return nil
	})
}

// Load reads the stored model.
func (s *Store) Load(ctx context.Context) (*model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &model.Snapshot{}
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			return fmt.Errorf("%w: %s", store.ErrNotFound, s.db.Path())
		}
		order, err := btoi(meta.Get(orderKey))
		if err != nil {
			return fmt.Errorf("order: %w", err)
		}
		version, err := btoi(meta.Get(versionKey))
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		snap.Order, snap.Version = order, version

		vocab := tx.Bucket(vocabBucket)
		ngrams := tx.Bucket(ngramBucket)
		if vocab == nil || ngrams == nil {
			return fmt.Errorf("%w: missing buckets", model.ErrMalformedModel)
		}

		snap.Vocabulary = make([]model.TokenCount, 0, vocab.Stats().KeyN)
		if err := vocab.ForEach(func(k, v []byte) error {
			c, err := btoi(v)
			if err != nil {
				return fmt.Errorf("vocab %q: %w", k, err)
			}
			snap.Vocabulary = append(snap.Vocabulary, model.TokenCount{Token: string(k), Count: c})
			return nil
		}); err != nil {
			return err
		}

		return ngrams.ForEach(func(k, v []byte) error {
			c, err := btoi(v)
			if err != nil {
				return fmt.Errorf("ngram %q: %w", k, err)
			}
			context, next, err := parseNGramKey(k)
			if err != nil {
				return err
			}
			snap.NGrams = append(snap.NGrams, model.NGramCount{Context: context, Next: next, Count: c})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return model.FromSnapshot(snap)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func ngramKey(context []string, next string) ([]byte, error) {
	if len(context) > 255 {
		return nil, fmt.Errorf("context of %d tokens cannot be stored", len(context))
	}
	if strings.IndexByte(next, sep) >= 0 {
		return nil, fmt.Errorf("token %q contains a NUL byte", next)
	}
	var b bytes.Buffer
	b.WriteByte(byte(len(context)))
	for _, tok := range context {
		if strings.IndexByte(tok, sep) >= 0 {
			return nil, fmt.Errorf("token %q contains a NUL byte", tok)
		}
		b.WriteString(tok)
		b.WriteByte(sep)
	}
	b.WriteString(next)
	return b.Bytes(), nil
}

func parseNGramKey(k []byte) ([]string, string, error) {
	if len(k) < 2 {
		return nil, "", fmt.Errorf("%w: short n-gram key %q", model.ErrMalformedModel, k)
	}
	n := int(k[0])
	parts := strings.Split(string(k[1:]), string(rune(sep)))
	if len(parts) != n+1 {
		return nil, "", fmt.Errorf("%w: n-gram key %q has %d tokens, want %d",
			model.ErrMalformedModel, k, len(parts), n+1)
	}
	if n == 0 {
		return nil, parts[0], nil
	}
	return parts[:n], parts[n], nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) (int, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: count of %d bytes", model.ErrMalformedModel, len(b))
	}
	return int(int64(binary.BigEndian.Uint64(b))), nil
}
