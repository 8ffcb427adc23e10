// Package sqlstore persists models in a libSQL (SQLite compatible) database, local
// or remote. Importing it registers the "libsql" scheme with the store package.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bastiangx/nextword/internal/utils"
	"github.com/bastiangx/nextword/pkg/model"
	"github.com/bastiangx/nextword/pkg/store"
	"github.com/charmbracelet/log"
	_ "github.com/tursodatabase/go-libsql"
)

const contextSep = "\x1f"

func init() {
	store.Register(store.SchemeLibSQL, func(location string) (store.Store, error) {
		return Open(location)
	})
}

// Store keeps one model in the meta, vocabulary and ngrams tables.
type Store struct {
	db    *sql.DB
	owned bool
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn ("file:model.sqlite", "libsql://host?authToken=...") and
// migrates the schema.
func Open(dsn string) (*Store, error) {
	if path, ok := localPath(dsn); ok {
		if err := utils.EnsureParentDir(path); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dsn, err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// localPath returns the database file of a file: DSN.
func localPath(dsn string) (string, bool) {
	path, ok := strings.CutPrefix(dsn, "file:")
	if !ok {
		return "", false
	}
	path, _, _ = strings.Cut(path, "?")
	return path, path != "" && path != ":memory:"
}

// New wraps an existing handle and migrates the schema. Close leaves db open.
func New(db *sql.DB) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Save replaces the stored model with m in one transaction.
func (s *Store) Save(ctx context.Context, m *model.Model) (err error) {
	snap := m.Snapshot()
	for _, ng := range snap.NGrams {
		for _, tok := range ng.Context {
			if strings.Contains(tok, contextSep) {
				return fmt.Errorf("token %q contains the context separator", tok)
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{"DELETE FROM ngrams", "DELETE FROM vocabulary", "DELETE FROM meta"} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	meta := map[string]int{"order": snap.Order, "version": snap.Version}
	for k, v := range meta {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO meta(key, value) VALUES(?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, strconv.Itoa(v)); err != nil {
			return err
		}
	}

	vocab, err := tx.PrepareContext(ctx, "INSERT INTO vocabulary(token, count) VALUES(?, ?)")
	if err != nil {
		return err
	}
	defer vocab.Close()
	for _, tc := range snap.Vocabulary {
		if _, err = vocab.ExecContext(ctx, tc.Token, tc.Count); err != nil {
			return fmt.Errorf("vocabulary %q: %w", tc.Token, err)
		}
	}

	ngrams, err := tx.PrepareContext(ctx, "INSERT INTO ngrams(ord, context, next, count) VALUES(?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer ngrams.Close()
	for _, ng := range snap.NGrams {
		if _, err = ngrams.ExecContext(ctx, len(ng.Context), strings.Join(ng.Context, contextSep), ng.Next, ng.Count); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	log.Debugf("Saved %d tokens and %d n-grams", len(snap.Vocabulary), len(snap.NGrams))
	return nil
}

// Load reads the stored model.
func (s *Store) Load(ctx context.Context) (*model.Model, error) {
	order, err := s.metaInt(ctx, "order")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	version, err := s.metaInt(ctx, "version")
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	snap := &model.Snapshot{Version: version, Order: order}

	rows, err := s.db.QueryContext(ctx, "SELECT token, count FROM vocabulary")
	if err != nil {
		return nil, err
	}
	snap.Vocabulary = []model.TokenCount{}
	for rows.Next() {
		var tc model.TokenCount
		if err := rows.Scan(&tc.Token, &tc.Count); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Vocabulary = append(snap.Vocabulary, tc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, "SELECT ord, context, next, count FROM ngrams")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ord    int
			joined string
			ng     model.NGramCount
		)
		if err := rows.Scan(&ord, &joined, &ng.Next, &ng.Count); err != nil {
			return nil, err
		}
		if ord > 0 {
			ng.Context = strings.Split(joined, contextSep)
		}
		if len(ng.Context) != ord {
			return nil, fmt.Errorf("%w: context %q does not have %d tokens", model.ErrMalformedModel, joined, ord)
		}
		snap.NGrams = append(snap.NGrams, ng)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return model.FromSnapshot(snap)
}

func (s *Store) metaInt(ctx context.Context, key string) (int, error) {
	var raw string
	if err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&raw); err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: meta %s = %q", model.ErrMalformedModel, key, raw)
	}
	return v, nil
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
