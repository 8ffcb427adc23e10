// Package store persists trained models. Backends register themselves by scheme; the
// msgpack file backend is built in, bolt and libsql live in sub-packages that are
// imported for their side effect.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bastiangx/nextword/pkg/model"
)

// ErrNotFound is returned by Load when the location holds no model.
var ErrNotFound = errors.New("model not found")

// Store saves and loads whole models. Load returns a frozen model or an error, never
// a partially built one.
type Store interface {
	Save(ctx context.Context, m *model.Model) error
	Load(ctx context.Context) (*model.Model, error)
	Close() error
}

// Opener opens a backend at a backend-specific location.
type Opener func(location string) (Store, error)

const (
	SchemeMsgpack = "msgpack"
	SchemeBolt    = "bolt"
	SchemeLibSQL  = "libsql"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Opener)
)

// Register makes a backend available to Open under scheme.
func Register(scheme string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if open == nil {
		panic("store: Register opener is nil")
	}
	if _, dup := registry[scheme]; dup {
		panic("store: Register called twice for scheme " + scheme)
	}
	registry[scheme] = open
}

// Schemes lists the registered backends.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for s := range registry {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Resolve picks the backend scheme for location and the location handed to it.
//
//	bolt://path, *.db, *.bolt          -> bolt
//	libsql://..., file:..., *.sqlite   -> libsql
//	msgpack://path, anything else      -> msgpack
func Resolve(location string) (scheme, target string) {
	if i := strings.Index(location, "://"); i > 0 {
		scheme, rest := location[:i], location[i+3:]
		if scheme == SchemeLibSQL || scheme == "https" || scheme == "http" {
			return SchemeLibSQL, location
		}
		return scheme, rest
	}
	if strings.HasPrefix(location, "file:") {
		return SchemeLibSQL, location
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".bolt":
		return SchemeBolt, location
	case ".sqlite", ".sqlite3":
		return SchemeLibSQL, "file:" + location
	}
	return SchemeMsgpack, location
}

// Open resolves location and opens it with the registered backend.
func Open(location string) (Store, error) {
	scheme, target := Resolve(location)

	registryMu.RLock()
	open, ok := registry[scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no store backend registered for %q (known: %v)", scheme, Schemes())
	}

	s, err := open(target)
	if err != nil {
		return nil, fmt.Errorf("opening %s store %s: %w", scheme, target, err)
	}
	return s, nil
}

// Load opens location, loads the model and closes the store.
func Load(ctx context.Context, location string) (*model.Model, error) {
	s, err := Open(location)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Load(ctx)
}

// Save opens location, saves m and closes the store.
func Save(ctx context.Context, location string, m *model.Model) (err error) {
	s, err := Open(location)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return s.Save(ctx, m)
}
