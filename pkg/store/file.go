package store

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/bastiangx/nextword/internal/utils"
	"github.com/bastiangx/nextword/pkg/model"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	fileMagic = "NXWM"
	// FileFormatVersion is the msgpack file layout version written by FileStore.
	FileFormatVersion uint16 = 1
)

func init() {
	Register(SchemeMsgpack, func(location string) (Store, error) {
		return NewFileStore(location), nil
	})
}

// FileStore keeps a model in a single msgpack file: a 4-byte magic, a little-endian
// uint16 format version, then the msgpack-encoded snapshot.
type FileStore struct {
	path string
}

// NewFileStore returns a store for path. The file is not touched until Save or Load.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes m to a temporary file next to the target and renames it into place.
func (s *FileStore) Save(ctx context.Context, m *model.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := utils.WriteFileAtomic(s.path, func(w io.Writer) error {
		return Encode(w, m)
	}); err != nil {
		return err
	}

	log.Debugf("Saved model to %s", s.path)
	return nil
}

// Load reads and validates the model file.
func (s *FileStore) Load(ctx context.Context) (*model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open model %s: %w", s.path, err)
	}
	defer f.Close()

	m, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.path, err)
	}
	log.Debugf("Loaded model from %s: %s", s.path, m.Stats())
	return m, nil
}

// Close is a no-op; FileStore holds no open handles.
func (s *FileStore) Close() error {
	return nil
}

// Encode writes the file header and the msgpack snapshot of m to w.
func Encode(w io.Writer, m *model.Model) error {
	if _, err := io.WriteString(w, fileMagic); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, FileFormatVersion); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := msgpack.NewEncoder(w).Encode(m.Snapshot()); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Decode reads a model written by Encode. Any structural problem is reported as
// model.ErrMalformedModel.
func Decode(r io.Reader) (*model.Model, error) {
	var magic [len(fileMagic)]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %w", model.ErrMalformedModel, err)
	}
	if string(magic[:]) != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %q", model.ErrMalformedModel, magic[:])
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: failed to read version: %w", model.ErrMalformedModel, err)
	}
	if version != FileFormatVersion {
		return nil, fmt.Errorf("%w: unsupported file version %d", model.ErrMalformedModel, version)
	}

	var snap model.Snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: failed to decode snapshot: %w", model.ErrMalformedModel, err)
	}
	return model.FromSnapshot(&snap)
}
