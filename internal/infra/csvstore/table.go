package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"church-quiz-service/internal/domain"
	"github.com/rs/zerolog/log"
)

// codec maps one record kind to and from CSV rows.
type codec[T any] struct {
	header []string
	encode func(T) []string
	decode func(row map[string]string) (T, error)
}

// Table is a flat CSV file holding one record kind: a header row followed by
// one row per record. A missing file is created on first access; a file that
// cannot be read or parsed yields domain.ErrStorageUnavailable.
type Table[T any] struct {
	path  string
	codec codec[T]
	seed  func() []T

	// mu serialises read-modify-write cycles; writes replace the file atomically.
	mu sync.Mutex
}

func newTable[T any](path string, c codec[T], seed func() []T) *Table[T] {
	return &Table[T]{path: path, codec: c, seed: seed}
}

// Path returns the backing file path.
func (t *Table[T]) Path() string {
	return t.path
}

func (t *Table[T]) Load(_ context.Context) ([]T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked()
}

func (t *Table[T]) Append(_ context.Context, rec T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs, err := t.loadLocked()
	if err != nil {
		return err
	}
	return t.writeLocked(append(recs, rec))
}

func (t *Table[T]) UpdateWhere(_ context.Context, match func(int, T) bool, mutate func(*T)) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs, err := t.loadLocked()
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range recs {
		if match(i, recs[i]) {
			mutate(&recs[i])
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, t.writeLocked(recs)
}

func (t *Table[T]) DeleteWhere(_ context.Context, match func(int, T) bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs, err := t.loadLocked()
	if err != nil {
		return 0, err
	}
	kept := recs[:0:0]
	for i, rec := range recs {
		if !match(i, rec) {
			kept = append(kept, rec)
		}
	}
	n := len(recs) - len(kept)
	if n == 0 {
		return 0, nil
	}
	return n, t.writeLocked(kept)
}

func (t *Table[T]) ReplaceAll(_ context.Context, recs []T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeLocked(recs)
}

func (t *Table[T]) loadLocked() ([]T, error) {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return t.createLocked()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStorageUnavailable, t.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStorageUnavailable, t.path, err)
	}
	columns, err := t.columnIndex(header)
	if err != nil {
		return nil, err
	}

	recs := make([]T, 0)
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStorageUnavailable, t.path, err)
		}
		fields := make(map[string]string, len(columns))
		for name, idx := range columns {
			if idx < len(row) {
				fields[name] = row[idx]
			}
		}
		rec, err := t.codec.decode(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrStorageUnavailable, t.path, line, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// columnIndex maps header names to positions so files written with a
// different column order still load.
func (t *Table[T]) columnIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, name := range t.codec.header {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: %s: missing column %q", domain.ErrStorageUnavailable, t.path, name)
		}
	}
	return columns, nil
}

func (t *Table[T]) createLocked() ([]T, error) {
	recs := []T{}
	if t.seed != nil {
		recs = t.seed()
	}
	if err := t.writeLocked(recs); err != nil {
		return nil, err
	}
	log.Info().Str("path", t.path).Int("records", len(recs)).Msg("created table")
	return recs, nil
}

// writeLocked writes header and records to a temp file in the same directory
// and renames it over the table.
func (t *Table[T]) writeLocked(recs []T) error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", domain.ErrStorageUnavailable, dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(t.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", domain.ErrStorageUnavailable, t.path, err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorageUnavailable, t.path, err)
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(t.codec.header); err != nil {
		return fail(err)
	}
	for _, rec := range recs {
		if err := w.Write(t.codec.encode(rec)); err != nil {
			return fail(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp for %s: %v", domain.ErrStorageUnavailable, t.path, err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename into %s: %v", domain.ErrStorageUnavailable, t.path, err)
	}
	return nil
}
