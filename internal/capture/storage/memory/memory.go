// Package memory provides an in-memory submission store. It is safe for
// concurrent use and intended for tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/formrelay/capture_layer/internal/capture"
)

type storedRow struct {
	values  capture.Record
	created time.Time
	deleted bool
}

// Store keeps submissions for one capture in process memory.
type Store struct {
	mu   sync.RWMutex
	rows []storedRow
	now  func() time.Time
}

var _ capture.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{now: time.Now}
}

// SetClock overrides the timestamp source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// EnsureSchema is a no-op: memory rows need no table.
func (s *Store) EnsureSchema(ctx context.Context, schema capture.Schema) error {
	return nil
}

// Insert appends a copy of rec stamped with the current instant.
func (s *Store) Insert(ctx context.Context, rec capture.Record) error {
	values := make(capture.Record, len(rec))
	for k, v := range rec {
		values[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, storedRow{values: values, created: s.now().UTC()})
	return nil
}

// SelectAll returns non-deleted rows in insertion order.
func (s *Store) SelectAll(ctx context.Context) ([]capture.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]capture.Row, 0, len(s.rows))
	for _, row := range s.rows {
		if row.deleted {
			continue
		}
		values := make(capture.Record, len(row.values))
		for k, v := range row.values {
			values[k] = v
		}
		out = append(out, capture.Row{Values: values, Created: row.created})
	}
	return out, nil
}
