package capture

import (
	"context"
	"errors"
	"time"
)

// Record maps field names to the submitted values of one accepted
// submission. Keys are always a subset of the owning schema's field names.
type Record map[string]string

// Row is a persisted submission as returned by a store: the field values
// plus the creation timestamp. Soft-deleted rows are never returned.
type Row struct {
	Values  Record
	Created time.Time
}

// ErrNoData is returned when an export is requested for a capture that has
// no persisted submissions.
var ErrNoData = errors.New("no data captured")

// Store persists accepted submissions for a single capture. Implementations
// must create the backing table lazily from the schema, bind insert
// parameters, and return rows in ascending creation order with the
// soft-delete flag excluded.
type Store interface {
	EnsureSchema(ctx context.Context, schema Schema) error
	Insert(ctx context.Context, rec Record) error
	SelectAll(ctx context.Context) ([]Row, error)
}
