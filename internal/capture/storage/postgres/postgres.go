// Package postgres persists submissions in a PostgreSQL table per capture.
// Tables are created lazily from the field schema; creation is idempotent
// so concurrent first writers don't race each other.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/formrelay/capture_layer/internal/capture"
	"github.com/formrelay/capture_layer/internal/capture/datatype"
	"github.com/formrelay/capture_layer/internal/errors"
)

// opTimeout bounds every storage operation, lock waits included. A slow
// database fails the request instead of hanging it.
const opTimeout = 60 * time.Second

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Store persists the submissions of a single capture.
type Store struct {
	db     *sqlx.DB
	table  string
	schema capture.Schema
	types  *datatype.Registry
}

var _ capture.Store = (*Store)(nil)

// New creates a store for the named capture. The schema's column
// definitions are resolved eagerly so an unknown type tag fails at boot,
// not on the first write.
func New(db *sqlx.DB, name string, schema capture.Schema, types *datatype.Registry) (*Store, error) {
	if !identifierPattern.MatchString(name) {
		return nil, errors.Configuration("capture name %q is not a valid table identifier", name)
	}
	for _, f := range schema.Fields() {
		if !identifierPattern.MatchString(strings.ToLower(f.Name)) {
			return nil, errors.Configuration("field name %q is not a valid column identifier", f.Name)
		}
		if _, err := types.ColumnFor(f.Type); err != nil {
			return nil, err
		}
	}
	return &Store{db: db, table: "capture_" + name, schema: schema, types: types}, nil
}

// EnsureSchema creates the capture table if it does not exist, from the
// field declarations plus the created timestamp and soft-delete columns.
func (s *Store) EnsureSchema(ctx context.Context, schema capture.Schema) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	columns := make([]string, 0, len(schema.Fields())+2)
	for _, f := range schema.Fields() {
		def, err := s.types.ColumnFor(f.Type)
		if err != nil {
			return err
		}
		columns = append(columns, pq.QuoteIdentifier(f.Name)+" "+def)
	}
	columns = append(columns, "created TIMESTAMPTZ NULL", "deleted INTEGER NOT NULL DEFAULT 0")

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pq.QuoteIdentifier(s.table), strings.Join(columns, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errors.Storage("unable to prepare capture storage", err)
	}
	return nil
}

// Insert stores rec with the current instant and a zero soft-delete flag.
// Values are always bound, never interpolated.
func (s *Store) Insert(ctx context.Context, rec capture.Record) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	columns := make([]string, 0, len(rec)+2)
	placeholders := make([]string, 0, len(rec))
	args := make([]any, 0, len(rec))
	for _, f := range s.schema.Fields() {
		value, ok := rec[f.Name]
		if !ok {
			continue
		}
		columns = append(columns, pq.QuoteIdentifier(f.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, value)
	}

	// A fully-optional schema can accept a submission with no values at
	// all; the row then only carries its timestamp.
	query := fmt.Sprintf(
		"INSERT INTO %s (created, deleted) VALUES (NOW(), 0)",
		pq.QuoteIdentifier(s.table),
	)
	if len(columns) > 0 {
		query = fmt.Sprintf(
			"INSERT INTO %s (%s, created, deleted) VALUES (%s, NOW(), 0)",
			pq.QuoteIdentifier(s.table), strings.Join(columns, ", "), strings.Join(placeholders, ", "),
		)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Storage("unable to save data", err)
	}
	return nil
}

// SelectAll returns every non-deleted row in ascending creation order. The
// soft-delete column is excluded from the result.
func (s *Store) SelectAll(ctx context.Context) ([]capture.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	names := s.schema.FieldNames()
	columns := make([]string, 0, len(names)+1)
	for _, name := range names {
		columns = append(columns, pq.QuoteIdentifier(name))
	}
	columns = append(columns, "created")

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE deleted = 0 ORDER BY created ASC",
		strings.Join(columns, ", "), pq.QuoteIdentifier(s.table),
	)
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, errors.Storage("unable to read captured data", err)
	}
	defer rows.Close()

	var out []capture.Row
	for rows.Next() {
		scanned, err := rows.SliceScan()
		if err != nil {
			return nil, errors.Storage("unable to read captured data", err)
		}

		row := capture.Row{Values: make(capture.Record, len(names))}
		for i, name := range names {
			row.Values[name] = asString(scanned[i])
		}
		if created, ok := scanned[len(names)].(time.Time); ok {
			row.Created = created
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage("unable to read captured data", err)
	}
	return out, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
