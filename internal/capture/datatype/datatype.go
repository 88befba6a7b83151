// Package datatype maps declared field type tags to validation rules and
// storage column definitions. The registry is populated at startup and only
// read afterwards, so lookups need no locking.
package datatype

import (
	"net/mail"
	"unicode/utf8"

	"github.com/formrelay/capture_layer/internal/errors"
)

// DataType bundles the validator and the SQL column definition for one type
// tag.
type DataType struct {
	// Validate reports whether a non-empty submitted value conforms to
	// the type. It must be a pure function.
	Validate func(value string) bool
	// Column is the SQL column definition used when the capture table is
	// created.
	Column string
}

// Registry holds the known type tags.
type Registry struct {
	types map[string]DataType
}

// NewRegistry returns a registry preloaded with the built-in tags: Text,
// LargeText and Email.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]DataType)}
	r.Register("Text", DataType{
		Validate: func(v string) bool { return utf8.RuneCountInString(v) <= 255 },
		Column:   "VARCHAR(255) NULL",
	})
	r.Register("LargeText", DataType{
		Validate: func(v string) bool { return true },
		Column:   "TEXT NULL",
	})
	r.Register("Email", DataType{
		Validate: validEmail,
		Column:   "VARCHAR(255) NULL",
	})
	return r
}

// Register adds or replaces a type tag. Call during startup only.
func (r *Registry) Register(tag string, dt DataType) {
	r.types[tag] = dt
}

// Resolve returns the data type for tag. An unknown tag is a configuration
// error: schemas are checked at construction time, not per request.
func (r *Registry) Resolve(tag string) (DataType, error) {
	dt, ok := r.types[tag]
	if !ok {
		return DataType{}, errors.Configuration("unknown data type %q", tag)
	}
	return dt, nil
}

// Validate runs the validator registered for tag against value.
func (r *Registry) Validate(value, tag string) (bool, error) {
	dt, err := r.Resolve(tag)
	if err != nil {
		return false, err
	}
	return dt.Validate(value), nil
}

// ColumnFor returns the SQL column definition registered for tag.
func (r *Registry) ColumnFor(tag string) (string, error) {
	dt, err := r.Resolve(tag)
	if err != nil {
		return "", err
	}
	return dt.Column, nil
}

func validEmail(v string) bool {
	addr, err := mail.ParseAddress(v)
	// ParseAddress accepts display names ("Ann <a@b.com>"); submitted
	// values must be the bare address.
	return err == nil && addr.Address == v
}
