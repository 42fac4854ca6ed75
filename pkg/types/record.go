package types

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// FieldKind is the storage and coercion kind of a record field.
type FieldKind string

// Supported field kinds.
const (
	KindString  FieldKind = "string"
	KindInteger FieldKind = "integer"
	KindNumber  FieldKind = "number"
	KindBoolean FieldKind = "boolean"
)

// validKinds is the set of recognized field kinds.
var validKinds = map[FieldKind]bool{
	KindString:  true,
	KindInteger: true,
	KindNumber:  true,
	KindBoolean: true,
}

// Valid reports whether k is a recognized field kind.
func (k FieldKind) Valid() bool {
	return validKinds[k]
}

// Coerce converts a posted or stored value to the Go type used for k:
// string, int64, float64, or bool. Nil and blank strings coerce to nil so
// that "not provided" stays distinguishable from a zero value.
func (k FieldKind) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if s, ok := v.(string); ok && k != KindString {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		v = s
	}

	switch k {
	case KindString:
		return cast.ToStringE(v)
	case KindInteger:
		if f, ok := v.(float64); ok && f != float64(int64(f)) {
			return nil, fmt.Errorf("%v: %w", v, ErrTypeMismatch)
		}
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", v, ErrTypeMismatch)
		}
		return n, nil
	case KindNumber:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", v, ErrTypeMismatch)
		}
		return f, nil
	case KindBoolean:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", v, ErrTypeMismatch)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("field kind %q: %w", k, ErrInvalidSchema)
	}
}

// Field describes a single column of a record type.
type Field struct {
	Name string
	Kind FieldKind
}

// RelationKind is the cardinality of a relation between record types.
type RelationKind string

// Relation kinds.
const (
	HasMany   RelationKind = "hasMany"
	HasOne    RelationKind = "hasOne"
	BelongsTo RelationKind = "belongsTo"
)

// Relation describes how a parent record type relates to another record
// type. For HasMany relations ForeignKey names the field on the Target type
// that holds the parent's primary key.
type Relation struct {
	Name       string
	Kind       RelationKind
	Target     string
	ForeignKey string
}

// RecordType is the metadata and factory for one kind of record.
type RecordType interface {
	// Name returns the record type name used as the submission key.
	Name() string

	// Fields returns the declared fields in declaration order. The primary
	// key is not part of this list.
	Fields() []Field

	// Relations returns the relations declared on this type.
	Relations() []Relation

	// New returns an empty, unsaved record of this type.
	New() Record
}

// Record is a single mutable record instance.
type Record interface {
	// Type returns the record's type.
	Type() RecordType

	// Assign copies posted values for declared fields. Unknown keys are
	// ignored and the primary key is never assigned.
	Assign(fields FieldSet)

	// Validate checks the named fields, or every field when none are given.
	// It clears previous errors and reports whether the record is valid.
	Validate(fields ...string) bool

	// Errors returns the field errors from the last Validate call.
	Errors() map[string][]string

	// PrimaryKey returns the primary key, or "" when the record is new.
	PrimaryKey() string

	// SetPrimaryKey sets the primary key. Stores call this on insert and
	// when loading records.
	SetPrimaryKey(id string)

	// Get returns the current value of a field.
	Get(field string) any

	// Set stores a value for a field, bypassing Assign's filtering.
	Set(field string, value any)

	// Values returns a copy of all field values keyed by field name.
	Values() map[string]any
}

// Registry resolves record types by name.
type Registry interface {
	// Lookup returns the record type with the given name.
	Lookup(name string) (RecordType, bool)

	// Types returns every registered record type in declaration order.
	Types() []RecordType
}
