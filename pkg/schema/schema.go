package schema

import (
	"fmt"
	"regexp"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

// PrimaryKeyField is the implicit primary key column of every type.
const PrimaryKeyField = "id"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Rules constrains the value of a field. Zero values disable a rule.
type Rules struct {
	MinLength *int     `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLength *int     `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	Min       *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Enum      []string `yaml:"enum,omitempty" json:"enum,omitempty"`
}

// FieldDef declares one field of a record type.
type FieldDef struct {
	Name     string          `yaml:"name" json:"name"`
	Kind     types.FieldKind `yaml:"kind,omitempty" json:"kind,omitempty"`
	Label    string          `yaml:"label,omitempty" json:"label,omitempty"`
	Required bool            `yaml:"required,omitempty" json:"required,omitempty"`
	Default  any             `yaml:"default,omitempty" json:"default,omitempty"`
	Rules    Rules           `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// RelationDef declares a relation from the enclosing type to Target.
type RelationDef struct {
	Name       string             `yaml:"name" json:"name"`
	Kind       types.RelationKind `yaml:"kind" json:"kind"`
	Target     string             `yaml:"target" json:"target"`
	ForeignKey string             `yaml:"foreignKey" json:"foreignKey"`
}

// TypeDef declares a record type.
type TypeDef struct {
	Name      string        `yaml:"name" json:"name"`
	Fields    []FieldDef    `yaml:"fields" json:"fields"`
	Relations []RelationDef `yaml:"relations,omitempty" json:"relations,omitempty"`
}

// Document is the top-level shape of a schema file.
type Document struct {
	Types []TypeDef `yaml:"types" json:"types"`
}

// field is a compiled FieldDef.
type field struct {
	FieldDef
	label   string
	pattern *regexp.Regexp
}

// Type is a compiled record type. It implements types.RecordType.
type Type struct {
	name      string
	fields    []*field
	byName    map[string]*field
	relations []types.Relation
}

// Name returns the type name.
func (t *Type) Name() string { return t.name }

// Fields returns the declared fields in declaration order.
func (t *Type) Fields() []types.Field {
	out := make([]types.Field, len(t.fields))
	for i, f := range t.fields {
		out[i] = types.Field{Name: f.Name, Kind: f.Kind}
	}
	return out
}

// Relations returns the declared relations in declaration order.
func (t *Type) Relations() []types.Relation {
	out := make([]types.Relation, len(t.relations))
	copy(out, t.relations)
	return out
}

// New returns an empty record with field defaults applied.
func (t *Type) New() types.Record {
	return t.newRecord()
}

func (t *Type) newRecord() *Record {
	r := &Record{typ: t, values: make(map[string]any, len(t.fields))}
	for _, f := range t.fields {
		if f.Default != nil {
			r.values[f.Name] = f.Default
		}
	}
	return r
}

// Label returns the display label of a field. Undeclared names are labelled
// from the name itself.
func (t *Type) Label(name string) string {
	if f, ok := t.byName[name]; ok {
		return f.label
	}
	return Label(name)
}

// HasField reports whether name is a declared field.
func (t *Type) HasField(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Schema is a set of compiled record types. It implements types.Registry.
type Schema struct {
	types  []*Type
	byName map[string]*Type
}

// Lookup returns the named record type.
func (s *Schema) Lookup(name string) (types.RecordType, bool) {
	t, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return t, true
}

// Type returns the named type with its schema-specific accessors.
func (s *Schema) Type(name string) (*Type, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Types returns every type in declaration order.
func (s *Schema) Types() []types.RecordType {
	out := make([]types.RecordType, len(s.types))
	for i, t := range s.types {
		out[i] = t
	}
	return out
}

// New compiles type definitions into a Schema. Errors wrap
// types.ErrInvalidSchema.
func New(defs ...TypeDef) (*Schema, error) {
	s := &Schema{byName: make(map[string]*Type, len(defs))}

	for _, def := range defs {
		t, err := compileType(def)
		if err != nil {
			return nil, err
		}
		if _, dup := s.byName[t.name]; dup {
			return nil, invalid("duplicate type %q", t.name)
		}
		s.types = append(s.types, t)
		s.byName[t.name] = t
	}

	for i, def := range defs {
		rels, err := s.compileRelations(s.types[i], def.Relations)
		if err != nil {
			return nil, err
		}
		s.types[i].relations = rels
	}
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(defs ...TypeDef) *Schema {
	s, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return s
}

func compileType(def TypeDef) (*Type, error) {
	if !identPattern.MatchString(def.Name) {
		return nil, invalid("type name %q is not an identifier", def.Name)
	}
	t := &Type{name: def.Name, byName: make(map[string]*field, len(def.Fields))}

	for _, fd := range def.Fields {
		if !identPattern.MatchString(fd.Name) {
			return nil, invalid("type %q: field name %q is not an identifier", def.Name, fd.Name)
		}
		if fd.Name == PrimaryKeyField {
			return nil, invalid("type %q: field %q is reserved for the primary key", def.Name, fd.Name)
		}
		if _, dup := t.byName[fd.Name]; dup {
			return nil, invalid("type %q: duplicate field %q", def.Name, fd.Name)
		}
		if fd.Kind == "" {
			fd.Kind = types.KindString
		}
		if !fd.Kind.Valid() {
			return nil, invalid("type %q: field %q: unknown kind %q", def.Name, fd.Name, fd.Kind)
		}

		f := &field{FieldDef: fd, label: fd.Label}
		if f.label == "" {
			f.label = Label(fd.Name)
		}
		if err := f.compileRules(); err != nil {
			return nil, fmt.Errorf("type %q: field %q: %w", def.Name, fd.Name, err)
		}
		if fd.Default != nil {
			if _, err := fd.Kind.Coerce(fd.Default); err != nil {
				return nil, invalid("type %q: field %q: default %v is not a %s", def.Name, fd.Name, fd.Default, fd.Kind)
			}
		}

		t.fields = append(t.fields, f)
		t.byName[f.Name] = f
	}
	return t, nil
}

func (s *Schema) compileRelations(t *Type, defs []RelationDef) ([]types.Relation, error) {
	out := make([]types.Relation, 0, len(defs))
	seen := make(map[string]bool, len(defs))

	for _, rd := range defs {
		if rd.Name == "" {
			return nil, invalid("type %q: relation without a name", t.name)
		}
		if seen[rd.Name] {
			return nil, invalid("type %q: duplicate relation %q", t.name, rd.Name)
		}
		seen[rd.Name] = true

		target, ok := s.byName[rd.Target]
		if !ok {
			return nil, invalid("type %q: relation %q: unknown target %q", t.name, rd.Name, rd.Target)
		}

		// The foreign key lives on the child for hasMany/hasOne and on the
		// declaring type for belongsTo.
		var owner *Type
		switch rd.Kind {
		case types.HasMany, types.HasOne:
			owner = target
		case types.BelongsTo:
			owner = t
		default:
			return nil, invalid("type %q: relation %q: unknown kind %q", t.name, rd.Name, rd.Kind)
		}
		fk, ok := owner.byName[rd.ForeignKey]
		if !ok {
			return nil, invalid("type %q: relation %q: foreign key %q is not a field of %q", t.name, rd.Name, rd.ForeignKey, owner.name)
		}
		if fk.Kind != types.KindString {
			return nil, invalid("type %q: relation %q: foreign key %q must be a string field", t.name, rd.Name, rd.ForeignKey)
		}

		out = append(out, types.Relation{
			Name:       rd.Name,
			Kind:       rd.Kind,
			Target:     rd.Target,
			ForeignKey: rd.ForeignKey,
		})
	}
	return out, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidSchema, fmt.Sprintf(format, args...))
}
