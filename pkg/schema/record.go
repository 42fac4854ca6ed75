package schema

import "github.com/mesh-intelligence/multirow/pkg/types"

// Record is a generic record of a schema Type. It implements types.Record.
// Values are held as posted until Validate coerces them to their field kind.
type Record struct {
	typ    *Type
	id     string
	values map[string]any
	errors map[string][]string
}

// Type returns the record's type.
func (r *Record) Type() types.RecordType { return r.typ }

// Assign copies values for declared fields. Unknown keys, including the
// primary key, are ignored.
func (r *Record) Assign(fields types.FieldSet) {
	for name, v := range fields {
		if r.typ.HasField(name) {
			r.values[name] = v
		}
	}
}

// Validate checks the named fields, or every declared field when none are
// given. Names that are not declared fields are ignored. Valid values are
// stored in their coerced form.
func (r *Record) Validate(fields ...string) bool {
	r.errors = nil

	targets := r.typ.fields
	if len(fields) > 0 {
		targets = make([]*field, 0, len(fields))
		for _, name := range fields {
			if f, ok := r.typ.byName[name]; ok {
				targets = append(targets, f)
			}
		}
	}

	for _, f := range targets {
		v, msgs := f.check(r.values[f.Name])
		if len(msgs) > 0 {
			r.addErrors(f.Name, msgs...)
			continue
		}
		if v == nil {
			delete(r.values, f.Name)
		} else {
			r.values[f.Name] = v
		}
	}
	return len(r.errors) == 0
}

// AddError records a message for field outside of Validate. The next
// Validate call clears it.
func (r *Record) AddError(field, msg string) {
	r.addErrors(field, msg)
}

func (r *Record) addErrors(field string, msgs ...string) {
	if r.errors == nil {
		r.errors = make(map[string][]string)
	}
	r.errors[field] = append(r.errors[field], msgs...)
}

// Errors returns a copy of the errors from the last Validate call.
func (r *Record) Errors() map[string][]string {
	out := make(map[string][]string, len(r.errors))
	for k, v := range r.errors {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// PrimaryKey returns the primary key, or "" for a record never stored.
func (r *Record) PrimaryKey() string { return r.id }

// SetPrimaryKey sets the primary key.
func (r *Record) SetPrimaryKey(id string) { r.id = id }

// Get returns the value of a field, or nil when unset.
func (r *Record) Get(field string) any {
	if field == PrimaryKeyField {
		return r.id
	}
	return r.values[field]
}

// Set stores a value for a declared field. Setting PrimaryKeyField sets the
// primary key; other undeclared names are ignored.
func (r *Record) Set(field string, value any) {
	switch {
	case field == PrimaryKeyField:
		s, _ := value.(string)
		r.id = s
	case r.typ.HasField(field):
		r.values[field] = value
	}
}

// Values returns every declared field with its current value; unset fields
// map to nil.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.typ.fields))
	for _, f := range r.typ.fields {
		out[f.Name] = r.values[f.Name]
	}
	return out
}
