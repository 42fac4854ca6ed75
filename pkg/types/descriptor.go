package types

import "errors"

// Descriptor identifies a record to validate: by type name or by instance,
// optionally restricted to a subset of fields. Build one with ByTypeName,
// ByInstance, ByTypeNameWithFields, or ByInstanceWithFields.
type Descriptor struct {
	typeName string
	instance Record
	fields   []string
}

// ByTypeName describes a new record of the named type.
func ByTypeName(name string) Descriptor {
	return Descriptor{typeName: name}
}

// ByInstance describes an existing record instance.
func ByInstance(rec Record) Descriptor {
	return Descriptor{instance: rec}
}

// ByTypeNameWithFields describes a new record of the named type whose
// validation is limited to fields.
func ByTypeNameWithFields(name string, fields ...string) Descriptor {
	return Descriptor{typeName: name, fields: fields}
}

// ByInstanceWithFields describes an existing record instance whose
// validation is limited to fields.
func ByInstanceWithFields(rec Record, fields ...string) Descriptor {
	return Descriptor{instance: rec, fields: fields}
}

// TypeName returns the type name the descriptor was built with.
func (d Descriptor) TypeName() string { return d.typeName }

// Instance returns the record instance the descriptor was built with.
func (d Descriptor) Instance() Record { return d.instance }

// FieldSubset returns the fields to validate; nil means all fields.
func (d Descriptor) FieldSubset() []string { return d.fields }

// Resolve turns the descriptor into a concrete record type and record. An
// instance wins over a type name. When only a name is given the record is a
// new instance of that type.
func (d Descriptor) Resolve(reg Registry) (RecordType, Record, error) {
	if d.instance != nil {
		return d.instance.Type(), d.instance, nil
	}
	if d.typeName == "" {
		return nil, nil, ErrUnresolvedDescriptor
	}
	if reg == nil {
		return nil, nil, ErrUnknownType
	}
	rt, ok := reg.Lookup(d.typeName)
	if !ok {
		return nil, nil, ErrUnknownType
	}
	return rt, rt.New(), nil
}

// ChildGroup names a child record type to reconcile on save or remove on
// delete.
type ChildGroup struct {
	TypeName string
}

// Child returns a ChildGroup for the named type.
func Child(typeName string) ChildGroup {
	return ChildGroup{TypeName: typeName}
}

// Children returns one ChildGroup per type name.
func Children(typeNames ...string) []ChildGroup {
	groups := make([]ChildGroup, len(typeNames))
	for i, name := range typeNames {
		groups[i] = Child(name)
	}
	return groups
}

// Descriptor errors.
var (
	ErrUnresolvedDescriptor = errors.New("descriptor names neither a type nor an instance")
)
