package schema

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML schema document and compiles it. Unknown keys are
// rejected.
func Parse(data []byte) (*Schema, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, invalid("decoding document: %v", err)
	}
	if len(doc.Types) == 0 {
		return nil, invalid("document declares no types")
	}
	return New(doc.Types...)
}

// Load reads and parses the schema file at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

// Document returns the schema as type definitions, in declaration order.
func (s *Schema) Document() Document {
	doc := Document{Types: make([]TypeDef, len(s.types))}
	for i, t := range s.types {
		def := TypeDef{Name: t.name}
		for _, f := range t.fields {
			def.Fields = append(def.Fields, f.FieldDef)
		}
		for _, r := range t.relations {
			def.Relations = append(def.Relations, RelationDef{
				Name:       r.Name,
				Kind:       r.Kind,
				Target:     r.Target,
				ForeignKey: r.ForeignKey,
			})
		}
		doc.Types[i] = def
	}
	return doc
}
