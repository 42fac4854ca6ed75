package types

import (
	"errors"
	"sort"
)

// FieldSet maps field names to posted values for one record instance.
type FieldSet map[string]any

// Row is one entry of a submitted sequence together with the index it was
// posted under. Index 0 is the hidden template row.
type Row struct {
	Index  int
	Fields FieldSet
}

// Entry is what a submission holds for one record type: either a single
// field set or an ordered sequence of rows.
type Entry struct {
	fields   FieldSet
	rows     []Row
	sequence bool
}

// Single returns an Entry holding one field set.
func Single(fields FieldSet) Entry {
	return Entry{fields: fields}
}

// Sequence returns an Entry whose rows are indexed from 0 in argument order.
// The first field set is the template row.
func Sequence(fieldSets ...FieldSet) Entry {
	rows := make([]Row, len(fieldSets))
	for i, fs := range fieldSets {
		rows[i] = Row{Index: i, Fields: fs}
	}
	return Entry{rows: rows, sequence: true}
}

// Rows returns an Entry from explicitly indexed rows, ordered by index.
func Rows(rows ...Row) Entry {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})
	return Entry{rows: sorted, sequence: true}
}

// IsSequence reports whether the entry holds rows rather than one field set.
func (e Entry) IsSequence() bool {
	return e.sequence
}

// Fields returns the single field set. It is nil for sequences.
func (e Entry) Fields() FieldSet {
	return e.fields
}

// AllRows returns every row including the template row.
func (e Entry) AllRows() []Row {
	return e.rows
}

// DataRows returns the rows with a non-zero index, in order. The template
// row is never part of the result regardless of its content.
func (e Entry) DataRows() []Row {
	out := make([]Row, 0, len(e.rows))
	for _, r := range e.rows {
		if r.Index == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Submission maps record type names to their posted entries.
type Submission map[string]Entry

// Entry returns the entry posted for typeName.
func (s Submission) Entry(typeName string) (Entry, bool) {
	e, ok := s[typeName]
	return e, ok
}

// Submission errors.
var (
	ErrMalformedSubmission = errors.New("malformed submission")
)
