package multirow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

// Report maps error identifiers to messages. Identifiers are "Type.field"
// for a single record, "Type[index].field" for a row of a sequence and the
// bare "Type" for messages about a record or a whole group.
type Report map[string][]string

// Add appends messages under key.
func (r Report) Add(key string, msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	r[key] = append(r[key], msgs...)
}

// Empty reports whether the report holds no messages.
func (r Report) Empty() bool {
	return len(r) == 0
}

// Keys returns the identifiers in sorted order.
func (r Report) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FieldKey returns the identifier of a field of a single record.
func FieldKey(typeName, field string) string {
	return typeName + "." + field
}

// RowKey returns the identifier of a field of row index.
func RowKey(typeName string, index int, field string) string {
	return fmt.Sprintf("%s[%d].%s", typeName, index, field)
}

func (r Report) addFields(typeName string, errs map[string][]string) {
	for field, msgs := range errs {
		r.Add(FieldKey(typeName, field), msgs...)
	}
}

func (r Report) addRow(typeName string, index int, errs map[string][]string) {
	for field, msgs := range errs {
		r.Add(RowKey(typeName, index, field), msgs...)
	}
}

// Row returns the field messages recorded for row index of typeName.
func (r Report) Row(typeName string, index int) map[string][]string {
	prefix := fmt.Sprintf("%s[%d].", typeName, index)
	out := make(map[string][]string)
	for k, msgs := range r {
		if field, ok := strings.CutPrefix(k, prefix); ok {
			out[field] = msgs
		}
	}
	return out
}

// Fields returns the field messages recorded for a single record of
// typeName.
func (r Report) Fields(typeName string) map[string][]string {
	prefix := typeName + "."
	out := make(map[string][]string)
	for k, msgs := range r {
		if field, ok := strings.CutPrefix(k, prefix); ok {
			out[field] = msgs
		}
	}
	return out
}

// JSON encodes the report as an object keyed by identifier.
func (r Report) JSON() ([]byte, error) {
	return json.Marshal(map[string][]string(r))
}

// YAML encodes the report as a mapping keyed by identifier.
func (r Report) YAML() ([]byte, error) {
	return yaml.Marshal(map[string][]string(r))
}

// HTMLIDs re-keys the report by the id attribute of the input each message
// belongs to ("Type_field", "Type_2_field"), the shape client-side ajax
// validation expects. Messages are stripped of markup.
func (r Report) HTMLIDs() map[string][]string {
	policy := bluemonday.StrictPolicy()
	out := make(map[string][]string, len(r))
	for k, msgs := range r {
		id := HTMLID(k)
		for _, m := range msgs {
			out[id] = append(out[id], policy.Sanitize(m))
		}
	}
	return out
}

// HTMLID converts an identifier to an input id: "Line[2].qty" becomes
// "Line_2_qty" and "Invoice.number" becomes "Invoice_number".
func HTMLID(key string) string {
	typeName, rest, found := strings.Cut(key, "[")
	if found {
		idx, field, ok := strings.Cut(rest, "].")
		if _, err := strconv.Atoi(idx); ok && err == nil {
			return typeName + "_" + idx + "_" + field
		}
		return strings.NewReplacer("[", "_", "]", "", ".", "_").Replace(key)
	}
	return strings.ReplaceAll(key, ".", "_")
}
