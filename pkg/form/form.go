// Package form decodes posted form data and JSON documents into a
// types.Submission.
//
// Form keys follow the bracket convention rendered by package rows:
// "Invoice[number]" posts a single field set for Invoice and
// "InvoiceLine[2][qty]" posts field qty of row 2 of InvoiceLine. Keys
// ending in "[]" collect every posted value. Other keys are ignored.
package form

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

var keyPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[([^\[\]]+)\](?:\[([^\[\]]+)\])?(\[\])?$`)

// Values decodes url-encoded form values. Posting both a single field set
// and indexed rows for the same type is an error.
func Values(values url.Values) (types.Submission, error) {
	singles := make(map[string]types.FieldSet)
	rows := make(map[string]map[int]types.FieldSet)

	for key, vals := range values {
		m := keyPattern.FindStringSubmatch(key)
		if m == nil || len(vals) == 0 {
			continue
		}
		typeName, first, second, multi := m[1], m[2], m[3], m[4] != ""

		var value any = vals[len(vals)-1]
		if multi {
			value = append([]string(nil), vals...)
		}

		if second == "" {
			if singles[typeName] == nil {
				singles[typeName] = types.FieldSet{}
			}
			singles[typeName][first] = value
			continue
		}

		idx, err := strconv.Atoi(first)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: key %q: row index %q is not a non-negative integer", types.ErrMalformedSubmission, key, first)
		}
		if rows[typeName] == nil {
			rows[typeName] = make(map[int]types.FieldSet)
		}
		if rows[typeName][idx] == nil {
			rows[typeName][idx] = types.FieldSet{}
		}
		rows[typeName][idx][second] = value
	}

	sub := make(types.Submission, len(singles)+len(rows))
	for name, fs := range singles {
		sub[name] = types.Single(fs)
	}
	for name, byIndex := range rows {
		if _, clash := sub[name]; clash {
			return nil, fmt.Errorf("%w: type %q posted both as a single record and as rows", types.ErrMalformedSubmission, name)
		}
		sub[name] = types.Rows(indexedRows(byIndex)...)
	}
	return sub, nil
}

// JSON decodes a JSON object keyed by type name. An object value is a
// single field set. An array value is a sequence indexed from 0, and an
// object whose keys are all integers is a sequence of explicitly indexed
// rows. Numbers are kept as their decimal text, the way forms post them.
func JSON(r io.Reader) (types.Submission, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding json: %v", types.ErrMalformedSubmission, err)
	}

	sub := make(types.Submission, len(doc))
	for name, raw := range doc {
		entry, err := jsonEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", name, err)
		}
		sub[name] = entry
	}
	return sub, nil
}

// Request decodes a JSON body when the content type says so and the
// parsed form otherwise.
func Request(r *http.Request) (types.Submission, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: request is nil", types.ErrMalformedSubmission)
	}
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "application/json") {
		return JSON(r.Body)
	}
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedSubmission, err)
	}
	return Values(r.Form)
}

func jsonEntry(raw any) (types.Entry, error) {
	switch v := raw.(type) {
	case []any:
		sets := make([]types.FieldSet, len(v))
		for i, item := range v {
			fs, err := jsonFieldSet(item)
			if err != nil {
				return types.Entry{}, fmt.Errorf("row %d: %w", i, err)
			}
			sets[i] = fs
		}
		return types.Sequence(sets...), nil
	case map[string]any:
		if byIndex, ok, err := jsonIndexedRows(v); ok || err != nil {
			if err != nil {
				return types.Entry{}, err
			}
			return types.Rows(indexedRows(byIndex)...), nil
		}
		fs, err := jsonFieldSet(v)
		if err != nil {
			return types.Entry{}, err
		}
		return types.Single(fs), nil
	default:
		return types.Entry{}, fmt.Errorf("%w: expected an object or an array, got %T", types.ErrMalformedSubmission, raw)
	}
}

// jsonIndexedRows reports whether every key of obj is a row index. An
// empty object is a single, empty field set.
func jsonIndexedRows(obj map[string]any) (map[int]types.FieldSet, bool, error) {
	if len(obj) == 0 {
		return nil, false, nil
	}
	out := make(map[int]types.FieldSet, len(obj))
	for key, item := range obj {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return nil, false, nil
		}
		fs, err := jsonFieldSet(item)
		if err != nil {
			return nil, true, fmt.Errorf("row %d: %w", idx, err)
		}
		out[idx] = fs
	}
	return out, true, nil
}

func jsonFieldSet(raw any) (types.FieldSet, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a field object, got %T", types.ErrMalformedSubmission, raw)
	}
	fs := make(types.FieldSet, len(obj))
	for k, v := range obj {
		fs[k] = jsonScalar(v)
	}
	return fs, nil
}

func jsonScalar(v any) any {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = jsonScalar(item)
		}
		return out
	default:
		return v
	}
}

func indexedRows(byIndex map[int]types.FieldSet) []types.Row {
	idx := make([]int, 0, len(byIndex))
	for i := range byIndex {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]types.Row, len(idx))
	for i, k := range idx {
		out[i] = types.Row{Index: k, Fields: byIndex[k]}
	}
	return out
}
