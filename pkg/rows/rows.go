// Package rows renders the editable rows of a child record type: a hidden
// template row with index 0 followed by one row per existing record. Each
// row is a user-supplied pongo2 template wrapped in a div carrying the row
// class and index, and a JSON config element lets client-side code clone
// the template row and remove rows.
//
// Inside the row template:
//
//	index        row index, 0 for the template row
//	type         record type name
//	record       field values, plus "id" for stored records
//	errors       field messages for this row
//	name("f")    input name, "Type[index][f]"
//	id("f")      input id, "Type_index_f"
//	label("f")   field label
//	error("f")   first message for field f, or ""
package rows

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/multirow/pkg/multirow"
	"github.com/mesh-intelligence/multirow/pkg/types"
)

// Widget describes one rendering of a child group.
type Widget struct {
	// Type is the child record type.
	Type types.RecordType

	// Records are the existing or re-posted children, rendered as rows 1..n.
	Records []types.Record

	// Indexes holds the index each record was posted under when a rejected
	// submission is rendered again. Errors for Records[i] are looked up
	// under Indexes[i], or under "Type.field" when it is SingleFieldSet.
	// When nil, record i takes the errors of row i+1.
	Indexes []int

	// Defaults are assigned to the template row.
	Defaults types.FieldSet

	// Errors holds messages keyed "Type[index].field", usually the report
	// of a failed validate or save.
	Errors multirow.Report

	// RowClass overrides the generated row class.
	RowClass string

	AddLinkSelector string
	DelLinkSelector string
	FormSelector    string
}

// SingleFieldSet marks, in Widget.Indexes, a record posted as a single
// field set rather than as an indexed row.
const SingleFieldSet = -1

// Config is the JSON document consumed by the client-side row script.
type Config struct {
	RowClass        string `json:"rowclass"`
	Model           string `json:"model"`
	AddLinkSelector string `json:"addlinkselector"`
	DelLinkSelector string `json:"dellinkselector"`
	FormSelector    string `json:"formselector"`
}

// Renderer renders rows with a compiled row template.
type Renderer struct {
	tpl    *pongo2.Template
	suffix func() string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSuffix sets the generator of the random part of row classes.
func WithSuffix(fn func() string) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.suffix = fn
		}
	}
}

func newRenderer(opts []Option) *Renderer {
	r := &Renderer{suffix: randomSuffix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// New compiles rowTemplate.
func New(rowTemplate string, opts ...Option) (*Renderer, error) {
	loader, err := pongo2.NewLocalFileSystemLoader("")
	if err != nil {
		return nil, fmt.Errorf("rows: template loader: %w", err)
	}
	set := pongo2.NewSet("multirow", loader)
	tpl, err := set.FromString(rowTemplate)
	if err != nil {
		return nil, fmt.Errorf("rows: parse row template: %w", err)
	}
	r := newRenderer(opts)
	r.tpl = tpl
	return r, nil
}

// Load compiles the row template file at path. Includes resolve relative
// to the file's directory.
func Load(path string, opts ...Option) (*Renderer, error) {
	loader, err := pongo2.NewLocalFileSystemLoader(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("rows: template loader: %w", err)
	}
	set := pongo2.NewSet("multirow", loader)
	tpl, err := set.FromFile(filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("rows: load row template %q: %w", path, err)
	}
	r := newRenderer(opts)
	r.tpl = tpl
	return r, nil
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// Render writes the template row, one row per record and the config
// element.
func (r *Renderer) Render(ctx context.Context, w Widget) ([]byte, error) {
	if w.Type == nil {
		return nil, fmt.Errorf("rows: widget has no record type: %w", types.ErrUnknownType)
	}
	typeName := w.Type.Name()

	rowClass := w.RowClass
	if rowClass == "" {
		rowClass = "row" + typeName + r.suffix()
	}

	blank := w.Type.New()
	blank.Assign(w.Defaults)
	records := append([]types.Record{blank}, w.Records...)

	var buf bytes.Buffer
	for k, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, `<div class="%s" data-index="%d">`, html.EscapeString(rowClass), k)
		if err := r.tpl.ExecuteWriter(rowContext(w, typeName, k, errorIndex(w, k), rec), &buf); err != nil {
			return nil, fmt.Errorf("rows: render %s row %d: %w", typeName, k, err)
		}
		buf.WriteString("</div>\n")
	}

	cfg, err := json.Marshal(Config{
		RowClass:        "." + rowClass,
		Model:           typeName,
		AddLinkSelector: w.AddLinkSelector,
		DelLinkSelector: w.DelLinkSelector,
		FormSelector:    w.FormSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("rows: encode config: %w", err)
	}
	buf.WriteString(`<script type="application/json" data-multirow>`)
	buf.Write(cfg)
	buf.WriteString("</script>\n")
	return buf.Bytes(), nil
}

// labeler is implemented by record types that carry field labels.
type labeler interface {
	Label(field string) string
}

// errorIndex returns the report index holding the errors of rendered row k.
func errorIndex(w Widget, k int) int {
	if k == 0 || w.Indexes == nil {
		return k
	}
	if k-1 < len(w.Indexes) {
		return w.Indexes[k-1]
	}
	return k
}

func rowContext(w Widget, typeName string, index, errIndex int, rec types.Record) pongo2.Context {
	values := rec.Values()
	if id := rec.PrimaryKey(); id != "" {
		values["id"] = id
	}

	var errs map[string][]string
	switch {
	case w.Errors == nil || index == 0:
	case errIndex == SingleFieldSet:
		errs = w.Errors.Fields(typeName)
	default:
		errs = w.Errors.Row(typeName, errIndex)
	}

	return pongo2.Context{
		"index":  index,
		"type":   typeName,
		"record": values,
		"errors": errs,
		"name": func(field string) string {
			return fmt.Sprintf("%s[%d][%s]", typeName, index, field)
		},
		"id": func(field string) string {
			return fmt.Sprintf("%s_%d_%s", typeName, index, field)
		},
		"label": func(field string) string {
			if l, ok := w.Type.(labeler); ok {
				return l.Label(field)
			}
			return field
		},
		"error": func(field string) string {
			if msgs := errs[field]; len(msgs) > 0 {
				return msgs[0]
			}
			return ""
		},
	}
}
