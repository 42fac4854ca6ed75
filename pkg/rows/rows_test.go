package rows

import (
	"context"
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/multirow/pkg/multirow"
	"github.com/mesh-intelligence/multirow/pkg/schema"
	"github.com/mesh-intelligence/multirow/pkg/types"
)

const lineSchema = `
types:
  - name: Line
    fields:
      - {name: description}
      - {name: qty, kind: integer, default: 1}
`

const rowTemplate = `<input name="{{ name("description") }}" id="{{ id("description") }}" value="{{ record.description }}">` +
	`<input name="{{ name("qty") }}" value="{{ record.qty }}">` +
	`{% if record.id %}<input type="hidden" name="{{ name("id") }}" value="{{ record.id }}">{% endif %}` +
	`<em>{{ error("qty") }}</em>`

func lineType(t *testing.T) types.RecordType {
	t.Helper()
	s, err := schema.Parse([]byte(lineSchema))
	require.NoError(t, err)
	rt, _ := s.Lookup("Line")
	return rt
}

func line(rt types.RecordType, id, desc string, qty any) types.Record {
	rec := rt.New()
	rec.SetPrimaryKey(id)
	rec.Assign(types.FieldSet{"description": desc, "qty": qty})
	return rec
}

func fixedSuffix() string { return "abc123" }

func TestRenderRows(t *testing.T) {
	rt := lineType(t)
	r, err := New(rowTemplate, WithSuffix(fixedSuffix))
	require.NoError(t, err)

	out, err := r.Render(context.Background(), Widget{
		Type:            rt,
		Records:         []types.Record{line(rt, "k1", "Bolts", 3), line(rt, "k2", "Nuts", 4)},
		Defaults:        types.FieldSet{"description": "new line"},
		AddLinkSelector: "#add-line",
		DelLinkSelector: ".del-line",
		FormSelector:    "#invoice-form",
	})
	require.NoError(t, err)
	html := string(out)

	rows := regexp.MustCompile(`<div class="rowLineabc123" data-index="(\d+)">`).FindAllStringSubmatch(html, -1)
	require.Len(t, rows, 3)
	assert.Equal(t, "0", rows[0][1])
	assert.Equal(t, "2", rows[2][1])

	assert.Contains(t, html, `<input name="Line[0][description]" id="Line_0_description" value="new line">`)
	assert.Contains(t, html, `<input name="Line[0][qty]" value="1">`)
	assert.NotContains(t, html, `name="Line[0][id]"`)
	assert.Contains(t, html, `<input name="Line[1][description]" id="Line_1_description" value="Bolts">`)
	assert.Contains(t, html, `<input type="hidden" name="Line[2][id]" value="k2">`)

	i := strings.Index(html, `<script type="application/json" data-multirow>`)
	require.GreaterOrEqual(t, i, 0)
	blob := strings.TrimSuffix(strings.TrimSpace(html[i+len(`<script type="application/json" data-multirow>`):]), "</script>")
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(blob), &cfg))
	assert.Equal(t, Config{
		RowClass:        ".rowLineabc123",
		Model:           "Line",
		AddLinkSelector: "#add-line",
		DelLinkSelector: ".del-line",
		FormSelector:    "#invoice-form",
	}, cfg)
}

func TestRenderEscapesValuesAndShowsErrors(t *testing.T) {
	rt := lineType(t)
	r, err := New(rowTemplate)
	require.NoError(t, err)

	out, err := r.Render(context.Background(), Widget{
		Type:     rt,
		Records:  []types.Record{line(rt, "", `<b>"bold"</b>`, "x")},
		Errors:   multirow.Report{"Line[1].qty": {"Qty must be an integer."}},
		RowClass: "lines",
	})
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, `<div class="lines" data-index="1">`)
	assert.NotContains(t, html, `<b>"bold"</b>`)
	assert.Contains(t, html, "&lt;b&gt;")
	assert.Contains(t, html, "<em>Qty must be an integer.</em>")
	assert.Contains(t, html, "<em></em>")
}

func TestRandomRowClass(t *testing.T) {
	rt := lineType(t)
	r, err := New(`{{ index }}`)
	require.NoError(t, err)

	out, err := r.Render(context.Background(), Widget{Type: rt})
	require.NoError(t, err)
	assert.Regexp(t, `<div class="rowLine[0-9a-f]{6}" data-index="0">0</div>`, string(out))
}

func TestLoadWithInclude(t *testing.T) {
	rt := lineType(t)
	r, err := Load(filepath.Join("testdata", "line.html"), WithSuffix(fixedSuffix))
	require.NoError(t, err)

	out, err := r.Render(context.Background(), Widget{
		Type:    rt,
		Records: []types.Record{line(rt, "k1", "Bolts", 0)},
		Errors:  multirow.Report{"Line[1].qty": {"Qty is too small (minimum is 1)."}},
	})
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, `<label for="Line_1_qty">Qty</label>`)
	assert.Contains(t, html, `<span class="error">Qty is too small (minimum is 1).</span>`)
}

func TestRenderErrors(t *testing.T) {
	_, err := New(`{% if %}`)
	assert.Error(t, err)

	r, err := New(`x`)
	require.NoError(t, err)
	_, err = r.Render(context.Background(), Widget{})
	assert.ErrorIs(t, err, types.ErrUnknownType)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, Widget{Type: lineType(t)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderRejectedSubmissionKeepsPostedIndexes(t *testing.T) {
	s, err := schema.Parse([]byte(`
types:
  - name: Line
    fields:
      - {name: description}
      - {name: qty, kind: integer, rules: {min: 1}}
`))
	require.NoError(t, err)
	rt, _ := s.Lookup("Line")

	// Row 2 was removed on the client before posting.
	posted := []types.Row{
		{Index: 0, Fields: types.FieldSet{}},
		{Index: 1, Fields: types.FieldSet{"description": "Bolts", "qty": "2"}},
		{Index: 3, Fields: types.FieldSet{"description": "Nuts", "qty": "0"}},
	}
	sub := types.Submission{"Line": types.Rows(posted...)}
	report := multirow.New(s).Validate(context.Background(), sub, types.ByTypeName("Line"))
	require.Equal(t, multirow.Report{"Line[3].qty": {"Qty is too small (minimum is 1)."}}, report)

	var (
		recs    []types.Record
		indexes []int
	)
	for _, row := range sub["Line"].DataRows() {
		rec := rt.New()
		rec.Assign(row.Fields)
		recs = append(recs, rec)
		indexes = append(indexes, row.Index)
	}

	r, err := New(`{{ record.description }}:{{ error("qty") }}`, WithSuffix(fixedSuffix))
	require.NoError(t, err)
	out, err := r.Render(context.Background(), Widget{Type: rt, Records: recs, Indexes: indexes, Errors: report})
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, `data-index="1">Bolts:</div>`)
	assert.Contains(t, html, `data-index="2">Nuts:Qty is too small (minimum is 1).</div>`)
}

func TestRenderSingleFieldSetErrors(t *testing.T) {
	rt := lineType(t)
	r, err := New(`{{ error("qty") }}`, WithSuffix(fixedSuffix))
	require.NoError(t, err)

	out, err := r.Render(context.Background(), Widget{
		Type:    rt,
		Records: []types.Record{line(rt, "", "Bolts", "x")},
		Indexes: []int{SingleFieldSet},
		Errors:  multirow.Report{"Line.qty": {"Qty must be an integer."}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), `data-index="0"></div>`)
	assert.Contains(t, string(out), `data-index="1">Qty must be an integer.</div>`)
}
