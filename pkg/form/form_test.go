package form

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

func TestValues(t *testing.T) {
	v := url.Values{
		"Invoice[number]":         {"A-1"},
		"Invoice[customer]":       {"first", "ACME"},
		"InvoiceLine[0][qty]":     {"tpl"},
		"InvoiceLine[2][qty]":     {"5"},
		"InvoiceLine[1][qty]":     {"3"},
		"InvoiceLine[1][tags][]":  {"a", "b"},
		"ajax":                    {"invoice-form"},
		"Invoice":                 {"ignored"},
	}

	sub, err := Values(v)
	require.NoError(t, err)
	assert.Len(t, sub, 2)

	inv, ok := sub.Entry("Invoice")
	require.True(t, ok)
	assert.False(t, inv.IsSequence())
	assert.Equal(t, types.FieldSet{"number": "A-1", "customer": "ACME"}, inv.Fields())

	lines, ok := sub.Entry("InvoiceLine")
	require.True(t, ok)
	require.True(t, lines.IsSequence())
	assert.Len(t, lines.AllRows(), 3)

	data := lines.DataRows()
	require.Len(t, data, 2)
	assert.Equal(t, 1, data[0].Index)
	assert.Equal(t, types.FieldSet{"qty": "3", "tags": []string{"a", "b"}}, data[0].Fields)
	assert.Equal(t, 2, data[1].Index)
}

func TestValuesErrors(t *testing.T) {
	tests := []struct {
		name string
		in   url.Values
	}{
		{"non-numeric index", url.Values{"Line[x][qty]": {"1"}}},
		{"negative index", url.Values{"Line[-1][qty]": {"1"}}},
		{"single and rows", url.Values{"Line[qty]": {"1"}, "Line[1][qty]": {"2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Values(tt.in)
			assert.ErrorIs(t, err, types.ErrMalformedSubmission)
		})
	}
}

func TestJSON(t *testing.T) {
	doc := `{
		"Invoice": {"number": "A-1", "total": 12.5},
		"InvoiceLine": [{"qty": 0}, {"qty": 3}, {"qty": 4}],
		"InvoiceNote": {"1": {"body": "hi"}, "4": {"body": "there"}}
	}`

	sub, err := JSON(strings.NewReader(doc))
	require.NoError(t, err)

	inv, _ := sub.Entry("Invoice")
	assert.Equal(t, types.FieldSet{"number": "A-1", "total": "12.5"}, inv.Fields())

	lines, _ := sub.Entry("InvoiceLine")
	require.Len(t, lines.DataRows(), 2)
	assert.Equal(t, "3", lines.DataRows()[0].Fields["qty"])

	notes, _ := sub.Entry("InvoiceNote")
	data := notes.DataRows()
	require.Len(t, data, 2)
	assert.Equal(t, 1, data[0].Index)
	assert.Equal(t, 4, data[1].Index)
}

func TestJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"scalar entry", `{"Invoice": 3}`},
		{"scalar row", `{"InvoiceLine": [1, 2]}`},
		{"scalar indexed row", `{"InvoiceLine": {"1": "x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSON(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, types.ErrMalformedSubmission)
		})
	}
}

func TestRequest(t *testing.T) {
	t.Run("form", func(t *testing.T) {
		body := url.Values{"Invoice[number]": {"A-2"}}.Encode()
		r := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		sub, err := Request(r)
		require.NoError(t, err)
		inv, _ := sub.Entry("Invoice")
		assert.Equal(t, "A-2", inv.Fields()["number"])
	})

	t.Run("json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(`{"Invoice": {"number": "A-3"}}`))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")

		sub, err := Request(r)
		require.NoError(t, err)
		inv, _ := sub.Entry("Invoice")
		assert.Equal(t, "A-3", inv.Fields()["number"])
	})

	t.Run("nil", func(t *testing.T) {
		_, err := Request(nil)
		assert.ErrorIs(t, err, types.ErrMalformedSubmission)
	})
}
