package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

func newLine(t *testing.T) *Record {
	t.Helper()
	lt, ok := loadInvoice(t).Type("InvoiceLine")
	require.True(t, ok)
	return lt.New().(*Record)
}

func TestNewAppliesDefaults(t *testing.T) {
	r := newLine(t)
	assert.Equal(t, "", r.PrimaryKey())
	assert.Equal(t, 0, r.Get("unitPrice"))
	assert.Equal(t, true, r.Get("taxable"))
	assert.Nil(t, r.Get("qty"))
}

func TestAssignIgnoresUnknownAndPrimaryKey(t *testing.T) {
	r := newLine(t)
	r.Assign(types.FieldSet{"description": "Bolts", "id": "forged", "colour": "red"})

	assert.Equal(t, "Bolts", r.Get("description"))
	assert.Equal(t, "", r.PrimaryKey())
	_, has := r.Values()["colour"]
	assert.False(t, has)
}

func TestValidateCoercesValues(t *testing.T) {
	r := newLine(t)
	r.Assign(types.FieldSet{"description": "Bolts", "qty": "12", "unitPrice": "0.25", "taxable": "0"})

	require.True(t, r.Validate(), "errors: %v", r.Errors())
	assert.Equal(t, int64(12), r.Get("qty"))
	assert.Equal(t, 0.25, r.Get("unitPrice"))
	assert.Equal(t, false, r.Get("taxable"))
	assert.Empty(t, r.Errors())
}

func TestValidateMessages(t *testing.T) {
	tests := []struct {
		name  string
		input types.FieldSet
		field string
		want  []string
	}{
		{"required blank", types.FieldSet{"description": " ", "qty": "1"}, "description", []string{"Description cannot be blank."}},
		{"too short", types.FieldSet{"description": "x", "qty": "1"}, "description", []string{"Description is too short (minimum is 2 characters)."}},
		{"not an integer", types.FieldSet{"description": "ok", "qty": "lots"}, "qty", []string{"Qty must be an integer."}},
		{"too small", types.FieldSet{"description": "ok", "qty": "0"}, "qty", []string{"Qty is too small (minimum is 1)."}},
		{"too big", types.FieldSet{"description": "ok", "qty": 5000}, "qty", []string{"Qty is too big (maximum is 1000)."}},
		{"not a number", types.FieldSet{"description": "ok", "qty": "1", "unitPrice": "cheap"}, "unitPrice", []string{"Unit Price must be a number."}},
		{"not a boolean", types.FieldSet{"description": "ok", "qty": "1", "taxable": "sometimes"}, "taxable", []string{"Taxable must be either true or false."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newLine(t)
			r.Assign(tt.input)
			assert.False(t, r.Validate())
			assert.Equal(t, map[string][]string{tt.field: tt.want}, r.Errors())
		})
	}
}

func TestValidatePatternAndEnum(t *testing.T) {
	it, _ := loadInvoice(t).Type("Invoice")
	r := it.New().(*Record)
	r.Assign(types.FieldSet{"number": "a1", "customer": "ACME", "status": "void"})

	assert.False(t, r.Validate())
	assert.Equal(t, map[string][]string{
		"number": {"Number is invalid."},
		"status": {"Status is not in the list."},
	}, r.Errors())
}

func TestValidateFieldSubset(t *testing.T) {
	r := newLine(t)
	r.Assign(types.FieldSet{"qty": "3"})

	assert.True(t, r.Validate("qty", "unknownField"))
	assert.False(t, r.Validate())
	assert.Contains(t, r.Errors(), "description")
}

func TestValidateClearsPreviousErrors(t *testing.T) {
	r := newLine(t)
	assert.False(t, r.Validate())
	r.Assign(types.FieldSet{"description": "Nuts", "qty": 2})
	assert.True(t, r.Validate())
	assert.Empty(t, r.Errors())
}

func TestSetAndValues(t *testing.T) {
	r := newLine(t)
	r.Set("id", "0190-abc")
	r.Set("invoiceId", "parent-1")
	r.Set("nope", "ignored")

	assert.Equal(t, "0190-abc", r.PrimaryKey())
	assert.Equal(t, "0190-abc", r.Get("id"))
	vals := r.Values()
	assert.Len(t, vals, 5)
	assert.Equal(t, "parent-1", vals["invoiceId"])
	assert.Nil(t, vals["qty"])
}

func TestAddError(t *testing.T) {
	r := newLine(t)
	r.AddError("qty", "Qty is reserved.")
	assert.Equal(t, []string{"Qty is reserved."}, r.Errors()["qty"])
}
