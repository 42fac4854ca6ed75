package multirow

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

func postForm(values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestAjaxValidate(t *testing.T) {
	fx := newFixture(t)
	r := postForm(url.Values{
		AjaxField:                {"invoice-form"},
		"Invoice[number]":        {"INV-1"},
		"Line[0][qty]":           {""},
		"Line[1][description]":   {""},
		"Line[1][qty]":           {"0"},
	})
	w := httptest.NewRecorder()

	handled, err := fx.h.AjaxValidate(w, r, "invoice-form", types.ByTypeName("Invoice"), types.ByTypeName("Line"))

	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"Line_1_description": ["Description cannot be blank."],
		"Line_1_qty": ["Qty is too small (minimum is 1)."]
	}`, w.Body.String())
}

func TestAjaxValidateOtherForm(t *testing.T) {
	fx := newFixture(t)
	r := postForm(url.Values{AjaxField: {"other-form"}, "Invoice[number]": {"x"}})
	w := httptest.NewRecorder()

	handled, err := fx.h.AjaxValidate(w, r, "invoice-form", types.ByTypeName("Invoice"))

	require.NoError(t, err)
	assert.False(t, handled)
	assert.Zero(t, w.Body.Len())
}

func TestAjaxValidateEmptyFormID(t *testing.T) {
	fx := newFixture(t)
	r := postForm(url.Values{"Invoice[number]": {"x"}})
	w := httptest.NewRecorder()

	handled, err := fx.h.AjaxValidate(w, r, "", types.ByTypeName("Invoice"))

	require.NoError(t, err)
	assert.False(t, handled)
	assert.Zero(t, w.Body.Len())
}

func TestAjaxValidateMalformed(t *testing.T) {
	fx := newFixture(t)
	r := postForm(url.Values{AjaxField: {"invoice-form"}, "Line[x][qty]": {"1"}})
	w := httptest.NewRecorder()

	handled, err := fx.h.AjaxValidate(w, r, "invoice-form", types.ByTypeName("Line"))

	assert.True(t, handled)
	assert.ErrorIs(t, err, types.ErrMalformedSubmission)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
