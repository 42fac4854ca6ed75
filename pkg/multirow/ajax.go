package multirow

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mesh-intelligence/multirow/pkg/form"
	"github.com/mesh-intelligence/multirow/pkg/types"
)

// AjaxField is the request field naming the form an ajax validation call
// comes from.
const AjaxField = "ajax"

// AjaxValidate answers a client-side validation request. When the request's
// ajax field equals formID it validates the submission, writes the report
// keyed by input id as JSON and returns true. Otherwise it writes nothing
// and returns false so the caller handles the request normally. An empty
// formID matches no request.
func (h *Handler) AjaxValidate(w http.ResponseWriter, r *http.Request, formID string, descs ...types.Descriptor) (bool, error) {
	if formID == "" || r.FormValue(AjaxField) != formID {
		return false, nil
	}

	sub, err := form.Request(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return true, fmt.Errorf("ajax validation: %w", err)
	}

	report := h.Validate(r.Context(), sub, descs...)
	body, err := json.Marshal(report.HTMLIDs())
	if err != nil {
		return true, fmt.Errorf("encoding ajax report: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		return true, fmt.Errorf("writing ajax report: %w", err)
	}
	return true, nil
}
