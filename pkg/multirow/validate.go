package multirow

import (
	"context"
	"log/slog"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

// Validate checks the submitted field sets of every described record and
// returns the field errors. A type absent from the submission is skipped.
// A single field set is assigned to the described instance, or to a new
// record of the described type. Each row of a sequence, except row 0, is
// assigned to a new record. Descriptors that do not resolve are reported to
// the sink and skipped.
func (h *Handler) Validate(ctx context.Context, sub types.Submission, descs ...types.Descriptor) Report {
	report := Report{}

	for _, d := range descs {
		rt, rec, err := d.Resolve(h.reg)
		if err != nil {
			h.sink.Log(ctx, "multirow: skipping unresolved descriptor",
				slog.String("type", d.TypeName()),
				slog.String("error", err.Error()))
			continue
		}

		entry, ok := sub.Entry(rt.Name())
		if !ok {
			continue
		}

		if !entry.IsSequence() {
			rec.Assign(entry.Fields())
			if !rec.Validate(d.FieldSubset()...) {
				report.addFields(rt.Name(), rec.Errors())
			}
			continue
		}

		for _, row := range entry.DataRows() {
			r := rt.New()
			r.Assign(row.Fields)
			if !r.Validate(d.FieldSubset()...) {
				report.addRow(rt.Name(), row.Index, r.Errors())
			}
		}
	}
	return report
}
