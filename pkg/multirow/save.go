package multirow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

// Save persists parent and reconciles each child group inside one
// transaction begun on store, and returns the errors it collected. An empty
// report means the transaction committed; any message means it rolled back.
//
// The parent's field set, when submitted, is assigned before saving. If the
// parent cannot be saved nothing else is attempted. For each group the
// submitted rows, excluding row 0, are paired in order with the parent's
// existing children in key order: the first row updates the first existing
// child, and so on. Rows beyond the existing children create new records and
// existing children beyond the rows are deleted. A row that fails
// validation is reported under "Child[index].field" and its siblings are
// still saved. Store failures and panics abort the transaction and are
// reported under the type being processed.
func (h *Handler) Save(ctx context.Context, store types.Beginner, parent types.Record, sub types.Submission, children ...types.ChildGroup) (report Report) {
	report = Report{}
	ptype := parent.Type().Name()

	tx, err := store.Begin(ctx)
	if err != nil {
		h.sink.Log(ctx, "multirow: save could not begin",
			slog.String("type", ptype),
			slog.String("error", err.Error()))
		report.Add(ptype, err.Error())
		return report
	}

	current := ptype
	defer func() {
		if p := recover(); p != nil {
			h.sink.Log(ctx, "multirow: save panicked, rolled back",
				slog.String("type", current),
				slog.Any("panic", p))
			report.Add(current, fmt.Sprintf("%v: %v", types.ErrTxAborted, p))
			h.rollback(ctx, tx, current)
		}
	}()

	if entry, ok := sub.Entry(ptype); ok {
		if entry.IsSequence() {
			h.sink.Log(ctx, "multirow: parent submitted as rows, fields ignored",
				slog.String("type", ptype))
		} else {
			parent.Assign(entry.Fields())
		}
	}

	if err := tx.Save(ctx, parent); err != nil {
		if errors.Is(err, types.ErrValidation) && len(parent.Errors()) > 0 {
			report.addFields(ptype, parent.Errors())
		} else {
			h.sink.Log(ctx, "multirow: parent save failed",
				slog.String("type", ptype),
				slog.String("error", err.Error()))
			report.Add(ptype, err.Error())
		}
		h.rollback(ctx, tx, ptype)
		return report
	}

	if err := h.saveChildren(ctx, tx, parent, sub, children, report, &current); err != nil {
		h.sink.Log(ctx, "multirow: save aborted, rolled back",
			slog.String("type", current),
			slog.String("error", err.Error()))
		report.Add(current, err.Error())
		h.rollback(ctx, tx, current)
		return report
	}

	if !report.Empty() {
		h.rollback(ctx, tx, ptype)
		return report
	}
	if err := tx.Commit(); err != nil {
		h.sink.Log(ctx, "multirow: commit failed",
			slog.String("type", ptype),
			slog.String("error", err.Error()))
		report.Add(ptype, err.Error())
	}
	return report
}

// saveChildren reconciles every group. Validation failures go into report;
// any other failure is returned. current tracks the group being processed.
func (h *Handler) saveChildren(ctx context.Context, tx types.Tx, parent types.Record, sub types.Submission, groups []types.ChildGroup, report Report, current *string) error {
	ptype := parent.Type()

	for _, g := range groups {
		rel, ok := ResolveRelation(ptype, g.TypeName)
		if !ok {
			h.sink.Log(ctx, "multirow: no hasMany relation, group skipped",
				slog.String("parent", ptype.Name()),
				slog.String("child", g.TypeName))
			continue
		}
		*current = g.TypeName

		childType, ok := h.reg.Lookup(rel.Target)
		if !ok {
			return fmt.Errorf("relation %s: %w: %q", rel.Name, types.ErrUnknownType, rel.Target)
		}

		queue, err := tx.Children(ctx, parent, rel)
		if err != nil {
			return fmt.Errorf("loading %s: %w", g.TypeName, err)
		}

		for _, row := range h.childRows(ctx, sub, g.TypeName) {
			var child types.Record
			if len(queue) > 0 {
				child, queue = queue[0], queue[1:]
			} else {
				child = childType.New()
			}

			child.Assign(row.Fields)
			child.Set(rel.ForeignKey, parent.PrimaryKey())

			if err := tx.Save(ctx, child); err != nil {
				if !errors.Is(err, types.ErrValidation) {
					return fmt.Errorf("saving %s row %d: %w", g.TypeName, row.Index, err)
				}
				if errs := child.Errors(); len(errs) > 0 {
					report.addRow(g.TypeName, row.Index, errs)
				} else {
					report.Add(g.TypeName, err.Error())
				}
			}
		}

		for _, surplus := range queue {
			if err := tx.Delete(ctx, surplus); err != nil {
				return fmt.Errorf("deleting %s %s: %w", g.TypeName, surplus.PrimaryKey(), err)
			}
		}
	}
	return nil
}

// childRows returns the rows to reconcile for a group. A group absent from
// the submission has no rows, so all its existing children are removed. A
// single field set counts as row 1.
func (h *Handler) childRows(ctx context.Context, sub types.Submission, typeName string) []types.Row {
	entry, ok := sub.Entry(typeName)
	if !ok {
		h.sink.Log(ctx, "multirow: child group not submitted, existing rows will be removed",
			slog.String("child", typeName))
		return nil
	}
	if !entry.IsSequence() {
		return []types.Row{{Index: 1, Fields: entry.Fields()}}
	}
	return entry.DataRows()
}

func (h *Handler) rollback(ctx context.Context, tx types.Tx, typeName string) {
	if err := tx.Rollback(); err != nil {
		h.sink.Log(ctx, "multirow: rollback failed",
			slog.String("type", typeName),
			slog.String("error", err.Error()))
	}
}
