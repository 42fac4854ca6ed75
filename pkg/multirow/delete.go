package multirow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

// Delete removes every child of parent in the given groups and then parent
// itself, inside one transaction begun on store. Groups without a hasMany
// relation are reported to the sink and skipped. Any failure, including a
// panic, rolls the whole transaction back and is returned.
func (h *Handler) Delete(ctx context.Context, store types.Beginner, parent types.Record, children ...types.ChildGroup) (err error) {
	ptype := parent.Type()

	tx, err := store.Begin(ctx)
	if err != nil {
		h.sink.Log(ctx, "multirow: delete could not begin",
			slog.String("type", ptype.Name()),
			slog.String("error", err.Error()))
		return fmt.Errorf("deleting %s: %w", ptype.Name(), err)
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("deleting %s: %w: %v", ptype.Name(), types.ErrTxAborted, p)
		}
		if err != nil && !committed {
			h.sink.Log(ctx, "multirow: delete rolled back",
				slog.String("type", ptype.Name()),
				slog.String("error", err.Error()))
			h.rollback(ctx, tx, ptype.Name())
		}
	}()

	for _, g := range children {
		rel, ok := ResolveRelation(ptype, g.TypeName)
		if !ok {
			h.sink.Log(ctx, "multirow: no hasMany relation, group skipped",
				slog.String("parent", ptype.Name()),
				slog.String("child", g.TypeName))
			continue
		}

		existing, err := tx.Children(ctx, parent, rel)
		if err != nil {
			return fmt.Errorf("loading %s: %w", g.TypeName, err)
		}
		for _, child := range existing {
			if err := tx.Delete(ctx, child); err != nil {
				return fmt.Errorf("deleting %s %s: %w", g.TypeName, child.PrimaryKey(), err)
			}
		}
	}

	if err := tx.Delete(ctx, parent); err != nil {
		return fmt.Errorf("deleting %s %s: %w", ptype.Name(), parent.PrimaryKey(), err)
	}

	committed = true
	if err := tx.Commit(); err != nil {
		h.sink.Log(ctx, "multirow: delete commit failed",
			slog.String("type", ptype.Name()),
			slog.String("error", err.Error()))
		return fmt.Errorf("committing delete of %s: %w", ptype.Name(), err)
	}
	return nil
}
