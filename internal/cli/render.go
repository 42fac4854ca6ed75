package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/multirow/pkg/multirow"
	"github.com/mesh-intelligence/multirow/pkg/rows"
	"github.com/mesh-intelligence/multirow/pkg/types"
)

var errRenderSource = errors.New("give either --submission or --parent with --id")

// renderFlags holds the flags of the render command.
type renderFlags struct {
	template   string
	parent     string
	id         string
	submission string
	input      string
	defaults   map[string]string
	rowClass   string
	addLink    string
	delLink    string
	formSel    string
}

// storedChildren loads the children of parent through the hasMany relation
// to childType.
func storedChildren(ctx context.Context, st types.Beginner, parent types.Record, childType string) ([]types.Record, error) {
	rel, ok := multirow.ResolveRelation(parent.Type(), childType)
	if !ok {
		return nil, userError(fmt.Errorf("%s has no hasMany relation to %s", parent.Type().Name(), childType))
	}
	tx, err := st.Begin(ctx)
	if err != nil {
		return nil, sysError(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	recs, err := tx.Children(ctx, parent, rel)
	if err != nil {
		return nil, sysError(fmt.Errorf("load %s rows: %w", childType, err))
	}
	return recs, nil
}

// postedChildren builds one record per submitted data row of rt so a
// rejected submission can be rendered again with its values. The second
// result holds the index each record was posted under.
func postedChildren(rt types.RecordType, sub types.Submission) ([]types.Record, []int) {
	entry, ok := sub.Entry(rt.Name())
	if !ok {
		return nil, nil
	}
	if !entry.IsSequence() {
		rec := rt.New()
		rec.Assign(entry.Fields())
		return []types.Record{rec}, []int{rows.SingleFieldSet}
	}
	var (
		recs    []types.Record
		indexes []int
	)
	for _, row := range entry.DataRows() {
		rec := rt.New()
		rec.Assign(row.Fields)
		recs = append(recs, rec)
		indexes = append(indexes, row.Index)
	}
	return recs, indexes
}

func newRenderCmd(a *app) *cobra.Command {
	var f renderFlags

	cmd := &cobra.Command{
		Use:   "render <child-type>",
		Short: "Render the row markup for a child group",
		Long: "Render writes the hidden template row, one row per child record and the\n" +
			"client configuration element. Rows come from the stored children of\n" +
			"--parent/--id, or from a rejected --submission together with its errors.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fromStore := f.parent != "" && f.id != ""
			if fromStore == (f.submission != "") {
				return userError(errRenderSource)
			}

			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			rt, err := lookupType(s, args[0])
			if err != nil {
				return err
			}
			renderer, err := rows.Load(f.template)
			if err != nil {
				return userError(err)
			}

			w := rows.Widget{
				Type:            rt,
				RowClass:        f.rowClass,
				AddLinkSelector: f.addLink,
				DelLinkSelector: f.delLink,
				FormSelector:    f.formSel,
			}
			if len(f.defaults) > 0 {
				w.Defaults = types.FieldSet{}
				for k, v := range f.defaults {
					w.Defaults[k] = v
				}
			}

			if fromStore {
				prt, err := lookupType(s, f.parent)
				if err != nil {
					return err
				}
				st, err := a.openStore(ctx, s)
				if err != nil {
					return err
				}
				defer st.Close()

				parent, err := findRecord(ctx, st, prt.Name(), f.id)
				if err != nil {
					return err
				}
				if w.Records, err = storedChildren(ctx, st, parent, rt.Name()); err != nil {
					return err
				}
			} else {
				sub, err := readSubmission(cmd, f.submission, f.input)
				if err != nil {
					return err
				}
				w.Records, w.Indexes = postedChildren(rt, sub)
				w.Errors = a.handler(s).Validate(ctx, sub, types.ByTypeName(rt.Name()))
			}

			out, err := renderer.Render(ctx, w)
			if err != nil {
				return sysError(err)
			}
			if _, err := cmd.OutOrStdout().Write(out); err != nil {
				return sysError(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.template, "template", "", "row template file (pongo2)")
	cmd.Flags().StringVar(&f.parent, "parent", "", "parent record type whose stored children are rendered")
	cmd.Flags().StringVar(&f.id, "id", "", "primary key of the parent")
	cmd.Flags().StringVar(&f.submission, "submission", "", "render the rows of this rejected submission")
	cmd.Flags().StringVar(&f.input, "input", inputAuto, "submission encoding: json or form (default: detect)")
	cmd.Flags().StringToStringVar(&f.defaults, "default", nil, "template row default, as field=value (repeatable)")
	cmd.Flags().StringVar(&f.rowClass, "row-class", "", "row class (default: generated)")
	cmd.Flags().StringVar(&f.addLink, "add-link", "", "selector of the add-row link")
	cmd.Flags().StringVar(&f.delLink, "del-link", "", "selector of the delete-row links")
	cmd.Flags().StringVar(&f.formSel, "form", "", "selector of the enclosing form")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}
