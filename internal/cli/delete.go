package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

var errDeleteDeclined = errors.New("delete cancelled")

func newDeleteCmd(a *app) *cobra.Command {
	var (
		children []string
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a parent record and its children in one transaction",
		Long: "Delete removes every child of each --child group (default: every hasMany\n" +
			"child type of <type>) and then the parent. Nothing is removed if any\n" +
			"delete fails.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			rt, err := lookupType(s, args[0])
			if err != nil {
				return err
			}

			st, err := a.openStore(ctx, s)
			if err != nil {
				return err
			}
			defer st.Close()

			parent, err := findRecord(ctx, st, rt.Name(), args[1])
			if err != nil {
				return err
			}

			groups := children
			if len(groups) == 0 {
				groups = hasManyTargets(rt)
			}

			if !yes {
				ok, err := a.confirm(fmt.Sprintf("Delete %s %s and its %v rows?", rt.Name(), parent.PrimaryKey(), groups))
				if err != nil {
					return userError(fmt.Errorf("confirm: %w", err))
				}
				if !ok {
					return userError(errDeleteDeclined)
				}
			}

			if err := a.handler(s).Delete(ctx, st, parent, types.Children(groups...)...); err != nil {
				return sysError(fmt.Errorf("delete %s %s: %w", rt.Name(), parent.PrimaryKey(), err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", rt.Name(), parent.PrimaryKey())
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&children, "child", "c", nil, "child record type to delete with the parent (repeatable)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
