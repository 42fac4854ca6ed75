package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

// saveResult is the structured output of a successful save.
type saveResult struct {
	Type string `json:"type" yaml:"type"`
	ID   string `json:"id" yaml:"id"`
}

func writeSaved(cmd *cobra.Command, format string, res saveResult) error {
	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case formatYAML:
		data, err := yaml.Marshal(res)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		_, err := fmt.Fprintf(out, "Saved %s %s\n", res.Type, res.ID)
		return err
	}
}

// submittedChildren returns the hasMany targets of rt that sub carries.
func submittedChildren(rt types.RecordType, sub types.Submission) []string {
	var out []string
	for _, name := range hasManyTargets(rt) {
		if _, ok := sub.Entry(name); ok {
			out = append(out, name)
		}
	}
	return out
}

func newSaveCmd(a *app) *cobra.Command {
	var (
		id       string
		children []string
		input    string
	)

	cmd := &cobra.Command{
		Use:   "save <type> <submission>",
		Short: "Save a parent record and its child rows in one transaction",
		Long: "Save writes the parent record and reconciles each --child group by row\n" +
			"position: existing children are updated, extra rows inserted, surplus\n" +
			"children deleted. Without --child every child group present in the\n" +
			"submission is saved. With --id the existing parent is updated.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := checkFormat(a.flags.format); err != nil {
				return err
			}
			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			rt, err := lookupType(s, args[0])
			if err != nil {
				return err
			}
			sub, err := readSubmission(cmd, args[1], input)
			if err != nil {
				return err
			}

			st, err := a.openStore(ctx, s)
			if err != nil {
				return err
			}
			defer st.Close()

			parent := rt.New()
			if id != "" {
				if parent, err = findRecord(ctx, st, rt.Name(), id); err != nil {
					return err
				}
			}

			groups := children
			if len(groups) == 0 {
				groups = submittedChildren(rt, sub)
			}

			report := a.handler(s).Save(ctx, st, parent, sub, types.Children(groups...)...)
			if !report.Empty() {
				if err := writeReport(cmd.OutOrStdout(), report, a.flags.format); err != nil {
					return sysError(err)
				}
				return userError(errSubmissionInvalid)
			}
			if err := writeSaved(cmd, a.flags.format, saveResult{Type: rt.Name(), ID: parent.PrimaryKey()}); err != nil {
				return sysError(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "primary key of an existing parent to update")
	cmd.Flags().StringSliceVarP(&children, "child", "c", nil, "child record type to reconcile (repeatable)")
	cmd.Flags().StringVar(&input, "input", inputAuto, "submission encoding: json or form (default: detect)")
	return cmd
}
