package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

// parseOnly groups --only values of the form "Type.field" by type name.
func parseOnly(only []string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, o := range only {
		typeName, field, ok := strings.Cut(o, ".")
		if !ok || typeName == "" || field == "" {
			return nil, userError(fmt.Errorf("--only %q: want Type.field", o))
		}
		out[typeName] = append(out[typeName], field)
	}
	return out, nil
}

// descriptors builds one descriptor per type name, limited to the fields
// named for that type in only.
func descriptors(typeNames []string, only map[string][]string) []types.Descriptor {
	descs := make([]types.Descriptor, 0, len(typeNames))
	for _, name := range typeNames {
		if fields := only[name]; len(fields) > 0 {
			descs = append(descs, types.ByTypeNameWithFields(name, fields...))
			continue
		}
		descs = append(descs, types.ByTypeName(name))
	}
	return descs
}

func newValidateCmd(a *app) *cobra.Command {
	var (
		typeNames []string
		only      []string
		input     string
	)

	cmd := &cobra.Command{
		Use:   "validate <submission>",
		Short: "Validate a submission without saving it",
		Long: "Validate checks the submitted records of every --type (default: every type\n" +
			"in the submission) and prints the errors. Use - to read the submission from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(a.flags.format); err != nil {
				return err
			}
			onlyByType, err := parseOnly(only)
			if err != nil {
				return err
			}
			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			sub, err := readSubmission(cmd, args[0], input)
			if err != nil {
				return err
			}

			names := typeNames
			if len(names) == 0 {
				names = submittedTypes(sub)
			}

			report := a.handler(s).Validate(cmd.Context(), sub, descriptors(names, onlyByType)...)
			if report.Empty() {
				if a.flags.format == formatText || a.flags.format == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "submission is valid")
					return nil
				}
			}
			if err := writeReport(cmd.OutOrStdout(), report, a.flags.format); err != nil {
				return sysError(err)
			}
			if !report.Empty() {
				return userError(errSubmissionInvalid)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&typeNames, "type", "t", nil, "record type to validate (repeatable)")
	cmd.Flags().StringSliceVar(&only, "only", nil, "validate only these fields, as Type.field (repeatable)")
	cmd.Flags().StringVar(&input, "input", inputAuto, "submission encoding: json or form (default: detect)")
	return cmd
}
