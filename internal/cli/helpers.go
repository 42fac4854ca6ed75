package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/multirow/pkg/form"
	"github.com/mesh-intelligence/multirow/pkg/multirow"
	"github.com/mesh-intelligence/multirow/pkg/schema"
	"github.com/mesh-intelligence/multirow/pkg/store"
	"github.com/mesh-intelligence/multirow/pkg/types"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// Submission input encodings.
const (
	inputAuto = ""
	inputJSON = "json"
	inputForm = "form"
)

var (
	errSubmissionInvalid = errors.New("submission has errors")
	errUnknownFormat     = errors.New("unknown output format")
	errUnknownInput      = errors.New("unknown input encoding")
)

// loadSchema loads the configured schema file.
func (a *app) loadSchema() (*schema.Schema, error) {
	s, err := schema.Load(a.schemaPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, userError(fmt.Errorf("%w (run 'multirow init' to create a starter schema)", err))
		}
		return nil, userError(err)
	}
	return s, nil
}

// lookupType resolves a record type name against the schema.
func lookupType(s *schema.Schema, name string) (types.RecordType, error) {
	rt, ok := s.Lookup(name)
	if !ok {
		return nil, userError(fmt.Errorf("%w: %q", types.ErrUnknownType, name))
	}
	return rt, nil
}

// openStore opens the configured backend for the types in reg. The caller
// must Close the store.
func (a *app) openStore(ctx context.Context, reg types.Registry) (types.Store, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, sysError(err)
	}
	s, err := store.Open(ctx, cfg, reg)
	if err != nil {
		if errors.Is(err, types.ErrBackendUnknown) || errors.Is(err, types.ErrDSNRequired) || errors.Is(err, types.ErrBackendEmpty) {
			return nil, userError(err)
		}
		return nil, sysError(fmt.Errorf("open %s store: %w", cfg.Backend, err))
	}
	return s, nil
}

// handler returns a multirow handler logging through the app logger.
func (a *app) handler(reg types.Registry) *multirow.Handler {
	return multirow.New(reg, multirow.WithSink(multirow.NewSlogSink(a.logger)))
}

// findRecord loads one record in a short read transaction.
func findRecord(ctx context.Context, st types.Beginner, typeName, id string) (types.Record, error) {
	tx, err := st.Begin(ctx)
	if err != nil {
		return nil, sysError(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	rec, err := tx.Find(ctx, typeName, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, userError(fmt.Errorf("%s %q: %w", typeName, id, err))
		}
		return nil, sysError(fmt.Errorf("find %s %q: %w", typeName, id, err))
	}
	return rec, nil
}

// hasManyTargets lists the child types rt owns through hasMany relations,
// in declaration order.
func hasManyTargets(rt types.RecordType) []string {
	var out []string
	for _, rel := range rt.Relations() {
		if rel.Kind == types.HasMany {
			out = append(out, rel.Target)
		}
	}
	return out
}

// readSubmission decodes the submission at path, "-" meaning stdin. With
// inputAuto a .json file or a body starting with '{' is JSON and anything
// else is a url-encoded form body.
func readSubmission(cmd *cobra.Command, path, input string) (types.Submission, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, userError(fmt.Errorf("read submission: %w", err))
	}

	if input == inputAuto {
		input = inputForm
		trimmed := bytes.TrimSpace(data)
		if strings.EqualFold(filepath.Ext(path), ".json") || bytes.HasPrefix(trimmed, []byte("{")) {
			input = inputJSON
		}
	}

	var sub types.Submission
	switch input {
	case inputJSON:
		sub, err = form.JSON(bytes.NewReader(data))
	case inputForm:
		var values url.Values
		values, err = url.ParseQuery(strings.TrimSpace(string(data)))
		if err == nil {
			sub, err = form.Values(values)
		}
	default:
		return nil, userError(fmt.Errorf("%w: %q", errUnknownInput, input))
	}
	if err != nil {
		return nil, userError(fmt.Errorf("decode submission: %w", err))
	}
	return sub, nil
}

// writeReport prints report in the requested format. Text output lists one
// "key: message" line per message in key order.
func writeReport(w io.Writer, report multirow.Report, format string) error {
	switch format {
	case formatJSON:
		data, err := report.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		data, err := report.YAML()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case formatText, "":
		for _, key := range report.Keys() {
			for _, msg := range report[key] {
				if _, err := fmt.Fprintf(w, "%s: %s\n", key, msg); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return userError(fmt.Errorf("%w: %q", errUnknownFormat, format))
	}
}

// checkFormat rejects unknown --format values before any work is done.
func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML, "":
		return nil
	}
	return userError(fmt.Errorf("%w: %q", errUnknownFormat, format))
}

// submittedTypes returns the type names present in sub, sorted.
func submittedTypes(sub types.Submission) []string {
	names := make([]string, 0, len(sub))
	for name := range sub {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// surveyConfirm asks a yes/no question on the terminal, defaulting to no.
func surveyConfirm(message string) (bool, error) {
	ok := false
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
