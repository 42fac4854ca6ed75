package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/multirow/pkg/schema"
	"github.com/mesh-intelligence/multirow/pkg/types"
)

func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }

// starterSchema is written to schema.yaml by init when no schema exists.
func starterSchema() schema.Document {
	return schema.Document{Types: []schema.TypeDef{
		{
			Name: "Invoice",
			Fields: []schema.FieldDef{
				{Name: "number", Required: true, Rules: schema.Rules{MaxLength: intPtr(20), Pattern: `^INV-[0-9]+$`}},
				{Name: "customer", Label: "Customer name", Required: true},
				{Name: "status", Default: "draft", Rules: schema.Rules{Enum: []string{"draft", "sent", "paid"}}},
			},
			Relations: []schema.RelationDef{
				{Name: "lines", Kind: types.HasMany, Target: "InvoiceLine", ForeignKey: "invoiceId"},
			},
		},
		{
			Name: "InvoiceLine",
			Fields: []schema.FieldDef{
				{Name: "invoiceId"},
				{Name: "description", Required: true, Rules: schema.Rules{MinLength: intPtr(2)}},
				{Name: "qty", Kind: types.KindInteger, Required: true, Rules: schema.Rules{Min: floatPtr(1)}},
				{Name: "unitPrice", Kind: types.KindNumber, Default: 0},
			},
			Relations: []schema.RelationDef{
				{Name: "invoice", Kind: types.BelongsTo, Target: "Invoice", ForeignKey: "invoiceId"},
			},
		},
	}}
}

// writeStarterSchema writes the starter schema to path unless a file is
// already there.
func writeStarterSchema(path string) error {
	doc := starterSchema()
	if _, err := schema.New(doc.Types...); err != nil {
		return fmt.Errorf("starter schema: %w", err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode starter schema: %w", err)
	}
	return writeIfMissing(path, data)
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration, a starter schema and the store tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaPath := a.schemaPath()
			if err := writeStarterSchema(schemaPath); err != nil {
				return sysError(err)
			}

			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			st, err := a.openStore(cmd.Context(), s)
			if err != nil {
				return err
			}
			if err := st.Close(); err != nil {
				return sysError(fmt.Errorf("close store: %w", err))
			}

			cfg, err := a.storeConfig()
			if err != nil {
				return sysError(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "multirow initialized successfully")
			fmt.Fprintln(out, "  config: ", a.configDir)
			fmt.Fprintln(out, "  schema: ", schemaPath)
			fmt.Fprintln(out, "  backend:", cfg.Backend)
			if cfg.Backend == types.BackendSQLite || cfg.Backend == types.BackendBolt {
				fmt.Fprintln(out, "  data:   ", cfg.DataDir)
			}
			return nil
		},
	}
}
