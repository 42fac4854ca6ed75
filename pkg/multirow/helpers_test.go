package multirow

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/multirow/internal/sqlstore"
	"github.com/mesh-intelligence/multirow/pkg/schema"
	"github.com/mesh-intelligence/multirow/pkg/types"
)

const invoiceSchema = `
types:
  - name: Invoice
    fields:
      - {name: number, required: true, rules: {pattern: '^INV-[0-9]+$'}}
      - {name: customerId}
    relations:
      - {name: lines, kind: hasMany, target: Line, foreignKey: invoiceId}
      - {name: notes, kind: hasMany, target: Note, foreignKey: invoiceId}
      - {name: owner, kind: belongsTo, target: Customer, foreignKey: customerId}
  - name: Line
    fields:
      - {name: invoiceId}
      - {name: description, required: true}
      - {name: qty, kind: integer, required: true, rules: {min: 1}}
  - name: Note
    fields:
      - {name: invoiceId}
      - {name: body, required: true}
  - name: Customer
    fields:
      - {name: name, required: true}
`

// recordingSink keeps every diagnostic for assertions.
type recordingSink struct {
	mu      sync.Mutex
	entries []sinkEntry
}

type sinkEntry struct {
	msg   string
	attrs map[string]string
}

func (s *recordingSink) Log(_ context.Context, msg string, attrs ...slog.Attr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := sinkEntry{msg: msg, attrs: make(map[string]string, len(attrs))}
	for _, a := range attrs {
		e.attrs[a.Key] = a.Value.String()
	}
	s.entries = append(s.entries, e)
}

func (s *recordingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.msg
	}
	return out
}

// faultStore wraps a real store and records or fails operations.
type faultStore struct {
	types.Beginner

	beginErr    error
	saveErr     func(rec types.Record) error
	deleteErr   func(rec types.Record) error
	childHook   func(rel types.Relation)
	commitErr   error
	rollbackErr error

	saves      []string
	deletes    []string
	committed  bool
	rolledBack bool
}

func (f *faultStore) Begin(ctx context.Context) (types.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	tx, err := f.Beginner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultTx{Tx: tx, f: f}, nil
}

type faultTx struct {
	types.Tx
	f *faultStore
}

func (t *faultTx) Children(ctx context.Context, parent types.Record, rel types.Relation) ([]types.Record, error) {
	if t.f.childHook != nil {
		t.f.childHook(rel)
	}
	return t.Tx.Children(ctx, parent, rel)
}

func (t *faultTx) Save(ctx context.Context, rec types.Record) error {
	t.f.saves = append(t.f.saves, rec.Type().Name())
	if t.f.saveErr != nil {
		if err := t.f.saveErr(rec); err != nil {
			return err
		}
	}
	return t.Tx.Save(ctx, rec)
}

func (t *faultTx) Delete(ctx context.Context, rec types.Record) error {
	t.f.deletes = append(t.f.deletes, rec.Type().Name())
	if t.f.deleteErr != nil {
		if err := t.f.deleteErr(rec); err != nil {
			return err
		}
	}
	return t.Tx.Delete(ctx, rec)
}

func (t *faultTx) Commit() error {
	if t.f.commitErr != nil {
		_ = t.Tx.Rollback()
		return t.f.commitErr
	}
	t.f.committed = true
	return t.Tx.Commit()
}

func (t *faultTx) Rollback() error {
	t.f.rolledBack = true
	if err := t.Tx.Rollback(); err != nil {
		return err
	}
	return t.f.rollbackErr
}

type fixture struct {
	reg   *schema.Schema
	store types.Store
	fault *faultStore
	sink  *recordingSink
	h     *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := schema.Parse([]byte(invoiceSchema))
	require.NoError(t, err)

	st, err := sqlstore.Open(context.Background(), types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}, reg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sink := &recordingSink{}
	return &fixture{
		reg:   reg,
		store: st,
		fault: &faultStore{Beginner: st},
		sink:  sink,
		h:     New(reg, WithSink(sink)),
	}
}

func (fx *fixture) newRecord(t *testing.T, typeName string) types.Record {
	t.Helper()
	rt, ok := fx.reg.Lookup(typeName)
	require.True(t, ok)
	return rt.New()
}

// find loads a record in its own transaction.
func (fx *fixture) find(t *testing.T, typeName, id string) (types.Record, error) {
	t.Helper()
	ctx := context.Background()
	tx, err := fx.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	return tx.Find(ctx, typeName, id)
}

// children loads the parent's children of childType in key order.
func (fx *fixture) children(t *testing.T, parent types.Record, childType string) []types.Record {
	t.Helper()
	if parent.PrimaryKey() == "" {
		return nil
	}
	rel, ok := ResolveRelation(parent.Type(), childType)
	require.True(t, ok)
	ctx := context.Background()
	tx, err := fx.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	out, err := tx.Children(ctx, parent, rel)
	require.NoError(t, err)
	return out
}

func keys(recs []types.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.PrimaryKey()
	}
	return out
}

func lines(qtys ...string) types.Entry {
	sets := []types.FieldSet{{"description": "template", "qty": "0"}}
	for _, q := range qtys {
		sets = append(sets, types.FieldSet{"description": "item " + q, "qty": q})
	}
	return types.Sequence(sets...)
}

// seed saves a parent with the given line quantities and returns it.
func (fx *fixture) seed(t *testing.T, number string, qtys ...string) types.Record {
	t.Helper()
	parent := fx.newRecord(t, "Invoice")
	sub := types.Submission{
		"Invoice": types.Single(types.FieldSet{"number": number}),
		"Line":    lines(qtys...),
	}
	report := fx.h.Save(context.Background(), fx.store, parent, sub, types.Child("Line"))
	require.True(t, report.Empty(), "seed report: %v", report)
	return parent
}
