// Package storetest is the compatibility suite every types.Store backend
// runs from its own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/multirow/pkg/schema"
	"github.com/mesh-intelligence/multirow/pkg/types"
)

// SchemaYAML is the schema the suite stores records of.
const SchemaYAML = `
types:
  - name: Order
    fields:
      - {name: ref, required: true}
      - {name: paid, kind: boolean, default: false}
    relations:
      - {name: items, kind: hasMany, target: Item, foreignKey: orderId}
  - name: Item
    fields:
      - {name: orderId}
      - {name: sku, required: true}
      - {name: qty, kind: integer, required: true, rules: {min: 1}}
      - {name: price, kind: number}
`

// Schema returns the compiled SchemaYAML.
func Schema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(SchemaYAML))
	require.NoError(t, err)
	return s
}

// Opener opens a fresh, empty store for reg.
type Opener func(t *testing.T, reg types.Registry) types.Store

// Run exercises the store contract against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("SaveAndFind", func(t *testing.T) { testSaveAndFind(t, open) })
	t.Run("UpdateKeepsKey", func(t *testing.T) { testUpdateKeepsKey(t, open) })
	t.Run("ChildrenInKeyOrder", func(t *testing.T) { testChildrenInKeyOrder(t, open) })
	t.Run("InvalidRecordNotWritten", func(t *testing.T) { testInvalidRecordNotWritten(t, open) })
	t.Run("DeleteAndNotFound", func(t *testing.T) { testDeleteAndNotFound(t, open) })
	t.Run("RollbackDiscards", func(t *testing.T) { testRollbackDiscards(t, open) })
	t.Run("FinishedTx", func(t *testing.T) { testFinishedTx(t, open) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, open) })
}

func newRecord(t *testing.T, reg types.Registry, typeName string, fields types.FieldSet) types.Record {
	t.Helper()
	rt, ok := reg.Lookup(typeName)
	require.True(t, ok, "type %s", typeName)
	rec := rt.New()
	rec.Assign(fields)
	return rec
}

func begin(t *testing.T, s types.Store) types.Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func save(t *testing.T, s types.Store, recs ...types.Record) {
	t.Helper()
	ctx := context.Background()
	tx := begin(t, s)
	for _, rec := range recs {
		require.NoError(t, tx.Save(ctx, rec))
	}
	require.NoError(t, tx.Commit())
}

func testSaveAndFind(t *testing.T, open Opener) {
	reg := Schema(t)
	s := open(t, reg)
	ctx := context.Background()

	order := newRecord(t, reg, "Order", types.FieldSet{"ref": "PO-1", "paid": "1"})
	save(t, s, order)
	require.NotEmpty(t, order.PrimaryKey())

	tx := begin(t, s)
	defer tx.Rollback()

	got, err := tx.Find(ctx, "Order", order.PrimaryKey())
	require.NoError(t, err)
	assert.Equal(t, order.PrimaryKey(), got.PrimaryKey())
	assert.Equal(t, "Order", got.Type().Name())
	assert.Equal(t, "PO-1", got.Get("ref"))
	assert.Equal(t, true, got.Get("paid"))

	_, err = tx.Find(ctx, "Order", "no-such-id")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = tx.Find(ctx, "Invoice", order.PrimaryKey())
	assert.ErrorIs(t, err, types.ErrUnknownType)
}

func testUpdateKeepsKey(t *testing.T, open Opener) {
	reg := Schema(t)
	s := open(t, reg)
	ctx := context.Background()

	item := newRecord(t, reg, "Item", types.FieldSet{"sku": "A", "qty": "1", "price": "2.5"})
	save(t, s, item)
	id := item.PrimaryKey()

	item.Assign(types.FieldSet{"qty": "4"})
	save(t, s, item)
	assert.Equal(t, id, item.PrimaryKey())

	// Saving unchanged values is still an update.
	save(t, s, item)

	tx := begin(t, s)
	defer tx.Rollback()
	got, err := tx.Find(ctx, "Item", id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Get("qty"))
	assert.Equal(t, 2.5, got.Get("price"))
}

func testChildrenInKeyOrder(t *testing.T, open Opener) {
	reg := Schema(t)
	s := open(t, reg)
	ctx := context.Background()

	order := newRecord(t, reg, "Order", types.FieldSet{"ref": "PO-2"})
	other := newRecord(t, reg, "Order", types.FieldSet{"ref": "PO-3"})
	save(t, s, order, other)

	var want []string
	for _, sku := range []string{"A", "B", "C"} {
		item := newRecord(t, reg, "Item", types.FieldSet{"sku": sku, "qty": 1})
		item.Set("orderId", order.PrimaryKey())
		save(t, s, item)
		want = append(want, item.PrimaryKey())
	}
	stray := newRecord(t, reg, "Item", types.FieldSet{"sku": "Z", "qty": 1, "orderId": other.PrimaryKey()})
	save(t, s, stray)

	rel := order.Type().Relations()[0]
	tx := begin(t, s)
	defer tx.Rollback()

	children, err := tx.Children(ctx, order, rel)
	require.NoError(t, err)
	var got []string
	for _, c := range children {
		got = append(got, c.PrimaryKey())
		assert.Equal(t, order.PrimaryKey(), c.Get("orderId"))
	}
	assert.Equal(t, want, got)

	fresh := newRecord(t, reg, "Order", types.FieldSet{"ref": "PO-4"})
	none, err := tx.Children(ctx, fresh, rel)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testInvalidRecordNotWritten(t *testing.T, open Opener) {
	reg := Schema(t)
	s := open(t, reg)
	ctx := context.Background()

	item := newRecord(t, reg, "Item", types.FieldSet{"sku": "", "qty": "0"})
	tx := begin(t, s)
	err := tx.Save(ctx, item)
	require.ErrorIs(t, err, types.ErrValidation)
	assert.Empty(t, item.PrimaryKey())
	assert.Contains(t, item.Errors(), "sku")
	assert.Contains(t, item.Errors(), "qty")
	require.NoError(t, tx.Commit())
}

func testDeleteAndNotFound(t *testing.T, open Opener) {
	reg := Schema(t)
	s := open(t, reg)
	ctx := context.Background()

	order := newRecord(t, reg, "Order", types.FieldSet{"ref": "PO-5"})
	save(t, s, order)

	tx := begin(t, s)
	require.NoError(t, tx.Delete(ctx, order))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	defer tx.Rollback()
	_, err := tx.Find(ctx, "Order", order.PrimaryKey())
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, tx.Delete(ctx, order), types.ErrNotFound)
}

func testRollbackDiscards(t *testing.T, open Opener) {
	reg := Schema(t)
	s := open(t, reg)
	ctx := context.Background()

	kept := newRecord(t, reg, "Order", types.FieldSet{"ref": "PO-6"})
	save(t, s, kept)

	tx := begin(t, s)
	discarded := newRecord(t, reg, "Order", types.FieldSet{"ref": "PO-7"})
	require.NoError(t, tx.Save(ctx, discarded))
	require.NoError(t, tx.Delete(ctx, kept))
	require.NoError(t, tx.Rollback())

	tx = begin(t, s)
	defer tx.Rollback()
	_, err := tx.Find(ctx, "Order", kept.PrimaryKey())
	assert.NoError(t, err)
	_, err = tx.Find(ctx, "Order", discarded.PrimaryKey())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testFinishedTx(t *testing.T, open Opener) {
	reg := Schema(t)
	s := open(t, reg)

	tx := begin(t, s)
	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Commit(), types.ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(), types.ErrTxDone)
}

func testClosed(t *testing.T, open Opener) {
	s := open(t, Schema(t))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Begin(context.Background())
	assert.ErrorIs(t, err, types.ErrStoreClosed)
}
