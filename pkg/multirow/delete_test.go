package multirow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

// seedWithNotes saves an invoice with two lines and two notes.
func seedWithNotes(t *testing.T, fx *fixture) types.Record {
	t.Helper()
	parent := fx.newRecord(t, "Invoice")
	sub := types.Submission{
		"Invoice": types.Single(types.FieldSet{"number": "INV-20"}),
		"Line":    lines("1", "2"),
		"Note":    types.Sequence(types.FieldSet{}, types.FieldSet{"body": "a"}, types.FieldSet{"body": "b"}),
	}
	report := fx.h.Save(context.Background(), fx.store, parent, sub, types.Children("Line", "Note")...)
	require.True(t, report.Empty(), "seed report: %v", report)
	return parent
}

func TestDeleteCascades(t *testing.T) {
	fx := newFixture(t)
	parent := seedWithNotes(t, fx)

	err := fx.h.Delete(context.Background(), fx.fault, parent, types.Children("Line", "Note")...)

	require.NoError(t, err)
	assert.True(t, fx.fault.committed)
	assert.Equal(t, []string{"Line", "Line", "Note", "Note", "Invoice"}, fx.fault.deletes)
	assert.Empty(t, fx.children(t, parent, "Line"))
	assert.Empty(t, fx.children(t, parent, "Note"))
	_, err = fx.find(t, "Invoice", parent.PrimaryKey())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteFailureRollsBackEverything(t *testing.T) {
	fx := newFixture(t)
	parent := seedWithNotes(t, fx)
	locked := errors.New("row locked")
	fx.fault.deleteErr = func(rec types.Record) error {
		if rec.Type().Name() == "Note" {
			return locked
		}
		return nil
	}

	err := fx.h.Delete(context.Background(), fx.fault, parent, types.Children("Line", "Note")...)

	require.Error(t, err)
	assert.ErrorIs(t, err, locked)
	assert.True(t, fx.fault.rolledBack)
	assert.False(t, fx.fault.committed)
	assert.Contains(t, fx.sink.messages(), "multirow: delete rolled back")

	assert.Len(t, fx.children(t, parent, "Line"), 2)
	assert.Len(t, fx.children(t, parent, "Note"), 2)
	_, err = fx.find(t, "Invoice", parent.PrimaryKey())
	assert.NoError(t, err)
}

func TestDeleteRecoversPanic(t *testing.T) {
	fx := newFixture(t)
	parent := seedWithNotes(t, fx)
	fx.fault.childHook = func(rel types.Relation) {
		if rel.Target == "Note" {
			panic("cursor gone")
		}
	}

	err := fx.h.Delete(context.Background(), fx.fault, parent, types.Children("Line", "Note")...)

	assert.ErrorIs(t, err, types.ErrTxAborted)
	assert.True(t, fx.fault.rolledBack)
	assert.Len(t, fx.children(t, parent, "Line"), 2)
}

func TestDeleteSkipsUnresolvedGroups(t *testing.T) {
	fx := newFixture(t)
	parent := fx.seed(t, "INV-21", "1")

	err := fx.h.Delete(context.Background(), fx.fault, parent, types.Children("Customer", "Line")...)

	require.NoError(t, err)
	assert.Equal(t, []string{"multirow: no hasMany relation, group skipped"}, fx.sink.messages())
	_, err = fx.find(t, "Invoice", parent.PrimaryKey())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteUnsavedParent(t *testing.T) {
	fx := newFixture(t)

	err := fx.h.Delete(context.Background(), fx.fault, fx.newRecord(t, "Invoice"))

	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.True(t, fx.fault.rolledBack)
}

func TestDeleteBeginFailure(t *testing.T) {
	fx := newFixture(t)
	fx.fault.beginErr = errors.New("no connection")

	err := fx.h.Delete(context.Background(), fx.fault, fx.newRecord(t, "Invoice"))

	assert.ErrorContains(t, err, "no connection")
	assert.Equal(t, []string{"multirow: delete could not begin"}, fx.sink.messages())
}
