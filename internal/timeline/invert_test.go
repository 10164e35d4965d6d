package timeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvert_RoundTripIsByteIdentical(t *testing.T) {
	tests := []struct {
		name    string
		forward Op
	}{
		{name: "delete first", forward: Op{Kind: OpDelete, SceneID: "A"}},
		{name: "delete middle", forward: Op{Kind: OpDelete, SceneID: "B"}},
		{name: "reorder", forward: Op{Kind: OpReorder, Order: []string{"C", "A", "B"}}},
		{name: "trim left", forward: Op{Kind: OpTrim, SceneID: "C", DurationFrames: 40, OffsetFrames: 15}},
		{name: "trim right", forward: Op{Kind: OpTrim, SceneID: "A", DurationFrames: 12}},
		{name: "split", forward: Op{Kind: OpSplit, SceneID: "B", AtFrame: 15, NewSceneID: "B2"}},
		{name: "duplicate", forward: Op{Kind: OpDuplicate, SceneID: "C", NewSceneID: "C2", Index: 0}},
		{name: "rename", forward: Op{Kind: OpRename, SceneID: "B", Name: "Renamed"}},
		{name: "insert", forward: Op{Kind: OpInsert, Index: 1, Scene: &Scene{ID: "N", ProjectID: "p1", DurationFrames: 9, Name: "New"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pre := threeScenes()
			fwd := Payload{Ops: []Op{tc.forward}}

			inv, err := Invert(pre, fwd)
			require.NoError(t, err)

			mid, err := Apply(pre, fwd)
			require.NoError(t, err)
			require.NoError(t, CheckOrder(mid))

			back, err := Apply(mid, inv)
			require.NoError(t, err)

			want, err := json.Marshal(pre)
			require.NoError(t, err)
			got, err := json.Marshal(back)
			require.NoError(t, err)
			assert.Equal(t, string(want), string(got))

			// forward again after the inverse lands on the same post-state
			again, err := Apply(back, fwd)
			require.NoError(t, err)
			assert.Equal(t, mid, again)
		})
	}
}

func TestInvert_DeleteCarriesFullSnapshot(t *testing.T) {
	inv, err := Invert(threeScenes(), Payload{Ops: []Op{{Kind: OpDelete, SceneID: "B"}}})
	require.NoError(t, err)

	require.Len(t, inv.Ops, 1)
	op := inv.Ops[0]
	assert.Equal(t, OpInsert, op.Kind)
	assert.Equal(t, 1, op.Index)
	require.NotNil(t, op.Scene)
	assert.Equal(t, threeScenes()[1], *op.Scene)
	assert.NoError(t, ValidateShape(ActionDelete, DirectionInverse, inv))
}

func TestInvert_SplitShape(t *testing.T) {
	inv, err := Invert(threeScenes(), Payload{Ops: []Op{{Kind: OpSplit, SceneID: "A", AtFrame: 10, NewSceneID: "A2"}}})
	require.NoError(t, err)

	assert.Equal(t, []Op{
		{Kind: OpDelete, SceneID: "A2"},
		{Kind: OpTrim, SceneID: "A", DurationFrames: 30},
	}, inv.Ops)
	assert.NoError(t, ValidateShape(ActionSplit, DirectionInverse, inv))
}

func TestInvert_MissingScene(t *testing.T) {
	_, err := Invert(threeScenes(), Payload{Ops: []Op{{Kind: OpRename, SceneID: "zz", Name: "x"}}})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestErrorPredicates(t *testing.T) {
	conflict := NewConflictError("p1", 5, 7)
	assert.True(t, IsConflict(conflict))
	assert.Equal(t, int64(7), conflict.CurrentRevision)
	assert.Contains(t, conflict.Error(), "stale revision 5, current is 7")

	wrapped := NewTransientError("storage busy", assert.AnError)
	assert.True(t, IsTransient(wrapped))
	assert.ErrorIs(t, wrapped, assert.AnError)

	assert.Equal(t, CodeFatal, CodeOf(assert.AnError))
	assert.False(t, IsValidation(nil))
}
