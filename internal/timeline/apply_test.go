package timeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeScenes() []Scene {
	return []Scene{
		{ID: "A", ProjectID: "p1", Order: 0, DurationFrames: 30, Name: "Intro", Payload: json.RawMessage(`{"code":"a"}`)},
		{ID: "B", ProjectID: "p1", Order: 1, DurationFrames: 40, Name: "Middle", Payload: json.RawMessage(`{"code":"b"}`)},
		{ID: "C", ProjectID: "p1", Order: 2, DurationFrames: 50, OffsetFrames: 5, Name: "Outro"},
	}
}

func ids(scenes []Scene) []string {
	out := make([]string, len(scenes))
	for i, s := range scenes {
		out[i] = s.ID
	}
	return out
}

func TestApply_ReorderScenarioA(t *testing.T) {
	pre := threeScenes()

	got, err := Apply(pre, Payload{Ops: []Op{{Kind: OpReorder, Order: []string{"C", "A", "B"}}}})
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "A", "B"}, ids(got))
	for i, s := range got {
		assert.Equal(t, i, s.Order)
	}
	_, starts := StartFrames(got)
	assert.Equal(t, []int{0, 50, 80}, starts)

	// input untouched
	assert.Equal(t, []string{"A", "B", "C"}, ids(pre))
}

func TestApply_DeleteScenarioB(t *testing.T) {
	got, err := Apply(threeScenes(), Payload{Ops: []Op{{Kind: OpDelete, SceneID: "B"}}})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, 30, got[0].DurationFrames)
	assert.Equal(t, 0, got[0].Order)
	assert.Equal(t, "C", got[1].ID)
	assert.Equal(t, 50, got[1].DurationFrames)
	assert.Equal(t, 1, got[1].Order)
}

func TestApply_SplitScenarioC(t *testing.T) {
	pre := []Scene{{ID: "A", ProjectID: "p1", Order: 0, DurationFrames: 50, Name: "Intro"}, {ID: "B", ProjectID: "p1", Order: 1, DurationFrames: 10, Name: "Next"}}

	got, err := Apply(pre, Payload{Ops: []Op{{Kind: OpSplit, SceneID: "A", AtFrame: 20, NewSceneID: "A2"}}})
	require.NoError(t, err)

	require.Equal(t, []string{"A", "A2", "B"}, ids(got))
	assert.Equal(t, 20, got[0].DurationFrames)
	assert.Equal(t, 30, got[1].DurationFrames)
	assert.Equal(t, 20, got[1].OffsetFrames)
	assert.Equal(t, 1, got[1].Order)
	assert.Equal(t, TotalFrames(pre), TotalFrames(got))
}

func TestApply_Duplicate(t *testing.T) {
	got, err := Apply(threeScenes(), Payload{Ops: []Op{{Kind: OpDuplicate, SceneID: "A", NewSceneID: "A-copy", Index: 3}}})
	require.NoError(t, err)

	require.Equal(t, []string{"A", "B", "C", "A-copy"}, ids(got))
	assert.Equal(t, "Intro (copy)", got[3].Name)
	assert.JSONEq(t, `{"code":"a"}`, string(got[3].Payload))
}

func TestApply_Trim(t *testing.T) {
	got, err := Apply(threeScenes(), Payload{Ops: []Op{{Kind: OpTrim, SceneID: "C", DurationFrames: 45, OffsetFrames: 10}}})
	require.NoError(t, err)
	assert.Equal(t, 45, got[2].DurationFrames)
	assert.Equal(t, 10, got[2].OffsetFrames)
}

func TestApply_NormalizesDamagedOrders(t *testing.T) {
	damaged := []Scene{
		{ID: "x", Order: 4, DurationFrames: 1, Name: "x"},
		{ID: "y", Order: 4, DurationFrames: 1, Name: "y"},
		{ID: "z", Order: 9, DurationFrames: 1, Name: "z"},
	}
	require.Error(t, CheckOrder(damaged))

	got, err := Apply(damaged, Payload{})
	require.NoError(t, err)
	assert.NoError(t, CheckOrder(got))
	assert.Equal(t, []string{"x", "y", "z"}, ids(got))
}

func TestApply_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		op   Op
	}{
		{name: "delete missing", op: Op{Kind: OpDelete, SceneID: "nope"}},
		{name: "trim to zero", op: Op{Kind: OpTrim, SceneID: "A", DurationFrames: 0}},
		{name: "negative offset", op: Op{Kind: OpTrim, SceneID: "A", DurationFrames: 3, OffsetFrames: -1}},
		{name: "split at edge", op: Op{Kind: OpSplit, SceneID: "A", AtFrame: 30, NewSceneID: "n"}},
		{name: "split id taken", op: Op{Kind: OpSplit, SceneID: "A", AtFrame: 10, NewSceneID: "B"}},
		{name: "reorder partial", op: Op{Kind: OpReorder, Order: []string{"A", "B"}}},
		{name: "reorder repeats", op: Op{Kind: OpReorder, Order: []string{"A", "A", "B"}}},
		{name: "insert out of range", op: Op{Kind: OpInsert, Index: 7, Scene: &Scene{ID: "n", DurationFrames: 1, Name: "n"}}},
		{name: "rename blank", op: Op{Kind: OpRename, SceneID: "A", Name: "  "}},
		{name: "unknown", op: Op{Kind: "explode"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Apply(threeScenes(), Payload{Ops: []Op{tc.op}})
			require.Error(t, err)
			assert.True(t, IsValidation(err), "want validation error, got %v", err)
		})
	}
}

func TestValidateShape(t *testing.T) {
	ok := Payload{Ops: []Op{{Kind: OpDelete, SceneID: "A"}, {Kind: OpTrim, SceneID: "B", DurationFrames: 3}}}
	assert.NoError(t, ValidateShape(ActionSplit, DirectionInverse, ok))

	assert.True(t, IsValidation(ValidateShape(ActionSplit, DirectionForward, ok)))
	assert.True(t, IsValidation(ValidateShape("warp", DirectionForward, ok)))
	assert.True(t, IsValidation(ValidateShape(ActionRename, "sideways", ok)))
	assert.True(t, IsValidation(ValidateShape(ActionDelete, DirectionForward, Payload{Ops: []Op{{Kind: OpDelete}}})))
	assert.True(t, IsValidation(ValidateShape(ActionDuplicate, DirectionForward,
		Payload{Ops: []Op{{Kind: OpDuplicate, SceneID: "A", NewSceneID: "A"}}})))
}

func TestParseActionType(t *testing.T) {
	got, ok := ParseActionType("trimLeft")
	assert.True(t, ok)
	assert.Equal(t, ActionTrimLeft, got)

	_, ok = ParseActionType("TRIMLEFT")
	assert.False(t, ok)
}
