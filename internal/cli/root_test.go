package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecut/timeline/internal/editor"
	"github.com/framecut/timeline/internal/timeline"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	commands := [][]string{
		{"serve"}, {"project", "create"}, {"project", "list"}, {"scenes"},
		{"add"}, {"edit"}, {"undo"}, {"redo"}, {"export"}, {"watch"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(nil)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	projectFlag := cmd.PersistentFlags().Lookup("project")
	require.NotNil(t, projectFlag)
	assert.Equal(t, "p", projectFlag.Shorthand)
}

func TestServeFlags(t *testing.T) {
	cmd := NewRootCommand(nil)
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	repair := serveCmd.Flags().Lookup("repair")
	require.NotNil(t, repair)
	assert.Equal(t, "false", repair.DefValue)
}

func TestEditParams(t *testing.T) {
	tests := []struct {
		name    string
		opts    EditOptions
		typ     string
		wantErr bool
	}{
		{name: "delete", typ: "delete", opts: EditOptions{SceneID: "s1"}},
		{name: "reorder", typ: "reorder", opts: EditOptions{Order: []int{1, 0}}},
		{name: "reorder without order", typ: "reorder", wantErr: true},
		{name: "trim", typ: "trimLeft", opts: EditOptions{SceneID: "s1", Frames: 4}},
		{name: "split", typ: "split", opts: EditOptions{SceneID: "s1", At: 10}},
		{name: "rename", typ: "rename", opts: EditOptions{SceneID: "s1", Name: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, ok := timeline.ParseActionType(tt.typ)
			require.True(t, ok)
			params, err := tt.opts.params(typ)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, params)
		})
	}
}

func TestEditParams_DuplicateIndex(t *testing.T) {
	opts := EditOptions{SceneID: "s1", Index: 0}
	params, err := opts.params(timeline.ActionDuplicate)
	require.NoError(t, err)
	assert.Nil(t, params.(editor.DuplicateParams).Index)

	opts.indexSet = true
	params, err = opts.params(timeline.ActionDuplicate)
	require.NoError(t, err)
	require.NotNil(t, params.(editor.DuplicateParams).Index)
	assert.Equal(t, 0, *params.(editor.DuplicateParams).Index)
}

func TestAddParams_RejectsBadPayload(t *testing.T) {
	opts := AddOptions{Name: "x", Duration: 10, Payload: "{not json"}
	_, err := opts.params(false)
	assert.Error(t, err)

	opts.Payload = `{"clip":"a.mov"}`
	params, err := opts.params(true)
	require.NoError(t, err)
	require.NotNil(t, params.(editor.InsertParams).Index)
	assert.JSONEq(t, opts.Payload, string(params.(editor.InsertParams).Scene.Payload))
}
