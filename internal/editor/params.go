package editor

import (
	"strings"

	"github.com/framecut/timeline/internal/timeline"
)

// Params describes a user intent. Each implementation builds the absolute
// forward payload for its action type(s) from the current mirror state.
type Params interface {
	forward(t timeline.ActionType, scenes []timeline.Scene, newID func() string) (timeline.Payload, error)
}

type DeleteParams struct {
	SceneID string
}

// ReorderParams gives the new sequence as indexes into the current order:
// Indexes[i] is the current position of the scene that should end up at i.
type ReorderParams struct {
	Indexes []int
}

// TrimParams: for trimRight Frames is the new duration; for trimLeft it is
// how far the in-point moves, positive trimming in.
type TrimParams struct {
	SceneID string
	Frames  int
}

// SplitParams splits a scene AtFrame frames after its start.
type SplitParams struct {
	SceneID string
	AtFrame int
}

// DuplicateParams copies a scene to Index, or right after the source when
// Index is nil.
type DuplicateParams struct {
	SceneID string
	Index   *int
}

type RenameParams struct {
	SceneID string
	Name    string
}

// InsertParams adds a new scene at Index, or at the end when Index is nil.
// An empty Scene.ID is filled in.
type InsertParams struct {
	Scene timeline.Scene
	Index *int
}

func (p DeleteParams) forward(t timeline.ActionType, scenes []timeline.Scene, _ func() string) (timeline.Payload, error) {
	if err := expectType(t, timeline.ActionDelete); err != nil {
		return timeline.Payload{}, err
	}
	if _, err := find(scenes, p.SceneID); err != nil {
		return timeline.Payload{}, err
	}
	return payload(timeline.Op{Kind: timeline.OpDelete, SceneID: p.SceneID}), nil
}

func (p ReorderParams) forward(t timeline.ActionType, scenes []timeline.Scene, _ func() string) (timeline.Payload, error) {
	if err := expectType(t, timeline.ActionReorder); err != nil {
		return timeline.Payload{}, err
	}
	if len(p.Indexes) != len(scenes) {
		return timeline.Payload{}, timeline.Validationf("reorder needs %d indexes, got %d", len(scenes), len(p.Indexes))
	}
	order := make([]string, len(p.Indexes))
	used := make([]bool, len(scenes))
	for i, idx := range p.Indexes {
		if idx < 0 || idx >= len(scenes) || used[idx] {
			return timeline.Payload{}, timeline.Validationf("reorder indexes must be a permutation of 0..%d", len(scenes)-1)
		}
		used[idx] = true
		order[i] = scenes[idx].ID
	}
	return payload(timeline.Op{Kind: timeline.OpReorder, Order: order}), nil
}

func (p TrimParams) forward(t timeline.ActionType, scenes []timeline.Scene, _ func() string) (timeline.Payload, error) {
	s, err := find(scenes, p.SceneID)
	if err != nil {
		return timeline.Payload{}, err
	}
	op := timeline.Op{Kind: timeline.OpTrim, SceneID: s.ID}
	switch t {
	case timeline.ActionTrimRight:
		op.DurationFrames = p.Frames
		op.OffsetFrames = s.OffsetFrames
	case timeline.ActionTrimLeft:
		op.DurationFrames = s.DurationFrames - p.Frames
		op.OffsetFrames = s.OffsetFrames + p.Frames
	default:
		return timeline.Payload{}, timeline.Validationf("trim params cannot drive a %s action", t)
	}
	if op.DurationFrames < 1 {
		return timeline.Payload{}, timeline.Validationf("trim would leave %d frames, need at least 1", op.DurationFrames)
	}
	if op.OffsetFrames < 0 {
		return timeline.Payload{}, timeline.Validationf("trim would move the in-point %d frames before the source start", -op.OffsetFrames)
	}
	return payload(op), nil
}

func (p SplitParams) forward(t timeline.ActionType, scenes []timeline.Scene, newID func() string) (timeline.Payload, error) {
	if err := expectType(t, timeline.ActionSplit); err != nil {
		return timeline.Payload{}, err
	}
	s, err := find(scenes, p.SceneID)
	if err != nil {
		return timeline.Payload{}, err
	}
	if p.AtFrame < 1 || p.AtFrame >= s.DurationFrames {
		return timeline.Payload{}, timeline.Validationf("split frame %d outside 1..%d", p.AtFrame, s.DurationFrames-1)
	}
	return payload(timeline.Op{Kind: timeline.OpSplit, SceneID: s.ID, AtFrame: p.AtFrame, NewSceneID: newID()}), nil
}

func (p DuplicateParams) forward(t timeline.ActionType, scenes []timeline.Scene, newID func() string) (timeline.Payload, error) {
	if err := expectType(t, timeline.ActionDuplicate); err != nil {
		return timeline.Payload{}, err
	}
	if _, err := find(scenes, p.SceneID); err != nil {
		return timeline.Payload{}, err
	}
	index := timeline.IndexOf(scenes, p.SceneID) + 1
	if p.Index != nil {
		index = *p.Index
	}
	if index < 0 || index > len(scenes) {
		return timeline.Payload{}, timeline.Validationf("duplicate index %d outside 0..%d", index, len(scenes))
	}
	return payload(timeline.Op{Kind: timeline.OpDuplicate, SceneID: p.SceneID, NewSceneID: newID(), Index: index}), nil
}

func (p RenameParams) forward(t timeline.ActionType, scenes []timeline.Scene, _ func() string) (timeline.Payload, error) {
	if err := expectType(t, timeline.ActionRename); err != nil {
		return timeline.Payload{}, err
	}
	if _, err := find(scenes, p.SceneID); err != nil {
		return timeline.Payload{}, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return timeline.Payload{}, timeline.Validationf("scene name must not be empty")
	}
	return payload(timeline.Op{Kind: timeline.OpRename, SceneID: p.SceneID, Name: name}), nil
}

func (p InsertParams) forward(t timeline.ActionType, scenes []timeline.Scene, newID func() string) (timeline.Payload, error) {
	if err := expectType(t, timeline.ActionInsert); err != nil {
		return timeline.Payload{}, err
	}
	sc := p.Scene.Clone()
	if sc.ID == "" {
		sc.ID = newID()
	}
	if timeline.IndexOf(scenes, sc.ID) >= 0 {
		return timeline.Payload{}, timeline.Validationf("scene %q already exists", sc.ID)
	}
	index := len(scenes)
	if p.Index != nil {
		index = *p.Index
	}
	if index < 0 || index > len(scenes) {
		return timeline.Payload{}, timeline.Validationf("insert index %d outside 0..%d", index, len(scenes))
	}
	return payload(timeline.Op{Kind: timeline.OpInsert, Index: index, Scene: &sc}), nil
}

func expectType(got, want timeline.ActionType) error {
	if got != want {
		return timeline.Validationf("%s params cannot drive a %s action", want, got)
	}
	return nil
}

func find(scenes []timeline.Scene, id string) (timeline.Scene, error) {
	if id == "" {
		return timeline.Scene{}, timeline.Validationf("scene id is required")
	}
	idx := timeline.IndexOf(scenes, id)
	if idx < 0 {
		return timeline.Scene{}, timeline.Validationf("scene %q not found", id)
	}
	return scenes[idx], nil
}

func payload(ops ...timeline.Op) timeline.Payload {
	return timeline.Payload{Ops: ops}
}
