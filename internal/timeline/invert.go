package timeline

import "fmt"

// Invert computes the payload that undoes forward when applied to the state
// forward produces from pre. It must be called with the pre-mutation state.
func Invert(pre []Scene, forward Payload) (Payload, error) {
	state := Sorted(pre)
	var inverse []Op
	for i, op := range forward.Ops {
		undo, err := invertOp(state, op)
		if err != nil {
			return Payload{}, fmt.Errorf("invert op %d (%s): %w", i, op.Kind, err)
		}
		// Later ops are undone first.
		inverse = append(undo, inverse...)

		next, err := applyOp(state, op)
		if err != nil {
			return Payload{}, fmt.Errorf("invert op %d (%s): %w", i, op.Kind, err)
		}
		Renumber(next)
		state = next
	}
	return Payload{Ops: inverse}, nil
}

func invertOp(state []Scene, op Op) ([]Op, error) {
	switch op.Kind {
	case OpDelete:
		idx, err := mustFind(state, op.SceneID)
		if err != nil {
			return nil, err
		}
		snapshot := state[idx].Clone()
		return []Op{{Kind: OpInsert, Index: idx, Scene: &snapshot}}, nil

	case OpInsert:
		if op.Scene == nil {
			return nil, Validationf("insert requires a scene snapshot")
		}
		return []Op{{Kind: OpDelete, SceneID: op.Scene.ID}}, nil

	case OpReorder:
		prior := make([]string, len(state))
		for i, s := range state {
			prior[i] = s.ID
		}
		return []Op{{Kind: OpReorder, Order: prior}}, nil

	case OpTrim:
		idx, err := mustFind(state, op.SceneID)
		if err != nil {
			return nil, err
		}
		s := state[idx]
		return []Op{{Kind: OpTrim, SceneID: s.ID, DurationFrames: s.DurationFrames, OffsetFrames: s.OffsetFrames}}, nil

	case OpSplit:
		idx, err := mustFind(state, op.SceneID)
		if err != nil {
			return nil, err
		}
		s := state[idx]
		return []Op{
			{Kind: OpDelete, SceneID: op.NewSceneID},
			{Kind: OpTrim, SceneID: s.ID, DurationFrames: s.DurationFrames, OffsetFrames: s.OffsetFrames},
		}, nil

	case OpDuplicate:
		if _, err := mustFind(state, op.SceneID); err != nil {
			return nil, err
		}
		return []Op{{Kind: OpDelete, SceneID: op.NewSceneID}}, nil

	case OpRename:
		idx, err := mustFind(state, op.SceneID)
		if err != nil {
			return nil, err
		}
		return []Op{{Kind: OpRename, SceneID: op.SceneID, Name: state[idx].Name}}, nil
	}
	return nil, Validationf("unknown op kind %q", op.Kind)
}
