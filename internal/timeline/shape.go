package timeline

import "strings"

var shapes = map[ActionType]map[Direction][]OpKind{
	ActionDelete:    {DirectionForward: {OpDelete}, DirectionInverse: {OpInsert}},
	ActionReorder:   {DirectionForward: {OpReorder}, DirectionInverse: {OpReorder}},
	ActionTrimLeft:  {DirectionForward: {OpTrim}, DirectionInverse: {OpTrim}},
	ActionTrimRight: {DirectionForward: {OpTrim}, DirectionInverse: {OpTrim}},
	ActionSplit:     {DirectionForward: {OpSplit}, DirectionInverse: {OpDelete, OpTrim}},
	ActionDuplicate: {DirectionForward: {OpDuplicate}, DirectionInverse: {OpDelete}},
	ActionRename:    {DirectionForward: {OpRename}, DirectionInverse: {OpRename}},
	ActionInsert:    {DirectionForward: {OpInsert}, DirectionInverse: {OpDelete}},
}

// ValidateShape checks a payload without looking at any stored state: the op
// kinds must match what the action type allows in that direction, and every
// field must be in range. State-dependent checks happen in Apply.
func ValidateShape(t ActionType, dir Direction, p Payload) error {
	byDir, ok := shapes[t]
	if !ok {
		return Validationf("unknown action type %q", t)
	}
	want, ok := byDir[dir]
	if !ok {
		return Validationf("unknown direction %q", dir)
	}
	if len(p.Ops) != len(want) {
		return Validationf("%s %s payload needs %d op(s), got %d", t, dir, len(want), len(p.Ops))
	}
	for i, op := range p.Ops {
		if op.Kind != want[i] {
			return Validationf("%s %s payload op %d must be %s, got %q", t, dir, i, want[i], op.Kind)
		}
		if err := validateOp(op); err != nil {
			return err
		}
	}
	return nil
}

func validateOp(op Op) error {
	switch op.Kind {
	case OpDelete, OpRename, OpTrim, OpSplit, OpDuplicate:
		if op.SceneID == "" {
			return Validationf("%s requires sceneId", op.Kind)
		}
	}

	switch op.Kind {
	case OpInsert:
		if op.Scene == nil {
			return Validationf("insert requires a scene snapshot")
		}
		if op.Scene.ID == "" {
			return Validationf("insert scene requires an id")
		}
		if op.Scene.DurationFrames < 1 {
			return Validationf("duration must be at least 1 frame, got %d", op.Scene.DurationFrames)
		}
		if op.Scene.OffsetFrames < 0 {
			return Validationf("offset must not be negative, got %d", op.Scene.OffsetFrames)
		}
		if strings.TrimSpace(op.Scene.Name) == "" {
			return Validationf("scene name must not be empty")
		}
		if op.Index < 0 {
			return Validationf("insert index must not be negative")
		}
	case OpReorder:
		if len(op.Order) == 0 {
			return Validationf("reorder requires the full scene order")
		}
		seen := make(map[string]bool, len(op.Order))
		for _, id := range op.Order {
			if id == "" || seen[id] {
				return Validationf("reorder order must list distinct scene ids")
			}
			seen[id] = true
		}
	case OpTrim:
		if op.DurationFrames < 1 {
			return Validationf("duration must be at least 1 frame, got %d", op.DurationFrames)
		}
		if op.OffsetFrames < 0 {
			return Validationf("offset must not be negative, got %d", op.OffsetFrames)
		}
	case OpSplit:
		if op.AtFrame < 1 {
			return Validationf("split frame must be at least 1, got %d", op.AtFrame)
		}
		if op.NewSceneID == "" || op.NewSceneID == op.SceneID {
			return Validationf("split requires a distinct newSceneId")
		}
	case OpDuplicate:
		if op.NewSceneID == "" || op.NewSceneID == op.SceneID {
			return Validationf("duplicate requires a distinct newSceneId")
		}
		if op.Index < 0 {
			return Validationf("duplicate index must not be negative")
		}
	case OpRename:
		if strings.TrimSpace(op.Name) == "" {
			return Validationf("scene name must not be empty")
		}
	}
	return nil
}
