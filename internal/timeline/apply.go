package timeline

import (
	"fmt"
	"sort"
	"strings"
)

// Sorted returns a deep copy of scenes sorted by Order, ties broken by ID so
// that damaged orderings still sort deterministically.
func Sorted(scenes []Scene) []Scene {
	out := make([]Scene, len(scenes))
	for i, s := range scenes {
		out[i] = s.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Renumber assigns Order = position in place.
func Renumber(scenes []Scene) {
	for i := range scenes {
		scenes[i].Order = i
	}
}

// CheckOrder reports whether the orders of scenes are exactly 0..N-1.
func CheckOrder(scenes []Scene) error {
	seen := make([]bool, len(scenes))
	for _, s := range scenes {
		if s.Order < 0 || s.Order >= len(scenes) {
			return fmt.Errorf("scene %s has order %d outside 0..%d", s.ID, s.Order, len(scenes)-1)
		}
		if seen[s.Order] {
			return fmt.Errorf("order %d assigned twice", s.Order)
		}
		seen[s.Order] = true
	}
	return nil
}

// StartFrames returns the derived start frame of each scene in timeline
// order, together with the sorted scenes they belong to.
func StartFrames(scenes []Scene) ([]Scene, []int) {
	sorted := Sorted(scenes)
	starts := make([]int, len(sorted))
	at := 0
	for i, s := range sorted {
		starts[i] = at
		at += s.DurationFrames
	}
	return sorted, starts
}

// TotalFrames is the summed duration of all scenes.
func TotalFrames(scenes []Scene) int {
	total := 0
	for _, s := range scenes {
		total += s.DurationFrames
	}
	return total
}

// IndexOf returns the position of id in scenes, or -1.
func IndexOf(scenes []Scene, id string) int {
	for i, s := range scenes {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Apply returns the scenes produced by applying p to scenes. The input is
// left untouched; the result is in timeline order with orders 0..N-1.
func Apply(scenes []Scene, p Payload) ([]Scene, error) {
	seq := Sorted(scenes)
	for i, op := range p.Ops {
		next, err := applyOp(seq, op)
		if err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
		seq = next
	}
	Renumber(seq)
	return seq, nil
}

func applyOp(seq []Scene, op Op) ([]Scene, error) {
	switch op.Kind {
	case OpDelete:
		idx, err := mustFind(seq, op.SceneID)
		if err != nil {
			return nil, err
		}
		return append(seq[:idx:idx], seq[idx+1:]...), nil

	case OpInsert:
		if op.Scene == nil {
			return nil, Validationf("insert requires a scene snapshot")
		}
		if IndexOf(seq, op.Scene.ID) >= 0 {
			return nil, Validationf("scene %q already exists", op.Scene.ID)
		}
		if op.Index < 0 || op.Index > len(seq) {
			return nil, Validationf("insert index %d outside 0..%d", op.Index, len(seq))
		}
		return insertAt(seq, op.Index, op.Scene.Clone()), nil

	case OpReorder:
		if len(op.Order) != len(seq) {
			return nil, Validationf("reorder lists %d scenes, timeline has %d", len(op.Order), len(seq))
		}
		out := make([]Scene, 0, len(seq))
		used := make(map[string]bool, len(seq))
		for _, id := range op.Order {
			if used[id] {
				return nil, Validationf("reorder lists scene %q twice", id)
			}
			idx, err := mustFind(seq, id)
			if err != nil {
				return nil, err
			}
			used[id] = true
			out = append(out, seq[idx])
		}
		return out, nil

	case OpTrim:
		idx, err := mustFind(seq, op.SceneID)
		if err != nil {
			return nil, err
		}
		if op.DurationFrames < 1 {
			return nil, Validationf("duration must be at least 1 frame, got %d", op.DurationFrames)
		}
		if op.OffsetFrames < 0 {
			return nil, Validationf("offset must not be negative, got %d", op.OffsetFrames)
		}
		seq[idx].DurationFrames = op.DurationFrames
		seq[idx].OffsetFrames = op.OffsetFrames
		return seq, nil

	case OpSplit:
		idx, err := mustFind(seq, op.SceneID)
		if err != nil {
			return nil, err
		}
		left := seq[idx]
		if op.AtFrame < 1 || op.AtFrame >= left.DurationFrames {
			return nil, Validationf("split frame %d outside 1..%d", op.AtFrame, left.DurationFrames-1)
		}
		if IndexOf(seq, op.NewSceneID) >= 0 {
			return nil, Validationf("scene %q already exists", op.NewSceneID)
		}
		right := left.Clone()
		right.ID = op.NewSceneID
		right.DurationFrames = left.DurationFrames - op.AtFrame
		right.OffsetFrames = left.OffsetFrames + op.AtFrame
		seq[idx].DurationFrames = op.AtFrame
		return insertAt(seq, idx+1, right), nil

	case OpDuplicate:
		idx, err := mustFind(seq, op.SceneID)
		if err != nil {
			return nil, err
		}
		if IndexOf(seq, op.NewSceneID) >= 0 {
			return nil, Validationf("scene %q already exists", op.NewSceneID)
		}
		if op.Index < 0 || op.Index > len(seq) {
			return nil, Validationf("duplicate index %d outside 0..%d", op.Index, len(seq))
		}
		dup := seq[idx].Clone()
		dup.ID = op.NewSceneID
		dup.Name = DuplicateName(dup.Name)
		return insertAt(seq, op.Index, dup), nil

	case OpRename:
		idx, err := mustFind(seq, op.SceneID)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(op.Name) == "" {
			return nil, Validationf("scene name must not be empty")
		}
		seq[idx].Name = op.Name
		return seq, nil
	}
	return nil, Validationf("unknown op kind %q", op.Kind)
}

// DuplicateName is the name given to a duplicated scene.
func DuplicateName(name string) string {
	return name + " (copy)"
}

func mustFind(seq []Scene, id string) (int, error) {
	if id == "" {
		return -1, Validationf("scene id is required")
	}
	idx := IndexOf(seq, id)
	if idx < 0 {
		return -1, Validationf("scene %q not found", id)
	}
	return idx, nil
}

func insertAt(seq []Scene, idx int, s Scene) []Scene {
	out := make([]Scene, 0, len(seq)+1)
	out = append(out, seq[:idx]...)
	out = append(out, s)
	return append(out, seq[idx:]...)
}
