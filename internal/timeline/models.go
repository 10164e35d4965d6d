// Package timeline holds the scene timeline model shared by the write
// gateway and the editing client: scenes, action payloads, the pure
// apply/invert functions and the error taxonomy.
package timeline

import (
	"encoding/json"
	"time"
)

// Scene is one clip on a project's timeline. Its start frame is never
// stored; see StartFrames.
type Scene struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"projectId"`
	Order          int             `json:"order"`
	DurationFrames int             `json:"durationFrames"`
	OffsetFrames   int             `json:"offsetFrames"`
	Name           string          `json:"name"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Clone returns a deep copy of the scene.
func (s Scene) Clone() Scene {
	if s.Payload != nil {
		p := make(json.RawMessage, len(s.Payload))
		copy(p, s.Payload)
		s.Payload = p
	}
	return s
}

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FPS       int       `json:"fps"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"createdAt"`
}

const DefaultFPS = 30

type ActionType string

const (
	ActionDelete    ActionType = "delete"
	ActionReorder   ActionType = "reorder"
	ActionTrimLeft  ActionType = "trimLeft"
	ActionTrimRight ActionType = "trimRight"
	ActionSplit     ActionType = "split"
	ActionDuplicate ActionType = "duplicate"
	ActionRename    ActionType = "rename"

	// ActionInsert is only issued by the scene generation pipeline; the
	// editor never dispatches it directly.
	ActionInsert ActionType = "insert"
)

var actionTypes = []ActionType{
	ActionDelete,
	ActionReorder,
	ActionTrimLeft,
	ActionTrimRight,
	ActionSplit,
	ActionDuplicate,
	ActionRename,
	ActionInsert,
}

// ParseActionType resolves a wire name to an ActionType.
func ParseActionType(s string) (ActionType, bool) {
	for _, t := range actionTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Direction tells the gateway whether a payload is an action's forward
// mutation or its inverse (an undo).
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionInverse Direction = "inverse"
)

type OpKind string

const (
	OpDelete    OpKind = "delete"
	OpInsert    OpKind = "insert"
	OpReorder   OpKind = "reorder"
	OpTrim      OpKind = "trim"
	OpSplit     OpKind = "split"
	OpDuplicate OpKind = "duplicate"
	OpRename    OpKind = "rename"
)

// Op is a single absolute mutation. Fields not used by Kind are left zero.
type Op struct {
	Kind           OpKind   `json:"kind"`
	SceneID        string   `json:"sceneId,omitempty"`
	Index          int      `json:"index,omitempty"`
	Scene          *Scene   `json:"scene,omitempty"`
	Order          []string `json:"order,omitempty"`
	DurationFrames int      `json:"durationFrames,omitempty"`
	OffsetFrames   int      `json:"offsetFrames,omitempty"`
	AtFrame        int      `json:"atFrame,omitempty"`
	NewSceneID     string   `json:"newSceneId,omitempty"`
	Name           string   `json:"name,omitempty"`
}

type Payload struct {
	Ops []Op `json:"ops"`
}

// Action is an immutable forward/inverse pair produced by the dispatcher.
type Action struct {
	ID             string     `json:"id"`
	Type           ActionType `json:"type"`
	Forward        Payload    `json:"forwardPayload"`
	Inverse        Payload    `json:"inversePayload"`
	IdempotencyKey string     `json:"idempotencyKey"`
	ClientRevision int64      `json:"clientRevision"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// LedgerEntry records one applied write. Entries are never updated.
type LedgerEntry struct {
	ProjectID      string     `json:"projectId"`
	IdempotencyKey string     `json:"idempotencyKey"`
	ActionType     ActionType `json:"actionType"`
	Direction      Direction  `json:"direction"`
	ResultRevision int64      `json:"resultRevision"`
	AppliedAt      time.Time  `json:"appliedAt"`
}
