package editor

import (
	"sync"

	"github.com/framecut/timeline/internal/timeline"
)

// Snapshot is a read-only copy of the mirror.
type Snapshot struct {
	ProjectID string           `json:"projectId"`
	Revision  int64            `json:"revision"`
	Scenes    []timeline.Scene `json:"scenes"`
}

type Listener func(Snapshot)

// Mirror is the client's local copy of one project's timeline. Only the
// dispatcher writes to it; views read snapshots and subscribe to changes.
// Listeners run synchronously on the writer's goroutine and must not call
// back into the dispatcher.
type Mirror struct {
	mu        sync.RWMutex
	projectID string
	revision  int64
	scenes    []timeline.Scene
	listeners map[int]Listener
	nextID    int
}

func NewMirror(projectID string) *Mirror {
	return &Mirror{
		projectID: projectID,
		scenes:    []timeline.Scene{},
		listeners: make(map[int]Listener),
	}
}

func (m *Mirror) ProjectID() string {
	return m.projectID
}

func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Subscribe registers l and returns a func that removes it.
func (m *Mirror) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Mirror) scenesCopy() []timeline.Scene {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneScenes(m.scenes)
}

// replace swaps in a full scene list, and the revision when rev >= 0.
func (m *Mirror) replace(scenes []timeline.Scene, rev int64) {
	m.mu.Lock()
	m.scenes = timeline.Sorted(scenes)
	if rev >= 0 {
		m.revision = rev
	}
	snap, listeners := m.snapshotLocked(), m.listenersLocked()
	m.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (m *Mirror) setRevision(rev int64) {
	m.mu.Lock()
	if m.revision == rev {
		m.mu.Unlock()
		return
	}
	m.revision = rev
	snap, listeners := m.snapshotLocked(), m.listenersLocked()
	m.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (m *Mirror) snapshotLocked() Snapshot {
	return Snapshot{ProjectID: m.projectID, Revision: m.revision, Scenes: cloneScenes(m.scenes)}
}

func (m *Mirror) listenersLocked() []Listener {
	out := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l)
	}
	return out
}

func cloneScenes(scenes []timeline.Scene) []timeline.Scene {
	out := make([]timeline.Scene, len(scenes))
	for i, s := range scenes {
		out[i] = s.Clone()
	}
	return out
}
