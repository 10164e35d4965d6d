package editor

import (
	"context"
	"sync"

	"github.com/framecut/timeline/internal/timeline"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolledBack"
)

// Outcome is how a dispatched action, undo or redo ended.
type Outcome struct {
	Status   Status `json:"status"`
	Revision int64  `json:"revision,omitempty"`
	// Rebased is set when the action committed only after being re-applied
	// on top of a newer canonical state.
	Rebased bool  `json:"rebased,omitempty"`
	Err     error `json:"-"`
}

// Pending tracks one write from local apply to server acknowledgement.
type Pending struct {
	Action    timeline.Action
	Direction timeline.Direction

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newPending(action timeline.Action, dir timeline.Direction) *Pending {
	return &Pending{Action: action, Direction: dir, done: make(chan struct{})}
}

func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Outcome returns the result once resolved; before that it reports
// StatusPending.
func (p *Pending) Outcome() Outcome {
	select {
	case <-p.done:
		return p.outcome
	default:
		return Outcome{Status: StatusPending}
	}
}

// Wait blocks until the write is resolved or ctx ends. A rolled-back
// outcome is returned together with its cause as the error.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		if p.outcome.Status == StatusRolledBack {
			return p.outcome, p.outcome.Err
		}
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{Status: StatusPending}, ctx.Err()
	}
}

func (p *Pending) resolve(o Outcome) {
	p.once.Do(func() {
		p.outcome = o
		close(p.done)
	})
}
