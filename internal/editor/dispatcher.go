// Package editor is the client side of timeline editing: a local mirror
// that is updated optimistically, a dispatcher that turns user intents into
// action payloads and ships them to the write gateway in order, and the
// undo/redo history.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/framecut/timeline/internal/gateway"
	"github.com/framecut/timeline/internal/logging"
	"github.com/framecut/timeline/internal/timeline"
)

var (
	ErrNothingToUndo = &timeline.Error{Code: timeline.CodeValidation, Message: "nothing to undo"}
	ErrNothingToRedo = &timeline.Error{Code: timeline.CodeValidation, Message: "nothing to redo"}

	// ErrAborted marks writes rolled back because an earlier one failed.
	ErrAborted = errors.New("aborted after an earlier write failed")
)

// Remote is the write gateway and scene store as seen from the client.
// Both remote.Client and an in-process gateway.Gateway satisfy it.
type Remote interface {
	GetProjectScenes(ctx context.Context, projectID string) ([]timeline.Scene, int64, error)
	Write(ctx context.Context, req gateway.WriteRequest) (*gateway.WriteResult, error)
}

type Options struct {
	SessionScope     string
	HistoryStore     HistoryStore
	HistoryTTL       time.Duration
	MaxAttempts      int
	RetryInterval    time.Duration
	RebaseOnConflict bool
	Logger           *slog.Logger
}

type jobKind int

const (
	kindDo jobKind = iota
	kindUndo
	kindRedo
)

func (k jobKind) String() string {
	switch k {
	case kindUndo:
		return "undo"
	case kindRedo:
		return "redo"
	default:
		return "do"
	}
}

type job struct {
	kind      jobKind
	pending   *Pending
	direction timeline.Direction
	send      timeline.Payload
	// restore is applied to the mirror to take this job's local effect back.
	restore timeline.Payload
	key     string
	// entry is the history element an undo or redo moved between stacks.
	entry   timeline.HistoryEntry
	rebased bool
}

// Dispatcher owns the mirror and history of one project. Local applies are
// serialized by one mutex; a single send loop (Start) ships writes in
// dispatch order, stamping each with the revision acknowledged by the one
// before it.
type Dispatcher struct {
	mu        sync.Mutex
	projectID string
	remote    Remote
	mirror    *Mirror
	history   *History
	acked     int64
	queue     []*job

	wake    chan struct{}
	running atomic.Bool

	maxAttempts   int
	retryInterval time.Duration
	rebase        bool
	logger        *slog.Logger
	newID         func() string
}

func New(remote Remote, projectID string, opts Options) *Dispatcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 4
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 200 * time.Millisecond
	}
	if opts.SessionScope == "" {
		opts.SessionScope = "default"
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	return &Dispatcher{
		projectID:     projectID,
		remote:        remote,
		mirror:        NewMirror(projectID),
		history:       NewHistory(opts.HistoryStore, projectID, opts.SessionScope, opts.HistoryTTL),
		wake:          make(chan struct{}, 1),
		maxAttempts:   opts.MaxAttempts,
		retryInterval: opts.RetryInterval,
		rebase:        opts.RebaseOnConflict,
		logger:        logging.WithProjectID(logging.WithComponent(opts.Logger, "dispatcher"), projectID),
		newID:         uuid.NewString,
	}
}

// Open loads canonical state into the mirror and restores the persisted
// undo/redo stacks.
func (d *Dispatcher) Open(ctx context.Context) error {
	scenes, rev, err := d.fetch(ctx)
	if err != nil {
		return fmt.Errorf("load project %s: %w", d.projectID, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.acked = rev
	d.mirror.replace(scenes, rev)
	if err := d.history.Load(ctx); err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return nil
}

func (d *Dispatcher) Mirror() *Mirror {
	return d.mirror
}

func (d *Dispatcher) Subscribe(l Listener) func() {
	return d.mirror.Subscribe(l)
}

// Revision is the last revision the server acknowledged.
func (d *Dispatcher) Revision() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acked
}

func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// HistoryDepth returns the sizes of the undo and redo stacks.
func (d *Dispatcher) HistoryDepth() (undo, redo int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.Depth()
}

// Dispatch applies an intent to the mirror immediately and queues it for
// the server. Invalid params fail synchronously with nothing applied.
func (d *Dispatcher) Dispatch(ctx context.Context, t timeline.ActionType, params Params) (*Pending, error) {
	if params == nil {
		return nil, timeline.Validationf("params are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	pre := d.mirror.scenesCopy()
	forward, err := params.forward(t, pre, d.newID)
	if err != nil {
		return nil, err
	}
	forward = d.bindProject(forward)
	if err := timeline.ValidateShape(t, timeline.DirectionForward, forward); err != nil {
		return nil, err
	}
	inverse, err := timeline.Invert(pre, forward)
	if err != nil {
		return nil, err
	}
	next, err := timeline.Apply(pre, forward)
	if err != nil {
		return nil, err
	}

	action := timeline.Action{
		ID:             d.newID(),
		Type:           t,
		Forward:        forward,
		Inverse:        inverse,
		IdempotencyKey: d.newID(),
		ClientRevision: d.acked,
		CreatedAt:      time.Now().UTC(),
	}

	d.mirror.replace(next, -1)
	d.history.Record(action)
	d.saveHistory(ctx)

	p := newPending(action, timeline.DirectionForward)
	d.enqueue(&job{
		kind:      kindDo,
		pending:   p,
		direction: timeline.DirectionForward,
		send:      forward,
		restore:   inverse,
		key:       action.IdempotencyKey,
	})
	d.logger.Debug("action dispatched", "action", t, "action_id", action.ID, "idempotency_key", action.IdempotencyKey)
	return p, nil
}

// Undo sends the inverse of the most recent action under a new key.
func (d *Dispatcher) Undo(ctx context.Context) (*Pending, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.history.popUndo()
	if !ok {
		return nil, ErrNothingToUndo
	}
	return d.replayEntry(ctx, kindUndo, entry, entry.Action.Inverse, entry.Action.Forward, timeline.DirectionInverse)
}

// Redo re-sends the forward payload of the last undone action under a new
// key.
func (d *Dispatcher) Redo(ctx context.Context) (*Pending, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.history.popRedo()
	if !ok {
		return nil, ErrNothingToRedo
	}
	return d.replayEntry(ctx, kindRedo, entry, entry.Action.Forward, entry.Action.Inverse, timeline.DirectionForward)
}

func (d *Dispatcher) replayEntry(ctx context.Context, kind jobKind, entry timeline.HistoryEntry, send, restore timeline.Payload, dir timeline.Direction) (*Pending, error) {
	next, err := timeline.Apply(d.mirror.scenesCopy(), send)
	if err != nil {
		// The entry no longer fits the timeline; it stays dropped.
		d.saveHistory(ctx)
		return nil, fmt.Errorf("%s %s: %w", kind, entry.Action.Type, err)
	}

	key := d.newID()
	d.mirror.replace(next, -1)
	if kind == kindUndo {
		d.history.pushRedo(entry.Action, key)
	} else {
		d.history.pushUndo(entry.Action, key)
	}
	d.saveHistory(ctx)

	p := newPending(entry.Action, dir)
	d.enqueue(&job{
		kind:      kind,
		pending:   p,
		direction: dir,
		send:      send,
		restore:   restore,
		key:       key,
		entry:     entry,
	})
	d.logger.Debug("history entry dispatched", "kind", kind, "action", entry.Action.Type, "action_id", entry.Action.ID, "idempotency_key", key)
	return p, nil
}

// Nudge tells the dispatcher the server has reached revision rev, usually
// because another session wrote. The mirror is refreshed when it is behind
// and nothing local is in flight.
func (d *Dispatcher) Nudge(ctx context.Context, rev int64) {
	d.mu.Lock()
	stale := rev > d.acked && len(d.queue) == 0
	d.mu.Unlock()

	if stale {
		d.refresh(ctx)
	}
}

// Refresh replaces the mirror with canonical state unless writes are pending.
func (d *Dispatcher) Refresh(ctx context.Context) error {
	return d.refresh(ctx)
}

// Start runs the send loop until ctx ends. Writes still queued then are
// resolved as rolled back with ctx's error; the mirror is left as is since
// their fate on the server is unknown.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.running.Swap(true) {
		return
	}
	defer d.running.Store(false)

	d.logger.Info("dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.abandon(ctx.Err())
			d.logger.Info("dispatcher stopping")
			return
		case <-d.wake:
		}

		for ctx.Err() == nil {
			j := d.head()
			if j == nil {
				break
			}
			d.send(ctx, j)
		}
	}
}

func (d *Dispatcher) IsRunning() bool {
	return d.running.Load()
}

func (d *Dispatcher) enqueue(j *job) {
	d.queue = append(d.queue, j)
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) head() *job {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil
	}
	return d.queue[0]
}

func (d *Dispatcher) send(ctx context.Context, j *job) {
	d.mu.Lock()
	rev := d.acked
	d.mu.Unlock()

	req := gateway.WriteRequest{
		ProjectID:      d.projectID,
		ActionType:     j.pending.Action.Type,
		Direction:      j.direction,
		Payload:        j.send,
		ClientRevision: &rev,
		IdempotencyKey: j.key,
	}
	log := logging.WithIdempotencyKey(d.logger, j.key)

	res, err := backoff.Retry(ctx, func() (*gateway.WriteResult, error) {
		res, err := d.remote.Write(ctx, req)
		if err != nil && !timeline.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(d.newBackOff()),
		backoff.WithMaxTries(uint(d.maxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("write failed, retrying", "error", err, "retry_in", next)
		}),
	)

	switch {
	case err == nil:
		d.commit(j, res)
	case ctx.Err() != nil:
		// Start resolves everything still queued.
	case timeline.IsConflict(err):
		log.Info("write conflicted", "kind", j.kind, "error", err)
		d.recoverConflict(ctx, j, err)
	case timeline.IsValidation(err):
		log.Warn("write rejected", "kind", j.kind, "error", err)
		d.rollback(ctx, j, err, false)
	default:
		log.Error("write failed", "kind", j.kind, "error", err)
		d.rollback(ctx, j, err, true)
	}
}

func (d *Dispatcher) commit(j *job, res *gateway.WriteResult) {
	d.mu.Lock()
	d.queue = d.queue[1:]
	if res.NewRevision > d.acked {
		d.acked = res.NewRevision
	}
	if len(d.queue) == 0 {
		d.mirror.replace(res.Scenes, d.acked)
	} else {
		d.mirror.setRevision(d.acked)
	}
	d.mu.Unlock()

	j.pending.resolve(Outcome{Status: StatusCommitted, Revision: res.NewRevision, Rebased: j.rebased})
	d.logger.Debug("write committed", "kind", j.kind, "revision", res.NewRevision, "replayed", res.Replayed)
}

// rollback takes back every queued write: later ones were built on top of
// the failed one.
func (d *Dispatcher) rollback(ctx context.Context, failed *job, cause error, refetch bool) {
	d.mu.Lock()
	jobs := d.queue
	d.queue = nil
	unwound := d.unwind(jobs)
	for i := len(jobs) - 1; i >= 0; i-- {
		d.restoreHistory(jobs[i], jobs[i] == failed)
	}
	d.saveHistory(ctx)
	d.mu.Unlock()

	if refetch || !unwound {
		d.refresh(ctx)
	}
	d.resolveRolledBack(jobs, failed, cause, nil)
}

// recoverConflict discards all pending writes and reloads canonical state,
// which wins over anything local. With rebase enabled a conflicting action
// (not an undo or redo) is tried once more on top of the fresh state.
func (d *Dispatcher) recoverConflict(ctx context.Context, failed *job, cause error) {
	d.mu.Lock()
	jobs := d.queue
	d.queue = nil
	d.unwind(jobs)

	flush := false
	for _, j := range jobs {
		if j.kind != kindDo {
			flush = true
		}
	}
	if flush {
		d.history.Flush()
	} else {
		for _, j := range jobs {
			d.history.Drop(j.pending.Action.ID)
		}
	}
	d.saveHistory(ctx)
	d.mu.Unlock()

	scenes, rev, err := d.fetch(ctx)
	if err != nil {
		d.logger.Error("refetch after conflict failed", "error", err)
		d.resolveRolledBack(jobs, failed, cause, nil)
		return
	}

	d.mu.Lock()
	var rebased *job
	if len(d.queue) == 0 {
		d.acked = rev
		d.mirror.replace(scenes, rev)
		if d.rebase && failed.kind == kindDo {
			rebased = d.rebaseLocked(ctx, failed, scenes)
		}
	}
	d.mu.Unlock()

	d.resolveRolledBack(jobs, failed, cause, rebased)
}

// rebaseLocked re-applies failed's forward payload on fresh state under a
// new key. It returns nil when the payload no longer applies.
func (d *Dispatcher) rebaseLocked(ctx context.Context, failed *job, fresh []timeline.Scene) *job {
	next, err := timeline.Apply(fresh, failed.send)
	if err != nil {
		d.logger.Info("conflicting action no longer applies, discarded", "action_id", failed.pending.Action.ID, "error", err)
		return nil
	}
	inverse, err := timeline.Invert(fresh, failed.send)
	if err != nil {
		return nil
	}

	action := failed.pending.Action
	action.Inverse = inverse
	action.IdempotencyKey = d.newID()
	action.ClientRevision = d.acked

	d.mirror.replace(next, -1)
	d.history.Record(action)
	d.saveHistory(ctx)

	j := &job{
		kind:      kindDo,
		pending:   failed.pending,
		direction: timeline.DirectionForward,
		send:      failed.send,
		restore:   inverse,
		key:       action.IdempotencyKey,
		rebased:   true,
	}
	d.enqueue(j)
	d.logger.Info("conflicting action rebased", "action_id", action.ID, "idempotency_key", action.IdempotencyKey)
	return j
}

// unwind applies the restore payloads of jobs to the mirror, newest first.
// It reports false, leaving the mirror alone, if any of them does not apply.
func (d *Dispatcher) unwind(jobs []*job) bool {
	scenes := d.mirror.scenesCopy()
	for i := len(jobs) - 1; i >= 0; i-- {
		next, err := timeline.Apply(scenes, jobs[i].restore)
		if err != nil {
			d.logger.Warn("local rollback did not apply", "action_id", jobs[i].pending.Action.ID, "error", err)
			return false
		}
		scenes = next
	}
	if len(jobs) > 0 {
		d.mirror.replace(scenes, -1)
	}
	return true
}

// restoreHistory undoes a rolled-back job's effect on the stacks. The job
// that failed loses its entry; jobs aborted behind it get theirs back.
func (d *Dispatcher) restoreHistory(j *job, failed bool) {
	d.history.Drop(j.pending.Action.ID)
	if failed {
		return
	}
	switch j.kind {
	case kindUndo:
		d.history.restoreUndo(j.entry)
	case kindRedo:
		d.history.restoreRedo(j.entry)
	}
}

func (d *Dispatcher) resolveRolledBack(jobs []*job, failed *job, cause error, rebased *job) {
	for _, j := range jobs {
		if rebased != nil && j.pending == rebased.pending {
			continue
		}
		if j == failed {
			j.pending.resolve(Outcome{Status: StatusRolledBack, Err: cause})
			continue
		}
		j.pending.resolve(Outcome{Status: StatusRolledBack, Err: fmt.Errorf("%w: %w", ErrAborted, cause)})
	}
}

func (d *Dispatcher) abandon(cause error) {
	d.mu.Lock()
	jobs := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, j := range jobs {
		j.pending.resolve(Outcome{Status: StatusRolledBack, Err: cause})
	}
}

func (d *Dispatcher) refresh(ctx context.Context) error {
	scenes, rev, err := d.fetch(ctx)
	if err != nil {
		d.logger.Warn("refresh failed", "error", err)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Pending writes keep their optimistic view; they will reconcile on commit.
	if len(d.queue) > 0 {
		return nil
	}
	d.acked = rev
	d.mirror.replace(scenes, rev)
	return nil
}

type canonical struct {
	scenes   []timeline.Scene
	revision int64
}

func (d *Dispatcher) fetch(ctx context.Context) ([]timeline.Scene, int64, error) {
	c, err := backoff.Retry(ctx, func() (canonical, error) {
		scenes, rev, err := d.remote.GetProjectScenes(ctx, d.projectID)
		if err != nil && !timeline.IsTransient(err) {
			return canonical{}, backoff.Permanent(err)
		}
		return canonical{scenes: scenes, revision: rev}, err
	},
		backoff.WithBackOff(d.newBackOff()),
		backoff.WithMaxTries(uint(d.maxAttempts)),
	)
	if err != nil {
		return nil, 0, err
	}
	return c.scenes, c.revision, nil
}

func (d *Dispatcher) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.retryInterval
	b.MaxInterval = 5 * time.Second
	return b
}

func (d *Dispatcher) saveHistory(ctx context.Context) {
	if err := d.history.Save(ctx); err != nil {
		d.logger.Warn("failed to persist history", "error", err)
	}
}

// bindProject stamps inserted snapshots with this dispatcher's project.
func (d *Dispatcher) bindProject(p timeline.Payload) timeline.Payload {
	for i := range p.Ops {
		if sc := p.Ops[i].Scene; sc != nil && sc.ProjectID == "" {
			sc.ProjectID = d.projectID
		}
	}
	return p
}
