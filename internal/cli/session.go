package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/framecut/timeline/internal/db"
	"github.com/framecut/timeline/internal/editor"
	"github.com/framecut/timeline/internal/remote"
	"github.com/framecut/timeline/internal/store"
	"github.com/framecut/timeline/internal/timeline"
)

// session is one editing client bound to a project: a remote client, a
// dispatcher with its mirror, and the local history database.
type session struct {
	client     *remote.Client
	dispatcher *editor.Dispatcher
	project    *timeline.Project
	history    *db.DB
}

func openSession(ctx context.Context, opts *RootOptions, stderr io.Writer) (*session, error) {
	projectID, err := opts.requireProject()
	if err != nil {
		return nil, err
	}
	cfg := opts.cfg
	logger := opts.logger(stderr)

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	historyDB, err := db.New(cfg.HistoryDBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	client := remote.New(opts.serverURL(), opts.token(), logger)
	project, err := client.GetProject(ctx, projectID)
	if err != nil {
		historyDB.Close()
		return nil, err
	}

	d := editor.New(client, projectID, editor.Options{
		SessionScope:     cfg.SessionScope(),
		HistoryStore:     store.NewHistoryStore(historyDB.Conn()),
		HistoryTTL:       cfg.HistoryTTL(),
		MaxAttempts:      cfg.MaxAttempts(),
		RebaseOnConflict: cfg.RebaseOnConflict(),
		Logger:           logger,
	})
	if err := d.Open(ctx); err != nil {
		historyDB.Close()
		return nil, err
	}

	return &session{client: client, dispatcher: d, project: project, history: historyDB}, nil
}

func (s *session) Close() error {
	return s.history.Close()
}

// run starts the send loop, dispatches one write with fn and waits for it
// to commit or roll back. The returned view describes the outcome either
// way; err is set when the write did not commit.
func (s *session) run(ctx context.Context, fn func(context.Context, *editor.Dispatcher) (*editor.Pending, error)) (ResultView, error) {
	loopCtx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		s.dispatcher.Start(loopCtx)
		return nil
	})
	defer func() {
		cancel()
		g.Wait()
	}()

	p, err := fn(ctx, s.dispatcher)
	if err != nil {
		return ResultView{}, err
	}
	out, err := p.Wait(ctx)

	snap := s.dispatcher.Mirror().Snapshot()
	undo, redo := s.dispatcher.HistoryDepth()
	view := ResultView{
		Action:    p.Action.Type,
		Direction: p.Direction,
		Status:    out.Status,
		Revision:  snap.Revision,
		Rebased:   out.Rebased,
		UndoDepth: undo,
		RedoDepth: redo,
		Timeline:  NewScenesView(s.project, snap.Scenes, snap.Revision),
	}
	if out.Status == editor.StatusCommitted {
		view.Revision = out.Revision
	}
	if err != nil {
		view.Error = err.Error()
	}
	return view, err
}
