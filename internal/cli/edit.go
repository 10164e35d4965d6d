package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/framecut/timeline/internal/editor"
	"github.com/framecut/timeline/internal/timeline"
)

// EditOptions holds the flags of edit and add. Which ones matter depends on
// the action type.
type EditOptions struct {
	*RootOptions
	SceneID string
	Frames  int
	At      int
	Index   int
	Name    string
	Order   []int

	indexSet bool
}

func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <type>",
		Short: "Apply an edit to a project's timeline",
		Long: `Apply an edit to a project's timeline.

Types and their flags:
  delete     --scene
  reorder    --order (current positions, in the new sequence)
  trimLeft   --scene --frames (in-point moves by frames)
  trimRight  --scene --frames (new duration)
  split      --scene --at
  duplicate  --scene [--index]
  rename     --scene --name

Example:
  timeline edit split -p demo --scene s1 --at 48`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := timeline.ParseActionType(args[0])
			if !ok || t == timeline.ActionInsert {
				return fmt.Errorf("unknown edit type %q", args[0])
			}
			opts.indexSet = cmd.Flags().Changed("index")
			params, err := opts.params(t)
			if err != nil {
				return err
			}
			return runWrite(cmd, opts.RootOptions, func(ctx context.Context, d *editor.Dispatcher) (*editor.Pending, error) {
				return d.Dispatch(ctx, t, params)
			})
		},
	}

	cmd.Flags().StringVar(&opts.SceneID, "scene", "", "scene id")
	cmd.Flags().IntVar(&opts.Frames, "frames", 0, "trim amount in frames")
	cmd.Flags().IntVar(&opts.At, "at", 0, "split point, in frames from the scene start")
	cmd.Flags().IntVar(&opts.Index, "index", 0, "target position")
	cmd.Flags().StringVar(&opts.Name, "name", "", "new scene name")
	cmd.Flags().IntSliceVar(&opts.Order, "order", nil, "new sequence as current positions, e.g. 2,0,1")

	return cmd
}

func (o *EditOptions) params(t timeline.ActionType) (editor.Params, error) {
	var index *int
	if o.indexSet {
		i := o.Index
		index = &i
	}

	switch t {
	case timeline.ActionDelete:
		return editor.DeleteParams{SceneID: o.SceneID}, nil
	case timeline.ActionReorder:
		if len(o.Order) == 0 {
			return nil, fmt.Errorf("reorder needs --order")
		}
		return editor.ReorderParams{Indexes: o.Order}, nil
	case timeline.ActionTrimLeft, timeline.ActionTrimRight:
		return editor.TrimParams{SceneID: o.SceneID, Frames: o.Frames}, nil
	case timeline.ActionSplit:
		return editor.SplitParams{SceneID: o.SceneID, AtFrame: o.At}, nil
	case timeline.ActionDuplicate:
		return editor.DuplicateParams{SceneID: o.SceneID, Index: index}, nil
	case timeline.ActionRename:
		return editor.RenameParams{SceneID: o.SceneID, Name: o.Name}, nil
	}
	return nil, fmt.Errorf("unsupported edit type %q", t)
}

type AddOptions struct {
	*RootOptions
	ID       string
	Name     string
	Duration int
	Offset   int
	Index    int
	Payload  string
}

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Insert a new scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := opts.params(cmd.Flags().Changed("index"))
			if err != nil {
				return err
			}
			return runWrite(cmd, opts.RootOptions, func(ctx context.Context, d *editor.Dispatcher) (*editor.Pending, error) {
				return d.Dispatch(ctx, timeline.ActionInsert, params)
			})
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "scene id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "scene name")
	cmd.Flags().IntVar(&opts.Duration, "duration", 0, "duration in frames")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "in-point within the source, in frames")
	cmd.Flags().IntVar(&opts.Index, "index", 0, "position (default: end of timeline)")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "opaque scene payload as JSON")

	return cmd
}

func (o *AddOptions) params(indexSet bool) (editor.Params, error) {
	sc := timeline.Scene{
		ID:             o.ID,
		Name:           o.Name,
		DurationFrames: o.Duration,
		OffsetFrames:   o.Offset,
	}
	if strings.TrimSpace(o.Payload) != "" {
		if !json.Valid([]byte(o.Payload)) {
			return nil, fmt.Errorf("--payload is not valid JSON")
		}
		sc.Payload = json.RawMessage(o.Payload)
	}
	p := editor.InsertParams{Scene: sc}
	if indexSet {
		i := o.Index
		p.Index = &i
	}
	return p, nil
}

func NewUndoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the most recent edit of this session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, opts, func(ctx context.Context, d *editor.Dispatcher) (*editor.Pending, error) {
				return d.Undo(ctx)
			})
		},
	}
}

func NewRedoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Redo the most recently undone edit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, opts, func(ctx context.Context, d *editor.Dispatcher) (*editor.Pending, error) {
				return d.Redo(ctx)
			})
		},
	}
}

// runWrite performs one write through a fresh session and prints the
// outcome. A rolled-back write is printed before its error is returned.
func runWrite(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *editor.Dispatcher) (*editor.Pending, error)) error {
	s, err := openSession(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	view, err := s.run(cmd.Context(), fn)
	if view.Status == "" {
		return err
	}
	if perr := opts.printer(cmd).Print(view); perr != nil {
		return perr
	}
	return err
}
