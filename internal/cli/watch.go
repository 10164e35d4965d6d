package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewWatchCommand follows the revision feed of a project and reprints the
// timeline whenever another session moves it forward.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow a project's timeline as other sessions edit it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			p := opts.printer(cmd)
			shown := int64(-1)
			return s.client.Watch(ctx, s.project.ID, func(rev int64) {
				s.dispatcher.Nudge(ctx, rev)
				snap := s.dispatcher.Mirror().Snapshot()
				if snap.Revision == shown {
					return
				}
				shown = snap.Revision
				p.Print(NewScenesView(s.project, snap.Scenes, snap.Revision))
			})
		},
	}
}
