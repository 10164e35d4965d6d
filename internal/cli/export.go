package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/framecut/timeline/internal/export"
	"github.com/framecut/timeline/internal/remote"
)

type ExportOptions struct {
	*RootOptions
	Output string
}

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a project's timeline as a CMX3600 EDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := opts.requireProject()
			if err != nil {
				return err
			}
			if opts.Output != "" {
				if err := export.ValidateOutputPath(opts.Output); err != nil {
					return err
				}
			}

			client := remote.New(opts.serverURL(), opts.token(), opts.logger(cmd.ErrOrStderr()))
			edl, err := client.ExportEDL(cmd.Context(), projectID)
			if err != nil {
				return err
			}

			if opts.Output == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), edl)
				return err
			}
			if err := os.WriteFile(opts.Output, []byte(edl), 0644); err != nil {
				return fmt.Errorf("write %s: %w", opts.Output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", opts.Output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")

	return cmd
}
