package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/framecut/timeline/internal/api"
	"github.com/framecut/timeline/internal/remote"
	"github.com/framecut/timeline/internal/timeline"
)

type ProjectCreateOptions struct {
	*RootOptions
	ID  string
	FPS int
}

func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and list projects",
	}
	cmd.AddCommand(newProjectCreateCommand(rootOpts))
	cmd.AddCommand(newProjectListCommand(rootOpts))
	return cmd
}

func newProjectCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := remote.New(opts.serverURL(), opts.token(), opts.logger(cmd.ErrOrStderr()))
			project, err := client.CreateProject(cmd.Context(), api.CreateProjectRequest{
				ID:   opts.ID,
				Name: args[0],
				FPS:  opts.FPS,
			})
			if err != nil {
				return err
			}
			return opts.printer(cmd).Print(projectView{*project})
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (generated when empty)")
	cmd.Flags().IntVar(&opts.FPS, "fps", timeline.DefaultFPS, "frames per second")

	return cmd
}

func newProjectListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := remote.New(opts.serverURL(), opts.token(), opts.logger(cmd.ErrOrStderr()))
			projects, err := client.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			return opts.printer(cmd).Print(ProjectsView{Projects: projects})
		},
	}
}

type projectView struct {
	timeline.Project `yaml:",inline"`
}

func (v projectView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "created project %s (%s, %d fps)\n", v.ID, v.Name, v.FPS)
	return err
}

func NewScenesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenes",
		Short: "Show a project's timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := opts.requireProject()
			if err != nil {
				return err
			}
			client := remote.New(opts.serverURL(), opts.token(), opts.logger(cmd.ErrOrStderr()))
			project, err := client.GetProject(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			scenes, revision, err := client.GetProjectScenes(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			return opts.printer(cmd).Print(NewScenesView(project, scenes, revision))
		},
	}
}
