// Package cli is the timeline command line: the server itself (serve) and
// a thin editing client that talks to it through the dispatcher.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/framecut/timeline/internal/config"
	"github.com/framecut/timeline/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	Server  string
	Token   string
	Project string

	cfg config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command. cfg may be nil, in which case it
// is loaded from the environment before any subcommand runs.
func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &RootOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:           "timeline",
		Short:         "Scene timeline server and editing client",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.cfg == nil {
				loaded, err := config.New()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				opts.cfg = loaded
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "server base URL (default from "+config.EnvServerURL+")")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token (default from "+config.EnvAuthToken+")")
	cmd.PersistentFlags().StringVarP(&opts.Project, "project", "p", "", "project id")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewProjectCommand(opts))
	cmd.AddCommand(NewScenesCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewRedoCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

func (o *RootOptions) serverURL() string {
	if o.Server != "" {
		return o.Server
	}
	return o.cfg.ServerURL()
}

func (o *RootOptions) token() string {
	if o.Token != "" {
		return o.Token
	}
	return o.cfg.AuthToken()
}

// logger writes diagnostics to stderr so they never mix with formatted output.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	if o.Verbose {
		return logging.NewLoggerTo(w, "debug")
	}
	return logging.NewLoggerTo(w, "warn")
}

func (o *RootOptions) requireProject() (string, error) {
	if o.Project == "" {
		return "", fmt.Errorf("--project is required")
	}
	return o.Project, nil
}

func (o *RootOptions) printer(cmd *cobra.Command) *Printer {
	return &Printer{Format: o.Format, Out: cmd.OutOrStdout()}
}
