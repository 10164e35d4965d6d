package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/framecut/timeline/internal/editor"
	"github.com/framecut/timeline/internal/export"
	"github.com/framecut/timeline/internal/timeline"
)

// Printer renders a command result as text, JSON or YAML.
type Printer struct {
	Format string
	Out    io.Writer
}

// textWriter is implemented by views that have a human-readable form.
type textWriter interface {
	WriteText(w io.Writer) error
}

func (p *Printer) Print(v textWriter) error {
	switch p.Format {
	case "json":
		encoder := json.NewEncoder(p.Out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(p.Out)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return v.WriteText(p.Out)
	}
}

// SceneRow is one scene as listed by the CLI, with its derived start frame.
type SceneRow struct {
	Position int    `json:"position" yaml:"position"`
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Start    int    `json:"startFrame" yaml:"startFrame"`
	Duration int    `json:"durationFrames" yaml:"durationFrames"`
	Offset   int    `json:"offsetFrames" yaml:"offsetFrames"`
	Timecode string `json:"timecode" yaml:"timecode"`
}

type ScenesView struct {
	ProjectID   string     `json:"projectId" yaml:"projectId"`
	Name        string     `json:"name" yaml:"name"`
	FPS         int        `json:"fps" yaml:"fps"`
	Revision    int64      `json:"revision" yaml:"revision"`
	TotalFrames int        `json:"totalFrames" yaml:"totalFrames"`
	Scenes      []SceneRow `json:"scenes" yaml:"scenes"`
}

func NewScenesView(project *timeline.Project, scenes []timeline.Scene, revision int64) ScenesView {
	sorted, starts := timeline.StartFrames(scenes)
	v := ScenesView{
		ProjectID:   project.ID,
		Name:        project.Name,
		FPS:         project.FPS,
		Revision:    revision,
		TotalFrames: timeline.TotalFrames(sorted),
		Scenes:      make([]SceneRow, len(sorted)),
	}
	for i, s := range sorted {
		v.Scenes[i] = SceneRow{
			Position: i,
			ID:       s.ID,
			Name:     s.Name,
			Start:    starts[i],
			Duration: s.DurationFrames,
			Offset:   s.OffsetFrames,
			Timecode: export.FramesToTimecode(starts[i], project.FPS),
		}
	}
	return v
}

func (v ScenesView) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s  %s  revision %d  %d fps  %d frames\n", v.ProjectID, v.Name, v.Revision, v.FPS, v.TotalFrames); err != nil {
		return err
	}
	if len(v.Scenes) == 0 {
		_, err := fmt.Fprintln(w, "(no scenes)")
		return err
	}
	fmt.Fprintf(w, "%3s  %-12s %-20s %6s %6s %6s  %s\n", "#", "ID", "NAME", "START", "DUR", "OFFSET", "TIMECODE")
	for _, s := range v.Scenes {
		if _, err := fmt.Fprintf(w, "%3d  %-12s %-20s %6d %6d %6d  %s\n",
			s.Position, shorten(s.ID, 12), shorten(s.Name, 20), s.Start, s.Duration, s.Offset, s.Timecode); err != nil {
			return err
		}
	}
	return nil
}

// ResultView reports the fate of one dispatched write.
type ResultView struct {
	Action    timeline.ActionType `json:"action" yaml:"action"`
	Direction timeline.Direction  `json:"direction" yaml:"direction"`
	Status    editor.Status       `json:"status" yaml:"status"`
	Revision  int64               `json:"revision" yaml:"revision"`
	Rebased   bool                `json:"rebased,omitempty" yaml:"rebased,omitempty"`
	Error     string              `json:"error,omitempty" yaml:"error,omitempty"`
	UndoDepth int                 `json:"undoDepth" yaml:"undoDepth"`
	RedoDepth int                 `json:"redoDepth" yaml:"redoDepth"`
	Timeline  ScenesView          `json:"timeline" yaml:"timeline"`
}

func (v ResultView) WriteText(w io.Writer) error {
	line := fmt.Sprintf("%s %s: %s at revision %d", v.Action, v.Direction, v.Status, v.Revision)
	if v.Rebased {
		line += " (rebased)"
	}
	if v.Error != "" {
		line += ": " + v.Error
	}
	if _, err := fmt.Fprintf(w, "%s\nundo %d  redo %d\n\n", line, v.UndoDepth, v.RedoDepth); err != nil {
		return err
	}
	return v.Timeline.WriteText(w)
}

type ProjectsView struct {
	Projects []*timeline.Project `json:"projects" yaml:"projects"`
}

func (v ProjectsView) WriteText(w io.Writer) error {
	if len(v.Projects) == 0 {
		_, err := fmt.Fprintln(w, "(no projects)")
		return err
	}
	fmt.Fprintf(w, "%-36s %-24s %4s %8s\n", "ID", "NAME", "FPS", "REVISION")
	for _, p := range v.Projects {
		if _, err := fmt.Fprintf(w, "%-36s %-24s %4d %8d\n", p.ID, shorten(p.Name, 24), p.FPS, p.Revision); err != nil {
			return err
		}
	}
	return nil
}

// shorten cuts s to n runes, marking the cut with "~".
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
