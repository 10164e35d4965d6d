// Package export renders a project's canonical timeline as a CMX3600 EDL.
package export

import (
	"fmt"
	"strings"

	"github.com/framecut/timeline/internal/timeline"
)

// maxClipName keeps EDL comment lines within what common NLEs accept.
const maxClipName = 64

// Event is one EDL line: a scene placed on the record timeline.
type Event struct {
	Number    int
	SceneID   string
	ClipName  string
	SourceIn  int
	SourceOut int
	RecordIn  int
	RecordOut int
}

// Events lays scenes out back to back in timeline order. Source frames come
// from each scene's offset, record frames from the derived start frames.
func Events(scenes []timeline.Scene) []Event {
	ordered, starts := timeline.StartFrames(scenes)
	events := make([]Event, len(ordered))
	for i, s := range ordered {
		events[i] = Event{
			Number:    i + 1,
			SceneID:   s.ID,
			ClipName:  SanitizeName(s.Name, maxClipName),
			SourceIn:  s.OffsetFrames,
			SourceOut: s.OffsetFrames + s.DurationFrames,
			RecordIn:  starts[i],
			RecordOut: starts[i] + s.DurationFrames,
		}
	}
	return events
}

func GenerateEDL(project *timeline.Project, scenes []timeline.Scene) string {
	fps := project.FPS
	if fps <= 0 {
		fps = timeline.DefaultFPS
	}

	lines := []string{
		fmt.Sprintf("TITLE: %s", SanitizeName(project.Name, maxClipName)),
		"FCM: NON-DROP FRAME",
		"",
	}

	for _, ev := range Events(scenes) {
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", ev.Number, "AX", "V",
				FramesToTimecode(ev.SourceIn, fps), FramesToTimecode(ev.SourceOut, fps),
				FramesToTimecode(ev.RecordIn, fps), FramesToTimecode(ev.RecordOut, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ev.ClipName),
			fmt.Sprintf("* SCENE ID:  %s", ev.SceneID),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func FramesToTimecode(totalFrames, fps int) string {
	if fps <= 0 {
		fps = timeline.DefaultFPS
	}
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
