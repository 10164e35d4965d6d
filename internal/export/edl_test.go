package export

import (
	"strings"
	"testing"

	"github.com/framecut/timeline/internal/timeline"
)

func TestGenerateEDL_SingleScene(t *testing.T) {
	project := &timeline.Project{ID: "p1", Name: "Project One", FPS: 30}
	scenes := []timeline.Scene{{ID: "s1", Name: "Intro", Order: 0, DurationFrames: 60}}

	edl := GenerateEDL(project, scenes)

	if !strings.Contains(edl, "TITLE: Project One") {
		t.Fatalf("missing title in EDL: %q", edl)
	}
	if !strings.Contains(edl, "FCM: NON-DROP FRAME") {
		t.Fatalf("missing non-drop-frame FCM: %q", edl)
	}
	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00") {
		t.Fatalf("missing event line: %q", edl)
	}
	if !strings.Contains(edl, "* FROM CLIP NAME:  Intro") {
		t.Fatalf("missing clip name comment: %q", edl)
	}
	if !strings.Contains(edl, "* SCENE ID:  s1") {
		t.Fatalf("missing scene id comment: %q", edl)
	}
}

func TestGenerateEDL_FollowsOrderAndOffsets(t *testing.T) {
	project := &timeline.Project{ID: "p1", Name: "Multi", FPS: 30}
	// stored out of order on purpose
	scenes := []timeline.Scene{
		{ID: "b", Name: "Clip B", Order: 1, DurationFrames: 45, OffsetFrames: 30},
		{ID: "a", Name: "Clip A", Order: 0, DurationFrames: 30},
	}

	edl := GenerateEDL(project, scenes)

	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:01:00 00:00:00:00 00:00:01:00") {
		t.Fatalf("first event line mismatch: %q", edl)
	}
	if !strings.Contains(edl, "002  AX       V     C        00:00:01:00 00:00:02:15 00:00:01:00 00:00:02:15") {
		t.Fatalf("second event line mismatch or bad record offset: %q", edl)
	}
}

func TestEvents_SanitizesNames(t *testing.T) {
	events := Events([]timeline.Scene{{ID: "x", Name: "bad<name>\n", DurationFrames: 1}})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ClipName != "bad_name_" {
		t.Fatalf("ClipName = %q", events[0].ClipName)
	}
}

func TestFramesToTimecode(t *testing.T) {
	tests := []struct {
		name   string
		frames int
		fps    int
		want   string
	}{
		{name: "zero", frames: 0, fps: 30, want: "00:00:00:00"},
		{name: "one second", frames: 30, fps: 30, want: "00:00:01:00"},
		{name: "half second", frames: 15, fps: 30, want: "00:00:00:15"},
		{name: "one minute at 24", frames: 1440, fps: 24, want: "00:01:00:00"},
		{name: "one hour", frames: 108000, fps: 30, want: "01:00:00:00"},
		{name: "fps fallback", frames: 31, fps: 0, want: "00:00:01:01"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FramesToTimecode(tc.frames, tc.fps)
			if got != tc.want {
				t.Fatalf("FramesToTimecode(%d, %d) = %q, want %q", tc.frames, tc.fps, got, tc.want)
			}
		})
	}
}
