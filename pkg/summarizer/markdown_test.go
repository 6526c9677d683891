package summarizer

import (
	"strings"
	"testing"
	"time"
)

func TestMarkdownFormatter_Format_Basic(t *testing.T) {
	formatter := NewMarkdownFormatter()

	summary := &Summary{
		GeneratedAt: time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC),
		Run: RunInfo{
			Streams:      []string{"test-25fps.h264"},
			Instances:    3,
			PlayThroughs: 1,
			ResetPoint:   "end",
			ElapsedMs:    4210,
		},
		Settings: Settings{
			InFlight:        8,
			RenderingMode:   "windowed",
			RenderingFPS:    60,
			DecodeLatencyMs: 2,
		},
		Clients: []ClientResult{
			{Index: 0, Stream: "test-25fps.h264", DecodedFrames: 250, RenderedFrames: 240,
				DroppedFrames: 10, QueuedFragments: 258, ConsumedUnits: 258,
				FramesPerSecond: 61.5, FinalState: "Destroyed"},
		},
	}

	result := formatter.Format(summary)

	checks := []string{
		"# Decode Run Summary",
		"test-25fps.h264",
		"Instances: 3",
		"Reset point: end",
		"4210 ms",
		"windowed at 60 fps",
		"unlimited",
		"| 0 | 250 | 240 | 10 | 258 | 258 | 61.5 | 0 | Destroyed |",
	}

	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q", check)
		}
	}
}

func TestMarkdownFormatter_Format_Failures(t *testing.T) {
	formatter := NewMarkdownFormatter()

	summary := &Summary{
		GeneratedAt: time.Now(),
		Settings:    Settings{PlatformCapacity: 2},
		Clients: []ClientResult{
			{Index: 0, FinalState: "Destroyed"},
			{Index: 3, FinalState: "Destroyed", Error: "insufficient resources", Tolerated: true},
			{Index: 4, FinalState: "Destroyed", Error: "platform failure"},
		},
	}

	result := formatter.Format(summary)

	if !strings.Contains(result, "Platform capacity: 2 sessions") {
		t.Error("capacity line missing")
	}
	if !strings.Contains(result, "Client 3 tolerated: insufficient resources") {
		t.Error("tolerated failure line missing")
	}
	if !strings.Contains(result, "Client 4 failed: platform failure") {
		t.Error("failure line missing")
	}
}
