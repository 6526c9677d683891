package summarizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/decodebench/pkg/adapters/osfilesystem"
)

func TestBuilder(t *testing.T) {
	summary := NewBuilder().
		WithRun(RunInfo{Streams: []string{"clip.h264"}, Instances: 3, PlayThroughs: 2, ResetPoint: "mid", ElapsedMs: 1200}).
		WithSettings(Settings{InFlight: 8, RenderingMode: "windowed", RenderingFPS: 60}).
		AddClient(ClientResult{Index: 0, DecodedFrames: 250, FinalState: "Destroyed"}).
		AddClient(ClientResult{Index: 1, DecodedFrames: 250, FinalState: "Destroyed"}).
		Build()

	if summary.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}
	if summary.Run.Instances != 3 {
		t.Errorf("Instances = %d, want 3", summary.Run.Instances)
	}
	if len(summary.Clients) != 2 {
		t.Fatalf("got %d clients, want 2", len(summary.Clients))
	}
	if summary.Clients[1].Index != 1 {
		t.Errorf("clients out of order: %+v", summary.Clients)
	}
}

func TestWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.md")
	writer := NewWriter(FormatFunc(func(s *Summary) string {
		return "run of " + s.Run.ResetPoint
	}), osfilesystem.New())

	summary := NewBuilder().WithRun(RunInfo{ResetPoint: "end"}).Build()
	if err := writer.Write(path, summary); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("summary not written: %v", err)
	}
	if !strings.Contains(string(data), "run of end") {
		t.Errorf("unexpected content: %q", data)
	}
}
