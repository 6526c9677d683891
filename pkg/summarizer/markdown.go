package summarizer

import (
	"fmt"
	"strings"
)

// MarkdownFormatter formats a Summary as a Markdown document.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format converts a Summary to Markdown.
func (f *MarkdownFormatter) Format(summary *Summary) string {
	var sb strings.Builder

	sb.WriteString("# Decode Run Summary\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")))

	sb.WriteString("## Run\n\n")
	sb.WriteString(fmt.Sprintf("- Streams: %s\n", strings.Join(summary.Run.Streams, ", ")))
	sb.WriteString(fmt.Sprintf("- Instances: %d\n", summary.Run.Instances))
	sb.WriteString(fmt.Sprintf("- Play-throughs: %d\n", summary.Run.PlayThroughs))
	sb.WriteString(fmt.Sprintf("- Reset point: %s\n", summary.Run.ResetPoint))
	sb.WriteString(fmt.Sprintf("- Elapsed: %d ms\n\n", summary.Run.ElapsedMs))

	sb.WriteString("## Settings\n\n")
	sb.WriteString(fmt.Sprintf("- In-flight fragments: %d\n", summary.Settings.InFlight))
	sb.WriteString(fmt.Sprintf("- Rendering: %s", summary.Settings.RenderingMode))
	if summary.Settings.RenderingFPS > 0 {
		sb.WriteString(fmt.Sprintf(" at %d fps", summary.Settings.RenderingFPS))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("- Decode latency: %d ms\n", summary.Settings.DecodeLatencyMs))
	if summary.Settings.PlatformCapacity > 0 {
		sb.WriteString(fmt.Sprintf("- Platform capacity: %d sessions\n", summary.Settings.PlatformCapacity))
	} else {
		sb.WriteString("- Platform capacity: unlimited\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Results\n\n")
	sb.WriteString("| Client | Decoded | Rendered | Dropped | Queued | Consumed | FPS | Epoch | State |\n")
	sb.WriteString("|-------:|--------:|---------:|--------:|-------:|---------:|----:|------:|-------|\n")
	for _, c := range summary.Clients {
		sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %d | %.1f | %d | %s |\n",
			c.Index, c.DecodedFrames, c.RenderedFrames, c.DroppedFrames,
			c.QueuedFragments, c.ConsumedUnits, c.FramesPerSecond, c.Epoch, c.FinalState))
	}
	sb.WriteString("\n")

	for _, c := range summary.Clients {
		if c.Error == "" {
			continue
		}
		if c.Tolerated {
			sb.WriteString(fmt.Sprintf("- Client %d tolerated: %s\n", c.Index, c.Error))
		} else {
			sb.WriteString(fmt.Sprintf("- Client %d failed: %s\n", c.Index, c.Error))
		}
	}

	return sb.String()
}

// Ensure MarkdownFormatter implements Formatter
var _ Formatter = (*MarkdownFormatter)(nil)
