// Package summarizer provides summary generation for decode run results.
package summarizer

import "time"

// Summary contains all data collected during a decode run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Run information
	Run RunInfo

	// Run settings
	Settings Settings

	// Per-client results
	Clients []ClientResult
}

// RunInfo identifies the run and its overall outcome.
type RunInfo struct {
	Streams      []string
	Instances    int
	PlayThroughs int
	ResetPoint   string
	ElapsedMs    int
}

// Settings contains the run configuration.
type Settings struct {
	InFlight      int
	RenderingMode string
	RenderingFPS  int

	// Decode backend
	DecodeLatencyMs  int
	PlatformCapacity int // 0 = unlimited
}

// ClientResult contains one decoder instance's counters.
type ClientResult struct {
	Index  int
	Stream string

	DecodedFrames    int
	RenderedFrames   int
	DroppedFrames    int
	SkippedFragments int
	QueuedFragments  int
	ConsumedUnits    int
	Epoch            int
	FramesPerSecond  float64

	FinalState string
	Error      string
	Tolerated  bool
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithRun sets run information.
func (b *Builder) WithRun(run RunInfo) *Builder {
	b.summary.Run = run
	return b
}

// WithSettings sets run settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// AddClient appends one client's results.
func (b *Builder) AddClient(client ClientResult) *Builder {
	b.summary.Clients = append(b.summary.Clients, client)
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
