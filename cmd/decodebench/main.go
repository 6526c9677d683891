// Package main provides the CLI entry point for decodebench.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"

	"github.com/user/decodebench/pkg/adapters/ggpresenter"
	"github.com/user/decodebench/pkg/adapters/logger"
	"github.com/user/decodebench/pkg/adapters/nullpresenter"
	"github.com/user/decodebench/pkg/adapters/osfilesystem"
	"github.com/user/decodebench/pkg/adapters/softdecoder"
	"github.com/user/decodebench/pkg/config"
	"github.com/user/decodebench/pkg/corpus"
	"github.com/user/decodebench/pkg/driver"
	"github.com/user/decodebench/pkg/eventloop"
	"github.com/user/decodebench/pkg/harness"
	"github.com/user/decodebench/pkg/ports"
	"github.com/user/decodebench/pkg/summarizer"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Run the decode benchmark against one or more streams."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// RunCmd defines the run subcommand.
type RunCmd struct {
	// Required arguments
	Videos string `arg:"" help:"Stream specs: path:width:height:frames:fragments:minFpsRendered:minFpsUnrendered:profile, semicolon-separated."`

	// Config file
	Config string `short:"C" help:"YAML config file; flags override its values."`

	// Concurrency
	Instances    *int `short:"n" help:"Number of concurrent decoder instances (default: 1)."`
	InFlight     *int `help:"Maximum bitstream fragments in flight per instance (default: 8)."`
	PlayThroughs *int `help:"How many times each stream is decoded end to end (default: 1)."`

	// Lifecycle
	ResetPoint          *string `enum:"end,mid,start" help:"Where to reset each decoder (end, mid or start of stream)."`
	DestroyAt           *string `help:"Tear down on entering a state (bound, initialized, flushing, flushed, resetting, reset)."`
	DestroyAfterDecodes *int    `help:"Tear down after this many fragment submissions."`

	// Rendering
	RenderingFPS     *int `help:"Presentation rate cap in frames per second (default: 60)."`
	DisableRendering bool `help:"Skip presentation, measure pure decode throughput."`
	Thumbnails       bool `help:"Render into a shared thumbnail page and verify it against golden hashes."`
	DelayReuse       *int `help:"Delay output buffer reuse once this many frames were delivered."`

	// Decode backend
	DecodeLatencyMs  *int `help:"Simulated per-unit decode latency in milliseconds (default: 2)."`
	PlatformCapacity *int `help:"Concurrent decode sessions the platform allows (0 = unlimited)."`

	// Output
	FrameDeliveryLog string `help:"Write per-client inter-frame delivery intervals to this path prefix."`
	PageDumpDir      string `default:"." help:"Directory for the page dump on thumbnail mismatch."`
	Summary          string `short:"s" help:"Write a Markdown run summary to this path."`

	// Logging options
	LogLevel string `short:"l" default:"info" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)."`
	Quiet    bool   `short:"Q" help:"Suppress all log output."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("decodebench"),
		kong.Description("Exercise hardware-style video decoders through their full lifecycle."),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// Run executes the run command.
func (cmd *RunCmd) Run() error {
	cfg, err := cmd.buildConfig()
	if err != nil {
		return err
	}

	// Create logger
	var log ports.Logger
	if cmd.Quiet {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(ports.ParseLogLevel(cmd.LogLevel))
	}

	// Parse and load the streams
	videos, err := corpus.ParseSpec(cmd.Videos)
	if err != nil {
		return err
	}
	for _, v := range videos {
		if err := v.Load(); err != nil {
			return err
		}
		log.Debug("Loaded %s: %d bytes", v.Path, len(v.Stream))
	}

	// Create the presenter
	var presenter ports.Presenter
	var page *ggpresenter.Presenter
	switch {
	case cfg.Thumbnails:
		page = ggpresenter.NewThumbnail()
		presenter = page
	case cfg.DisableRendering:
		presenter = nullpresenter.New()
	default:
		presenter = ggpresenter.New(cfg.Instances)
	}

	// Create the decode backend
	platform := softdecoder.NewPlatform(cfg.PlatformCapacity)
	decOpts := softdecoder.Options{
		Latency: cfg.DecodeLatency(),
		Logger:  log,
	}

	opts, err := cfg.ToHarnessOptions()
	if err != nil {
		return err
	}
	opts.Videos = videos
	opts.Presenter = presenter
	opts.Logger = log
	opts.NewFactory = func(loop *eventloop.Loop) driver.DecoderFactory {
		return platform.Factory(loop, decOpts)
	}

	runner, err := harness.New(opts)
	if err != nil {
		return err
	}

	log.Info(l10n.F("Running %d instance(s) over %d stream(s)...", cfg.Instances, len(videos)))

	report, err := runner.Run()
	if err != nil {
		return err
	}
	if _, err := report.WriteTo(os.Stdout); err != nil {
		return err
	}

	fs := osfilesystem.New()

	if cfg.FrameDeliveryLog != "" {
		if err := writeFrameDeliveryLogs(runner, report, fs, cfg.FrameDeliveryLog); err != nil {
			return err
		}
		log.Info(l10n.F("Frame delivery logs written to %s", cfg.FrameDeliveryLog))
	}

	if cmd.Summary != "" {
		writer := summarizer.NewWriter(summarizer.NewMarkdownFormatter(), fs)
		if err := writer.Write(cmd.Summary, buildSummary(cfg, renderingMode(cfg), videos, report)); err != nil {
			return err
		}
		log.Info(l10n.F("Summary written to %s", cmd.Summary))
	}

	if err := report.Check(); err != nil {
		return fmt.Errorf(l10n.T("run failed its pass criteria: %w"), err)
	}

	if cfg.Thumbnails {
		if err := cmd.verifyThumbnails(page, videos[0].Path, fs, log); err != nil {
			return err
		}
		log.Info(l10n.T("Thumbnail page matched the golden hashes"))
	}

	log.Info(l10n.F("All %d instance(s) passed", cfg.Instances))
	return nil
}

// renderingMode names the presenter selection for the summary.
func renderingMode(cfg config.Config) string {
	switch {
	case cfg.Thumbnails:
		return "thumbnails"
	case cfg.DisableRendering:
		return "disabled"
	default:
		return "windowed"
	}
}

// verifyThumbnails checks the shared page against the first stream's golden
// sidecar and dumps the page as PNG when it does not match.
func (cmd *RunCmd) verifyThumbnails(page *ggpresenter.Presenter, streamPath string, fs ports.FileSystem, log ports.Logger) error {
	golden, err := corpus.LoadGoldenHashes(streamPath)
	if err != nil {
		return err
	}
	if err := harness.VerifyThumbnails(page, golden); err != nil {
		dump := filepath.Join(cmd.PageDumpDir, "thumbnails.png")
		if dumpErr := fs.MkdirAll(cmd.PageDumpDir); dumpErr != nil {
			log.Warn(l10n.F("Failed to save page dump: %v", dumpErr))
		} else if dumpErr := page.WritePNG(dump); dumpErr != nil {
			log.Warn(l10n.F("Failed to save page dump: %v", dumpErr))
		} else {
			log.Warn(l10n.F("Thumbnail hash mismatch, page saved to %s", dump))
		}
		return err
	}
	return nil
}

func writeFrameDeliveryLogs(runner *harness.Runner, report *harness.Report, fs ports.FileSystem, prefix string) error {
	for _, c := range report.Clients {
		var buf bytes.Buffer
		if err := runner.WriteFrameDeliveryLog(c.Index, &buf); err != nil {
			return err
		}
		if err := fs.WriteFile(fmt.Sprintf("%s.%d", prefix, c.Index), buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// buildSummary converts the run report into the summary document.
func buildSummary(cfg config.Config, mode string, videos []*corpus.Video, report *harness.Report) *summarizer.Summary {
	streams := make([]string, len(videos))
	for i, v := range videos {
		streams[i] = v.Path
	}

	builder := summarizer.NewBuilder().
		WithRun(summarizer.RunInfo{
			Streams:      streams,
			Instances:    cfg.Instances,
			PlayThroughs: cfg.PlayThroughs,
			ResetPoint:   cfg.ResetPoint,
			ElapsedMs:    int(report.Elapsed.Milliseconds()),
		}).
		WithSettings(summarizer.Settings{
			InFlight:         cfg.InFlight,
			RenderingMode:    mode,
			RenderingFPS:     cfg.RenderingFPS,
			DecodeLatencyMs:  cfg.DecodeLatencyMs,
			PlatformCapacity: cfg.PlatformCapacity,
		})

	for _, c := range report.Clients {
		result := summarizer.ClientResult{
			Index:            c.Index,
			DecodedFrames:    c.DecodedFrames,
			RenderedFrames:   c.RenderedFrames,
			DroppedFrames:    c.DroppedFrames,
			SkippedFragments: c.SkippedFragments,
			QueuedFragments:  c.QueuedFragments,
			ConsumedUnits:    c.ConsumedUnits,
			Epoch:            c.Epoch,
			FramesPerSecond:  c.FramesPerSecond,
			FinalState:       c.FinalState.String(),
			Tolerated:        c.Tolerated,
		}
		if c.Video != nil {
			result.Stream = c.Video.Path
		}
		if c.Err != nil {
			result.Error = c.Err.Error()
		}
		builder.AddClient(result)
	}

	return builder.Build()
}

// buildConfig layers the config file under the CLI overrides.
func (cmd *RunCmd) buildConfig() (config.Config, error) {
	cfg := config.Defaults()
	if cmd.Config != "" {
		var err error
		if cfg, err = config.LoadFromFile(cmd.Config); err != nil {
			return cfg, err
		}
	}

	if cmd.Instances != nil {
		cfg.Instances = *cmd.Instances
	}
	if cmd.InFlight != nil {
		cfg.InFlight = *cmd.InFlight
	}
	if cmd.PlayThroughs != nil {
		cfg.PlayThroughs = *cmd.PlayThroughs
	}
	if cmd.ResetPoint != nil {
		cfg.ResetPoint = *cmd.ResetPoint
	}
	if cmd.DestroyAt != nil {
		cfg.DestroyAt = *cmd.DestroyAt
	}
	if cmd.DestroyAfterDecodes != nil {
		cfg.DestroyAfterDecodes = *cmd.DestroyAfterDecodes
	}
	if cmd.RenderingFPS != nil {
		cfg.RenderingFPS = *cmd.RenderingFPS
	}
	if cmd.DisableRendering {
		cfg.DisableRendering = true
	}
	if cmd.Thumbnails {
		cfg.Thumbnails = true
	}
	if cmd.DelayReuse != nil {
		cfg.DelayReuseAfterFrame = *cmd.DelayReuse
	}
	if cmd.DecodeLatencyMs != nil {
		cfg.DecodeLatencyMs = *cmd.DecodeLatencyMs
	}
	if cmd.PlatformCapacity != nil {
		cfg.PlatformCapacity = *cmd.PlatformCapacity
	}
	if cmd.FrameDeliveryLog != "" {
		cfg.FrameDeliveryLog = cmd.FrameDeliveryLog
	}

	return cfg, nil
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("decodebench (Go) version %s", version))
	return nil
}
