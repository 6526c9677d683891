// Package harness runs N decode drivers concurrently against one shared
// presentation context and synchronizes their observable phase transitions.
// The controlling goroutine blocks on each driver's notification barrier;
// all decode activity happens on one event loop.
package harness

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/user/decodebench/pkg/adapters/logger"
	"github.com/user/decodebench/pkg/corpus"
	"github.com/user/decodebench/pkg/driver"
	"github.com/user/decodebench/pkg/eventloop"
	"github.com/user/decodebench/pkg/ports"
)

// MinSupportedConcurrency is the number of simultaneous decoder instances
// every platform must support. Bind failures are tolerated only when a run
// asks for more.
const MinSupportedConcurrency = 3

// defaultWaitTimeout bounds each single phase wait so a wedged decoder
// fails the run instead of hanging it.
const defaultWaitTimeout = 30 * time.Second

// Options configures one run.
type Options struct {
	// Videos are the loaded test streams. Instance i decodes video
	// i mod len(Videos).
	Videos []*corpus.Video

	// Instances is how many drivers run concurrently. Zero means one.
	Instances int

	// NewFactory builds the decoder factory on the run's event loop.
	NewFactory func(loop *eventloop.Loop) driver.DecoderFactory

	// Presenter is the shared presentation context.
	Presenter ports.Presenter

	MaxInFlight  int
	PlayThroughs int

	// ResetPoint is driver.EndOfStreamReset, driver.MidStreamReset or
	// driver.StartOfStreamReset. Zero means end-of-stream.
	ResetPoint int

	// RenderingFPS enables throttled delivery when positive.
	RenderingFPS int

	DelayReuseAfterFrame int

	// DestroyAt forces teardown on entering the given state. Zero means
	// the normal Reset-to-Destroyed transition.
	DestroyAt driver.State

	// DestroyAfterDecodes forces teardown after that many submissions.
	DestroyAfterDecodes int

	// WaitTimeout bounds each phase wait. Zero means the default.
	WaitTimeout time.Duration

	Logger ports.Logger
}

// Runner owns the drivers and the loop for one run.
type Runner struct {
	id      string
	opts    Options
	loop    *eventloop.Loop
	log     ports.Logger
	specs   []clientSpec
	drivers []*driver.Driver
}

type clientSpec struct {
	video      *corpus.Video
	resetFrame int
}

// New validates the options and prepares a run.
func New(opts Options) (*Runner, error) {
	if len(opts.Videos) == 0 {
		return nil, fmt.Errorf("harness: no videos")
	}
	if opts.NewFactory == nil {
		return nil, fmt.Errorf("harness: no decoder factory")
	}
	if opts.Presenter == nil {
		return nil, fmt.Errorf("harness: no presenter")
	}
	if opts.Instances <= 0 {
		opts.Instances = 1
	}
	if opts.ResetPoint == 0 {
		opts.ResetPoint = driver.EndOfStreamReset
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoop()
	}

	// Per-video planning happens once, before any driver exists: mid-stream
	// reset accounting and throughput floors shared across instances.
	for _, v := range opts.Videos {
		v.DivideMinFPS(opts.Instances)
	}
	resetFrames := make(map[*corpus.Video]int)
	if opts.ResetPoint == driver.MidStreamReset {
		for _, v := range opts.Videos {
			resetFrames[v] = v.PlanMidStreamReset()
		}
	}

	specs := make([]clientSpec, opts.Instances)
	for i := range specs {
		v := opts.Videos[i%len(opts.Videos)]
		specs[i] = clientSpec{video: v, resetFrame: resetFrames[v]}
	}

	return &Runner{
		id:    uuid.NewString(),
		opts:  opts,
		log:   opts.Logger.WithComponent("harness"),
		specs: specs,
	}, nil
}

// ID returns the run identifier.
func (r *Runner) ID() string {
	return r.id
}

// Run executes the full lifecycle for every instance and returns the
// per-client report. The run itself does not fail on per-client errors;
// Report.Check applies the pass criteria.
func (r *Runner) Run() (*Report, error) {
	r.loop = eventloop.New()
	defer r.loop.Stop()

	r.log.Info("Starting %d decoder instance(s)", len(r.specs))
	start := time.Now()

	drivers := make([]*driver.Driver, len(r.specs))
	r.drivers = drivers
	for i, spec := range r.specs {
		cfg := driver.Config{
			Stream:               spec.video.Stream,
			Profile:              spec.video.Profile,
			MaxInFlight:          r.opts.MaxInFlight,
			PlayThroughs:         r.opts.PlayThroughs,
			ResetAfterFrame:      r.resetAfterFrame(spec),
			DestroyAt:            r.opts.DestroyAt,
			DestroyAfterDecodes:  r.opts.DestroyAfterDecodes,
			DelayReuseAfterFrame: r.opts.DelayReuseAfterFrame,
			RenderingFPS:         r.opts.RenderingFPS,
			WindowID:             i,
		}
		drv, err := driver.New(r.loop, r.opts.Presenter, r.opts.Logger, cfg)
		if err != nil {
			return nil, fmt.Errorf("create driver %d: %w", i, err)
		}
		drivers[i] = drv
	}

	factory := r.opts.NewFactory(r.loop)
	for _, drv := range drivers {
		d := drv
		r.loop.Post(func() { d.CreateDecoder(factory) })
	}

	// Bind phase. Failed clients sit out the rest of the run.
	failed := make([]error, len(drivers))
	tolerated := make([]bool, len(drivers))
	for i, drv := range drivers {
		s, err := r.waitFor(drv, driver.StateDecoderBound)
		if err != nil {
			return nil, fmt.Errorf("client %d bind: %w", i, err)
		}
		if s == driver.StateError {
			failed[i] = fmt.Errorf("client %d bind: %w", i, drv.LastError())
			tolerated[i] = r.tolerable(failed[i])
		}
	}
	r.log.Info("All decoders bound")

	// Phase waits, per client, following the lifecycle transition graph.
	// Resource exhaustion beyond the supported minimum concurrency is
	// tolerated, any other failure is not.
	for i, drv := range drivers {
		if failed[i] != nil {
			continue
		}
		if err := r.waitLifecycle(drv, i); err != nil {
			failed[i] = err
			tolerated[i] = r.tolerable(err)
			if tolerated[i] {
				r.log.Info("Decoder %d tolerated failure: %v", i, err)
			}
		}
	}

	// Every driver ends destroyed, whatever happened above.
	for _, drv := range drivers {
		d := drv
		r.loop.PostAndWait(d.Destroy)
	}
	elapsed := time.Since(start)
	r.log.Info("Run completed in %d ms", elapsed.Milliseconds())

	report := &Report{Elapsed: elapsed}
	for i, drv := range drivers {
		rendered := r.opts.RenderingFPS > 0
		report.Clients = append(report.Clients, ClientReport{
			Index:              i,
			Video:              r.specs[i].video,
			Err:                failed[i],
			Tolerated:          tolerated[i],
			Forced:             r.forced(),
			MidStreamReset:     r.specs[i].resetFrame > 0,
			PlayThroughs:       max(1, r.opts.PlayThroughs),
			Throttled:          rendered,
			DecodedFrames:      drv.DecodedFrames(),
			RenderedFrames:     drv.RenderedFrames(),
			DroppedFrames:      drv.DroppedFrames(),
			SkippedFragments:   drv.SkippedFragments(),
			QueuedFragments:    drv.QueuedFragments(),
			ConsumedUnits:      drv.ConsumedUnits(),
			Epoch:              drv.Epoch(),
			FramesPerSecond:    drv.FramesPerSecond(),
			OutstandingTargets: drv.OutstandingTargets(),
			FinalState:         drv.State(),
		})
		r.log.Info("Decoder %d finished: %d frames", i, drv.DecodedFrames())
	}
	return report, nil
}

// WriteFrameDeliveryLog writes client i's inter-frame delivery intervals.
// Valid once Run has returned.
func (r *Runner) WriteFrameDeliveryLog(i int, w io.Writer) error {
	if i < 0 || i >= len(r.drivers) || r.drivers[i] == nil {
		return fmt.Errorf("no such client %d", i)
	}
	return r.drivers[i].WriteFrameDeliveryTimes(w)
}

func (r *Runner) resetAfterFrame(spec clientSpec) int {
	switch r.opts.ResetPoint {
	case driver.MidStreamReset:
		return spec.resetFrame
	case driver.StartOfStreamReset:
		return driver.StartOfStreamReset
	default:
		return driver.EndOfStreamReset
	}
}

// tolerable reports whether a client failure is acceptable: running out of
// decode sessions is fine once the run asks for more concurrency than every
// platform must support.
func (r *Runner) tolerable(err error) bool {
	return len(r.specs) > MinSupportedConcurrency &&
		errors.Is(err, ports.ErrInsufficientResources)
}

func (r *Runner) forced() bool {
	return r.opts.DestroyAfterDecodes > 0 ||
		(r.opts.DestroyAt != 0 && r.opts.DestroyAt != driver.StateReset)
}

// waitFor blocks for the next transition and treats Destroyed and Error as
// satisfying any wait, so forced teardown cannot hang the run.
func (r *Runner) waitFor(drv *driver.Driver, want driver.State) (driver.State, error) {
	s, ok := drv.Notification().WaitTimeout(r.opts.WaitTimeout)
	if !ok {
		return 0, fmt.Errorf("timed out waiting for %v", want)
	}
	if s == want || s == driver.StateDestroyed || s == driver.StateError {
		return s, nil
	}
	return s, fmt.Errorf("observed %v, want %v", s, want)
}

// waitLifecycle follows client i's transitions from DecoderBound to
// Destroyed, validating each against the lifecycle graph rather than a
// fixed order. The resume reset has no fixed position: it fires on the Nth
// delivered frame, which lands after the driver has already entered
// Flushing whenever submission runs ahead of delivery. Play-through counts
// are not checked here; the frame accounting in Report.Check covers them.
func (r *Runner) waitLifecycle(drv *driver.Driver, i int) error {
	bounce := r.specs[i].resetFrame > 0 || r.opts.ResetPoint == driver.StartOfStreamReset

	prev := driver.StateDecoderBound
	for {
		s, ok := drv.Notification().WaitTimeout(r.opts.WaitTimeout)
		if !ok {
			return fmt.Errorf("timed out in %v", prev)
		}
		switch s {
		case driver.StateDestroyed:
			return nil
		case driver.StateError:
			return fmt.Errorf("decoder failed in %v: %w", prev, drv.LastError())
		}

		valid := false
		switch s {
		case driver.StateInitialized:
			valid = prev == driver.StateDecoderBound || prev == driver.StateResetting
		case driver.StateFlushing:
			valid = prev == driver.StateInitialized
		case driver.StateFlushed:
			valid = prev == driver.StateFlushing
		case driver.StateResetting:
			valid = prev == driver.StateFlushed ||
				(bounce && (prev == driver.StateInitialized || prev == driver.StateFlushing))
			if valid && prev != driver.StateFlushed {
				bounce = false
			}
		case driver.StateReset:
			valid = prev == driver.StateResetting
		}
		if !valid {
			return fmt.Errorf("observed %v after %v", s, prev)
		}
		prev = s
	}
}
