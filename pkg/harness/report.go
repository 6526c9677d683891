package harness

import (
	"fmt"
	"io"
	"time"

	"github.com/user/decodebench/pkg/corpus"
	"github.com/user/decodebench/pkg/driver"
)

// ClientReport captures one driver's counters after teardown.
type ClientReport struct {
	Index int
	Video *corpus.Video

	// Err is set when the client failed. Tolerated marks failures the run
	// accepts, such as resource exhaustion above the supported minimum.
	Err       error
	Tolerated bool

	// Forced marks runs torn down before the normal end of the lifecycle.
	Forced bool

	MidStreamReset bool
	PlayThroughs   int
	Throttled      bool

	DecodedFrames    int
	RenderedFrames   int
	DroppedFrames    int
	SkippedFragments int
	QueuedFragments  int
	ConsumedUnits    int
	Epoch            int
	FramesPerSecond  float64

	OutstandingTargets int
	FinalState         driver.State
}

// Report aggregates the run.
type Report struct {
	Elapsed time.Duration
	Clients []ClientReport
}

// Check applies the pass criteria to every client and returns the first
// violation. Tolerated bind failures only have their teardown checked;
// forced-teardown runs skip the frame and fragment accounting.
func (r *Report) Check() error {
	for _, c := range r.Clients {
		if err := c.check(); err != nil {
			return fmt.Errorf("client %d: %w", c.Index, err)
		}
	}
	return nil
}

func (c *ClientReport) check() error {
	if c.FinalState != driver.StateDestroyed {
		return fmt.Errorf("final state %v, want Destroyed", c.FinalState)
	}
	if c.OutstandingTargets != 0 {
		return fmt.Errorf("%d presentation targets leaked", c.OutstandingTargets)
	}
	if c.Err != nil {
		if c.Tolerated {
			return nil
		}
		return c.Err
	}
	if c.Forced {
		return nil
	}

	if c.Throttled {
		if c.RenderedFrames+c.DroppedFrames != c.DecodedFrames {
			return fmt.Errorf("rendered %d + dropped %d != decoded %d",
				c.RenderedFrames, c.DroppedFrames, c.DecodedFrames)
		}
	}
	if c.ConsumedUnits != c.QueuedFragments {
		return fmt.Errorf("consumed %d units, queued %d fragments",
			c.ConsumedUnits, c.QueuedFragments)
	}

	v := c.Video
	if v == nil {
		return nil
	}
	if v.NumFrames > 0 {
		want := v.NumFrames * c.PlayThroughs
		if c.MidStreamReset {
			// Fragment boundaries rarely land exactly on the reset frame,
			// so replayed decodes may exceed the planned count.
			if c.DecodedFrames < want {
				return fmt.Errorf("decoded %d frames, want at least %d", c.DecodedFrames, want)
			}
		} else if c.DecodedFrames != want {
			return fmt.Errorf("decoded %d frames, want %d", c.DecodedFrames, want)
		}
	}
	if v.NumFragments > 0 && !c.MidStreamReset {
		want := v.NumFragments * c.PlayThroughs
		if c.SkippedFragments+c.QueuedFragments != want {
			return fmt.Errorf("skipped %d + queued %d fragments, want %d",
				c.SkippedFragments, c.QueuedFragments, want)
		}
	}

	minFPS := v.MinFPSNoRender
	if c.Throttled {
		minFPS = v.MinFPSRender
	}
	if minFPS > 0 && c.FramesPerSecond < float64(minFPS) {
		return fmt.Errorf("throughput %.1f fps below the %d fps floor",
			c.FramesPerSecond, minFPS)
	}
	return nil
}

// WriteTo prints a line per client plus the run total.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, c := range r.Clients {
		status := "ok"
		if c.Err != nil {
			status = c.Err.Error()
		}
		n, err := fmt.Fprintf(w,
			"client %d: decoded=%d rendered=%d dropped=%d queued=%d consumed=%d fps=%.1f epoch=%d state=%v (%s)\n",
			c.Index, c.DecodedFrames, c.RenderedFrames, c.DroppedFrames,
			c.QueuedFragments, c.ConsumedUnits, c.FramesPerSecond, c.Epoch,
			c.FinalState, status)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	n, err := fmt.Fprintf(w, "elapsed: %v\n", r.Elapsed.Round(time.Millisecond))
	return total + int64(n), err
}

// PageHasher is the slice of the thumbnail presenter the verification
// needs.
type PageHasher interface {
	HashPage() string
	AlphaSolid() bool
}

// VerifyThumbnails checks the rendered thumbnail page against the golden
// hashes loaded from a stream's sidecar file.
func VerifyThumbnails(page PageHasher, golden []string) error {
	if !page.AlphaSolid() {
		return fmt.Errorf("thumbnail page has translucent pixels")
	}
	h := page.HashPage()
	for _, g := range golden {
		if g == h {
			return nil
		}
	}
	return fmt.Errorf("thumbnail page hash %s matches none of %d golden hashes", h, len(golden))
}
