// Package corpus manages the test videos a run decodes: the per-stream
// descriptor grammar, stream loading with MP4 unwrapping, mid-stream reset
// accounting and the golden-hash sidecar files.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/user/decodebench/pkg/ports"
)

// ErrBadSpec is returned when a video spec string is malformed.
var ErrBadSpec = errors.New("corpus: malformed video spec")

// MaxResetAfterFrame caps how far into a stream a mid-stream reset may be
// placed.
const MaxResetAfterFrame = 100

// Video describes one test stream. Immutable once loaded; one per
// concurrently-active driver.
type Video struct {
	Path   string
	Stream []byte

	Width  int
	Height int

	// NumFrames and NumFragments are the expected counts for the run's
	// post-hoc checks. Zero means "ignore".
	NumFrames    int
	NumFragments int

	// MinFPSRender and MinFPSNoRender are throughput floors with and
	// without presentation. Zero means "ignore".
	MinFPSRender   int
	MinFPSNoRender int

	Profile ports.Profile

	// ResetAfterFrame is filled in by PlanMidStreamReset for mid-stream
	// reset runs; zero otherwise.
	ResetAfterFrame int
}

// ParseSpec parses a semicolon-separated list of colon-separated stream
// specs: path:width:height:frames:fragments:minFpsRendered:minFpsUnrendered:profile.
// Trailing fields may be empty or absent to mean "ignore".
func ParseSpec(spec string) ([]*Video, error) {
	var videos []*Video
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, ":")
		if len(fields) > 8 {
			return nil, fmt.Errorf("%w: %q has %d fields", ErrBadSpec, entry, len(fields))
		}
		v := &Video{Path: fields[0], Profile: -1}
		if v.Path == "" {
			return nil, fmt.Errorf("%w: empty path in %q", ErrBadSpec, entry)
		}
		ints := []*int{nil, &v.Width, &v.Height, &v.NumFrames, &v.NumFragments, &v.MinFPSRender, &v.MinFPSNoRender}
		for i := 1; i < len(fields) && i < len(ints); i++ {
			if fields[i] == "" {
				continue
			}
			n, err := strconv.Atoi(fields[i])
			if err != nil {
				return nil, fmt.Errorf("%w: field %d of %q: %v", ErrBadSpec, i, entry, err)
			}
			*ints[i] = n
		}
		if len(fields) == 8 && fields[7] != "" {
			n, err := strconv.Atoi(fields[7])
			if err != nil {
				return nil, fmt.Errorf("%w: profile in %q: %v", ErrBadSpec, entry, err)
			}
			v.Profile = ports.Profile(n)
		}
		videos = append(videos, v)
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%w: no streams in %q", ErrBadSpec, spec)
	}
	return videos, nil
}

// Load reads the stream from disk. MP4 containers are unwrapped to Annex B;
// everything else is used as-is. An unset profile is inferred from the file
// extension.
func (v *Video) Load() error {
	data, err := os.ReadFile(v.Path)
	if err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(v.Path))
	if ext == ".mp4" {
		data, err = ExtractAnnexB(data)
		if err != nil {
			return fmt.Errorf("unwrap %s: %w", v.Path, err)
		}
	}
	v.Stream = data
	if v.Profile < 0 {
		if ext == ".ivf" || ext == ".vp8" {
			v.Profile = ports.ProfileVP8
		} else {
			v.Profile = ports.ProfileH264Baseline
		}
	}
	return nil
}

// PlanMidStreamReset picks the reset frame for this stream and grows the
// expected frame count accordingly, since frames before the reset decode
// twice. Streams shorter than the cap reset after their first frame.
func (v *Video) PlanMidStreamReset() int {
	resetAfter := MaxResetAfterFrame
	if v.NumFrames <= MaxResetAfterFrame {
		resetAfter = 1
	}
	v.ResetAfterFrame = resetAfter
	v.NumFrames += resetAfter
	return resetAfter
}

// DivideMinFPS lowers the throughput floors for a run of n concurrent
// instances sharing the device.
func (v *Video) DivideMinFPS(n int) {
	if n <= 1 {
		return
	}
	v.MinFPSRender /= n
	v.MinFPSNoRender /= n
}
