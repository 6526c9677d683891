// Package ggpresenter implements the shared presentation context on a gg
// page canvas. Render targets are in-memory RGBA images; rendering paints a
// target into its window slot, or into the next thumbnail cell when the
// presenter runs in thumbnail mode. The page's pixel bytes can be hashed and
// compared against golden values, and exported as PNG for inspection.
package ggpresenter

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/user/decodebench/pkg/ports"
)

// ErrUnknownTarget is returned for handles the presenter does not track.
var ErrUnknownTarget = errors.New("ggpresenter: unknown render target")

// Page and thumbnail cell geometry.
const (
	pageWidth   = 1600
	pageHeight  = 1200
	thumbWidth  = 160
	thumbHeight = 120
)

type target struct {
	windowID int
	dims     ports.Dimension
	img      *image.RGBA
}

// Presenter is a software presentation context shared by all decoder
// instances of one run. All methods are safe for concurrent use.
type Presenter struct {
	mu         sync.Mutex
	dc         *gg.Context
	windows    int
	thumbnail  bool
	nextHandle ports.TargetHandle
	targets    map[ports.TargetHandle]*target
	rendered   int
}

// New creates a presenter with one page slot per window.
func New(windows int) *Presenter {
	if windows < 1 {
		windows = 1
	}
	return newPresenter(windows, false)
}

// NewThumbnail creates a presenter that renders every frame into the next
// cell of a fixed thumbnail grid. Used for single-instance golden-hash runs.
func NewThumbnail() *Presenter {
	return newPresenter(1, true)
}

func newPresenter(windows int, thumbnail bool) *Presenter {
	dc := gg.NewContext(pageWidth, pageHeight)
	dc.SetColor(color.Black)
	dc.Clear()
	return &Presenter{
		dc:        dc,
		windows:   windows,
		thumbnail: thumbnail,
		targets:   make(map[ports.TargetHandle]*target),
	}
}

// CreateTarget creates a render target for the given window. The target's
// pixels are a deterministic fill derived from the window and handle, so
// page hashes are reproducible across runs.
func (p *Presenter) CreateTarget(windowID int, kind ports.TargetKind, dims ports.Dimension) (ports.TargetHandle, error) {
	if dims.Width <= 0 || dims.Height <= 0 {
		return 0, fmt.Errorf("ggpresenter: bad target dimensions %dx%d", dims.Width, dims.Height)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextHandle++
	h := p.nextHandle
	img := image.NewRGBA(image.Rect(0, 0, dims.Width, dims.Height))
	fill := color.RGBA{
		R: uint8(37*windowID + 11),
		G: uint8(73 + uint32(h)*31),
		B: uint8(uint32(h) * 97),
		A: 255,
	}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = fill.R
		img.Pix[i+1] = fill.G
		img.Pix[i+2] = fill.B
		img.Pix[i+3] = fill.A
	}
	p.targets[h] = &target{windowID: windowID, dims: dims, img: img}
	return h, nil
}

// DeleteTarget releases a render target.
func (p *Presenter) DeleteTarget(h ports.TargetHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.targets[h]; !ok {
		return ErrUnknownTarget
	}
	delete(p.targets, h)
	return nil
}

// Render paints the target into its page slot, or into the next thumbnail
// cell in thumbnail mode.
func (p *Presenter) Render(h ports.TargetHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tgt, ok := p.targets[h]
	if !ok {
		return ErrUnknownTarget
	}

	var x, y, w, ht int
	if p.thumbnail {
		cols := pageWidth / thumbWidth
		rows := pageHeight / thumbHeight
		cell := p.rendered % (cols * rows)
		x = (cell % cols) * thumbWidth
		y = (cell / cols) * thumbHeight
		w, ht = thumbWidth, thumbHeight
	} else {
		w = pageWidth / p.windows
		ht = pageHeight
		x = tgt.windowID * w
		y = 0
	}
	p.rendered++

	page := p.dc.Image().(*image.RGBA)
	slot := image.Rect(x, y, x+w, y+ht)
	xdraw.ApproxBiLinear.Scale(page, slot, tgt.img, tgt.img.Bounds(), xdraw.Src, nil)
	return nil
}

// OutstandingTargets returns how many targets are still live.
func (p *Presenter) OutstandingTargets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.targets)
}

// RenderedCount returns how many Render calls completed.
func (p *Presenter) RenderedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rendered
}

// HashPage returns the MD5 of the page's RGBA bytes as a 32-hex string, the
// form golden sidecar files carry.
func (p *Presenter) HashPage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	img := p.dc.Image().(*image.RGBA)
	sum := md5.Sum(img.Pix)
	return hex.EncodeToString(sum[:])
}

// AlphaSolid reports whether every page pixel is fully opaque. A
// translucent pixel means a slot was composited wrong.
func (p *Presenter) AlphaSolid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	img := p.dc.Image().(*image.RGBA)
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return false
		}
	}
	return true
}

// WritePNG exports the page for inspection after a hash mismatch.
func (p *Presenter) WritePNG(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.dc.SavePNG(path); err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	return nil
}

var _ ports.Presenter = (*Presenter)(nil)
