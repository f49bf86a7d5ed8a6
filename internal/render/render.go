// Package render draws region markers into a PNG for offline inspection.
package render

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/model"
)

// Options control the canvas.
type Options struct {
	Width, Height int
	// Margin is kept clear on every side, in pixels.
	Margin float64
	// Background is a hex colour such as "#ffffff".
	Background string
	// Position, when set, is drawn as a dot.
	Position *model.Point
}

// DefaultOptions is a 1000x1000 white canvas.
func DefaultOptions() Options {
	return Options{Width: 1000, Height: 1000, Margin: 20, Background: "#ffffff"}
}

// Draw renders every outline and label in payloads, scaled to fit the canvas.
func Draw(payloads []core.VisualizationPayload, opts Options) (image.Image, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("canvas size %dx%d is not positive", opts.Width, opts.Height)
	}
	bg := colorful.Color{R: 1, G: 1, B: 1}
	if opts.Background != "" {
		c, err := colorful.Hex(opts.Background)
		if err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		bg = c
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetColor(bg)
	dc.Clear()

	if len(payloads) == 0 && opts.Position == nil {
		return dc.Image(), nil
	}
	tr := fit(payloads, opts)

	for _, p := range payloads {
		strokeOutline(dc, tr, p.Outline)
	}
	for _, p := range payloads {
		drawLabel(dc, tr, p.Label)
	}
	if opts.Position != nil {
		x, y := tr.apply(*opts.Position)
		dc.SetRGB(0, 0, 0)
		dc.DrawCircle(x, y, 4)
		dc.Fill()
	}
	return dc.Image(), nil
}

// SavePNG renders payloads and writes the image to path.
func SavePNG(path string, payloads []core.VisualizationPayload, opts Options) error {
	img, err := Draw(payloads, opts)
	if err != nil {
		return err
	}
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// ErrEmptyOutline is returned by Bounds when no outline has points.
var ErrEmptyOutline = errors.New("no outline points")

// Bounds returns the world extent covered by outlines and label anchors.
func Bounds(payloads []core.VisualizationPayload) (orb.Bound, error) {
	var (
		b     orb.Bound
		found bool
	)
	extend := func(p model.Point) {
		pt := orb.Point{p.X, p.Y}
		if !found {
			b = pt.Bound()
			found = true
			return
		}
		b = b.Extend(pt)
	}
	for _, p := range payloads {
		for _, v := range p.Outline.Points {
			extend(v)
		}
		extend(p.Label.Anchor)
	}
	if !found {
		return orb.Bound{}, ErrEmptyOutline
	}
	return b, nil
}

// transform maps world coordinates to pixels with y pointing up.
type transform struct {
	scale      float64
	minX, maxY float64
	offX, offY float64
}

func (t transform) apply(p model.Point) (float64, float64) {
	return t.offX + (p.X-t.minX)*t.scale, t.offY + (t.maxY-p.Y)*t.scale
}

func fit(payloads []core.VisualizationPayload, opts Options) transform {
	b, err := Bounds(payloads)
	if err != nil && opts.Position != nil {
		b = orb.Point{opts.Position.X, opts.Position.Y}.Bound()
	} else if opts.Position != nil {
		b = b.Extend(orb.Point{opts.Position.X, opts.Position.Y})
	}

	w := float64(opts.Width) - 2*opts.Margin
	h := float64(opts.Height) - 2*opts.Margin
	dx, dy := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	scale := 1.0
	switch {
	case dx > 0 && dy > 0:
		scale = math.Min(w/dx, h/dy)
	case dx > 0:
		scale = w / dx
	case dy > 0:
		scale = h / dy
	}

	// Centre the drawing in the free space.
	return transform{
		scale: scale,
		minX:  b.Min[0],
		maxY:  b.Max[1],
		offX:  opts.Margin + (w-dx*scale)/2,
		offY:  opts.Margin + (h-dy*scale)/2,
	}
}

func strokeOutline(dc *gg.Context, tr transform, m core.Marker) {
	if len(m.Points) < 2 {
		return
	}
	dc.SetRGBA(m.Color.R, m.Color.G, m.Color.B, m.Color.A)
	dc.SetLineWidth(math.Max(1, m.LineWidth*tr.scale))
	x, y := tr.apply(m.Points[0])
	dc.MoveTo(x, y)
	for _, p := range m.Points[1:] {
		x, y = tr.apply(p)
		dc.LineTo(x, y)
	}
	dc.Stroke()
}

func drawLabel(dc *gg.Context, tr transform, m core.Marker) {
	if m.Text == "" {
		return
	}
	dc.SetRGBA(m.Color.R, m.Color.G, m.Color.B, m.Color.A)
	x, y := tr.apply(m.Anchor)
	dc.DrawStringAnchored(m.Text, x, y, 0.5, 0.5)
}
