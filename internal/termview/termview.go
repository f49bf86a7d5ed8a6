// Package termview rasterises region markers onto a terminal grid.
package termview

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/model"
)

// OutlineRune is drawn for every cell an outline passes through.
const OutlineRune = '#'

// Canvas is the drawing surface. tcell.Screen satisfies it.
type Canvas interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Size() (width, height int)
}

type markerKey struct {
	ns string
	id int
}

// View keeps the latest marker per namespace and id, plus the last reported
// region, and draws them on demand. It is safe for concurrent use.
type View struct {
	mu      sync.RWMutex
	markers map[markerKey]core.Marker
	region  string
}

// New returns an empty view.
func New() *View {
	return &View{markers: make(map[markerKey]core.Marker), region: core.UnknownRegion}
}

// Update stores m, replacing any marker with the same namespace and id.
func (v *View) Update(m core.Marker) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.markers[markerKey{m.Namespace, m.ID}] = m
}

// SetRegion records the current region name shown in the status line.
func (v *View) SetRegion(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.region = name
}

// Region returns the current region name.
func (v *View) Region() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.region
}

// Markers returns the stored markers ordered by namespace then id.
func (v *View) Markers() []core.Marker {
	v.mu.RLock()
	out := make([]core.Marker, 0, len(v.markers))
	for _, m := range v.markers {
		out = append(out, m)
	}
	v.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Draw clears c and renders outlines, labels and a status line on the last
// row.
func (v *View) Draw(c Canvas) {
	w, h := c.Size()
	if w <= 0 || h <= 0 {
		return
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c.SetContent(x, y, ' ', nil, tcell.StyleDefault)
		}
	}

	markers := v.Markers()
	if h > 1 {
		if g, ok := newGrid(markers, w, h-1); ok {
			for _, m := range markers {
				if m.Kind == core.MarkerLineStrip {
					g.polyline(c, m)
				}
			}
			for _, m := range markers {
				if m.Kind == core.MarkerText {
					g.text(c, m)
				}
			}
		}
	}

	status := fmt.Sprintf("region: %s  markers: %d", v.Region(), len(markers))
	putString(c, 0, h-1, w, status, tcell.StyleDefault.Reverse(true))
}

// grid maps world coordinates onto cells, y up.
type grid struct {
	bound  orb.Bound
	sx, sy float64
	w, h   int
}

func newGrid(markers []core.Marker, w, h int) (grid, bool) {
	var (
		b     orb.Bound
		found bool
	)
	add := func(p model.Point) {
		pt := orb.Point{p.X, p.Y}
		if !found {
			b, found = pt.Bound(), true
			return
		}
		b = b.Extend(pt)
	}
	for _, m := range markers {
		for _, p := range m.Points {
			add(p)
		}
		if m.Kind == core.MarkerText {
			add(m.Anchor)
		}
	}
	if !found {
		return grid{}, false
	}

	g := grid{bound: b, w: w, h: h}
	if dx := b.Max[0] - b.Min[0]; dx > 0 {
		g.sx = float64(w-1) / dx
	}
	if dy := b.Max[1] - b.Min[1]; dy > 0 {
		g.sy = float64(h-1) / dy
	}
	return g, true
}

func (g grid) cell(p model.Point) (int, int) {
	x := int(math.Round((p.X - g.bound.Min[0]) * g.sx))
	y := int(math.Round((g.bound.Max[1] - p.Y) * g.sy))
	return x, y
}

func (g grid) polyline(c Canvas, m core.Marker) {
	style := tcell.StyleDefault.Foreground(cellColor(m.Color))
	for i := 1; i < len(m.Points); i++ {
		x0, y0 := g.cell(m.Points[i-1])
		x1, y1 := g.cell(m.Points[i])
		g.line(c, x0, y0, x1, y1, style)
	}
}

// line draws with Bresenham's algorithm.
func (g grid) line(c Canvas, x0, y0, x1, y1 int, style tcell.Style) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if x0 >= 0 && x0 < g.w && y0 >= 0 && y0 < g.h {
			c.SetContent(x0, y0, OutlineRune, nil, style)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (g grid) text(c Canvas, m core.Marker) {
	x, y := g.cell(m.Anchor)
	runes := []rune(m.Text)
	x -= len(runes) / 2
	if x < 0 {
		x = 0
	}
	putString(c, x, y, g.w, m.Text, tcell.StyleDefault.Foreground(cellColor(m.Color)).Bold(true))
}

func putString(c Canvas, x, y, maxW int, s string, style tcell.Style) {
	for _, r := range s {
		if x >= maxW {
			return
		}
		c.SetContent(x, y, r, nil, style)
		x++
	}
}

func cellColor(col core.Color) tcell.Color {
	return tcell.FromImageColor(colorful.Color{R: col.R, G: col.G, B: col.B}.Clamped())
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
