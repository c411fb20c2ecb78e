package camera

import (
	"math"
	"time"
)

// Zoom bounds of the viewport.
const (
	MinZoom = 0.1
	MaxZoom = 14.0
)

// Point is a position in world space.
type Point struct{ X, Y float64 }

// Viewport is a pannable, zoomable surface. Durations describe how long
// the host should animate the transition; zero applies it at once.
type Viewport interface {
	Size() (width, height float64)
	Center() Point
	Zoom() float64
	CenterAt(x, y float64, d time.Duration)
	SetZoom(k float64, d time.Duration)
	ZoomToFit(d time.Duration, padding float64, points []Point)
}

// Transition records the last camera move requested of a View.
type Transition struct {
	Center   Point
	Zoom     float64
	Duration time.Duration
}

// View is the concrete viewport used by sessions and headless renders.
// Moves are applied immediately; the requested duration is kept in Last
// so a front end can animate toward the same target.
type View struct {
	width, height float64
	center        Point
	zoom          float64
	last          Transition
}

// NewView returns a view of the given pixel size centred on the origin at
// zoom 1.
func NewView(width, height float64) *View {
	v := &View{center: Point{}, zoom: 1}
	v.Resize(width, height)
	return v
}

// Resize changes the screen size, keeping centre and zoom. Non-positive or
// non-finite sizes are ignored.
func (v *View) Resize(width, height float64) {
	if width > 0 && !math.IsInf(width, 0) {
		v.width = width
	}
	if height > 0 && !math.IsInf(height, 0) {
		v.height = height
	}
}

// Size implements [Viewport].
func (v *View) Size() (float64, float64) { return v.width, v.height }

// Center implements [Viewport].
func (v *View) Center() Point { return v.center }

// Zoom implements [Viewport].
func (v *View) Zoom() float64 { return v.zoom }

// Last returns the most recent transition.
func (v *View) Last() Transition { return v.last }

// CenterAt implements [Viewport]. Non-finite coordinates are ignored.
func (v *View) CenterAt(x, y float64, d time.Duration) {
	if !finite(x) || !finite(y) {
		return
	}
	v.center = Point{x, y}
	v.record(d)
}

// SetZoom implements [Viewport]. The scale is clamped to [MinZoom, MaxZoom].
func (v *View) SetZoom(k float64, d time.Duration) {
	if !finite(k) || k <= 0 {
		return
	}
	v.zoom = clampZoom(k)
	v.record(d)
}

// ZoomToFit implements [Viewport]. It centres on the bounding box of the
// finite points and picks the largest zoom that fits the box inside the
// screen less padding on every side.
func (v *View) ZoomToFit(d time.Duration, padding float64, points []Point) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	count := 0
	for _, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			continue
		}
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		count++
	}
	if count == 0 {
		return
	}

	v.center = Point{(minX + maxX) / 2, (minY + maxY) / 2}
	w := math.Max(v.width-2*padding, 1)
	h := math.Max(v.height-2*padding, 1)
	bw, bh := maxX-minX, maxY-minY
	switch {
	case bw <= 0 && bh <= 0:
		v.zoom = MaxZoom
	case bw <= 0:
		v.zoom = clampZoom(h / bh)
	case bh <= 0:
		v.zoom = clampZoom(w / bw)
	default:
		v.zoom = clampZoom(math.Min(w/bw, h/bh))
	}
	v.record(d)
}

// ToScreen converts a world position to screen pixels.
func (v *View) ToScreen(x, y float64) (float64, float64) {
	return (x-v.center.X)*v.zoom + v.width/2, (y-v.center.Y)*v.zoom + v.height/2
}

// ToWorld converts screen pixels to a world position.
func (v *View) ToWorld(sx, sy float64) (float64, float64) {
	return (sx-v.width/2)/v.zoom + v.center.X, (sy-v.height/2)/v.zoom + v.center.Y
}

func (v *View) record(d time.Duration) {
	v.last = Transition{Center: v.center, Zoom: v.zoom, Duration: d}
}

func clampZoom(k float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, k))
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

var _ Viewport = (*View)(nil)
