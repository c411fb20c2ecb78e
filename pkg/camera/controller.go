// Package camera frames the lineage graph in a viewport.
//
// The [Controller] owns every camera move of a view: the initial framing of
// the backbone after warm-up, fly-to for era navigation, the fit onto a
// trace and the return to the backbone when a selection is cleared. Each
// move cancels the previous move's pending follow-up so the latest user
// action always owns the camera.
package camera

import (
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lineage/pkg/layout"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/sched"
)

// Camera timings and framing constants.
const (
	InitialFrameDelay = 1500 * time.Millisecond
	FrameDuration     = 800 * time.Millisecond
	EraDuration       = 1000 * time.Millisecond
	FitDuration       = 900 * time.Millisecond
	FloorCheckDelay   = 950 * time.Millisecond
	FloorDuration     = 300 * time.Millisecond

	// FallbackZoom is used when no backbone node has a usable position.
	FallbackZoom = 0.6

	// EraZoom is the close-up scale of era navigation.
	EraZoom = 3.5

	// FloorZoom is the minimum scale enforced after fitting a trace.
	FloorZoom = 1.1

	// FitPadding is the screen margin around a fitted trace.
	FitPadding = 60.0

	defaultRange = 400.0
	frameFill    = 0.75
	frameMaxZoom = 2.5
	frameMinZoom = 0.3
	frameBias    = 0.3
)

// BackboneFrame returns the centre and zoom that fit the vertical extent of
// the root and principal nodes into a screen of the given height. It
// returns ok=false with the fallback framing when no such node has a
// finite position.
func BackboneFrame(g *lineage.Graph, height float64) (center Point, zoom float64, ok bool) {
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, n := range g.Nodes() {
		if !n.Kind.MainLine() || !finite(n.Body.Y) {
			continue
		}
		minY = math.Min(minY, n.Body.Y)
		maxY = math.Max(maxY, n.Body.Y)
	}
	if math.IsInf(minY, 1) {
		return Point{}, FallbackZoom, false
	}
	span := maxY - minY
	if span <= 0 {
		span = defaultRange
	}
	zoom = math.Max(math.Min(height*frameFill/span, frameMaxZoom), frameMinZoom)
	return Point{0, minY + span*frameBias}, zoom, true
}

// Controller drives a Viewport from graph state.
type Controller struct {
	view    Viewport
	graph   *lineage.Graph
	sched   sched.Scheduler
	logger  *log.Logger
	pending *sched.Task
}

// New returns a controller for v over g. Follow-up moves are scheduled on s.
func New(v Viewport, g *lineage.Graph, s sched.Scheduler, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Controller{view: v, graph: g, sched: s, logger: logger}
}

// Viewport returns the controlled viewport.
func (c *Controller) Viewport() Viewport { return c.view }

// Cancel drops any pending follow-up move.
func (c *Controller) Cancel() {
	c.pending.Cancel()
	c.pending = nil
}

// FrameBackbone frames the backbone over d. It reports whether the
// backbone had usable positions; otherwise the fallback framing is used.
func (c *Controller) FrameBackbone(d time.Duration) bool {
	c.Cancel()
	_, h := c.view.Size()
	center, zoom, ok := BackboneFrame(c.graph, h)
	if !ok {
		c.logger.Debug("no finite backbone positions, using fallback framing")
	}
	c.view.CenterAt(center.X, center.Y, d)
	c.view.SetZoom(zoom, d)
	return ok
}

// ScheduleInitialFrame frames the backbone once delay has elapsed, then
// calls done if it is not nil.
func (c *Controller) ScheduleInitialFrame(delay time.Duration, done func()) {
	c.Cancel()
	c.pending = c.sched.After(delay, func() {
		c.pending = nil
		c.FrameBackbone(FrameDuration)
		if done != nil {
			done()
		}
	})
}

// FlyToEra centres on the anchor of era at its current simulated position
// and zooms in. It reports false and leaves the camera untouched when the
// era has no anchor.
func (c *Controller) FlyToEra(era int) bool {
	anchor := c.graph.EraAnchor(era)
	if anchor == nil {
		c.logger.Debug("era has no anchor", "era", era)
		return false
	}
	c.Cancel()
	x, y := anchor.Body.X, anchor.Body.Y
	if !finite(x) {
		x = 0
	}
	if !finite(y) {
		y = float64(anchor.Seq) * layout.Spacing
	}
	c.view.CenterAt(x, y, EraDuration)
	c.view.SetZoom(EraZoom, EraDuration)
	return true
}

// FitHighlighted fits the viewport to the nodes with the given ids and,
// once the fit has finished, raises the zoom to FloorZoom if it ended
// below it.
func (c *Controller) FitHighlighted(ids []string) {
	var pts []Point
	for _, id := range ids {
		n := c.graph.Node(id)
		if n == nil || !n.Body.Finite() {
			continue
		}
		pts = append(pts, Point{n.Body.X, n.Body.Y})
	}
	if len(pts) == 0 {
		return
	}
	c.Cancel()
	c.view.ZoomToFit(FitDuration, FitPadding, pts)
	c.pending = c.sched.After(FloorCheckDelay, func() {
		c.pending = nil
		if c.view.Zoom() < FloorZoom {
			c.view.SetZoom(FloorZoom, FloorDuration)
		}
	})
}

// Reset returns to the backbone framing.
func (c *Controller) Reset() {
	c.FrameBackbone(FrameDuration)
}
