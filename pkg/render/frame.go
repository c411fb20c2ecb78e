package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lineage/pkg/camera"
	"github.com/matzehuels/lineage/pkg/lineage"
)

// EffectiveZoom returns the zoom used to pick the detail level. While a
// trace is in flight the zoom is lifted so the detailed mode is used.
func EffectiveZoom(zoom float64, tracing bool) float64 {
	if tracing {
		return math.Max(zoom, TracingMinZoom)
	}
	return zoom
}

// Frame paints one view of a graph. The painter only reads node positions.
type Frame struct {
	Graph *lineage.Graph
	View  *camera.View

	// Highlight is the published trace highlight. Nil means none.
	Highlight Highlighter

	// Images resolves portraits. Nil draws gradients only.
	Images ImageSource

	// Tracing reports that a trace request is in flight.
	Tracing bool

	// Phase in [0, 1) positions the particles on highlighted links.
	Phase float64

	Logger *log.Logger
}

// Stats summarizes what a Draw call painted.
type Stats struct {
	Aggregated  bool
	Nodes       int
	Links       int
	Skipped     int
	Images      int
	ImageErrors int
}

type noHighlight struct{}

func (noHighlight) HasNode(string) bool         { return false }
func (noHighlight) HasLink(string, string) bool { return false }
func (noHighlight) Empty() bool                 { return true }

// painter carries the per-draw state.
type painter struct {
	f      *Frame
	c      Canvas
	view   camera.View
	h      Highlighter
	zoom   float64
	scale  float64
	logger *log.Logger
	stats  Stats
}

// Draw clears c and paints links then nodes. Nodes or links with a
// non-finite position are skipped.
func (f *Frame) Draw(c Canvas) Stats {
	p := &painter{f: f, c: c, h: f.Highlight, logger: f.Logger}
	if p.h == nil {
		p.h = noHighlight{}
	}
	if p.logger == nil {
		p.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if f.View != nil {
		p.view = *f.View
		p.view.Resize(c.Size())
	} else {
		p.view = *camera.NewView(c.Size())
	}
	p.scale = p.view.Zoom()
	p.zoom = EffectiveZoom(p.scale, f.Tracing)
	p.stats.Aggregated = p.zoom < AggregateBelow

	c.Clear(Background)
	c.SetAlpha(1)
	if f.Graph == nil {
		return p.stats
	}
	p.links()
	for _, n := range f.Graph.Nodes() {
		if !n.Body.Finite() {
			p.stats.Skipped++
			continue
		}
		if p.stats.Aggregated {
			p.aggregateNode(n)
		} else {
			p.node(n)
		}
	}
	c.SetAlpha(1)
	return p.stats
}

func (p *painter) screen(n *lineage.Node) (float64, float64) {
	return p.view.ToScreen(n.Body.X, n.Body.Y)
}

// =============================================================================
// Links
// =============================================================================

func (p *painter) links() {
	g := p.f.Graph
	for _, l := range g.Links() {
		src, dst := g.Node(l.Source), g.Node(l.Target)
		if src == nil || dst == nil {
			continue
		}
		if !src.Body.Finite() || !dst.Body.Finite() {
			p.stats.Skipped++
			continue
		}
		s := StyleLink(l, src, p.zoom, p.h)
		if !s.Visible() {
			continue
		}
		x1, y1 := p.screen(src)
		x2, y2 := p.screen(dst)
		if s.Curvature == 0 {
			p.c.Line(x1, y1, x2, y2, s.Color, s.Width)
		} else {
			cx, cy := controlPoint(x1, y1, x2, y2, s.Curvature)
			p.c.Curve(x1, y1, cx, cy, x2, y2, s.Color, s.Width)
		}
		if s.Particles {
			p.particles(x1, y1, x2, y2, s.Curvature)
		}
		p.stats.Links++
	}
}

// controlPoint offsets the segment midpoint perpendicular to it by
// curvature times the segment length.
func controlPoint(x1, y1, x2, y2, curvature float64) (float64, float64) {
	dx, dy := x2-x1, y2-y1
	d := math.Hypot(dx, dy) * curvature
	a := math.Atan2(dy, dx) - math.Pi/2
	return (x1+x2)/2 + d*math.Cos(a), (y1+y2)/2 + d*math.Sin(a)
}

func (p *painter) particles(x1, y1, x2, y2, curvature float64) {
	cx, cy := controlPoint(x1, y1, x2, y2, curvature)
	for i := 0; i < particleCount; i++ {
		t := math.Mod(p.f.Phase+float64(i)/particleCount, 1)
		if t < 0 {
			t++
		}
		u := 1 - t
		x := u*u*x1 + 2*u*t*cx + t*t*x2
		y := u*u*y1 + 2*u*t*cy + t*t*y2
		p.c.FillCircle(x, y, particleRadius, Solid(accent))
	}
}

// =============================================================================
// Nodes
// =============================================================================

func (p *painter) aggregateNode(n *lineage.Node) {
	isRoot := n.Kind == lineage.KindRoot
	if !isRoot && !n.EraAnchor {
		return
	}
	x, y := p.screen(n)
	k := p.scale
	if isRoot {
		r := aggregateRootRadius * k
		p.c.Halo(x, y, r, accent, 25)
		p.c.FillCircle(x, y, r, Solid(rootInner))
		p.c.StrokeCircle(x, y, r, rootStroke, 2)
		p.c.Text(rootGlyph, x, y+k, 14*k, clusterText, true, MiddleBaseline)
	} else {
		r := aggregateAnchorRadius * k
		p.c.FillCircle(x, y, r, Solid(anchorFill))
		p.c.StrokeCircle(x, y, r, anchorStroke, 1)
		p.c.Text(Roman(n.Era), x, y+k, 10*k, clusterText, false, MiddleBaseline)
	}
	p.stats.Nodes++
}

func (p *painter) node(n *lineage.Node) {
	k := p.scale
	x, y := p.screen(n)
	r := Radius(n.Kind) * k
	isRoot := n.Kind == lineage.KindRoot
	highlighted := p.h.HasNode(n.ID)

	alpha := 1.0
	if !p.h.Empty() && !highlighted {
		alpha = DimmedAlpha
	}
	p.c.SetAlpha(alpha)
	defer p.c.SetAlpha(1)

	trace := accent
	if highlighted {
		trace = TraceColor(n.TraceDepth, n.TraceDepthMax)
	}

	switch {
	case isRoot:
		p.c.Halo(x, y, r+8*k, rootHalo, 24)
	case highlighted:
		p.c.Halo(x, y, r+5*k, withAlpha(trace, 0.22), 18)
	}

	if !p.portrait(n, x, y, r) {
		inner, outer := nodeFill(n, highlighted, trace)
		p.c.FillCircle(x, y, r, Paint{
			Inner:       inner,
			Outer:       outer,
			FocusX:      -r / 3,
			FocusY:      -r / 3,
			FocusRadius: r * 0.2,
		})
		if n.Kind == lineage.KindLost {
			p.c.Text(lostGlyph, x, y, r, white, true, MiddleBaseline)
		}
	}

	switch {
	case highlighted:
		p.c.StrokeCircle(x, y, r, trace, 2.5)
	case isRoot:
		p.c.StrokeCircle(x, y, r, rootStroke, 1.5)
	default:
		p.c.StrokeCircle(x, y, r, defaultStroke, 1.5)
	}

	p.label(n, x, y, r, highlighted, trace)
	p.stats.Nodes++
}

// portrait blits the node's image if one is loaded. It reports whether the
// circle was filled.
func (p *painter) portrait(n *lineage.Node, x, y, r float64) bool {
	if p.f.Images == nil || n.ImageURL == "" {
		return false
	}
	img := p.f.Images.Image(n.ImageURL)
	if img == nil || img.Bounds().Empty() {
		return false
	}
	if err := p.blit(img, x, y, r); err != nil {
		p.stats.ImageErrors++
		p.logger.Debug("portrait blit failed", "node", n.ID, "err", err)
		return false
	}
	p.stats.Images++
	return true
}

func (p *painter) blit(img image.Image, x, y, r float64) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("blit panicked: %v", v)
		}
	}()
	return p.c.DrawImage(img, x, y, r)
}

func (p *painter) label(n *lineage.Node, x, y, r float64, highlighted bool, trace color.NRGBA) {
	k := p.scale
	isRoot := n.Kind == lineage.KindRoot
	isPrincipal := n.Kind == lineage.KindPrincipal
	isLost := n.Kind == lineage.KindLost
	if !(isRoot || isPrincipal || highlighted || isLost || k > DenseLabelsAbove) {
		return
	}

	size := math.Min(maxLabelSize, maxLabelSize*k)
	top := y + r + 4
	strong := isRoot || highlighted
	nameColor := textDefault
	switch {
	case isLost:
		nameColor = textLost
	case strong:
		nameColor = textStrong
	}

	w := p.c.MeasureText(n.Name, size, strong)
	pad := size * 0.3
	p.c.FillRect(x-w/2-pad, top-pad*0.5, w+pad*2, size+pad, labelBackdrop)
	p.c.Text(n.Name, x, top, size, nameColor, strong, TopBaseline)

	eligible := isPrincipal || isRoot || (n.Kind == lineage.KindRecovered && highlighted)
	if n.Year == nil || k <= YearLineAbove || !eligible {
		return
	}
	yearColor := textYear
	if highlighted {
		yearColor = withAlpha(trace, 0.8)
	}
	p.c.Text(fmt.Sprintf("%d AD", *n.Year), x, top+size+2, size*0.8, yearColor, false, TopBaseline)
}
