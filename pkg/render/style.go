package render

import (
	"image/color"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/lineage/pkg/lineage"
)

// Zoom thresholds.
const (
	// AggregateBelow is the zoom under which only the root and era anchors
	// are drawn.
	AggregateBelow = 0.9

	// DenseLabelsAbove is the zoom over which every node gets a name label.
	DenseLabelsAbove = 2.2

	// YearLineAbove is the zoom over which the start year is drawn under
	// the name of eligible nodes.
	YearLineAbove = 2.0

	// TracingMinZoom lifts the effective zoom while a trace is in flight so
	// the detailed mode is used.
	TracingMinZoom = AggregateBelow + 0.01

	// DimmedAlpha is the opacity of nodes outside an active highlight.
	DimmedAlpha = 0.12
)

// Node radii in world units.
const (
	RootRadius      = 20.0
	PrincipalRadius = 12.0
	LostRadius      = 8.0
	DefaultRadius   = 6.0

	aggregateRootRadius   = 28.0
	aggregateAnchorRadius = 20.0
	rootGlyph             = "†"
	lostGlyph             = "?"
	maxLabelSize          = 14.0
	particleCount         = 3
	particleRadius        = 1.0
)

func mustHex(s string) color.NRGBA {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func rgba(r, g, b uint8, a float64) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(a * 255))}
}

// Palette.
var (
	Background = mustHex("#fafaf9")

	traceStart    = colorful.Color{R: 245.0 / 255, G: 158.0 / 255, B: 11.0 / 255}
	traceEnd      = colorful.Color{R: 100.0 / 255, G: 149.0 / 255, B: 237.0 / 255}
	traceFallback = mustHex("#f59e0b")
	accent        = mustHex("#fbbf24")

	rootInner      = mustHex("#fffbeb")
	rootOuter      = mustHex("#f59e0b")
	rootStroke     = mustHex("#d97706")
	rootHalo       = rgba(251, 191, 36, 0.3)
	lostInner      = mustHex("#fee2e2")
	lostOuter      = mustHex("#ef4444")
	recoveredInner = mustHex("#fffdf5")
	principalInner = mustHex("#fafaf9")
	principalOuter = mustHex("#d6d3d1")
	defaultInner   = mustHex("#f5f5f4")
	defaultOuter   = mustHex("#a8a29e")
	defaultStroke  = color.NRGBA{R: 255, G: 255, B: 255, A: 0x88}
	white          = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	anchorFill   = mustHex("#e7e5e4")
	anchorStroke = mustHex("#78716c")
	clusterText  = mustHex("#44403c")

	labelBackdrop = rgba(250, 250, 249, 0.82)
	textLost      = mustHex("#dc2626")
	textStrong    = mustHex("#292524")
	textDefault   = mustHex("#57534e")
	textYear      = mustHex("#78716c")

	linkBroken    = rgba(239, 68, 68, 0.45)
	linkDimmed    = rgba(200, 200, 200, 0.03)
	linkDirect    = rgba(212, 175, 55, 0.7)
	linkInferred  = rgba(148, 163, 184, 0.22)
	linkDefault   = rgba(168, 162, 158, 0.32)
	transparentFG = color.NRGBA{}
)

// TraceColor interpolates from gold at the traced start to slate blue at
// the end of the chain. Nodes without depth get the plain gold.
func TraceColor(depth, maxDepth *int) color.NRGBA {
	if depth == nil || maxDepth == nil || *maxDepth == 0 {
		return traceFallback
	}
	t := math.Min(float64(*depth)/float64(*maxDepth), 1)
	t = math.Max(t, 0)
	r, g, b := traceStart.BlendRgb(traceEnd, t).RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(math.Round(a * 255))
	return c
}

// Radius returns the detailed-mode radius of a node kind in world units.
func Radius(k lineage.Kind) float64 {
	switch k {
	case lineage.KindRoot:
		return RootRadius
	case lineage.KindPrincipal:
		return PrincipalRadius
	case lineage.KindLost:
		return LostRadius
	default:
		return DefaultRadius
	}
}

// LinkStyle is the resolved appearance of one link.
type LinkStyle struct {
	Color     color.NRGBA
	Width     float64
	Curvature float64
	Particles bool
}

// Visible reports whether the link paints anything.
func (s LinkStyle) Visible() bool { return s.Width > 0 && s.Color.A > 0 }

// Highlighter is the read-only view of a highlight the renderer needs.
type Highlighter interface {
	HasNode(id string) bool
	HasLink(a, b string) bool
	Empty() bool
}

// StyleLink picks the appearance of l. source is the link's source node
// and may be nil.
func StyleLink(l lineage.Link, source *lineage.Node, zoom float64, h Highlighter) LinkStyle {
	if zoom < AggregateBelow {
		return LinkStyle{Color: transparentFG}
	}
	var s LinkStyle
	switch {
	case h.HasLink(l.Source, l.Target):
		s.Color = traceFallback
		if source != nil {
			s.Color = TraceColor(source.TraceDepth, source.TraceDepthMax)
		}
		s.Width = 3
		s.Particles = true
	case l.Kind == lineage.LinkBroken || isLostID(l.Source) || isLostID(l.Target):
		s.Color, s.Width = linkBroken, 1.2
	case !h.Empty():
		s.Color, s.Width = linkDimmed, 0.3
	case l.Kind == lineage.LinkDirect:
		s.Color, s.Width = linkDirect, 2
	case l.Kind == lineage.LinkInferred:
		s.Color, s.Width = linkInferred, 0.5
	default:
		s.Color, s.Width = linkDefault, 1
	}
	if l.Kind == lineage.LinkInferred {
		s.Curvature = 0.3
	}
	return s
}

func isLostID(id string) bool { return strings.HasPrefix(id, lineage.LostID("")) }

// nodeFill returns the gradient fill of a node in detailed mode.
func nodeFill(n *lineage.Node, highlighted bool, trace color.NRGBA) (inner, outer color.NRGBA) {
	switch {
	case n.Kind == lineage.KindRoot:
		return rootInner, rootOuter
	case n.Kind == lineage.KindLost:
		return lostInner, lostOuter
	case n.Kind == lineage.KindRecovered && highlighted:
		return recoveredInner, trace
	case n.Kind == lineage.KindPrincipal:
		return principalInner, principalOuter
	default:
		return defaultInner, defaultOuter
	}
}

// =============================================================================
// Roman numerals
// =============================================================================

var romanTable = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// Roman formats n as a roman numeral. Non-positive values yield "".
func Roman(n int) string {
	var b strings.Builder
	for _, r := range romanTable {
		for n >= r.value {
			b.WriteString(r.symbol)
			n -= r.value
		}
	}
	return b.String()
}
