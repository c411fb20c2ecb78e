package render

import (
	"image"
	"image/color"
)

// Canvas is a 2D drawing surface addressed in screen pixels.
//
// Implementations must tolerate any finite input; the frame painter never
// passes NaN or infinite coordinates.
type Canvas interface {
	// Size returns the surface size in pixels.
	Size() (width, height float64)

	// Clear fills the whole surface.
	Clear(c color.Color)

	// SetAlpha sets the opacity multiplier for subsequent draws.
	SetAlpha(a float64)

	// FillCircle fills a circle with a solid colour or a radial gradient.
	FillCircle(x, y, r float64, p Paint)

	// StrokeCircle outlines a circle.
	StrokeCircle(x, y, r float64, c color.Color, width float64)

	// Halo draws a filled circle with a soft glow of the given blur radius.
	Halo(x, y, r float64, c color.Color, blur float64)

	// Line draws a straight segment.
	Line(x1, y1, x2, y2 float64, c color.Color, width float64)

	// Curve draws a quadratic Bézier segment through control point (cx, cy).
	Curve(x1, y1, cx, cy, x2, y2 float64, c color.Color, width float64)

	// DrawImage blits img scaled into the circle at (x, y) with radius r,
	// clipped to the circle.
	DrawImage(img image.Image, x, y, r float64) error

	// FillRect fills an axis-aligned rectangle.
	FillRect(x, y, w, h float64, c color.Color)

	// MeasureText returns the advance width of s at the given pixel size.
	MeasureText(s string, size float64, bold bool) float64

	// Text draws s horizontally centred on x. With TopBaseline the glyphs
	// hang below y, with MiddleBaseline they are vertically centred on it.
	Text(s string, x, y, size float64, c color.Color, bold bool, baseline Baseline)
}

// Baseline selects the vertical anchor of drawn text.
type Baseline int

const (
	TopBaseline Baseline = iota
	MiddleBaseline
)

// Paint is a fill: a solid colour when Outer is nil, otherwise a radial
// gradient from Inner at the focus to Outer at the rim.
type Paint struct {
	Inner color.Color
	Outer color.Color

	// Focus is the gradient's inner circle centre, relative to the circle
	// centre, and FocusRadius its radius.
	FocusX, FocusY float64
	FocusRadius    float64
}

// Solid returns a single-colour paint.
func Solid(c color.Color) Paint { return Paint{Inner: c} }

// Gradient reports whether p is a radial gradient.
func (p Paint) Gradient() bool { return p.Outer != nil }

// ImageSource resolves node portraits. Image returns nil until the image
// for url is fully loaded with a nonzero size.
type ImageSource interface {
	Image(url string) image.Image
}
