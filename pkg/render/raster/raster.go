// Package raster implements [render.Canvas] on an in-memory RGBA image.
//
// Drawing uses fogleman/gg, text is set with freetype faces from
// [fonts], and portraits are cropped to their circle with
// disintegration/imaging. gg has no compositing alpha or blur, so the
// canvas folds the current alpha into every colour and approximates blur
// with concentric translucent rings.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/matzehuels/lineage/pkg/fonts"
	"github.com/matzehuels/lineage/pkg/render"
)

const haloRings = 6

// Canvas is a raster drawing surface.
type Canvas struct {
	dc    *gg.Context
	alpha float64
	scale float64
}

// Option configures a Canvas.
type Option func(*Canvas)

// WithScale renders at a pixel density multiple (2 for retina output).
// Coordinates stay in logical pixels.
func WithScale(s float64) Option {
	return func(c *Canvas) {
		if s > 0 {
			c.scale = s
		}
	}
}

// New returns a transparent canvas of the given logical size.
func New(width, height int, opts ...Option) *Canvas {
	c := &Canvas{alpha: 1, scale: 1}
	for _, opt := range opts {
		opt(c)
	}
	c.dc = gg.NewContext(int(math.Ceil(float64(width)*c.scale)), int(math.Ceil(float64(height)*c.scale)))
	c.dc.Scale(c.scale, c.scale)
	return c
}

// Image returns the rendered image.
func (c *Canvas) Image() image.Image { return c.dc.Image() }

// EncodePNG writes the image as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error { return c.dc.EncodePNG(w) }

// PNG returns the image as PNG bytes.
func (c *Canvas) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Size implements [render.Canvas].
func (c *Canvas) Size() (float64, float64) {
	return float64(c.dc.Width()) / c.scale, float64(c.dc.Height()) / c.scale
}

// Clear implements [render.Canvas].
func (c *Canvas) Clear(col color.Color) {
	c.dc.SetColor(col)
	c.dc.Clear()
}

// SetAlpha implements [render.Canvas].
func (c *Canvas) SetAlpha(a float64) { c.alpha = math.Max(0, math.Min(1, a)) }

// FillCircle implements [render.Canvas].
func (c *Canvas) FillCircle(x, y, r float64, p render.Paint) {
	if r <= 0 {
		return
	}
	c.dc.DrawCircle(x, y, r)
	if p.Gradient() {
		g := gg.NewRadialGradient(x+p.FocusX, y+p.FocusY, p.FocusRadius, x, y, r)
		g.AddColorStop(0, c.fade(p.Inner))
		g.AddColorStop(1, c.fade(p.Outer))
		c.dc.SetFillStyle(g)
	} else {
		c.dc.SetColor(c.fade(p.Inner))
	}
	c.dc.Fill()
}

// StrokeCircle implements [render.Canvas].
func (c *Canvas) StrokeCircle(x, y, r float64, col color.Color, width float64) {
	if r <= 0 || width <= 0 {
		return
	}
	c.dc.DrawCircle(x, y, r)
	c.dc.SetColor(c.fade(col))
	c.dc.SetLineWidth(width)
	c.dc.Stroke()
}

// Halo implements [render.Canvas].
func (c *Canvas) Halo(x, y, r float64, col color.Color, blur float64) {
	if r <= 0 {
		return
	}
	base := color.NRGBAModel.Convert(c.fade(col)).(color.NRGBA)
	for i := haloRings; i >= 1; i-- {
		t := float64(i) / haloRings
		ring := base
		ring.A = uint8(float64(base.A) * (1 - t) * 0.5)
		c.dc.DrawCircle(x, y, r+blur*t*0.5)
		c.dc.SetColor(ring)
		c.dc.Fill()
	}
	c.dc.DrawCircle(x, y, r)
	c.dc.SetColor(base)
	c.dc.Fill()
}

// Line implements [render.Canvas].
func (c *Canvas) Line(x1, y1, x2, y2 float64, col color.Color, width float64) {
	c.dc.DrawLine(x1, y1, x2, y2)
	c.dc.SetColor(c.fade(col))
	c.dc.SetLineWidth(width)
	c.dc.Stroke()
}

// Curve implements [render.Canvas].
func (c *Canvas) Curve(x1, y1, cx, cy, x2, y2 float64, col color.Color, width float64) {
	c.dc.NewSubPath()
	c.dc.MoveTo(x1, y1)
	c.dc.QuadraticTo(cx, cy, x2, y2)
	c.dc.SetColor(c.fade(col))
	c.dc.SetLineWidth(width)
	c.dc.Stroke()
}

// DrawImage implements [render.Canvas]. The image is centre-cropped to a
// square of the circle's diameter in device pixels.
func (c *Canvas) DrawImage(img image.Image, x, y, r float64) error {
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("raster: empty image")
	}
	d := int(math.Round(2 * r * c.scale))
	if d <= 0 {
		return fmt.Errorf("raster: circle too small for image")
	}
	fitted := imaging.Fill(img, d, d, imaging.Center, imaging.Lanczos)
	if c.alpha < 1 {
		faded := image.NewNRGBA(fitted.Bounds())
		mask := image.NewUniform(color.Alpha{A: uint8(c.alpha * 255)})
		draw.DrawMask(faded, faded.Bounds(), fitted, image.Point{}, mask, image.Point{}, draw.Over)
		fitted = faded
	}

	c.dc.Push()
	defer c.dc.Pop()
	c.dc.DrawCircle(x, y, r)
	c.dc.Clip()
	// Draw in device space so the fitted pixels are not resampled again.
	c.dc.Identity()
	c.dc.DrawImage(fitted, int(math.Round((x-r)*c.scale)), int(math.Round((y-r)*c.scale)))
	c.dc.ResetClip()
	return nil
}

// FillRect implements [render.Canvas].
func (c *Canvas) FillRect(x, y, w, h float64, col color.Color) {
	c.dc.DrawRectangle(x, y, w, h)
	c.dc.SetColor(c.fade(col))
	c.dc.Fill()
}

// MeasureText implements [render.Canvas].
func (c *Canvas) MeasureText(s string, size float64, bold bool) float64 {
	if !c.setFont(size, bold) {
		return float64(len(s)) * size * 0.55
	}
	w, _ := c.dc.MeasureString(s)
	return w
}

// Text implements [render.Canvas].
func (c *Canvas) Text(s string, x, y, size float64, col color.Color, bold bool, baseline render.Baseline) {
	if s == "" || !c.setFont(size, bold) {
		return
	}
	c.dc.SetColor(c.fade(col))
	ay := 1.0
	if baseline == render.MiddleBaseline {
		ay = 0.5
	}
	c.dc.DrawStringAnchored(s, x, y, 0.5, ay)
}

// setFont selects a face of the given logical size; gg scales glyphs with
// the context matrix.
func (c *Canvas) setFont(size float64, bold bool) bool {
	if size <= 0 {
		return false
	}
	face, err := fonts.Face(size, bold)
	if err != nil {
		return false
	}
	c.dc.SetFontFace(face)
	return true
}

func (c *Canvas) fade(col color.Color) color.Color {
	if col == nil {
		return color.Transparent
	}
	if c.alpha >= 1 {
		return col
	}
	n := color.NRGBAModel.Convert(col).(color.NRGBA)
	n.A = uint8(float64(n.A) * c.alpha)
	return n
}

var _ render.Canvas = (*Canvas)(nil)
