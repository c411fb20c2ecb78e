// Package svg implements [render.Canvas] as SVG markup.
//
// Gradients, blur filters and clip paths are collected into a <defs>
// block; portraits are fitted with imaging and embedded as PNG data URIs
// so the document is self-contained. Text widths are measured with the
// same Go font faces the raster backend uses.
package svg

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"

	"github.com/matzehuels/lineage/pkg/fonts"
	"github.com/matzehuels/lineage/pkg/render"
)

// portraitSize bounds embedded portraits so documents stay small at high
// zoom.
const portraitSize = 256

// Canvas accumulates SVG elements.
type Canvas struct {
	width, height float64
	alpha         float64
	embedFonts    bool

	defs    bytes.Buffer
	body    bytes.Buffer
	nextID  int
	filters map[string]string
}

// Option configures a Canvas.
type Option func(*Canvas)

// WithEmbeddedFonts inlines the Go font family as @font-face rules.
func WithEmbeddedFonts() Option { return func(c *Canvas) { c.embedFonts = true } }

// New returns an empty canvas of the given size.
func New(width, height float64, opts ...Option) *Canvas {
	c := &Canvas{width: width, height: height, alpha: 1, filters: make(map[string]string)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bytes returns the complete SVG document.
func (c *Canvas) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s" width="%.0f" height="%.0f">`+"\n",
		num(c.width), num(c.height), c.width, c.height)
	if c.embedFonts {
		fmt.Fprintf(&buf, "  <style>@font-face { font-family: '%s'; src: url(data:font/ttf;base64,%s); }\n", fonts.FontFamily, fonts.RegularBase64())
		fmt.Fprintf(&buf, "  @font-face { font-family: '%s'; font-weight: bold; src: url(data:font/ttf;base64,%s); }</style>\n", fonts.FontFamily, fonts.BoldBase64())
	}
	if c.defs.Len() > 0 {
		buf.WriteString("  <defs>\n")
		buf.Write(c.defs.Bytes())
		buf.WriteString("  </defs>\n")
	}
	buf.Write(c.body.Bytes())
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// Size implements [render.Canvas].
func (c *Canvas) Size() (float64, float64) { return c.width, c.height }

// Clear implements [render.Canvas]. Elements drawn so far are discarded.
func (c *Canvas) Clear(col color.Color) {
	c.body.Reset()
	c.defs.Reset()
	c.nextID = 0
	clear(c.filters)
	fmt.Fprintf(&c.body, `  <rect width="100%%" height="100%%" fill="%s"%s/>`+"\n", hex(col), opacity(col, 1))
}

// SetAlpha implements [render.Canvas].
func (c *Canvas) SetAlpha(a float64) { c.alpha = math.Max(0, math.Min(1, a)) }

// FillCircle implements [render.Canvas].
func (c *Canvas) FillCircle(x, y, r float64, p render.Paint) {
	if r <= 0 {
		return
	}
	if !p.Gradient() {
		fmt.Fprintf(&c.body, `  <circle cx="%s" cy="%s" r="%s" fill="%s"%s/>`+"\n",
			num(x), num(y), num(r), hex(p.Inner), opacity(p.Inner, c.alpha))
		return
	}
	id := c.id("g")
	fmt.Fprintf(&c.defs, `    <radialGradient id="%s" gradientUnits="userSpaceOnUse" cx="%s" cy="%s" r="%s" fx="%s" fy="%s" fr="%s">`+"\n",
		id, num(x), num(y), num(r), num(x+p.FocusX), num(y+p.FocusY), num(p.FocusRadius))
	fmt.Fprintf(&c.defs, `      <stop offset="0" stop-color="%s"%s/>`+"\n", hex(p.Inner), stopOpacity(p.Inner))
	fmt.Fprintf(&c.defs, `      <stop offset="1" stop-color="%s"%s/>`+"\n", hex(p.Outer), stopOpacity(p.Outer))
	c.defs.WriteString("    </radialGradient>\n")
	fmt.Fprintf(&c.body, `  <circle cx="%s" cy="%s" r="%s" fill="url(#%s)"%s/>`+"\n",
		num(x), num(y), num(r), id, opacity(nil, c.alpha))
}

// StrokeCircle implements [render.Canvas].
func (c *Canvas) StrokeCircle(x, y, r float64, col color.Color, width float64) {
	if r <= 0 || width <= 0 {
		return
	}
	fmt.Fprintf(&c.body, `  <circle cx="%s" cy="%s" r="%s" fill="none" stroke="%s" stroke-width="%s"%s/>`+"\n",
		num(x), num(y), num(r), hex(col), num(width), strokeOpacity(col, c.alpha))
}

// Halo implements [render.Canvas].
func (c *Canvas) Halo(x, y, r float64, col color.Color, blur float64) {
	if r <= 0 {
		return
	}
	filter := ""
	if blur > 0 {
		filter = fmt.Sprintf(` filter="url(#%s)"`, c.blurFilter(blur))
	}
	fmt.Fprintf(&c.body, `  <circle cx="%s" cy="%s" r="%s" fill="%s"%s%s/>`+"\n",
		num(x), num(y), num(r), hex(col), opacity(col, c.alpha), filter)
}

// Line implements [render.Canvas].
func (c *Canvas) Line(x1, y1, x2, y2 float64, col color.Color, width float64) {
	fmt.Fprintf(&c.body, `  <line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s"%s/>`+"\n",
		num(x1), num(y1), num(x2), num(y2), hex(col), num(width), strokeOpacity(col, c.alpha))
}

// Curve implements [render.Canvas].
func (c *Canvas) Curve(x1, y1, cx, cy, x2, y2 float64, col color.Color, width float64) {
	fmt.Fprintf(&c.body, `  <path d="M%s,%s Q%s,%s %s,%s" fill="none" stroke="%s" stroke-width="%s"%s/>`+"\n",
		num(x1), num(y1), num(cx), num(cy), num(x2), num(y2), hex(col), num(width), strokeOpacity(col, c.alpha))
}

// DrawImage implements [render.Canvas].
func (c *Canvas) DrawImage(img image.Image, x, y, r float64) error {
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("svg: empty image")
	}
	if r <= 0 {
		return fmt.Errorf("svg: circle too small for image")
	}
	d := min(portraitSize, int(math.Ceil(2*r)))
	fitted := imaging.Fill(img, d, d, imaging.Center, imaging.Lanczos)
	var data bytes.Buffer
	if err := png.Encode(&data, fitted); err != nil {
		return fmt.Errorf("svg: encode portrait: %w", err)
	}

	id := c.id("clip")
	fmt.Fprintf(&c.defs, `    <clipPath id="%s"><circle cx="%s" cy="%s" r="%s"/></clipPath>`+"\n", id, num(x), num(y), num(r))
	fmt.Fprintf(&c.body, `  <image x="%s" y="%s" width="%s" height="%s" clip-path="url(#%s)"%s href="data:image/png;base64,%s"/>`+"\n",
		num(x-r), num(y-r), num(2*r), num(2*r), id, opacity(nil, c.alpha),
		base64.StdEncoding.EncodeToString(data.Bytes()))
	return nil
}

// FillRect implements [render.Canvas].
func (c *Canvas) FillRect(x, y, w, h float64, col color.Color) {
	fmt.Fprintf(&c.body, `  <rect x="%s" y="%s" width="%s" height="%s" fill="%s"%s/>`+"\n",
		num(x), num(y), num(w), num(h), hex(col), opacity(col, c.alpha))
}

// MeasureText implements [render.Canvas].
func (c *Canvas) MeasureText(s string, size float64, bold bool) float64 {
	face, err := fonts.Face(size, bold)
	if err != nil {
		return float64(len(s)) * size * 0.55
	}
	return float64(font.MeasureString(face, s)) / 64
}

// Text implements [render.Canvas].
func (c *Canvas) Text(s string, x, y, size float64, col color.Color, bold bool, baseline render.Baseline) {
	if s == "" || size <= 0 {
		return
	}
	anchor := "hanging"
	if baseline == render.MiddleBaseline {
		anchor = "central"
	}
	weight := ""
	if bold {
		weight = ` font-weight="bold"`
	}
	fmt.Fprintf(&c.body, `  <text x="%s" y="%s" font-family="%s" font-size="%s"%s text-anchor="middle" dominant-baseline="%s" fill="%s"%s>%s</text>`+"\n",
		num(x), num(y), escape(fonts.FallbackFontFamily), num(size), weight, anchor, hex(col), opacity(col, c.alpha), escape(s))
}

func (c *Canvas) id(prefix string) string {
	c.nextID++
	return prefix + strconv.Itoa(c.nextID)
}

func (c *Canvas) blurFilter(blur float64) string {
	key := num(blur)
	if id, ok := c.filters[key]; ok {
		return id
	}
	id := c.id("blur")
	c.filters[key] = id
	fmt.Fprintf(&c.defs, `    <filter id="%s" x="-100%%" y="-100%%" width="300%%" height="300%%"><feGaussianBlur stdDeviation="%s"/></filter>`+"\n",
		id, num(blur/2))
	return id
}

// =============================================================================
// Formatting
// =============================================================================

func num(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func hex(col color.Color) string {
	if col == nil {
		return "none"
	}
	n := color.NRGBAModel.Convert(col).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

func colorAlpha(col color.Color) float64 {
	if col == nil {
		return 1
	}
	return float64(color.NRGBAModel.Convert(col).(color.NRGBA).A) / 255
}

func opacity(col color.Color, alpha float64) string {
	if a := colorAlpha(col) * alpha; a < 1 {
		return fmt.Sprintf(` opacity="%.3f"`, a)
	}
	return ""
}

func strokeOpacity(col color.Color, alpha float64) string {
	if a := colorAlpha(col) * alpha; a < 1 {
		return fmt.Sprintf(` stroke-opacity="%.3f"`, a)
	}
	return ""
}

func stopOpacity(col color.Color) string {
	if a := colorAlpha(col); a < 1 {
		return fmt.Sprintf(` stop-opacity="%.3f"`, a)
	}
	return ""
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

var _ render.Canvas = (*Canvas)(nil)
