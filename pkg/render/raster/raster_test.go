package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/matzehuels/lineage/pkg/camera"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/render"
)

func TestCanvasSize(t *testing.T) {
	c := New(320, 200, WithScale(2))
	w, h := c.Size()
	if w != 320 || h != 200 {
		t.Errorf("Size() = %vx%v, want 320x200", w, h)
	}
	if b := c.Image().Bounds(); b.Dx() != 640 || b.Dy() != 400 {
		t.Errorf("device size = %v", b)
	}
}

func TestClearAndFill(t *testing.T) {
	c := New(40, 40)
	c.Clear(render.Background)
	c.FillCircle(20, 20, 10, render.Solid(color.NRGBA{R: 255, A: 255}))

	img := c.Image()
	if got := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA); got != render.Background {
		t.Errorf("corner = %v, want background", got)
	}
	if got := color.NRGBAModel.Convert(img.At(20, 20)).(color.NRGBA); got.R != 255 || got.G != 0 {
		t.Errorf("centre = %v, want red", got)
	}
}

func TestAlphaFadesFill(t *testing.T) {
	c := New(40, 40)
	c.Clear(color.White)
	c.SetAlpha(0.12)
	c.FillCircle(20, 20, 10, render.Solid(color.Black))
	got := color.NRGBAModel.Convert(c.Image().At(20, 20)).(color.NRGBA)
	if got.R < 200 {
		t.Errorf("faded fill too dark: %v", got)
	}
}

func TestDrawImageClipsToCircle(t *testing.T) {
	c := New(40, 40)
	c.Clear(color.White)
	src := image.NewUniform(color.NRGBA{B: 255, A: 255})
	img := image.NewNRGBA(image.Rect(0, 0, 30, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 30; x++ {
			img.Set(x, y, src.C)
		}
	}
	if err := c.DrawImage(img, 20, 20, 10); err != nil {
		t.Fatal(err)
	}
	center := color.NRGBAModel.Convert(c.Image().At(20, 20)).(color.NRGBA)
	corner := color.NRGBAModel.Convert(c.Image().At(11, 11)).(color.NRGBA)
	if center.B != 255 || center.R != 0 {
		t.Errorf("centre = %v, want blue", center)
	}
	if corner.R != 255 {
		t.Errorf("corner outside the circle = %v, want white", corner)
	}
	if err := c.DrawImage(image.NewNRGBA(image.Rect(0, 0, 0, 0)), 20, 20, 10); err == nil {
		t.Error("empty image should fail")
	}
}

func TestTextMeasure(t *testing.T) {
	c := New(100, 40)
	short := c.MeasureText("ab", 14, false)
	long := c.MeasureText("abcdef", 14, false)
	if short <= 0 || long <= short {
		t.Errorf("widths %v, %v", short, long)
	}
	c.Text("ok", 50, 20, 14, color.Black, true, render.MiddleBaseline)
}

func TestRenderFramePNG(t *testing.T) {
	g := lineage.NewGraph(lineage.Config{Root: lineage.RootSpec{ID: "R", Name: "Root", Year: 33}})
	view := camera.NewView(200, 120)
	view.SetZoom(2, 0)

	c := New(200, 120)
	stats := (&render.Frame{Graph: g, View: view}).Draw(c)
	if stats.Nodes != 1 {
		t.Fatalf("nodes = %d", stats.Nodes)
	}
	data, err := c.PNG()
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 120 {
		t.Errorf("bounds = %v", b)
	}
}
