// Package fonts provides the Go font family for raster and SVG rendering.
//
// The TTF data ships with golang.org/x/image, so no font files are needed
// at runtime. Parsed fonts and sized faces are cached after first use.
package fonts

import (
	"encoding/base64"
	"math"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// FontFamily is the CSS font-family name of the embedded font.
const FontFamily = "Go"

// FallbackFontFamily lists fallbacks for viewers that ignore the embedded
// font.
const FallbackFontFamily = `'Go', 'Lato', 'Helvetica Neue', Arial, sans-serif`

var (
	parseOnce  sync.Once
	regular    *truetype.Font
	bold       *truetype.Font
	parseErr   error
	faces      sync.Map // faceKey -> font.Face
	regularB64 string
	boldB64    string
	base64Once sync.Once
)

const (
	minFaceSize  = 1.0
	faceQuantize = 4.0
)

type faceKey struct {
	size float64
	bold bool
}

func parse() error {
	parseOnce.Do(func() {
		regular, parseErr = truetype.Parse(goregular.TTF)
		if parseErr != nil {
			return
		}
		bold, parseErr = truetype.Parse(gobold.TTF)
	})
	return parseErr
}

// Regular returns the parsed regular weight.
func Regular() (*truetype.Font, error) {
	if err := parse(); err != nil {
		return nil, err
	}
	return regular, nil
}

// Bold returns the parsed bold weight.
func Bold() (*truetype.Font, error) {
	if err := parse(); err != nil {
		return nil, err
	}
	return bold, nil
}

// Face returns a face of the given pixel size. Sizes are quantized to a
// quarter pixel so repeated zoom levels share faces.
func Face(size float64, isBold bool) (font.Face, error) {
	if err := parse(); err != nil {
		return nil, err
	}
	size = math.Max(minFaceSize, math.Round(size*faceQuantize)/faceQuantize)
	key := faceKey{size, isBold}
	if f, ok := faces.Load(key); ok {
		return f.(font.Face), nil
	}
	src := regular
	if isBold {
		src = bold
	}
	f := truetype.NewFace(src, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
	actual, _ := faces.LoadOrStore(key, f)
	return actual.(font.Face), nil
}

// RegularTTF returns the regular weight's TTF data.
func RegularTTF() []byte { return goregular.TTF }

// BoldTTF returns the bold weight's TTF data.
func BoldTTF() []byte { return gobold.TTF }

// RegularBase64 returns the regular TTF data as a base64 string.
// The result is cached after first computation.
func RegularBase64() string {
	encodeBase64()
	return regularB64
}

// BoldBase64 returns the bold TTF data as a base64 string.
func BoldBase64() string {
	encodeBase64()
	return boldB64
}

func encodeBase64() {
	base64Once.Do(func() {
		regularB64 = base64.StdEncoding.EncodeToString(goregular.TTF)
		boldB64 = base64.StdEncoding.EncodeToString(gobold.TTF)
	})
}
