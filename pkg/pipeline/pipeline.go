// Package pipeline renders lineage views headlessly.
//
// A [Runner] drives the same [session.Viewer] the HTTP server hosts, but on
// a manual scheduler so timed camera moves and reframes complete
// synchronously:
//
//  1. Load: fetch the main chain and pre-position from a snapshot
//  2. Settle: run the simulation until it cools
//  3. Trace: optionally select a node and merge its ancestry
//  4. Frame: flush scheduled camera work, fly to an era, apply a zoom
//  5. Render: produce one artifact per requested format
//
// Artifacts are cached by the backbone hash and the frame options, so
// repeated renders of an unchanged lineage skip every stage after Load.
//
//	runner := pipeline.NewRunner(client, c, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Formats: []string{pipeline.FormatPNG},
//	    Trace:   "abc123",
//	})
//	png := result.Artifacts[pipeline.FormatPNG]
package pipeline

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lineage/pkg/cache"
	lerrors "github.com/matzehuels/lineage/pkg/errors"
	"github.com/matzehuels/lineage/pkg/lineage"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultWidth is the default frame width in pixels.
	DefaultWidth = 1280

	// DefaultHeight is the default frame height in pixels.
	DefaultHeight = 800

	// DefaultScale is the default device pixel ratio for PNG output.
	DefaultScale = 1.0

	// DefaultSeed makes repeated renders of the same lineage identical.
	DefaultSeed = int64(42)

	// MaxFrameSize bounds either frame dimension.
	MaxFrameSize = 8192
)

// Format constants for output formats.
const (
	FormatPNG      = "png"
	FormatSVG      = "svg"
	FormatDOT      = "dot"
	FormatGraphviz = "graphviz"
	FormatJSON     = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatPNG:      true,
	FormatSVG:      true,
	FormatDOT:      true,
	FormatGraphviz: true,
	FormatJSON:     true,
}

// Extension returns the file extension for a format.
func Extension(format string) string {
	if format == FormatGraphviz {
		return "graphviz.svg"
	}
	return format
}

// =============================================================================
// Options
// =============================================================================

// Options configures one pipeline run.
type Options struct {
	Config lineage.Config `json:"-"`

	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Scale  float64 `json:"scale,omitempty"`
	Seed   int64   `json:"seed,omitempty"`

	// Trace selects a node whose ancestry is highlighted.
	Trace string `json:"trace,omitempty"`
	// Era flies the camera to an era anchor after framing. Zero skips it.
	Era int `json:"era,omitempty"`
	// Zoom overrides the final camera scale. Zero keeps the computed one.
	Zoom float64 `json:"zoom,omitempty"`

	Formats    []string `json:"formats,omitempty"`
	Detailed   bool     `json:"detailed,omitempty"`
	EmbedFonts bool     `json:"embed_fonts,omitempty"`
	Portraits  bool     `json:"portraits,omitempty"`
	Refresh    bool     `json:"refresh,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults fills zero values and rejects invalid options.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if err := lerrors.ValidateFrameSize(o.Width, o.Height); err != nil {
		return err
	}
	if o.Width > MaxFrameSize || o.Height > MaxFrameSize {
		return lerrors.New(lerrors.ErrCodeInvalidInput, "frame size %dx%d exceeds %d", o.Width, o.Height, MaxFrameSize)
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.Scale < 0 || o.Scale > 4 {
		return lerrors.New(lerrors.ErrCodeInvalidInput, "scale must be in (0, 4], got %v", o.Scale)
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Zoom < 0 {
		return lerrors.New(lerrors.ErrCodeInvalidInput, "zoom must be positive")
	}
	if o.Trace != "" {
		if err := lerrors.ValidateNodeID(o.Trace); err != nil {
			return err
		}
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatPNG}
	}
	for _, f := range o.Formats {
		if !ValidFormats[f] {
			return lerrors.New(lerrors.ErrCodeUnsupported, "unsupported format %q", f)
		}
	}
	o.Formats = slices.Compact(slices.Sorted(slices.Values(o.Formats)))
	o.validated = true
	return nil
}

// ArtifactKeyOpts returns the cache key options for one format.
func (o Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format: fmt.Sprintf("%s@%vx:%t:%t:%t:%d", format, o.Scale, o.Detailed, o.EmbedFonts, o.Portraits, o.Seed),
		Width:  o.Width,
		Height: o.Height,
		Zoom:   o.Zoom,
		Trace:  o.Trace,
		Era:    o.Era,
	}
}

// =============================================================================
// Result
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// BackboneHash identifies the main chain the view was built from.
	BackboneHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount   int
	LinkCount   int
	Highlighted int
	SettleTicks int
	LoadTime    time.Duration
	TraceTime   time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	RenderHit bool
}
