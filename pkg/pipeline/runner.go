package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lineage/pkg/cache"
	"github.com/matzehuels/lineage/pkg/camera"
	lerrors "github.com/matzehuels/lineage/pkg/errors"
	"github.com/matzehuels/lineage/pkg/graph"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/observability"
	"github.com/matzehuels/lineage/pkg/render/images"
	"github.com/matzehuels/lineage/pkg/render/nodelink"
	"github.com/matzehuels/lineage/pkg/render/raster"
	"github.com/matzehuels/lineage/pkg/render/svg"
	"github.com/matzehuels/lineage/pkg/sched"
	"github.com/matzehuels/lineage/pkg/session"
	"github.com/matzehuels/lineage/pkg/snapshot"
	"github.com/matzehuels/lineage/pkg/tracer"
)

// Backend is the lineage data source. Node resolves trace targets that are
// not on the main chain.
type Backend interface {
	session.Backend
	Node(ctx context.Context, id string) (lineage.Entry, error)
}

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for its collaborators; each Execute
// builds a fresh viewer, so multiple goroutines can share one Runner.
type Runner struct {
	Backend   Backend
	Cache     cache.Cache
	Keyer     cache.Keyer
	Snapshots snapshot.Store
	Images    *images.Cache
	Logger    *log.Logger
}

// NewRunner creates a runner. A nil cache disables artifact caching and
// snapshots; a nil keyer selects the default key layout.
func NewRunner(b Backend, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{
		Backend:   b,
		Cache:     c,
		Keyer:     keyer,
		Snapshots: snapshot.NewCacheStore(c, keyer),
		Logger:    logger,
	}
}

// Execute runs load → settle → trace → frame → render.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	var manual *sched.Manual
	vopts := session.Options{
		Config: opts.Config,
		Width:  float64(opts.Width),
		Height: float64(opts.Height),
		Seed:   opts.Seed,
		Scheduler: func(l sync.Locker) sched.Scheduler {
			manual = sched.NewManual(l)
			return manual
		},
		Snapshots: r.Snapshots,
		Logger:    opts.Logger,
	}
	if opts.Portraits && r.Images != nil {
		vopts.Images = r.Images
	}
	v := session.NewViewer("pipeline", r.Backend, vopts)
	defer v.Close()

	result := &Result{Artifacts: make(map[string][]byte)}

	// Stage 1: Load
	loadStart := time.Now()
	if err := v.Load(ctx); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Stats.LoadTime = time.Since(loadStart)
	v.Inspect(func(g *lineage.Graph, _ *tracer.Highlight, _ *camera.View) {
		result.BackboneHash = snapshot.Key(g)
	})

	if artifacts, ok := r.cachedArtifacts(ctx, result.BackboneHash, opts); ok {
		result.Artifacts = artifacts
		result.CacheInfo.RenderHit = true
		opts.Logger.Debug("artifacts served from cache", "formats", opts.Formats)
		return result, nil
	}

	// Stage 2: Settle
	result.Stats.SettleTicks = v.Settle()
	manual.Flush()

	// Stage 3: Trace
	if opts.Trace != "" {
		traceStart := time.Now()
		if err := r.trace(ctx, v, opts.Trace); err != nil {
			return nil, fmt.Errorf("trace: %w", err)
		}
		result.Stats.SettleTicks += v.Settle()
		result.Stats.TraceTime = time.Since(traceStart)
	}

	// Stage 4: Frame
	manual.Flush()
	if opts.Era != 0 {
		if err := v.FlyToEra(opts.Era); err != nil {
			return nil, err
		}
		manual.Flush()
	}
	if opts.Zoom > 0 {
		if err := v.SetZoom(opts.Zoom); err != nil {
			return nil, err
		}
	}

	v.Inspect(func(g *lineage.Graph, h *tracer.Highlight, _ *camera.View) {
		result.Stats.NodeCount = g.NodeCount()
		result.Stats.LinkCount = g.LinkCount()
		result.Stats.Highlighted = len(h.Nodes())
	})
	opts.Logger.Info("view settled",
		"nodes", result.Stats.NodeCount,
		"links", result.Stats.LinkCount,
		"ticks", result.Stats.SettleTicks)

	if vopts.Images != nil {
		if err := r.prefetch(ctx, v); err != nil {
			return nil, err
		}
	}

	// Stage 5: Render
	renderStart := time.Now()
	for _, format := range opts.Formats {
		data, err := r.render(ctx, v, format, opts)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		result.Artifacts[format] = data
		key := r.Keyer.ArtifactKey(result.BackboneHash, opts.ArtifactKeyOpts(format))
		if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err == nil {
			observability.Cache().OnCacheSet(ctx, "artifact", len(data))
		}
	}
	result.Stats.RenderTime = time.Since(renderStart)

	opts.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)
	return result, nil
}

// Render is a convenience wrapper that returns a single artifact.
func (r *Runner) Render(ctx context.Context, format string, opts Options) ([]byte, error) {
	opts.Formats = []string{format}
	result, err := r.Execute(ctx, opts)
	if err != nil {
		return nil, err
	}
	return result.Artifacts[format], nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	if r.Images != nil {
		r.Images.Close()
	}
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// cachedArtifacts returns every requested format from the cache, or false
// if any is missing.
func (r *Runner) cachedArtifacts(ctx context.Context, hash string, opts Options) (map[string][]byte, bool) {
	if opts.Refresh {
		return nil, false
	}
	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		key := r.Keyer.ArtifactKey(hash, opts.ArtifactKeyOpts(format))
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil || !hit {
			observability.Cache().OnCacheMiss(ctx, "artifact")
			return nil, false
		}
		observability.Cache().OnCacheHit(ctx, "artifact")
		artifacts[format] = data
	}
	return artifacts, true
}

// trace selects id, fetching it from the backend when the main chain does
// not contain it.
func (r *Runner) trace(ctx context.Context, v *session.Viewer, id string) error {
	err := v.Select(ctx, id)
	if !lerrors.Is(err, lerrors.ErrCodeNodeNotFound) {
		return err
	}
	e, nerr := r.Backend.Node(ctx, id)
	if nerr != nil {
		return lerrors.Wrap(lerrors.ErrCodeNodeNotFound, nerr, "node %q", id)
	}
	return v.SelectEntry(ctx, e)
}

func (r *Runner) prefetch(ctx context.Context, v *session.Viewer) error {
	var urls []string
	v.Inspect(func(g *lineage.Graph, _ *tracer.Highlight, _ *camera.View) {
		for _, n := range g.Nodes() {
			if n.ImageURL != "" {
				urls = append(urls, n.ImageURL)
			}
		}
	})
	return r.Images.Prefetch(ctx, urls)
}

func (r *Runner) render(ctx context.Context, v *session.Viewer, format string, opts Options) (data []byte, err error) {
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, format)
	start := time.Now()
	defer func() { hooks.OnRenderComplete(ctx, format, len(data), time.Since(start), err) }()

	switch format {
	case FormatPNG:
		c := raster.New(opts.Width, opts.Height, raster.WithScale(opts.Scale))
		stats := v.Render(c)
		r.logStats(opts.Logger, format, stats.Nodes, stats.Skipped, stats.ImageErrors)
		return c.PNG()
	case FormatSVG:
		var svgOpts []svg.Option
		if opts.EmbedFonts {
			svgOpts = append(svgOpts, svg.WithEmbeddedFonts())
		}
		c := svg.New(float64(opts.Width), float64(opts.Height), svgOpts...)
		stats := v.Render(c)
		r.logStats(opts.Logger, format, stats.Nodes, stats.Skipped, stats.ImageErrors)
		return c.Bytes(), nil
	case FormatDOT, FormatGraphviz:
		var dot string
		v.Inspect(func(g *lineage.Graph, h *tracer.Highlight, _ *camera.View) {
			dot = nodelink.ToDOT(g, nodelink.Options{Detailed: opts.Detailed, Highlight: h})
		})
		if format == FormatDOT {
			return []byte(dot), nil
		}
		return nodelink.RenderSVG(ctx, dot)
	case FormatJSON:
		return graph.Marshal(v.Export())
	default:
		return nil, lerrors.New(lerrors.ErrCodeUnsupported, "unsupported format %q", format)
	}
}

func (r *Runner) logStats(logger *log.Logger, format string, nodes, skipped, imageErrors int) {
	logger.Debug("frame painted", "format", format, "nodes", nodes, "skipped", skipped, "image_errors", imageErrors)
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
