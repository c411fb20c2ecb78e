// Package session hosts interactive lineage views.
//
// A [Viewer] owns one graph, its force simulation, the tracer, the camera
// and a scheduler. Every operation and every scheduled callback runs
// under the viewer's mutex, so the view behaves like a single cooperative
// event loop. Backend calls are made outside the lock; their results are
// applied once the lock is reacquired, and a response that arrives after
// a newer selection is merged without being published.
//
// A [Manager] keeps viewers by id for the HTTP server and expires idle ones.
package session

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	lerrors "github.com/matzehuels/lineage/pkg/errors"
	"github.com/matzehuels/lineage/pkg/camera"
	"github.com/matzehuels/lineage/pkg/graph"
	"github.com/matzehuels/lineage/pkg/layout"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/observability"
	"github.com/matzehuels/lineage/pkg/render"
	"github.com/matzehuels/lineage/pkg/sched"
	"github.com/matzehuels/lineage/pkg/sim"
	"github.com/matzehuels/lineage/pkg/snapshot"
	"github.com/matzehuels/lineage/pkg/tracer"
)

// Viewer defaults.
const (
	DefaultWidth  = 1280
	DefaultHeight = 800

	// ParticleSpeed is the phase advance of link particles per tick.
	ParticleSpeed = 0.01

	snapshotTimeout = 10 * time.Second
)

// Backend supplies the backbone and ancestry chains.
type Backend interface {
	MainChain(ctx context.Context) ([]lineage.Entry, error)
	Trace(ctx context.Context, id string) ([]lineage.Entry, error)
}

// Options configures a Viewer.
type Options struct {
	Config        lineage.Config
	Width, Height float64
	Seed          int64

	// Scheduler builds the viewer's scheduler around its lock. Defaults
	// to wall-clock timers.
	Scheduler func(sync.Locker) sched.Scheduler

	// FrameDelay is the wait before the initial camera frame.
	FrameDelay    time.Duration
	WarmupTicks   int
	CooldownTicks int

	Snapshots snapshot.Store
	Images    render.ImageSource
	Logger    *log.Logger
}

// Viewer is one interactive lineage view.
type Viewer struct {
	mu sync.Mutex

	id        string
	backend   Backend
	graph     *lineage.Graph
	sim       *sim.Simulation
	tracer    *tracer.Tracer
	view      *camera.View
	cam       *camera.Controller
	sched     sched.Scheduler
	snapshots snapshot.Store
	images    render.ImageSource
	logger    *log.Logger

	frameDelay time.Duration
	warmup     int
	cooldown   int

	phase    float64
	loaded   bool
	closed   bool
	lastUsed time.Time
	saves    sync.WaitGroup
}

// NewViewer returns an empty viewer. Call Load to fetch the backbone.
func NewViewer(id string, backend Backend, opts Options) *Viewer {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.FrameDelay <= 0 {
		opts.FrameDelay = camera.InitialFrameDelay
	}
	if opts.WarmupTicks <= 0 {
		opts.WarmupTicks = sim.DefaultWarmupTicks
	}
	if opts.CooldownTicks <= 0 {
		opts.CooldownTicks = sim.DefaultCooldownTicks
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Config.Root.ID == "" && opts.Config.AnchorID == "" {
		opts.Config = lineage.DefaultConfig()
	}

	v := &Viewer{
		id:         id,
		backend:    backend,
		graph:      lineage.NewGraph(opts.Config),
		sim:        layout.NewSimulation(opts.Seed),
		view:       camera.NewView(opts.Width, opts.Height),
		snapshots:  opts.Snapshots,
		images:     opts.Images,
		logger:     opts.Logger.With("session", id),
		frameDelay: opts.FrameDelay,
		warmup:     opts.WarmupTicks,
		cooldown:   opts.CooldownTicks,
		lastUsed:   time.Now(),
	}
	if opts.Scheduler != nil {
		v.sched = opts.Scheduler(&v.mu)
	} else {
		v.sched = sched.NewTimer(&v.mu)
	}
	v.cam = camera.New(v.view, v.graph, v.sched, v.logger)
	v.tracer = tracer.New(v.graph, v.sched, tracer.Options{
		Logger:   v.logger,
		OnChange: v.reconfigure,
		Reframe:  v.cam.FitHighlighted,
	})
	v.reconfigure()
	return v
}

// ID returns the viewer id.
func (v *Viewer) ID() string { return v.id }

// Load fetches the backbone and starts the layout. A backend failure is
// logged and leaves a graph holding only the root; only cancellation of
// ctx is returned.
func (v *Viewer) Load(ctx context.Context) error {
	hooks := observability.Pipeline()
	hooks.OnLoadStart(ctx, "main-chain")
	start := time.Now()
	entries, err := v.backend.MainChain(ctx)
	hooks.OnLoadComplete(ctx, "main-chain", len(entries), time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		v.logger.Warn("main chain unavailable, showing the root only", "error", err)
		entries = nil
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.tracer.Clear()
	v.graph.LoadBackbone(entries)
	key := snapshot.Key(v.graph)
	v.mu.Unlock()

	var snap *snapshot.Snapshot
	if v.snapshots != nil && len(entries) > 0 {
		s, ok, err := v.snapshots.Load(ctx, key)
		switch {
		case err != nil:
			v.logger.Debug("snapshot load failed", "error", err)
		case ok:
			snap = s
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	if snap != nil {
		moved := snapshot.Apply(v.graph, snap)
		v.logger.Debug("pre-positioned from snapshot", "nodes", moved)
	}
	v.reconfigure()
	settleStart := time.Now()
	v.sim.Tick(v.warmup)
	hooks.OnSettle(ctx, v.graph.NodeCount(), v.warmup, time.Since(settleStart))
	v.loaded = true
	v.cam.ScheduleInitialFrame(v.frameDelay, v.saveSnapshot)
	v.logger.Info("view loaded", "nodes", v.graph.NodeCount(), "links", v.graph.LinkCount(), "eras", len(v.graph.Eras()))
	return nil
}

// Select traces the node with the given id and blocks until the backend
// answered. Lost markers are ignored after clearing the current trace.
// Backend failures degrade to the declared parent and are not returned.
func (v *Viewer) Select(ctx context.Context, id string) error {
	if err := lerrors.ValidateNodeID(id); err != nil {
		return err
	}
	v.mu.Lock()
	prev := v.superseding()
	tk, err := v.tracer.Begin(id)
	v.mu.Unlock()
	if prev != "" {
		observability.Trace().OnTraceSuperseded(ctx, prev)
	}
	if errors.Is(err, tracer.ErrLostNode) {
		v.logger.Debug("lost marker selected, ignoring", "node", id)
		return nil
	}
	if err != nil {
		return err
	}
	return v.trace(ctx, tk)
}

// SelectEntry traces an entry that need not be in the graph yet, such as
// a search result.
func (v *Viewer) SelectEntry(ctx context.Context, e lineage.Entry) error {
	if err := lerrors.ValidateNodeID(e.ID); err != nil {
		return err
	}
	v.mu.Lock()
	prev := v.superseding()
	tk, err := v.tracer.BeginEntry(e)
	v.mu.Unlock()
	if prev != "" {
		observability.Trace().OnTraceSuperseded(ctx, prev)
	}
	if err != nil {
		return err
	}
	return v.trace(ctx, tk)
}

// superseding returns the id of a trace still in flight. Callers hold v.mu.
func (v *Viewer) superseding() string {
	if v.tracer.State() == tracer.Tracing {
		return v.tracer.Selected()
	}
	return ""
}

func (v *Viewer) trace(ctx context.Context, tk tracer.Ticket) error {
	hooks := observability.Trace()
	hooks.OnTraceStart(ctx, tk.NodeID)
	start := time.Now()
	chain, err := v.backend.Trace(ctx, tk.NodeID)
	hooks.OnTraceComplete(ctx, tk.NodeID, len(chain), time.Since(start), err)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	if !v.tracer.Complete(tk, chain, err) && err == nil {
		hooks.OnTraceSuperseded(ctx, tk.NodeID)
	}
	v.touch()
	return nil
}

// Clear drops the selection and frames the backbone again.
func (v *Viewer) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tracer.Clear()
	v.cam.Reset()
	v.touch()
}

// FlyToEra centres the camera on an era's anchor.
func (v *Viewer) FlyToEra(era int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touch()
	v.tracer.CancelReframe()
	if !v.cam.FlyToEra(era) {
		return lerrors.New(lerrors.ErrCodeEraNotFound, "era %d has no anchor", era)
	}
	return nil
}

// Eras returns the eras that can be navigated to.
func (v *Viewer) Eras() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []int
	for _, era := range v.graph.Eras() {
		if v.graph.EraAnchor(era) != nil {
			out = append(out, era)
		}
	}
	return out
}

// SetZoom changes the camera scale immediately.
func (v *Viewer) SetZoom(k float64) error {
	if math.IsNaN(k) || k <= 0 {
		return lerrors.New(lerrors.ErrCodeInvalidInput, "zoom must be positive")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cam.Cancel()
	v.tracer.CancelReframe()
	v.view.SetZoom(k, 0)
	v.touch()
	return nil
}

// Resize changes the screen size.
func (v *Viewer) Resize(width, height float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.Resize(width, height)
}

// Size returns the screen size.
func (v *Viewer) Size() (float64, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.view.Size()
}

// Tick advances the simulation by up to n steps, stopping once it cooled,
// and returns whether it is still active. Link particles always advance.
func (v *Viewer) Tick(n int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	active := !v.sim.Cooled()
	for i := 0; i < n && active; i++ {
		active = v.sim.Step()
	}
	v.phase = math.Mod(v.phase+float64(n)*ParticleSpeed, 1)
	return active
}

// Settle runs the simulation until it cooled or the cooldown budget is
// spent and returns the number of ticks taken.
func (v *Viewer) Settle() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sim.Run(0, v.cooldown)
}

// Render paints the current frame onto c.
func (v *Viewer) Render(c render.Canvas) render.Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	f := render.Frame{
		Graph:     v.graph,
		View:      v.view,
		Highlight: v.tracer.Highlight(),
		Images:    v.images,
		Tracing:   v.tracer.State() == tracer.Tracing,
		Phase:     v.phase,
		Logger:    v.logger,
	}
	return f.Draw(c)
}

// Export serialises the view.
func (v *Viewer) Export() graph.View {
	v.mu.Lock()
	defer v.mu.Unlock()
	opts := graph.Options{
		Highlight: v.tracer.Highlight(),
		View:      v.view,
		Settled:   v.sim.Cooled(),
	}
	if id := v.tracer.Selected(); id != "" {
		opts.Trace = &graph.Trace{NodeID: id, State: v.tracer.State().String(), Nodes: v.tracer.Highlight().Nodes()}
	}
	return graph.Export(v.graph, opts)
}

// Inspect runs fn with exclusive access to the graph, highlight and
// viewport. fn must not retain them.
func (v *Viewer) Inspect(fn func(g *lineage.Graph, h *tracer.Highlight, view *camera.View)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(v.graph, v.tracer.Highlight(), v.view)
}

// LastUsed returns when the viewer last handled an interaction.
func (v *Viewer) LastUsed() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastUsed
}

// Close cancels every scheduled task and waits for snapshot writes.
func (v *Viewer) Close() {
	v.mu.Lock()
	v.closed = true
	v.sched.CancelAll()
	v.mu.Unlock()
	v.saves.Wait()
}

// =============================================================================
// Internals
// =============================================================================

// reconfigure rebuilds the layout forces after the node or link set
// changed and reheats the simulation. Callers hold v.mu.
func (v *Viewer) reconfigure() {
	layout.Configure(v.sim, v.graph)
	v.sim.Reheat()
}

func (v *Viewer) touch() { v.lastUsed = time.Now() }

// saveSnapshot runs as the initial-frame callback, under v.mu.
func (v *Viewer) saveSnapshot() {
	if v.snapshots == nil || v.closed || len(v.graph.Backbone()) <= 1 {
		return
	}
	snap := snapshot.Capture(v.graph)
	v.saves.Add(1)
	go func() {
		defer v.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		if err := v.snapshots.Save(ctx, snap); err != nil {
			v.logger.Warn("snapshot save failed", "error", err)
			return
		}
		v.logger.Debug("snapshot saved", "positions", len(snap.Positions))
	}()
}
