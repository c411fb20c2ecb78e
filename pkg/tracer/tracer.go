// Package tracer resolves and highlights the path from a selected node to
// the root of a lineage graph.
//
// A trace runs in two halves. [Tracer.Begin] is called when the user
// selects a node: it discards the previous trace (transient nodes,
// highlights and any pending reframe) and issues a [Ticket]. The caller
// then fetches the ancestry chain from the backend without holding any
// view lock and hands the result to [Tracer.Complete]. Completion always
// merges the chain into the graph, since merging is idempotent, but only
// publishes highlights and schedules a reframe if its ticket is still the
// latest one.
//
//	tk, err := tr.Begin(id)
//	if err != nil { ... }
//	chain, err := client.Trace(ctx, id) // outside the lock
//	tr.Complete(tk, chain, err)
//
// The tracer does not lock; the owner serializes calls along with the
// scheduler's callbacks.
package tracer

import (
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	lerrors "github.com/matzehuels/lineage/pkg/errors"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/sched"
)

// DefaultSettleDelay is how long the simulation relaxes newly merged nodes
// before the camera reframes onto a trace.
const DefaultSettleDelay = 150 * time.Millisecond

// ErrLostNode is returned by Begin when the selected node is a lost marker.
// The previous trace is still cleared.
var ErrLostNode = errors.New("lost markers cannot be traced")

// State is the phase of the current trace.
type State int

const (
	Idle State = iota
	Tracing
	Merging
	Highlighted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracing:
		return "tracing"
	case Merging:
		return "merging"
	case Highlighted:
		return "highlighted"
	default:
		return "unknown"
	}
}

// Ticket identifies one trace request.
type Ticket struct {
	gen    uint64
	NodeID string
}

// Options configures a Tracer.
type Options struct {
	// Logger receives diagnostics. Defaults to a discarding logger.
	Logger *log.Logger

	// SettleDelay overrides DefaultSettleDelay.
	SettleDelay time.Duration

	// OnChange is called after the graph's node or link set changed, so the
	// owner can reconfigure and reheat the simulation.
	OnChange func()

	// Reframe is called once the settle delay elapsed after a published
	// trace, with the highlighted node ids.
	Reframe func(ids []string)
}

// Tracer is the trace state machine for one graph.
type Tracer struct {
	graph *lineage.Graph
	sched sched.Scheduler
	opts  Options

	state     State
	gen       uint64
	current   string
	highlight *Highlight
	reframe   *sched.Task
}

// New returns an idle tracer over g that schedules reframes on s.
func New(g *lineage.Graph, s sched.Scheduler, opts Options) *Tracer {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	return &Tracer{graph: g, sched: s, opts: opts, highlight: &Highlight{}}
}

// State returns the current phase.
func (t *Tracer) State() State { return t.state }

// Selected returns the id of the node being traced or highlighted, or "".
func (t *Tracer) Selected() string { return t.current }

// Highlight returns the published highlight snapshot. It is never nil.
func (t *Tracer) Highlight() *Highlight { return t.highlight }

// Current reports whether tk belongs to the latest trace.
func (t *Tracer) Current(tk Ticket) bool { return tk.gen == t.gen && t.state != Idle }

// Begin starts a trace of the node with the given id. It fails with a
// NODE_NOT_FOUND error if the node is unknown and with ErrLostNode for lost
// markers. In both error cases the previous trace is cleared, as after
// Clear. A transient node that is selected again survives the prune.
func (t *Tracer) Begin(id string) (Ticket, error) {
	n := t.graph.Node(id)
	if n == nil {
		t.reset()
		return Ticket{}, lerrors.New(lerrors.ErrCodeNodeNotFound, "node %q is not in the graph", id)
	}
	if n.Kind == lineage.KindLost {
		t.reset()
		return Ticket{}, ErrLostNode
	}
	if !n.Kind.Transient() {
		t.reset()
		return t.start(id), nil
	}
	e := lineage.Entry{ID: n.ID, Name: n.Name, ParentID: n.ParentID, ImageURL: n.ImageURL}
	if n.Year != nil {
		e.Start = time.Date(*n.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t.BeginEntry(e)
}

// BeginEntry starts a trace of e, which need not be in the graph yet. An
// entry absent after pruning is inserted as a transient node.
func (t *Tracer) BeginEntry(e lineage.Entry) (Ticket, error) {
	if e.ID == "" {
		return Ticket{}, lerrors.New(lerrors.ErrCodeInvalidInput, "entry has no id")
	}
	t.reset()
	if t.graph.Node(e.ID) == nil {
		t.graph.AddTransient(e)
		t.changed()
	}
	return t.start(e.ID), nil
}

func (t *Tracer) start(id string) Ticket {
	t.state = Tracing
	t.current = id
	t.opts.Logger.Debug("trace started", "node", id, "generation", t.gen)
	return Ticket{gen: t.gen, NodeID: id}
}

// Complete applies the backend response for tk. A non-nil err is logged and
// treated as an empty chain. The chain is merged even when tk is stale; in
// that case trace depths are left alone, nothing is published and Complete
// returns false.
func (t *Tracer) Complete(tk Ticket, chain []lineage.Entry, err error) bool {
	if err != nil {
		t.opts.Logger.Warn("trace lookup failed", "node", tk.NodeID, "err", err)
		chain = nil
	}
	chain = compact(chain)

	stale := !t.Current(tk)
	if !stale {
		t.state = Merging
	}
	if len(chain) > 0 && t.graph.Node(tk.NodeID) != nil {
		before := t.graph.NodeCount()
		beforeLinks := t.graph.LinkCount()
		if stale {
			t.graph.MergeChain(chain, tk.NodeID)
		} else {
			t.graph.MergeTraceResult(chain, tk.NodeID)
		}
		if t.graph.NodeCount() != before || t.graph.LinkCount() != beforeLinks {
			t.changed()
		}
	}
	if stale {
		t.opts.Logger.Debug("stale trace merged", "node", tk.NodeID, "entries", len(chain))
		return false
	}
	if t.graph.Node(tk.NodeID) == nil {
		t.opts.Logger.Warn("traced node vanished", "node", tk.NodeID)
		t.reset()
		return false
	}

	t.highlight = t.resolve(tk.NodeID, chain)
	t.state = Highlighted
	t.opts.Logger.Debug("trace highlighted", "node", tk.NodeID, "entries", len(chain), "highlighted", len(t.highlight.nodes))
	t.scheduleReframe()
	return true
}

// Clear discards the current trace and returns to Idle.
func (t *Tracer) Clear() {
	t.reset()
}

// CancelReframe drops the pending post-trace reframe, if any. The
// highlight stays published. Callers use it when a later camera action
// takes over the framing.
func (t *Tracer) CancelReframe() {
	t.reframe.Cancel()
	t.reframe = nil
}

// reset prunes transient nodes, clears highlights, cancels the pending
// reframe and invalidates outstanding tickets.
func (t *Tracer) reset() {
	before := t.graph.NodeCount()
	beforeLinks := t.graph.LinkCount()
	t.graph.PruneTransient()
	if t.graph.NodeCount() != before || t.graph.LinkCount() != beforeLinks {
		t.changed()
	}
	t.highlight = &Highlight{}
	t.reframe.Cancel()
	t.reframe = nil
	t.gen++
	t.state = Idle
	t.current = ""
}

// resolve builds the highlight for a trace of start along chain and adds a
// lost marker when the chain ends in a provenance gap.
func (t *Tracer) resolve(start string, chain []lineage.Entry) *Highlight {
	g := t.graph
	rootID, anchorID := g.RootID(), g.AnchorID()

	ids := []string{start}
	var lastParent string
	if len(chain) == 0 {
		// The trace reduces to the node and its declared parent.
		if p := g.Node(start).ParentID; p != "" && !lineage.IsSentinel(p) && g.Node(p) != nil {
			ids = append(ids, p)
			lastParent = g.Node(p).ParentID
		} else {
			lastParent = p
		}
	} else {
		for i, e := range chain {
			if i == 0 && e.ID == start {
				continue
			}
			ids = append(ids, e.ID)
		}
		last := chain[len(chain)-1]
		lastParent = last.ParentID
		if lastParent == "" {
			if n := g.Node(last.ID); n != nil {
				lastParent = n.ParentID
			}
		}
	}

	b := newBuilder()
	b.path(ids)
	b.node(anchorID, rootID)
	b.pair(anchorID, rootID)

	last := ids[len(ids)-1]
	switch {
	case last == rootID:
	case lastParent == "" || lineage.IsSentinel(lastParent):
		if last == anchorID {
			break
		}
		before := g.NodeCount()
		lost := g.AddLostMarker(last, anchorID)
		if g.NodeCount() != before {
			t.changed()
		}
		b.node(lost.ID)
		b.pair(last, lost.ID)
		if g.Node(anchorID) != nil {
			b.pair(lost.ID, anchorID)
		}
	case lastParent == anchorID:
		b.pair(last, anchorID)
	case lastParent == rootID:
		b.pair(last, rootID)
	}
	return b.build()
}

func (t *Tracer) scheduleReframe() {
	if t.opts.Reframe == nil || t.sched == nil {
		return
	}
	gen := t.gen
	ids := t.highlight.Nodes()
	t.reframe = t.sched.After(t.opts.SettleDelay, func() {
		if t.gen != gen || t.state != Highlighted {
			return
		}
		t.opts.Reframe(ids)
	})
}

func (t *Tracer) changed() {
	if t.opts.OnChange != nil {
		t.opts.OnChange()
	}
}

// compact drops entries without an id.
func compact(chain []lineage.Entry) []lineage.Entry {
	out := chain[:0:0]
	for _, e := range chain {
		if e.ID != "" {
			out = append(out, e)
		}
	}
	return out
}
