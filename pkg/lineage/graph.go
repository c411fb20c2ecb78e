package lineage

import (
	"slices"
	"sort"
	"strings"
)

// Config describes the fixed endpoints of a lineage graph.
type Config struct {
	Root     RootSpec
	AnchorID string
}

// DefaultConfig returns the built-in root and anchor.
func DefaultConfig() Config {
	return Config{Root: DefaultRoot(), AnchorID: DefaultAnchorID}
}

// Graph holds the nodes and links of a lineage view. The root is created
// with the graph and is never removed.
//
// Graph is not safe for concurrent use; callers serialize access.
type Graph struct {
	cfg   Config
	nodes []*Node
	index map[string]*Node
	links []Link
	keys  map[string]struct{}
}

// NewGraph creates a graph containing only the pinned root.
func NewGraph(cfg Config) *Graph {
	if cfg.Root.ID == "" {
		cfg.Root = DefaultRoot()
	}
	if cfg.AnchorID == "" {
		cfg.AnchorID = DefaultAnchorID
	}
	g := &Graph{
		cfg:   cfg,
		index: make(map[string]*Node),
		keys:  make(map[string]struct{}),
	}
	year := cfg.Root.Year
	root := &Node{
		ID:       cfg.Root.ID,
		Kind:     KindRoot,
		Name:     cfg.Root.Name,
		ImageURL: cfg.Root.ImageURL,
		Seq:      0,
		Year:     &year,
		Era:      EraOf(&year),
	}
	root.Body.Pin(0, 0)
	g.insert(root)
	return g
}

// RootID returns the id of the origin node.
func (g *Graph) RootID() string { return g.cfg.Root.ID }

// AnchorID returns the id of the always-highlighted anchor node.
func (g *Graph) AnchorID() string { return g.cfg.AnchorID }

// Root returns the origin node.
func (g *Graph) Root() *Node { return g.index[g.cfg.Root.ID] }

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node { return g.index[id] }

// Nodes returns all nodes in insertion order. The slice is a copy; the
// nodes are shared.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.nodes) }

// Links returns a copy of all links in insertion order.
func (g *Graph) Links() []Link { return slices.Clone(g.links) }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// LinkCount returns the number of links.
func (g *Graph) LinkCount() int { return len(g.links) }

// HasLink reports whether the directed link source->target exists.
func (g *Graph) HasLink(source, target string) bool {
	_, ok := g.keys[LinkKey(source, target)]
	return ok
}

// Backbone returns the root followed by every sequenced node in order.
func (g *Graph) Backbone() []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.InBackbone() {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// EraAnchor returns the first principal node of era, or nil.
func (g *Graph) EraAnchor(era int) *Node {
	for _, n := range g.nodes {
		if n.EraAnchor && n.Era == era {
			return n
		}
	}
	return nil
}

// Eras returns the sorted distinct eras of the root and backbone nodes.
func (g *Graph) Eras() []int {
	seen := make(map[int]bool)
	var out []int
	for _, n := range g.nodes {
		if !n.InBackbone() || n.Era == 0 || seen[n.Era] {
			continue
		}
		seen[n.Era] = true
		out = append(out, n.Era)
	}
	slices.Sort(out)
	return out
}

// BackboneKey returns a stable string identifying the loaded backbone.
// Two graphs with the same backbone ids, order and parents share a key.
func (g *Graph) BackboneKey() string {
	var b strings.Builder
	for _, n := range g.Backbone() {
		b.WriteString(n.ID)
		b.WriteByte('<')
		b.WriteString(n.ParentID)
		b.WriteByte(';')
	}
	return b.String()
}

// =============================================================================
// Backbone
// =============================================================================

// LoadBackbone replaces the backbone with entries sorted by start date.
// Undated entries sort last and ties keep input order. Transient nodes and
// links added by traces are preserved.
func (g *Graph) LoadBackbone(entries []Entry) {
	rootID := g.RootID()

	// Drop the previous backbone except the root.
	g.filterLinks(func(l Link) bool { return l.trace })
	kept := g.nodes[:0]
	for _, n := range g.nodes {
		if n.Kind == KindRoot || n.Kind.Transient() {
			kept = append(kept, n)
			continue
		}
		delete(g.index, n.ID)
	}
	clear(g.nodes[len(kept):])
	g.nodes = kept

	sorted := make([]Entry, 0, len(entries))
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.ID == "" || e.ID == rootID || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		sorted = append(sorted, e)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Dated() || !b.Dated() {
			return a.Dated() && !b.Dated()
		}
		return a.Start.Before(b.Start)
	})

	seenEras := map[int]bool{g.Root().Era: true}
	slots := make(map[int]int)
	ids := map[string]bool{rootID: true}
	for _, e := range sorted {
		ids[e.ID] = true
	}

	for i, e := range sorted {
		year := e.Year()
		era := EraOf(year)
		kind := KindPrincipal
		if e.Role != "" && !strings.EqualFold(e.Role, "pope") {
			kind = KindSubordinate
		}

		n := g.index[e.ID]
		if n == nil {
			n = &Node{ID: e.ID}
			g.insert(n)
		}
		n.Kind = kind
		n.Name = e.Name
		n.ImageURL = e.ImageURL
		n.Seq = i + 1
		n.Year = year
		n.Era = era
		n.ParentID = e.ParentID
		n.EraAnchor = false
		n.EraSlot = 0

		if kind == KindPrincipal {
			n.EraAnchor = !seenEras[era]
			seenEras[era] = true
			n.EraSlot = slots[era]
			slots[era]++
		}
	}

	g.filterLinks(func(l Link) bool { return g.index[l.Source] != nil && g.index[l.Target] != nil })
	for i, e := range sorted {
		p := e.ParentID
		switch {
		case p == "" || IsSentinel(p):
		case ids[p]:
			g.addLink(Link{Source: e.ID, Target: p, Kind: LinkDirect})
		case i > 0:
			g.addLink(Link{Source: e.ID, Target: sorted[i-1].ID, Kind: LinkInferred})
		}
	}
	if ids[g.AnchorID()] && g.AnchorID() != rootID {
		g.addLink(Link{Source: g.AnchorID(), Target: rootID, Kind: LinkDirect})
	}
}

// =============================================================================
// Trace additions
// =============================================================================

// MergeTraceResult folds an ancestry chain into the graph. Unknown entries
// become recovered nodes; every chain member is tagged with its depth.
// Consecutive entries are linked and startID is linked to the first entry
// when they differ. Applying the same chain twice is a no-op.
func (g *Graph) MergeTraceResult(chain []Entry, startID string) {
	g.mergeChain(chain, startID, true)
}

// MergeChain adds the nodes and links of chain like MergeTraceResult but
// leaves trace depths untouched. It is used for results that arrive after
// their trace was superseded.
func (g *Graph) MergeChain(chain []Entry, startID string) {
	g.mergeChain(chain, startID, false)
}

func (g *Graph) mergeChain(chain []Entry, startID string, tag bool) {
	maxDepth := len(chain) - 1
	for i, e := range chain {
		if e.ID == "" {
			continue
		}
		n := g.index[e.ID]
		if n == nil {
			n = newRecovered(e)
			g.insert(n)
		}
		if tag {
			n.setTrace(i, maxDepth)
		}
		if i < len(chain)-1 && chain[i+1].ID != "" {
			g.addLink(Link{Source: e.ID, Target: chain[i+1].ID, Kind: LinkDirect, trace: true})
		}
	}
	if len(chain) > 0 && chain[0].ID != "" && chain[0].ID != startID {
		g.addLink(Link{Source: startID, Target: chain[0].ID, Kind: LinkDirect, trace: true})
	}
}

// AddTransient inserts e as a recovered node unless its id already exists,
// and returns the node.
func (g *Graph) AddTransient(e Entry) *Node {
	if n := g.index[e.ID]; n != nil {
		return n
	}
	n := newRecovered(e)
	g.insert(n)
	return n
}

// AddLostMarker inserts a lost placeholder after afterID that leads on to
// anchorID through broken links. The link to anchorID is only added while
// the anchor is loaded. It returns the existing marker if one was already
// placed after afterID.
func (g *Graph) AddLostMarker(afterID, anchorID string) *Node {
	id := LostID(afterID)
	if n := g.index[id]; n != nil {
		return n
	}
	year := lostDefaultYear - lostYearOffset
	if after := g.index[afterID]; after != nil && after.Year != nil {
		year = *after.Year - lostYearOffset
	}
	n := &Node{
		ID:       id,
		Kind:     KindLost,
		Name:     lostName,
		Seq:      -1,
		Year:     &year,
		Era:      EraOf(&year),
		ParentID: anchorID,
	}
	g.insert(n)
	g.addLink(Link{Source: afterID, Target: id, Kind: LinkBroken, trace: true})
	if g.index[anchorID] != nil {
		g.addLink(Link{Source: id, Target: anchorID, Kind: LinkBroken, trace: true})
	}
	return n
}

// PruneTransient removes recovered and lost nodes together with every link
// touching them or added by a trace, and clears trace depth on the
// remaining nodes. It is idempotent.
func (g *Graph) PruneTransient() {
	kept := g.nodes[:0]
	for _, n := range g.nodes {
		if n.Kind.Transient() {
			delete(g.index, n.ID)
			continue
		}
		n.clearTrace()
		kept = append(kept, n)
	}
	clear(g.nodes[len(kept):])
	g.nodes = kept
	g.filterLinks(func(l Link) bool {
		return !l.trace && g.index[l.Source] != nil && g.index[l.Target] != nil
	})
}

// =============================================================================
// Internals
// =============================================================================

func newRecovered(e Entry) *Node {
	year := e.Year()
	return &Node{
		ID:       e.ID,
		Kind:     KindRecovered,
		Name:     e.Name,
		ImageURL: e.ImageURL,
		Seq:      -1,
		Year:     year,
		Era:      EraOf(year),
		ParentID: e.ParentID,
	}
}

func (g *Graph) insert(n *Node) {
	g.nodes = append(g.nodes, n)
	g.index[n.ID] = n
}

func (g *Graph) addLink(l Link) bool {
	key := l.Key()
	if _, ok := g.keys[key]; ok {
		return false
	}
	g.keys[key] = struct{}{}
	g.links = append(g.links, l)
	return true
}

func (g *Graph) filterLinks(keep func(Link) bool) {
	out := g.links[:0]
	for _, l := range g.links {
		if keep(l) {
			out = append(out, l)
			continue
		}
		delete(g.keys, l.Key())
	}
	g.links = out
}
