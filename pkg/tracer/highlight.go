package tracer

import (
	"slices"

	"github.com/matzehuels/lineage/pkg/lineage"
)

// Highlight is an immutable snapshot of the highlighted nodes and links.
// The zero value and nil are both empty.
type Highlight struct {
	nodes map[string]struct{}
	links map[string]struct{}
}

// HasNode reports whether id is highlighted.
func (h *Highlight) HasNode(id string) bool {
	if h == nil {
		return false
	}
	_, ok := h.nodes[id]
	return ok
}

// HasLink reports whether the link between a and b is highlighted, in
// either direction.
func (h *Highlight) HasLink(a, b string) bool {
	if h == nil {
		return false
	}
	_, ok := h.links[lineage.LinkKey(a, b)]
	return ok
}

// Empty reports whether nothing is highlighted.
func (h *Highlight) Empty() bool { return h == nil || len(h.nodes) == 0 }

// Nodes returns the highlighted node ids in sorted order.
func (h *Highlight) Nodes() []string {
	if h == nil {
		return nil
	}
	return sortedKeys(h.nodes)
}

// Links returns the highlighted link keys in sorted order. Both directions
// of every pair are present.
func (h *Highlight) Links() []string {
	if h == nil {
		return nil
	}
	return sortedKeys(h.links)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// builder accumulates a highlight before it is published.
type builder struct {
	h Highlight
}

func newBuilder() *builder {
	return &builder{h: Highlight{
		nodes: make(map[string]struct{}),
		links: make(map[string]struct{}),
	}}
}

func (b *builder) node(ids ...string) {
	for _, id := range ids {
		if id != "" {
			b.h.nodes[id] = struct{}{}
		}
	}
}

func (b *builder) pair(a, c string) {
	if a == "" || c == "" || a == c {
		return
	}
	b.h.links[lineage.LinkKey(a, c)] = struct{}{}
	b.h.links[lineage.LinkKey(c, a)] = struct{}{}
}

func (b *builder) path(ids []string) {
	b.node(ids...)
	for i := 1; i < len(ids); i++ {
		b.pair(ids[i-1], ids[i])
	}
}

func (b *builder) build() *Highlight {
	h := b.h
	return &h
}
