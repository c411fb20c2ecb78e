package tracer

import (
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	lerrors "github.com/matzehuels/lineage/pkg/errors"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/sched"
)

const (
	rootID   = "R"
	anchorID = "P"
)

func date(year int) time.Time { return time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC) }

func newGraph(entries ...lineage.Entry) *lineage.Graph {
	g := lineage.NewGraph(lineage.Config{Root: lineage.RootSpec{ID: rootID, Year: 33}, AnchorID: anchorID})
	g.LoadBackbone(entries)
	return g
}

func barGraph() *lineage.Graph {
	return newGraph(
		lineage.Entry{ID: "A", Name: "A", Start: date(67), ParentID: rootID},
		lineage.Entry{ID: "B", Name: "B", Start: date(88), ParentID: "A"},
	)
}

type recorder struct {
	changes  int
	reframes [][]string
}

func newTracer(g *lineage.Graph) (*Tracer, *sched.Manual, *recorder) {
	m := sched.NewManual(nil)
	rec := &recorder{}
	tr := New(g, m, Options{
		OnChange: func() { rec.changes++ },
		Reframe:  func(ids []string) { rec.reframes = append(rec.reframes, ids) },
	})
	return tr, m, rec
}

func snapshot(g *lineage.Graph) ([]string, []lineage.Link) {
	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	return ids, g.Links()
}

func TestTraceBackboneChain(t *testing.T) {
	g := barGraph()
	tr, _, _ := newTracer(g)
	nodes := g.NodeCount()

	tk, err := tr.Begin("B")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if tr.State() != Tracing {
		t.Errorf("state = %s, want tracing", tr.State())
	}
	chain := []lineage.Entry{{ID: "B", ParentID: "A"}, {ID: "A", ParentID: rootID}}
	if !tr.Complete(tk, chain, nil) {
		t.Fatal("Complete returned false for the current ticket")
	}

	want := []string{"A", "B", anchorID, rootID}
	slices.Sort(want)
	if got := tr.Highlight().Nodes(); !reflect.DeepEqual(got, want) {
		t.Errorf("highlighted nodes = %v, want %v", got, want)
	}
	for _, n := range g.Nodes() {
		if n.Kind == lineage.KindRecovered {
			t.Errorf("unexpected recovered node %s", n.ID)
		}
	}
	if g.NodeCount() != nodes {
		t.Errorf("node count %d, want %d", g.NodeCount(), nodes)
	}
	for _, pair := range [][2]string{{"B", "A"}, {"A", rootID}, {anchorID, rootID}} {
		if !tr.Highlight().HasLink(pair[0], pair[1]) {
			t.Errorf("link %s-%s not highlighted", pair[0], pair[1])
		}
	}
	if tr.State() != Highlighted {
		t.Errorf("state = %s, want highlighted", tr.State())
	}
}

func TestTraceSentinelCreatesLostMarker(t *testing.T) {
	g := newGraph(
		lineage.Entry{ID: anchorID, Start: date(33), ParentID: rootID},
		lineage.Entry{ID: "A", Start: date(250), ParentID: lineage.Sentinel},
	)
	tr, _, _ := newTracer(g)

	tk, err := tr.Begin("A")
	if err != nil {
		t.Fatal(err)
	}
	tr.Complete(tk, nil, nil)

	lostID := lineage.LostID("A")
	lost := g.Node(lostID)
	if lost == nil || lost.Kind != lineage.KindLost {
		t.Fatalf("lost marker = %+v", lost)
	}
	if !g.HasLink("A", lostID) || !g.HasLink(lostID, anchorID) {
		t.Error("expected A->lost->anchor links")
	}
	want := []string{"A", anchorID, rootID, lostID}
	slices.Sort(want)
	if got := tr.Highlight().Nodes(); !reflect.DeepEqual(got, want) {
		t.Errorf("highlighted nodes = %v, want %v", got, want)
	}
}

func TestTraceEmptyChainUsesDeclaredParent(t *testing.T) {
	g := barGraph()
	tr, _, _ := newTracer(g)

	tk, _ := tr.Begin("B")
	tr.Complete(tk, nil, errors.New("backend down"))

	h := tr.Highlight()
	for _, id := range []string{"A", "B", rootID} {
		if !h.HasNode(id) {
			t.Errorf("%s not highlighted", id)
		}
	}
	if !h.HasLink("B", "A") || !h.HasLink("A", rootID) {
		t.Errorf("links = %v", h.Links())
	}
}

func TestTraceRecoveredChain(t *testing.T) {
	g := barGraph()
	tr, _, rec := newTracer(g)

	tk, _ := tr.BeginEntry(lineage.Entry{ID: "x", Name: "X", Start: date(900)})
	tr.Complete(tk, []lineage.Entry{
		{ID: "x", ParentID: "y"},
		{ID: "y", ParentID: "A"},
		{ID: "A", ParentID: rootID},
	}, nil)

	if n := g.Node("y"); n == nil || n.Kind != lineage.KindRecovered {
		t.Fatalf("y = %+v, want recovered", n)
	}
	if d := g.Node("y").TraceDepth; d == nil || *d != 1 {
		t.Errorf("y depth = %v", d)
	}
	if rec.changes == 0 {
		t.Error("OnChange not called after merge")
	}
	for _, pair := range [][2]string{{"x", "y"}, {"y", "A"}, {"A", rootID}} {
		if !tr.Highlight().HasLink(pair[0], pair[1]) {
			t.Errorf("link %s-%s not highlighted", pair[0], pair[1])
		}
	}
}

func TestHighlightLinksAreSymmetric(t *testing.T) {
	g := barGraph()
	tr, _, _ := newTracer(g)
	tk, _ := tr.BeginEntry(lineage.Entry{ID: "x"})
	tr.Complete(tk, []lineage.Entry{{ID: "y"}, {ID: "z", ParentID: lineage.Sentinel}}, nil)

	h := tr.Highlight()
	if len(h.Links()) == 0 {
		t.Fatal("no links highlighted")
	}
	for _, key := range h.Links() {
		var a, b string
		for i := 0; i+1 < len(key); i++ {
			if key[i:i+2] == "->" {
				a, b = key[:i], key[i+2:]
				break
			}
		}
		if !h.HasLink(b, a) {
			t.Errorf("link %s present but reverse missing", key)
		}
	}
}

func TestPruneThenRemergeReproducesHighlight(t *testing.T) {
	g := barGraph()
	tr, _, _ := newTracer(g)
	chain := []lineage.Entry{{ID: "x"}, {ID: "y", ParentID: "A"}, {ID: "A", ParentID: rootID}}

	tk, _ := tr.BeginEntry(lineage.Entry{ID: "s"})
	tr.Complete(tk, chain, nil)
	first := tr.Highlight().Nodes()
	firstLinks := tr.Highlight().Links()

	tr.Clear()
	tk, _ = tr.BeginEntry(lineage.Entry{ID: "s"})
	tr.Complete(tk, chain, nil)

	if got := tr.Highlight().Nodes(); !reflect.DeepEqual(got, first) {
		t.Errorf("nodes = %v, want %v", got, first)
	}
	if got := tr.Highlight().Links(); !reflect.DeepEqual(got, firstLinks) {
		t.Errorf("links = %v, want %v", got, firstLinks)
	}
}

func TestStaleCompletionDoesNotPublish(t *testing.T) {
	g := barGraph()
	tr, m, rec := newTracer(g)

	old, _ := tr.Begin("A")
	current, _ := tr.Begin("B")

	if tr.Complete(old, []lineage.Entry{{ID: "A", ParentID: rootID}}, nil) {
		t.Error("stale ticket published")
	}
	if !tr.Highlight().Empty() {
		t.Errorf("highlight = %v after stale completion", tr.Highlight().Nodes())
	}
	if tr.State() != Tracing || tr.Selected() != "B" {
		t.Errorf("state = %s selected = %q", tr.State(), tr.Selected())
	}

	tr.Complete(current, []lineage.Entry{{ID: "B", ParentID: "A"}, {ID: "A", ParentID: rootID}}, nil)
	m.Flush()
	if len(rec.reframes) != 1 {
		t.Errorf("reframes = %d, want 1", len(rec.reframes))
	}
}

func TestStaleCompletionKeepsTraceDepths(t *testing.T) {
	g := barGraph()
	tr, _, _ := newTracer(g)

	old, _ := tr.Begin("A")
	current, _ := tr.Begin("B")
	tr.Complete(current, []lineage.Entry{{ID: "B", ParentID: "A"}, {ID: "A", ParentID: rootID}}, nil)

	if tr.Complete(old, []lineage.Entry{{ID: "A", ParentID: "x"}, {ID: "x", Name: "x"}}, nil) {
		t.Fatal("stale ticket published")
	}
	if g.Node("x") == nil {
		t.Fatal("stale chain was not merged")
	}
	if g.Node("x").Traced() {
		t.Error("stale-only node carries a trace depth")
	}
	for _, tc := range []struct {
		id         string
		depth, max int
	}{
		{"B", 0, 1},
		{"A", 1, 1},
	} {
		n := g.Node(tc.id)
		if n.TraceDepth == nil || *n.TraceDepth != tc.depth || *n.TraceDepthMax != tc.max {
			t.Errorf("%s depth = %v/%v, want %d/%d", tc.id, n.TraceDepth, n.TraceDepthMax, tc.depth, tc.max)
		}
	}
}

func TestClearRestoresBackbone(t *testing.T) {
	g := newGraph(
		lineage.Entry{ID: anchorID, Start: date(33), ParentID: rootID},
		lineage.Entry{ID: "A", Start: date(67), ParentID: lineage.Sentinel},
	)
	tr, m, rec := newTracer(g)
	nodes, links := snapshot(g)

	tk, _ := tr.BeginEntry(lineage.Entry{ID: "x"})
	tr.Complete(tk, []lineage.Entry{{ID: "x", ParentID: "A"}, {ID: "A"}}, nil)
	if g.Node(lineage.LostID("A")) == nil {
		t.Fatal("expected a lost marker")
	}
	tr.Clear()
	m.Flush()

	gotNodes, gotLinks := snapshot(g)
	if !reflect.DeepEqual(gotNodes, nodes) {
		t.Errorf("nodes = %v, want %v", gotNodes, nodes)
	}
	if !reflect.DeepEqual(gotLinks, links) {
		t.Errorf("links = %v, want %v", gotLinks, links)
	}
	if !tr.Highlight().Empty() || tr.State() != Idle {
		t.Error("highlight not cleared")
	}
	if len(rec.reframes) != 0 {
		t.Error("reframe fired after clear")
	}
}

func TestReframeAfterSettleDelay(t *testing.T) {
	g := barGraph()
	tr, m, rec := newTracer(g)
	tk, _ := tr.Begin("B")
	tr.Complete(tk, []lineage.Entry{{ID: "B", ParentID: "A"}, {ID: "A", ParentID: rootID}}, nil)

	m.Advance(DefaultSettleDelay - time.Millisecond)
	if len(rec.reframes) != 0 {
		t.Fatal("reframe fired before the settle delay")
	}
	m.Advance(time.Millisecond)
	if len(rec.reframes) != 1 {
		t.Fatalf("reframes = %d, want 1", len(rec.reframes))
	}
	if !reflect.DeepEqual(rec.reframes[0], tr.Highlight().Nodes()) {
		t.Errorf("reframe ids = %v", rec.reframes[0])
	}
}

func TestNewSelectionCancelsReframe(t *testing.T) {
	g := barGraph()
	tr, m, rec := newTracer(g)
	tk, _ := tr.Begin("B")
	tr.Complete(tk, nil, nil)
	tr.Begin("A")
	m.Flush()
	if len(rec.reframes) != 0 {
		t.Errorf("superseded reframe fired %d times", len(rec.reframes))
	}
}

func TestBeginErrors(t *testing.T) {
	g := newGraph(lineage.Entry{ID: "A", Start: date(250), ParentID: lineage.Sentinel})
	tr, _, _ := newTracer(g)

	if _, err := tr.Begin("missing"); !lerrors.Is(err, lerrors.ErrCodeNodeNotFound) {
		t.Errorf("Begin(missing) err = %v", err)
	}

	tk, _ := tr.Begin("A")
	tr.Complete(tk, nil, nil)
	if _, err := tr.Begin(lineage.LostID("A")); !errors.Is(err, ErrLostNode) {
		t.Errorf("Begin(lost) err = %v", err)
	}
	if !tr.Highlight().Empty() || g.Node(lineage.LostID("A")) != nil {
		t.Error("selecting a lost node should still clear the previous trace")
	}
}

func TestReselectTransientNode(t *testing.T) {
	g := barGraph()
	tr, _, _ := newTracer(g)
	tk, _ := tr.BeginEntry(lineage.Entry{ID: "x", Start: date(500)})
	tr.Complete(tk, []lineage.Entry{{ID: "x", ParentID: "A"}, {ID: "A", ParentID: rootID}}, nil)

	tk, err := tr.Begin("x")
	if err != nil {
		t.Fatalf("Begin(x): %v", err)
	}
	if n := g.Node("x"); n == nil || n.Kind != lineage.KindRecovered {
		t.Fatal("re-selected transient node was pruned")
	}
	if tk.NodeID != "x" {
		t.Errorf("ticket node = %q", tk.NodeID)
	}
}
