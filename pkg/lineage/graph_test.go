package lineage

import (
	"reflect"
	"testing"
	"time"
)

func date(year int) time.Time { return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC) }

func testConfig() Config {
	return Config{Root: RootSpec{ID: "R", Name: "Root", Year: 33}, AnchorID: "P"}
}

func TestNewGraphRootPinned(t *testing.T) {
	g := NewGraph(testConfig())
	root := g.Root()
	if root == nil || root.Kind != KindRoot {
		t.Fatalf("Root() = %+v", root)
	}
	if !root.Body.Fixed || root.Body.FX != 0 || root.Body.FY != 0 {
		t.Errorf("root not pinned at origin: %+v", root.Body)
	}
	if root.Seq != 0 || root.Era != 1 {
		t.Errorf("root seq/era = %d/%d, want 0/1", root.Seq, root.Era)
	}
}

func TestNewGraphDefaults(t *testing.T) {
	g := NewGraph(Config{})
	if g.RootID() != DefaultRootID {
		t.Errorf("RootID() = %q, want %q", g.RootID(), DefaultRootID)
	}
	if g.AnchorID() != DefaultAnchorID {
		t.Errorf("AnchorID() = %q", g.AnchorID())
	}
}

func TestEraOf(t *testing.T) {
	y := func(v int) *int { return &v }
	tests := []struct {
		year *int
		want int
	}{
		{nil, UnknownEra},
		{y(0), UnknownEra},
		{y(-5), UnknownEra},
		{y(1), 1},
		{y(33), 1},
		{y(100), 1},
		{y(101), 2},
		{y(2013), 21},
	}
	for _, tt := range tests {
		if got := EraOf(tt.year); got != tt.want {
			t.Errorf("EraOf(%v) = %d, want %d", tt.year, got, tt.want)
		}
	}
}

func TestLoadBackboneSequence(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{
		{ID: "c", Name: "C", Start: date(300), ParentID: "b"},
		{ID: "u", Name: "Undated"},
		{ID: "a", Name: "A", Start: date(67), ParentID: "R"},
		{ID: "b", Name: "B", Start: date(88), ParentID: "a"},
		{ID: "b2", Name: "B2", Start: date(88), ParentID: "a"},
		{ID: "R", Name: "duplicate root"},
		{ID: "a", Name: "duplicate"},
	})

	var ids []string
	prev := -1
	for _, n := range g.Backbone() {
		ids = append(ids, n.ID)
		if n.Seq <= prev {
			t.Errorf("seq not increasing at %s: %d after %d", n.ID, n.Seq, prev)
		}
		prev = n.Seq
	}
	want := []string{"R", "a", "b", "b2", "c", "u"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("backbone = %v, want %v", ids, want)
	}
	if n := g.Node("a"); n.Name != "A" {
		t.Errorf("first occurrence should win, got %q", n.Name)
	}
	if n := g.Node("u"); n.Era != UnknownEra || n.Year != nil {
		t.Errorf("undated node era/year = %d/%v", n.Era, n.Year)
	}
}

func TestLoadBackboneEraAnchors(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{
		{ID: "a", Start: date(67)},
		{ID: "b", Start: date(150)},
		{ID: "c", Start: date(160)},
		{ID: "d", Start: date(170)},
	})

	if g.EraAnchor(1) != nil {
		t.Error("era 1 belongs to the root and should have no principal anchor")
	}
	if a := g.EraAnchor(2); a == nil || a.ID != "b" {
		t.Errorf("EraAnchor(2) = %v, want b", a)
	}
	slots := []int{g.Node("b").EraSlot, g.Node("c").EraSlot, g.Node("d").EraSlot}
	if !reflect.DeepEqual(slots, []int{0, 1, 2}) {
		t.Errorf("era slots = %v", slots)
	}
	if eras := g.Eras(); !reflect.DeepEqual(eras, []int{1, 2}) {
		t.Errorf("Eras() = %v", eras)
	}
}

func TestLoadBackboneLinks(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{
		{ID: "P", Start: date(33), ParentID: "R"},
		{ID: "a", Start: date(67), ParentID: "P"},
		{ID: "b", Start: date(88), ParentID: Sentinel},
		{ID: "c", Start: date(99), ParentID: "missing"},
		{ID: "d", Start: date(120)},
	})

	tests := []struct {
		source, target string
		kind           LinkKind
	}{
		{"P", "R", LinkDirect},
		{"a", "P", LinkDirect},
		{"c", "b", LinkInferred},
	}
	links := map[string]LinkKind{}
	for _, l := range g.Links() {
		links[l.Key()] = l.Kind
	}
	for _, tt := range tests {
		if got := links[LinkKey(tt.source, tt.target)]; got != tt.kind {
			t.Errorf("link %s->%s kind = %q, want %q", tt.source, tt.target, got, tt.kind)
		}
	}
	if len(links) != len(tests) {
		t.Errorf("links = %v, want %d", links, len(tests))
	}
}

func TestLoadBackboneFirstEntryMissingParent(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{{ID: "a", Start: date(67), ParentID: "missing"}})
	if g.LinkCount() != 0 {
		t.Errorf("first entry with unloaded parent should not link, got %v", g.Links())
	}
}

func TestLoadBackboneRoles(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{
		{ID: "a", Start: date(67), Role: "POPE"},
		{ID: "b", Start: date(68), Role: "bishop"},
	})
	if g.Node("a").Kind != KindPrincipal {
		t.Error("pope role should load as principal")
	}
	if n := g.Node("b"); n.Kind != KindSubordinate || n.EraAnchor {
		t.Errorf("bishop = %+v, want non-anchor subordinate", n)
	}
}

func chainEntries(ids ...string) []Entry {
	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = Entry{ID: id, Name: id}
	}
	return out
}

func TestMergeTraceResult(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{{ID: "a", Start: date(67), ParentID: "R"}})

	g.MergeTraceResult(chainEntries("x", "y", "a"), "s")

	for _, id := range []string{"x", "y"} {
		n := g.Node(id)
		if n == nil || n.Kind != KindRecovered {
			t.Fatalf("node %s = %+v, want recovered", id, n)
		}
	}
	if g.Node("a").Kind != KindPrincipal {
		t.Error("existing node should keep its kind")
	}
	if d := g.Node("a").TraceDepth; d == nil || *d != 2 {
		t.Errorf("a trace depth = %v, want 2", d)
	}
	if m := g.Node("x").TraceDepthMax; m == nil || *m != 2 {
		t.Errorf("x trace depth max = %v, want 2", m)
	}
	for _, pair := range [][2]string{{"x", "y"}, {"y", "a"}, {"s", "x"}} {
		if !g.HasLink(pair[0], pair[1]) {
			t.Errorf("missing link %s->%s", pair[0], pair[1])
		}
	}
}

func TestMergeTraceResultIdempotent(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{{ID: "a", Start: date(67), ParentID: "R"}})
	chain := chainEntries("s", "x", "a")

	g.MergeTraceResult(chain, "s")
	nodes, links := g.NodeCount(), g.Links()

	g.MergeTraceResult(chain, "s")
	if g.NodeCount() != nodes {
		t.Errorf("node count %d, want %d", g.NodeCount(), nodes)
	}
	if !reflect.DeepEqual(g.Links(), links) {
		t.Errorf("links changed: %v != %v", g.Links(), links)
	}
	if g.HasLink("s", "s") {
		t.Error("start equal to first chain entry should not self-link")
	}
}

func TestAddLostMarker(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{
		{ID: "P", Start: date(33), ParentID: "R"},
		{ID: "a", Start: date(250), ParentID: Sentinel},
	})

	lost := g.AddLostMarker("a", "P")
	if lost.ID != LostID("a") || lost.Kind != KindLost {
		t.Fatalf("lost = %+v", lost)
	}
	if lost.Year == nil || *lost.Year != 220 {
		t.Errorf("lost year = %v, want 220", lost.Year)
	}
	if !g.HasLink("a", lost.ID) || !g.HasLink(lost.ID, "P") {
		t.Error("lost marker links missing")
	}
	for _, key := range []string{"a", lost.ID} {
		for _, l := range g.Links() {
			if l.Source == key && l.Kind != LinkBroken {
				t.Errorf("link %s kind = %q, want broken", l.Key(), l.Kind)
			}
		}
	}

	n, links := g.NodeCount(), g.LinkCount()
	if again := g.AddLostMarker("a", "P"); again != lost {
		t.Error("AddLostMarker should return the existing marker")
	}
	if g.NodeCount() != n || g.LinkCount() != links {
		t.Error("AddLostMarker should be idempotent")
	}
}

func TestAddLostMarkerWithoutAnchor(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{{ID: "a", Start: date(250), ParentID: Sentinel}})
	if g.Node("P") != nil {
		t.Fatal("anchor should not be loaded")
	}

	lost := g.AddLostMarker("a", "P")
	if !g.HasLink("a", lost.ID) {
		t.Error("missing link into the lost marker")
	}
	for _, l := range g.Links() {
		if g.Node(l.Source) == nil || g.Node(l.Target) == nil {
			t.Errorf("link %s has a missing endpoint", l.Key())
		}
	}
}

func TestAddLostMarkerDefaultYear(t *testing.T) {
	g := NewGraph(testConfig())
	lost := g.AddLostMarker("unknown", "P")
	if *lost.Year != 70 {
		t.Errorf("lost year = %d, want 70", *lost.Year)
	}
}

func TestPruneTransientRestoresBackbone(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{
		{ID: "P", Start: date(33), ParentID: "R"},
		{ID: "a", Start: date(67), ParentID: "P"},
		{ID: "b", Start: date(88), ParentID: "missing"},
	})
	before, beforeLinks := nodeIDs(g), g.Links()

	g.AddTransient(Entry{ID: "t"})
	g.MergeTraceResult(chainEntries("b", "x", "a"), "b")
	g.AddLostMarker("x", "P")

	g.PruneTransient()
	if got := nodeIDs(g); !reflect.DeepEqual(got, before) {
		t.Errorf("nodes = %v, want %v", got, before)
	}
	if !reflect.DeepEqual(g.Links(), beforeLinks) {
		t.Errorf("links = %v, want %v", g.Links(), beforeLinks)
	}
	for _, n := range g.Nodes() {
		if n.Traced() {
			t.Errorf("node %s keeps trace depth after prune", n.ID)
		}
	}

	g.PruneTransient()
	if got := nodeIDs(g); !reflect.DeepEqual(got, before) {
		t.Error("PruneTransient should be idempotent")
	}
}

func TestLoadBackbonePreservesTransient(t *testing.T) {
	g := NewGraph(testConfig())
	g.LoadBackbone([]Entry{{ID: "a", Start: date(67), ParentID: "R"}})
	g.MergeTraceResult(chainEntries("x", "a"), "x")

	g.LoadBackbone([]Entry{{ID: "a", Start: date(67), ParentID: "R"}, {ID: "b", Start: date(80), ParentID: "a"}})
	if g.Node("x") == nil || !g.HasLink("x", "a") {
		t.Error("trace additions should survive a backbone reload")
	}
	if !g.HasLink("b", "a") {
		t.Error("new backbone link missing")
	}
}

func TestIsSentinel(t *testing.T) {
	for _, id := range []string{"00x00x00", "00X00X00"} {
		if !IsSentinel(id) {
			t.Errorf("IsSentinel(%q) = false", id)
		}
	}
	if IsSentinel("") {
		t.Error("empty id is not the sentinel")
	}
}

func nodeIDs(g *Graph) []string {
	var out []string
	for _, n := range g.Nodes() {
		out = append(out, n.ID)
	}
	return out
}
