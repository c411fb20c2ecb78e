package snapshot

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/matzehuels/lineage/pkg/cache"
	"github.com/matzehuels/lineage/pkg/lineage"
)

func testGraph(entries ...lineage.Entry) *lineage.Graph {
	g := lineage.NewGraph(lineage.Config{Root: lineage.RootSpec{ID: "R", Year: 33}, AnchorID: "P"})
	if len(entries) == 0 {
		entries = []lineage.Entry{
			{ID: "P", ParentID: "R", Start: time.Date(33, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "L", ParentID: "P", Start: time.Date(67, 1, 1, 0, 0, 0, 0, time.UTC)},
		}
	}
	g.LoadBackbone(entries)
	return g
}

func TestKeyTracksBackbone(t *testing.T) {
	a, b := testGraph(), testGraph()
	if Key(a) != Key(b) {
		t.Error("identical backbones should share a key")
	}
	c := testGraph(lineage.Entry{ID: "P", ParentID: "R"})
	if Key(a) == Key(c) {
		t.Error("different backbones should not share a key")
	}
	a.AddTransient(lineage.Entry{ID: "x"})
	if Key(a) != Key(b) {
		t.Error("transient nodes must not change the key")
	}
}

func TestCaptureApply(t *testing.T) {
	src := testGraph()
	src.Node("P").Body.X, src.Node("P").Body.Y = 3, 14
	src.Node("L").Body.X, src.Node("L").Body.Y = math.NaN(), 28
	snap := Capture(src)
	if len(snap.Positions) != 1 || snap.Positions[0].ID != "P" {
		t.Fatalf("positions = %+v", snap.Positions)
	}

	dst := testGraph()
	if n := Apply(dst, snap); n != 1 {
		t.Errorf("Apply moved %d nodes, want 1", n)
	}
	p := dst.Node("P").Body
	if p.X != 3 || p.Y != 14 || !p.Placed {
		t.Errorf("P body = %+v", p)
	}
	if dst.Node("L").Body.Placed {
		t.Error("L had no saved position")
	}

	other := testGraph(lineage.Entry{ID: "P", ParentID: "R"})
	if n := Apply(other, snap); n != 0 {
		t.Error("snapshot of another backbone should be ignored")
	}
	if Apply(dst, nil) != 0 {
		t.Error("nil snapshot should be ignored")
	}
}

func TestCacheStore(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := NewCacheStore(fc, nil)

	if _, ok, err := store.Load(ctx, "nope"); ok || err != nil {
		t.Fatalf("Load(miss) = %v, %v", ok, err)
	}
	snap := &Snapshot{Key: "k", Positions: []Position{{ID: "P", X: 1, Y: 2}}}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatal(err)
	}
	got, ok, err := store.Load(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if len(got.Positions) != 1 || got.Positions[0] != snap.Positions[0] {
		t.Errorf("loaded %+v", got)
	}
}

func TestCacheStoreRejectsRawEntries(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	keyer := cache.NewDefaultKeyer()
	if err := fc.Set(ctx, keyer.SnapshotKey("k"), []byte(`{"key":"k"}`), time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := NewCacheStore(fc, keyer).Load(ctx, "k"); ok || err != nil {
		t.Errorf("uncompressed entry: ok=%v err=%v, want a silent miss", ok, err)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	snap := &Snapshot{Key: "k"}
	for i := range 200 {
		snap.Positions = append(snap.Positions, Position{ID: "n", X: float64(i), Y: -float64(i)})
	}
	data, err := compress(snap)
	if err != nil {
		t.Fatal(err)
	}
	got, err := decompress(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Positions) != 200 || got.Positions[199].X != 199 {
		t.Errorf("decompressed %d positions", len(got.Positions))
	}
}
