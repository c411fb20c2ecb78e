package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/lineage/pkg/camera"
	lerrors "github.com/matzehuels/lineage/pkg/errors"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/render/raster"
	"github.com/matzehuels/lineage/pkg/sched"
	"github.com/matzehuels/lineage/pkg/snapshot"
	"github.com/matzehuels/lineage/pkg/tracer"
)

func date(year int) time.Time { return time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC) }

var backbone = []lineage.Entry{
	{ID: "P", Name: "Peter", ParentID: "R", Start: date(33)},
	{ID: "L", Name: "Linus", ParentID: "P", Start: date(150)},
	{ID: "C", Name: "Cletus", ParentID: "L", Start: date(260)},
}

type fakeBackend struct {
	mu     sync.Mutex
	chain  []lineage.Entry
	err    error
	traces map[string]int
	gate   map[string]chan struct{}
}

func (b *fakeBackend) MainChain(ctx context.Context) ([]lineage.Entry, error) {
	if b.err != nil {
		return nil, b.err
	}
	return backbone, nil
}

func (b *fakeBackend) Trace(ctx context.Context, id string) ([]lineage.Entry, error) {
	b.mu.Lock()
	if b.traces == nil {
		b.traces = make(map[string]int)
	}
	b.traces[id]++
	gate := b.gate[id]
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	for i, e := range b.chain {
		if e.ID == id {
			return b.chain[i:], nil
		}
	}
	return nil, nil
}

type memSnapshots struct {
	mu    sync.Mutex
	saved map[string]*snapshot.Snapshot
	hits  int
}

func (m *memSnapshots) Load(ctx context.Context, key string) (*snapshot.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saved[key]
	if ok {
		m.hits++
	}
	return s, ok, nil
}

func (m *memSnapshots) Save(ctx context.Context, s *snapshot.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string]*snapshot.Snapshot)
	}
	m.saved[s.Key] = s
	return nil
}

func newViewer(t *testing.T, b Backend, store snapshot.Store) (*Viewer, *sched.Manual) {
	t.Helper()
	var m *sched.Manual
	v := NewViewer("test", b, Options{
		Config:    lineage.Config{Root: lineage.RootSpec{ID: "R", Name: "Root", Year: 33}, AnchorID: "P"},
		Scheduler: func(l sync.Locker) sched.Scheduler { m = sched.NewManual(l); return m },
		Snapshots: store,
		Seed:      1,
	})
	t.Cleanup(v.Close)
	if err := v.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return v, m
}

func TestLoadSavesSnapshot(t *testing.T) {
	store := &memSnapshots{}
	v, m := newViewer(t, &fakeBackend{}, store)

	if got := v.Export(); len(got.Nodes) != 4 || len(got.Links) != 3 {
		t.Fatalf("nodes=%d links=%d, want 4 and 3", len(got.Nodes), len(got.Links))
	}
	m.Advance(camera.InitialFrameDelay + camera.FrameDuration)
	v.Close()

	if len(store.saved) != 1 {
		t.Fatalf("snapshots saved = %d, want 1", len(store.saved))
	}
	for _, s := range store.saved {
		if len(s.Positions) != 3 {
			t.Errorf("positions = %d, want the three backbone entries", len(s.Positions))
		}
	}

	again, _ := newViewer(t, &fakeBackend{}, store)
	if store.hits != 1 {
		t.Error("second viewer did not read the snapshot")
	}
	again.Inspect(func(g *lineage.Graph, h *tracer.Highlight, _ *camera.View) {
		if !h.Empty() {
			t.Error("fresh viewer has a highlight")
		}
		for _, s := range store.saved {
			if s.Key != snapshot.Key(g) {
				t.Error("snapshot key does not match the backbone")
			}
		}
	})
}

func TestLoadFailureKeepsRoot(t *testing.T) {
	v, _ := newViewer(t, &fakeBackend{err: errors.New("offline")}, nil)
	got := v.Export()
	if len(got.Nodes) != 1 || got.Root != "R" {
		t.Errorf("export = %+v, want the root alone", got)
	}
	if eras := v.Eras(); len(eras) != 0 {
		t.Errorf("eras = %v", eras)
	}
}

func TestSelectHighlightsChain(t *testing.T) {
	b := &fakeBackend{chain: []lineage.Entry{
		{ID: "C", ParentID: "L"}, {ID: "L", ParentID: "P"}, {ID: "P", ParentID: "R"},
	}}
	v, m := newViewer(t, b, nil)

	if err := v.Select(context.Background(), "C"); err != nil {
		t.Fatal(err)
	}
	got := v.Export()
	if got.Trace == nil || got.Trace.State != "highlighted" {
		t.Fatalf("trace = %+v", got.Trace)
	}
	for _, id := range []string{"C", "L", "P", "R"} {
		if !slices.Contains(got.Trace.Nodes, id) {
			t.Errorf("%s not highlighted: %v", id, got.Trace.Nodes)
		}
	}
	if n := m.Flush(); n == 0 {
		t.Error("expected a pending reframe")
	}

	v.Clear()
	if got := v.Export(); got.Trace != nil {
		t.Errorf("trace after Clear = %+v", got.Trace)
	}
}

func TestSelectErrors(t *testing.T) {
	v, _ := newViewer(t, &fakeBackend{}, nil)
	ctx := context.Background()

	if err := v.Select(ctx, ""); !lerrors.Is(err, lerrors.ErrCodeInvalidInput) {
		t.Errorf("empty id: %v", err)
	}
	if err := v.Select(ctx, "nobody"); !lerrors.Is(err, lerrors.ErrCodeNodeNotFound) {
		t.Errorf("unknown id: %v", err)
	}

	// A dangling chain leaves a lost marker that ignores selection.
	if err := v.SelectEntry(ctx, lineage.Entry{ID: "X", Name: "Xystus", Start: date(300)}); err != nil {
		t.Fatal(err)
	}
	if err := v.Select(ctx, "lost_X"); err != nil {
		t.Errorf("lost marker: %v", err)
	}
	if got := v.Export(); got.Trace != nil {
		t.Errorf("selecting a lost marker should clear the trace, got %+v", got.Trace)
	}
}

func TestStaleTraceNotPublished(t *testing.T) {
	gate := make(chan struct{})
	b := &fakeBackend{
		chain: []lineage.Entry{{ID: "C", ParentID: "L"}, {ID: "L", ParentID: "P"}},
		gate:  map[string]chan struct{}{"C": gate},
	}
	v, _ := newViewer(t, b, nil)

	done := make(chan error)
	go func() { done <- v.Select(context.Background(), "C") }()
	for {
		b.mu.Lock()
		n := b.traces["C"]
		b.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err := v.Select(context.Background(), "L"); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	got := v.Export()
	if got.Trace == nil || got.Trace.NodeID != "L" {
		t.Fatalf("trace = %+v, want L", got.Trace)
	}
	if slices.Contains(got.Trace.Nodes, "C") {
		t.Error("superseded trace leaked into the highlight")
	}
}

func TestFlyToEraAndZoom(t *testing.T) {
	v, _ := newViewer(t, &fakeBackend{}, nil)
	eras := v.Eras()
	if !slices.Equal(eras, []int{2, 3}) {
		t.Fatalf("eras = %v, want [2 3]", eras)
	}
	if err := v.FlyToEra(3); err != nil {
		t.Error(err)
	}
	if err := v.FlyToEra(40); !lerrors.Is(err, lerrors.ErrCodeEraNotFound) {
		t.Errorf("missing era: %v", err)
	}
	if err := v.SetZoom(0); err == nil {
		t.Error("zero zoom accepted")
	}
	if err := v.SetZoom(2); err != nil {
		t.Error(err)
	}
	if got := v.Export().Camera; got == nil || got.Zoom != 2 {
		t.Errorf("camera = %+v", got)
	}
}

func TestCameraActionSupersedesTraceReframe(t *testing.T) {
	chain := []lineage.Entry{{ID: "C", ParentID: "L"}, {ID: "L", ParentID: "P"}, {ID: "P", ParentID: "R"}}
	tests := []struct {
		name string
		act  func(v *Viewer) error
		zoom float64
	}{
		{"era", func(v *Viewer) error { return v.FlyToEra(3) }, camera.EraZoom},
		{"zoom", func(v *Viewer) error { return v.SetZoom(5) }, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, m := newViewer(t, &fakeBackend{chain: chain}, nil)
			m.Flush()
			if err := v.Select(context.Background(), "C"); err != nil {
				t.Fatal(err)
			}
			if err := tt.act(v); err != nil {
				t.Fatal(err)
			}
			before := *v.Export().Camera
			m.Flush()
			after := *v.Export().Camera
			if after.Zoom != tt.zoom || after.CenterX != before.CenterX || after.CenterY != before.CenterY {
				t.Errorf("camera moved from %+v to %+v after the trace settled", before, after)
			}
			if got := v.Export().Trace; got == nil || got.NodeID != "C" {
				t.Errorf("highlight lost: %+v", got)
			}
		})
	}
}

func TestTickAndRender(t *testing.T) {
	v, _ := newViewer(t, &fakeBackend{}, nil)
	v.Settle()
	if v.Tick(5) {
		t.Error("settled simulation still active")
	}
	v.Resize(320, 200)
	stats := v.Render(raster.New(320, 200))
	if stats.Nodes+stats.Skipped == 0 {
		t.Errorf("nothing drawn: %+v", stats)
	}
}

func TestManager(t *testing.T) {
	m := NewManager(ManagerOptions{Backend: &fakeBackend{}, IdleTimeout: time.Minute})
	defer m.Close()

	v, err := m.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(v.ID())
	if err != nil || got != v {
		t.Fatalf("Get = %v, %v", got, err)
	}
	for _, id := range []string{"not-a-uuid", "6f1c2d4e-0000-4000-8000-000000000000"} {
		if _, err := m.Get(id); !lerrors.Is(err, lerrors.ErrCodeSessionNotFound) {
			t.Errorf("Get(%q) = %v", id, err)
		}
	}

	if n := m.Cleanup(); n != 0 {
		t.Errorf("fresh session expired")
	}
	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if n := m.Cleanup(); n != 1 {
		t.Errorf("Cleanup = %d, want 1", n)
	}
	if err := m.Delete(v.ID()); !lerrors.Is(err, lerrors.ErrCodeSessionNotFound) {
		t.Errorf("Delete after expiry = %v", err)
	}
}

func TestManagerCreateCancelled(t *testing.T) {
	m := NewManager(ManagerOptions{Backend: &fakeBackend{err: context.Canceled}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Create(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Create = %v", err)
	}
}
