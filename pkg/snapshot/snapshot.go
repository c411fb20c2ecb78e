// Package snapshot persists settled layout positions per backbone.
//
// A fresh view of the same backbone starts from the positions another
// view already settled into, so the warm-up ticks only polish instead of
// unfolding the whole graph again. Snapshots are keyed by the hash of the
// backbone's ids, order and parents; any change to the backbone yields a
// new key.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/matzehuels/lineage/pkg/cache"
	"github.com/matzehuels/lineage/pkg/lineage"
)

// Position is one saved node position.
type Position struct {
	ID string  `json:"id" bson:"id"`
	X  float64 `json:"x" bson:"x"`
	Y  float64 `json:"y" bson:"y"`
}

// Snapshot is the saved layout of one backbone.
type Snapshot struct {
	Key       string     `json:"key" bson:"_id"`
	Positions []Position `json:"positions" bson:"positions"`
	SavedAt   time.Time  `json:"saved_at" bson:"saved_at"`
}

// Store loads and saves snapshots. Load reports a miss with ok == false
// and a nil error.
type Store interface {
	Load(ctx context.Context, key string) (snap *Snapshot, ok bool, err error)
	Save(ctx context.Context, snap *Snapshot) error
}

// Key returns the snapshot key of g's backbone.
func Key(g *lineage.Graph) string { return cache.Hash([]byte(g.BackboneKey())) }

// Capture records the finite positions of g's backbone nodes. Transient
// nodes are excluded and the root is pinned anyway.
func Capture(g *lineage.Graph) *Snapshot {
	s := &Snapshot{Key: Key(g), SavedAt: time.Now().UTC()}
	for _, n := range g.Backbone() {
		if n.Kind == lineage.KindRoot || !n.Body.Finite() {
			continue
		}
		s.Positions = append(s.Positions, Position{ID: n.ID, X: n.Body.X, Y: n.Body.Y})
	}
	return s
}

// Apply pre-positions g's nodes from s and returns how many were moved.
// A snapshot of a different backbone is ignored.
func Apply(g *lineage.Graph, s *Snapshot) int {
	if s == nil || s.Key != Key(g) {
		return 0
	}
	moved := 0
	for _, p := range s.Positions {
		n := g.Node(p.ID)
		if n == nil || n.Kind == lineage.KindRoot || n.Kind.Transient() {
			continue
		}
		n.Body.X, n.Body.Y = p.X, p.Y
		n.Body.VX, n.Body.VY = 0, 0
		if !n.Body.Finite() {
			continue
		}
		n.Body.Placed = true
		moved++
	}
	return moved
}

// =============================================================================
// Cache-backed store
// =============================================================================

// CacheStore keeps zstd-compressed snapshots in a byte cache (file or
// redis).
type CacheStore struct {
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// NewCacheStore returns a store over c. A nil keyer selects the default.
func NewCacheStore(c cache.Cache, keyer cache.Keyer) *CacheStore {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &CacheStore{cache: c, keyer: keyer, ttl: cache.TTLSnapshot}
}

// Load implements [Store]. Undecodable entries are treated as misses.
func (s *CacheStore) Load(ctx context.Context, key string) (*Snapshot, bool, error) {
	data, ok, err := s.cache.Get(ctx, s.keyer.SnapshotKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	snap, err := decompress(data)
	if err != nil || snap.Key != key {
		return nil, false, nil
	}
	return snap, true, nil
}

// Save implements [Store].
func (s *CacheStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := compress(snap)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.keyer.SnapshotKey(snap.Key), data, s.ttl)
}

func compress(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(snap); err != nil {
		enc.Close()
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing zstd encoder: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) (*Snapshot, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

var _ Store = (*CacheStore)(nil)
