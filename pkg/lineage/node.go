package lineage

import (
	"strings"
	"time"

	"github.com/matzehuels/lineage/pkg/sim"
)

// Well-known identifiers and defaults.
const (
	// Sentinel marks an entry whose predecessor is known to be undocumented.
	Sentinel = "00x00x00"

	DefaultRootID    = "jesus"
	DefaultRootName  = "Jesus Cristo"
	DefaultRootYear  = 33
	DefaultRootImage = "https://upload.wikimedia.org/wikipedia/commons/thumb/4/4a/" +
		"Christ_Pantocrator_mosaic_from_Hagia_Sophia_2744_x_2900_pixels_3.1_MB.jpg/" +
		"220px-Christ_Pantocrator_mosaic_from_Hagia_Sophia_2744_x_2900_pixels_3.1_MB.jpg"

	// DefaultAnchorID is the always-highlighted first successor of the root.
	DefaultAnchorID = "0xea8b4da913e8cca3e26fb3f76c8a4ac20e0c7c25e1273ebf8f654706da07ef09"

	// UnknownEra is the bucket for entries without a usable year.
	UnknownEra = 99

	lostPrefix      = "lost_"
	lostName        = "Lost records"
	lostYearOffset  = 30
	lostDefaultYear = 100
)

// Kind classifies a node.
type Kind string

const (
	KindRoot        Kind = "root"
	KindPrincipal   Kind = "principal"
	KindSubordinate Kind = "subordinate"
	KindRecovered   Kind = "recovered"
	KindLost        Kind = "lost"
)

// Transient reports whether nodes of this kind are removed by PruneTransient.
func (k Kind) Transient() bool { return k == KindRecovered || k == KindLost }

// MainLine reports whether the kind belongs to the tight backbone chain.
func (k Kind) MainLine() bool { return k == KindRoot || k == KindPrincipal }

// LinkKind classifies a link.
type LinkKind string

const (
	LinkDirect   LinkKind = "direct"
	LinkInferred LinkKind = "inferred"
	LinkBroken   LinkKind = "broken"
)

// IsSentinel reports whether id is the unknown-provenance marker.
func IsSentinel(id string) bool { return strings.EqualFold(id, Sentinel) }

// LostID returns the id of the lost marker placed after the given node.
func LostID(afterID string) string { return lostPrefix + afterID }

// EraOf buckets a year into its century. Missing and non-positive years
// land in UnknownEra.
func EraOf(year *int) int {
	if year == nil || *year <= 0 {
		return UnknownEra
	}
	return (*year + 99) / 100
}

// Entry is the canonical shape of a lineage record received from the backend.
type Entry struct {
	ID       string    `json:"id" bson:"_id"`
	Name     string    `json:"name" bson:"name"`
	ParentID string    `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	Start    time.Time `json:"start,omitempty" bson:"start,omitempty"`
	ImageURL string    `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Role     string    `json:"role,omitempty" bson:"role,omitempty"`
}

// Dated reports whether the entry carries a start date.
func (e Entry) Dated() bool { return !e.Start.IsZero() }

// Year returns the start year, or nil if the entry is undated.
func (e Entry) Year() *int {
	if !e.Dated() {
		return nil
	}
	y := e.Start.Year()
	return &y
}

// Node is one member of the lineage graph.
//
// Body is written only by the layout configurator and the simulation;
// renderers and exporters read it.
type Node struct {
	ID       string
	Kind     Kind
	Name     string
	ImageURL string

	// Seq is the position along the backbone (root = 0) or -1 for nodes
	// outside it.
	Seq       int
	Year      *int
	Era       int
	EraAnchor bool
	EraSlot   int
	ParentID  string

	TraceDepth    *int
	TraceDepthMax *int

	Body sim.Particle
}

// InBackbone reports whether the node carries a sequence index.
func (n *Node) InBackbone() bool { return n.Seq >= 0 }

// Traced reports whether the node participates in the current trace.
func (n *Node) Traced() bool { return n.TraceDepth != nil }

func (n *Node) clearTrace() {
	n.TraceDepth = nil
	n.TraceDepthMax = nil
}

func (n *Node) setTrace(depth, maxDepth int) {
	n.TraceDepth = &depth
	n.TraceDepthMax = &maxDepth
}

// Link is a directed edge meaning "Target produced or preceded Source".
type Link struct {
	Source string
	Target string
	Kind   LinkKind

	trace bool
}

// Key returns the ordered-pair key of the link.
func (l Link) Key() string { return LinkKey(l.Source, l.Target) }

// LinkKey joins an ordered id pair.
func LinkKey(source, target string) string { return source + "->" + target }

// RootSpec describes the single origin node.
type RootSpec struct {
	ID       string
	Name     string
	ImageURL string
	Year     int
}

// DefaultRoot returns the built-in root description.
func DefaultRoot() RootSpec {
	return RootSpec{
		ID:       DefaultRootID,
		Name:     DefaultRootName,
		ImageURL: DefaultRootImage,
		Year:     DefaultRootYear,
	}
}
