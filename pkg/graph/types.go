package graph

import (
	"math"

	"github.com/matzehuels/lineage/pkg/lineage"
)

// View is the canonical serialisation of a lineage view: the graph with
// positions, the current highlight and the camera. It is used for API
// responses, JSON exports and MongoDB documents.
type View struct {
	Root    string  `json:"root" bson:"root"`
	Anchor  string  `json:"anchor" bson:"anchor"`
	Nodes   []Node  `json:"nodes" bson:"nodes"`
	Links   []Link  `json:"links" bson:"links"`
	Eras    []int   `json:"eras,omitempty" bson:"eras,omitempty"`
	Trace   *Trace  `json:"trace,omitempty" bson:"trace,omitempty"`
	Camera  *Camera `json:"camera,omitempty" bson:"camera,omitempty"`
	Settled bool    `json:"settled" bson:"settled"`
}

// Node is one serialised lineage node. X and Y are omitted when the
// position is not finite.
type Node struct {
	ID        string   `json:"id" bson:"id"`
	Name      string   `json:"name" bson:"name"`
	Kind      string   `json:"kind" bson:"kind"`
	Year      *int     `json:"year,omitempty" bson:"year,omitempty"`
	Era       int      `json:"era" bson:"era"`
	EraAnchor bool     `json:"era_anchor,omitempty" bson:"era_anchor,omitempty"`
	Seq       int      `json:"seq" bson:"seq"`
	ParentID  string   `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	ImageURL  string   `json:"image_url,omitempty" bson:"image_url,omitempty"`
	X         *float64 `json:"x,omitempty" bson:"x,omitempty"`
	Y         *float64 `json:"y,omitempty" bson:"y,omitempty"`

	TraceDepth    *int `json:"trace_depth,omitempty" bson:"trace_depth,omitempty"`
	TraceDepthMax *int `json:"trace_depth_max,omitempty" bson:"trace_depth_max,omitempty"`

	Highlighted bool `json:"highlighted,omitempty" bson:"highlighted,omitempty"`
}

// Link is one serialised link.
type Link struct {
	Source      string `json:"source" bson:"source"`
	Target      string `json:"target" bson:"target"`
	Kind        string `json:"kind" bson:"kind"`
	Highlighted bool   `json:"highlighted,omitempty" bson:"highlighted,omitempty"`
}

// Trace describes the current selection.
type Trace struct {
	NodeID string   `json:"node_id" bson:"node_id"`
	State  string   `json:"state" bson:"state"`
	Nodes  []string `json:"nodes,omitempty" bson:"nodes,omitempty"`
}

// Camera is the viewport state.
type Camera struct {
	Width   float64 `json:"width" bson:"width"`
	Height  float64 `json:"height" bson:"height"`
	CenterX float64 `json:"center_x" bson:"center_x"`
	CenterY float64 `json:"center_y" bson:"center_y"`
	Zoom    float64 `json:"zoom" bson:"zoom"`
}

// Node returns the node with the given id, or nil.
func (v *View) Node(id string) *Node {
	for i := range v.Nodes {
		if v.Nodes[i].ID == id {
			return &v.Nodes[i]
		}
	}
	return nil
}

func newNode(n *lineage.Node) Node {
	out := Node{
		ID:            n.ID,
		Name:          n.Name,
		Kind:          string(n.Kind),
		Year:          n.Year,
		Era:           n.Era,
		EraAnchor:     n.EraAnchor,
		Seq:           n.Seq,
		ParentID:      n.ParentID,
		ImageURL:      n.ImageURL,
		TraceDepth:    n.TraceDepth,
		TraceDepthMax: n.TraceDepthMax,
	}
	if n.Body.Finite() {
		x, y := round2(n.Body.X), round2(n.Body.Y)
		out.X, out.Y = &x, &y
	}
	return out
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
