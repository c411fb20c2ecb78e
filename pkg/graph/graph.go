package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/matzehuels/lineage/pkg/camera"
	"github.com/matzehuels/lineage/pkg/lineage"
)

// Highlighter is the read side of a trace highlight.
type Highlighter interface {
	HasNode(id string) bool
	HasLink(a, b string) bool
	Empty() bool
}

// Options selects the optional parts of an export.
type Options struct {
	Highlight Highlighter
	Trace     *Trace
	View      *camera.View
	Settled   bool
}

// Export snapshots g. Nodes keep the graph's insertion order, which
// starts with the root followed by the backbone.
func Export(g *lineage.Graph, opts Options) View {
	v := View{
		Root:    g.RootID(),
		Anchor:  g.AnchorID(),
		Eras:    g.Eras(),
		Trace:   opts.Trace,
		Settled: opts.Settled,
	}
	h := opts.Highlight
	lit := h != nil && !h.Empty()
	for _, n := range g.Nodes() {
		out := newNode(n)
		out.Highlighted = lit && h.HasNode(n.ID)
		v.Nodes = append(v.Nodes, out)
	}
	for _, l := range g.Links() {
		v.Links = append(v.Links, Link{
			Source:      l.Source,
			Target:      l.Target,
			Kind:        string(l.Kind),
			Highlighted: lit && h.HasLink(l.Source, l.Target),
		})
	}
	if opts.View != nil {
		w, hgt := opts.View.Size()
		c := opts.View.Center()
		v.Camera = &Camera{Width: w, Height: hgt, CenterX: c.X, CenterY: c.Y, Zoom: opts.View.Zoom()}
	}
	return v
}

// =============================================================================
// Serialization API
// =============================================================================

// Marshal encodes v as indented JSON.
func Marshal(v View) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(v, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes v as indented JSON to w.
func Write(v View, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteFile writes v as JSON to path.
func WriteFile(v View, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(v, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a JSON view.
func Read(r io.Reader) (View, error) {
	var v View
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return View{}, fmt.Errorf("decode view: %w", err)
	}
	if v.Root == "" {
		return View{}, fmt.Errorf("decode view: missing root")
	}
	return v, nil
}

// ReadFile decodes a JSON view from path.
func ReadFile(path string) (View, error) {
	f, err := os.Open(path)
	if err != nil {
		return View{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// MarshalBSON encodes v for MongoDB.
func MarshalBSON(v View) ([]byte, error) { return bson.Marshal(v) }

// UnmarshalBSON decodes a MongoDB document.
func UnmarshalBSON(data []byte) (View, error) {
	var v View
	if err := bson.Unmarshal(data, &v); err != nil {
		return View{}, fmt.Errorf("decode view: %w", err)
	}
	return v, nil
}
