package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/render"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the year, era and kind to node labels.
	// When false, only the name is shown.
	Detailed bool

	// Highlight marks traced nodes and links in bold. Nil disables it.
	Highlight render.Highlighter
}

// ToDOT converts a lineage graph to Graphviz DOT. Edges run from
// predecessor to successor so the root sits at the top.
//
// The root is drawn in amber, era anchors doubled, lost markers red and
// dashed. Inferred links are dashed grey and broken links red.
func ToDOT(g *lineage.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph lineage {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=\"#f5f5f4\", fontname=\"Helvetica\", fontsize=18, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [color=\"#a8a29e\", arrowsize=0.6];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	h := opts.Highlight
	for _, n := range g.Nodes() {
		attrs := nodeAttrs(n, fmtLabel(n, opts.Detailed), h)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, l := range g.Links() {
		attrs := linkAttrs(l, h)
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", l.Target, l.Source)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", l.Target, l.Source, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n *lineage.Node, detailed bool) string {
	name := n.Name
	if name == "" {
		name = n.ID
	}
	if !detailed {
		return name
	}
	parts := []string{"kind: " + string(n.Kind)}
	if n.Year != nil {
		parts = append(parts, fmt.Sprintf("year: %d AD", *n.Year))
	}
	if n.Era != lineage.UnknownEra {
		parts = append(parts, "era: "+render.Roman(n.Era))
	}
	if n.InBackbone() {
		parts = append(parts, fmt.Sprintf("seq: %d", n.Seq))
	}
	return name + "\n" + strings.Join(parts, "\n")
}

func nodeAttrs(n *lineage.Node, label string, h render.Highlighter) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch n.Kind {
	case lineage.KindRoot:
		attrs = append(attrs, `fillcolor="#fbbf24"`, `color="#d97706"`, "penwidth=2")
	case lineage.KindLost:
		attrs = append(attrs, `style="rounded,filled,dashed"`, `fillcolor="#fee2e2"`, `color="#ef4444"`, `fontcolor="#b91c1c"`)
	case lineage.KindRecovered:
		attrs = append(attrs, `fillcolor="#fffdf5"`)
	case lineage.KindPrincipal:
		attrs = append(attrs, `fillcolor="#fafaf9"`)
	}
	if n.EraAnchor {
		attrs = append(attrs, "peripheries=2")
	}
	if h != nil && h.HasNode(n.ID) {
		attrs = append(attrs, `color="#f59e0b"`, "penwidth=3")
	}
	return attrs
}

func linkAttrs(l lineage.Link, h render.Highlighter) []string {
	var attrs []string
	switch l.Kind {
	case lineage.LinkInferred:
		attrs = append(attrs, "style=dashed", `color="#94a3b8"`)
	case lineage.LinkBroken:
		attrs = append(attrs, "style=dashed", `color="#ef4444"`)
	case lineage.LinkDirect:
		attrs = append(attrs, `color="#d4af37"`)
	}
	if h != nil && h.HasLink(l.Source, l.Target) {
		attrs = append(attrs, "penwidth=3")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with a
// pixel-sized one starting at the origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
