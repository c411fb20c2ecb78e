// Package nodelink renders a lineage graph as a Graphviz node-link diagram.
//
// The force layout is the primary view; this package gives a static,
// deterministic alternative that reads top to bottom from the root and is
// easy to diff or print.
//
// # Usage
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true, Highlight: tr.Highlight()})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// # Styling
//
//   - Root: amber fill with a thick border
//   - Era anchors: double outline
//   - Lost markers: red, dashed outline
//   - Inferred links: dashed grey; broken links: dashed red
//   - Highlighted nodes and links: bold amber
//
// # Dependencies
//
// SVG output uses [github.com/goccy/go-graphviz], which runs Graphviz
// in-process through WebAssembly; no system install is needed.
package nodelink
