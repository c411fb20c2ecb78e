// Package render paints a lineage graph onto a 2D canvas.
//
// # Overview
//
// A [Frame] combines a graph, a [camera.View] and the current trace
// highlight and draws them through the [Canvas] interface in screen pixels.
// Two backends implement the canvas:
//
//   - [raster]: PNG output on fogleman/gg with freetype text
//   - [svg]: SVG markup with gradient and blur definitions
//
// The Graphviz export in [nodelink] is a separate, layout-independent view
// of the same graph.
//
// # Detail Levels
//
// Below [AggregateBelow] only the root and each era's anchor are drawn
// and links are suppressed. At or above it every node is drawn with its
// portrait or a kind-specific radial gradient, a halo when highlighted,
// and a name label when its kind calls for one or the zoom exceeds
// [DenseLabelsAbove]. While a highlight is active, everything outside it
// is dimmed.
//
// # Failure Handling
//
// The painter never passes a non-finite coordinate to the canvas. A
// missing portrait falls back to the gradient fill, and a failing or
// panicking image blit is logged and skipped without aborting the frame.
//
//	f := &render.Frame{Graph: g, View: view, Highlight: tr.Highlight(), Images: imgs}
//	f.Draw(raster.New(1280, 800, faces))
//
// [raster]: github.com/matzehuels/lineage/pkg/render/raster
// [svg]: github.com/matzehuels/lineage/pkg/render/svg
// [nodelink]: github.com/matzehuels/lineage/pkg/render/nodelink
package render
