// Package pkg provides the core libraries for lineage, an explorer of the
// apostolic succession drawn as a force-directed graph.
//
// # Overview
//
// The main chain of popes is loaded from the lineage backend and laid out
// left to right by century. Any clergy member can be traced back to the
// root; the trace is merged into the graph, highlighted and framed by the
// camera. The packages fall into four areas:
//
//  1. Domain: [lineage] (graph model), [layout] over [sim] (forces),
//     [tracer] (trace state machine), [camera] (viewport and flights)
//  2. Rendering: [render] with the raster, svg, images and nodelink
//     backends, and [graph] for JSON views
//  3. Infrastructure: [backend], [cache], [snapshot], [sched],
//     [observability], [errors]
//  4. Hosts: [session] (interactive viewers), [search] and [pipeline]
//     (headless one-shot frames)
//
// # Architecture
//
//	Backend main chain / trace
//	         ↓
//	    [lineage] package (nodes, links, eras)
//	         ↓
//	    [layout] + [sim] packages (settled positions)
//	         ↓
//	    [tracer] + [camera] packages (highlight, framing)
//	         ↓
//	    [render] package → PNG/SVG/DOT/JSON
//
// # Quick Start
//
//	client := backend.New(backend.Options{})
//	runner := pipeline.NewRunner(client, cache.NewNullCache(), nil, nil)
//	defer runner.Close()
//
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Trace:   "4f2a",
//	    Formats: []string{pipeline.FormatPNG},
//	})
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("lineage.png", result.Artifacts[pipeline.FormatPNG], 0o644)
//
// [lineage]: github.com/matzehuels/lineage/pkg/lineage
// [layout]: github.com/matzehuels/lineage/pkg/layout
// [sim]: github.com/matzehuels/lineage/pkg/sim
// [tracer]: github.com/matzehuels/lineage/pkg/tracer
// [camera]: github.com/matzehuels/lineage/pkg/camera
// [render]: github.com/matzehuels/lineage/pkg/render
// [graph]: github.com/matzehuels/lineage/pkg/graph
// [backend]: github.com/matzehuels/lineage/pkg/backend
// [cache]: github.com/matzehuels/lineage/pkg/cache
// [snapshot]: github.com/matzehuels/lineage/pkg/snapshot
// [sched]: github.com/matzehuels/lineage/pkg/sched
// [observability]: github.com/matzehuels/lineage/pkg/observability
// [errors]: github.com/matzehuels/lineage/pkg/errors
// [session]: github.com/matzehuels/lineage/pkg/session
// [search]: github.com/matzehuels/lineage/pkg/search
// [pipeline]: github.com/matzehuels/lineage/pkg/pipeline
package pkg
