// Package graph serialises lineage views.
//
// A [View] carries everything a client needs to draw the force graph
// without running the simulation: nodes with positions and trace depth,
// links with their kind, the highlighted selection and the camera. The
// same struct is tagged for JSON (HTTP API, `lineage render -f json`) and
// BSON (MongoDB snapshots).
//
// # Usage
//
//	v := graph.Export(g, graph.Options{Highlight: tr.Highlight(), View: view})
//	data, err := graph.Marshal(v)
//
// Positions are rounded to two decimals so exports of the same settled
// layout diff cleanly.
package graph
