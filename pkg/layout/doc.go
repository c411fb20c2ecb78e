// Package layout configures the force simulation for a lineage graph.
//
// The configurator translates node and link kinds into the per-entity
// target, strength, distance and radius functions consumed by [sim]. The
// chronological axis is vertical: backbone nodes are pinned to
// Seq × [Spacing] with a dominant strength, so physics only resolves
// local crowding and never reorders the chain. Nodes outside the backbone
// take their vertical target from an [Interpolator] over the backbone's
// (Seq, Year) pairs and are pushed to a stable side by a hash of their id.
//
// Only this package and [sim] write node positions.
package layout
