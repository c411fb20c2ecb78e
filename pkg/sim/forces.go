package sim

import (
	"math"
	"math/rand"
)

// Accessor returns a per-node value by index into the simulation's node slice.
type Accessor func(i int) float64

// Constant returns an accessor that always yields v.
func Constant(v float64) Accessor { return func(int) float64 { return v } }

func evaluate(n int, f Accessor, def float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if f == nil {
			out[i] = def
			continue
		}
		v := f(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = def
		}
		out[i] = v
	}
	return out
}

// =============================================================================
// Positioning
// =============================================================================

// PositionX pulls each node horizontally toward Target with Strength.
type PositionX struct {
	Target   Accessor
	Strength Accessor

	nodes     []*Particle
	targets   []float64
	strengths []float64
}

// Initialize evaluates the accessors for the current nodes.
func (f *PositionX) Initialize(nodes []*Particle, _ *rand.Rand) {
	f.nodes = nodes
	f.targets = evaluate(len(nodes), f.Target, 0)
	f.strengths = evaluate(len(nodes), f.Strength, 0.1)
}

// Apply adds horizontal velocity toward the targets.
func (f *PositionX) Apply(alpha float64) {
	for i, p := range f.nodes {
		p.VX += (f.targets[i] - p.X) * f.strengths[i] * alpha
	}
}

// PositionY pulls each node vertically toward Target with Strength.
type PositionY struct {
	Target   Accessor
	Strength Accessor

	nodes     []*Particle
	targets   []float64
	strengths []float64
}

// Initialize evaluates the accessors for the current nodes.
func (f *PositionY) Initialize(nodes []*Particle, _ *rand.Rand) {
	f.nodes = nodes
	f.targets = evaluate(len(nodes), f.Target, 0)
	f.strengths = evaluate(len(nodes), f.Strength, 0.1)
}

// Apply adds vertical velocity toward the targets.
func (f *PositionY) Apply(alpha float64) {
	for i, p := range f.nodes {
		p.VY += (f.targets[i] - p.Y) * f.strengths[i] * alpha
	}
}

// =============================================================================
// Links
// =============================================================================

// Edge connects two node indices.
type Edge struct {
	Source, Target int
}

// Link is a spring force between connected nodes. Distance and Strength are
// indexed by edge. A nil Strength uses the d3 default of
// 1/min(degree(source), degree(target)).
type Link struct {
	Edges      []Edge
	Distance   Accessor
	Strength   Accessor
	Iterations int

	nodes     []*Particle
	edges     []Edge
	distances []float64
	strengths []float64
	bias      []float64
	rnd       *rand.Rand
}

// Initialize drops edges with out-of-range endpoints and evaluates accessors.
func (f *Link) Initialize(nodes []*Particle, rnd *rand.Rand) {
	f.nodes = nodes
	f.rnd = rnd
	f.edges = f.edges[:0]
	count := make([]int, len(nodes))
	var orig []int
	for i, e := range f.Edges {
		if e.Source < 0 || e.Source >= len(nodes) || e.Target < 0 || e.Target >= len(nodes) || e.Source == e.Target {
			continue
		}
		f.edges = append(f.edges, e)
		orig = append(orig, i)
		count[e.Source]++
		count[e.Target]++
	}

	f.distances = make([]float64, len(f.edges))
	f.strengths = make([]float64, len(f.edges))
	f.bias = make([]float64, len(f.edges))
	for k, e := range f.edges {
		f.bias[k] = float64(count[e.Source]) / float64(count[e.Source]+count[e.Target])
		f.distances[k] = 30
		if f.Distance != nil {
			f.distances[k] = f.Distance(orig[k])
		}
		if f.Strength != nil {
			f.strengths[k] = f.Strength(orig[k])
		} else {
			f.strengths[k] = 1 / float64(min(count[e.Source], count[e.Target]))
		}
	}
}

// Apply moves linked nodes toward their rest distance.
func (f *Link) Apply(alpha float64) {
	iterations := max(f.Iterations, 1)
	for k := 0; k < iterations; k++ {
		for i, e := range f.edges {
			src, tgt := f.nodes[e.Source], f.nodes[e.Target]
			x := tgt.X + tgt.VX - src.X - src.VX
			if x == 0 {
				x = jiggle(f.rnd)
			}
			y := tgt.Y + tgt.VY - src.Y - src.VY
			if y == 0 {
				y = jiggle(f.rnd)
			}
			l := math.Sqrt(x*x + y*y)
			l = (l - f.distances[i]) / l * alpha * f.strengths[i]
			x *= l
			y *= l
			b := f.bias[i]
			tgt.VX -= x * b
			tgt.VY -= y * b
			b = 1 - b
			src.VX += x * b
			src.VY += y * b
		}
	}
}

// =============================================================================
// Charge
// =============================================================================

// ManyBody applies pairwise attraction (positive strength) or repulsion
// (negative strength) between every pair of nodes closer than DistanceMax.
type ManyBody struct {
	Strength    Accessor
	DistanceMin float64
	DistanceMax float64

	nodes     []*Particle
	strengths []float64
	rnd       *rand.Rand
}

// Initialize evaluates per-node strengths.
func (f *ManyBody) Initialize(nodes []*Particle, rnd *rand.Rand) {
	f.nodes = nodes
	f.rnd = rnd
	f.strengths = evaluate(len(nodes), f.Strength, -30)
}

// Apply accumulates pairwise charge.
func (f *ManyBody) Apply(alpha float64) {
	dmin := f.DistanceMin
	if dmin <= 0 {
		dmin = 1
	}
	dmin2 := dmin * dmin
	dmax2 := math.Inf(1)
	if f.DistanceMax > 0 {
		dmax2 = f.DistanceMax * f.DistanceMax
	}

	for i, p := range f.nodes {
		for j, q := range f.nodes {
			if i == j {
				continue
			}
			x := q.X - p.X
			y := q.Y - p.Y
			l := x*x + y*y
			if l >= dmax2 {
				continue
			}
			if x == 0 {
				x = jiggle(f.rnd)
				l += x * x
			}
			if y == 0 {
				y = jiggle(f.rnd)
				l += y * y
			}
			if l < dmin2 {
				l = math.Sqrt(dmin2 * l)
			}
			w := f.strengths[j] * alpha / l
			p.VX += x * w
			p.VY += y * w
		}
	}
}

// =============================================================================
// Collision
// =============================================================================

// Collide keeps nodes at least Radius(i)+Radius(j) apart.
type Collide struct {
	Radius     Accessor
	Strength   float64
	Iterations int

	nodes []*Particle
	radii []float64
	rnd   *rand.Rand
}

// Initialize evaluates per-node radii.
func (f *Collide) Initialize(nodes []*Particle, rnd *rand.Rand) {
	f.nodes = nodes
	f.rnd = rnd
	f.radii = evaluate(len(nodes), f.Radius, 1)
}

// Apply separates overlapping pairs.
func (f *Collide) Apply(float64) {
	strength := f.Strength
	if strength == 0 {
		strength = 1
	}
	iterations := max(f.Iterations, 1)

	for k := 0; k < iterations; k++ {
		for i, p := range f.nodes {
			ri := f.radii[i]
			ri2 := ri * ri
			xi := p.X + p.VX
			yi := p.Y + p.VY
			for j := i + 1; j < len(f.nodes); j++ {
				q := f.nodes[j]
				rj := f.radii[j]
				r := ri + rj
				x := xi - q.X - q.VX
				y := yi - q.Y - q.VY
				l := x*x + y*y
				if l >= r*r {
					continue
				}
				if x == 0 {
					x = jiggle(f.rnd)
					l += x * x
				}
				if y == 0 {
					y = jiggle(f.rnd)
					l += y * y
				}
				l = math.Sqrt(l)
				l = (r - l) / l * strength
				x *= l
				y *= l
				rj2 := rj * rj
				ratio := rj2 / (ri2 + rj2)
				p.VX += x * ratio
				p.VY += y * ratio
				ratio = 1 - ratio
				q.VX -= x * ratio
				q.VY -= y * ratio
			}
		}
	}
}
