package layout

import (
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/sim"
)

// Layout constants.
const (
	// Spacing is the vertical distance between consecutive backbone nodes.
	Spacing = 14.0

	// DefaultY is the vertical target for nodes without a usable year.
	DefaultY = 300.0

	eraOffsetStep   = 6.0
	sideBase        = 80.0
	sideDepthStep   = 14.0
	chargeMaxDist   = 200.0
	collideStrength = 0.8
	collideRounds   = 3
)

// Force names installed on the simulation.
const (
	ForceX       = "x"
	ForceY       = "y"
	ForceLink    = "link"
	ForceCharge  = "charge"
	ForceCollide = "collide"
)

type kindParams struct {
	strengthX, strengthY float64
	charge               float64
	radius               float64
}

var kinds = map[lineage.Kind]kindParams{
	lineage.KindRoot:        {strengthX: 1.0, strengthY: 1.0, charge: -15, radius: 14},
	lineage.KindPrincipal:   {strengthX: 0.7, strengthY: 0.98, charge: -15, radius: 10},
	lineage.KindRecovered:   {strengthX: 0.5, strengthY: 0.6, charge: -25, radius: 8},
	lineage.KindSubordinate: {strengthX: 0.4, strengthY: 0.4, charge: -10, radius: 8},
	lineage.KindLost:        {strengthX: 0.4, strengthY: 0.4, charge: -10, radius: 8},
}

func params(k lineage.Kind) kindParams {
	if p, ok := kinds[k]; ok {
		return p
	}
	return kinds[lineage.KindSubordinate]
}

// StrengthX returns the horizontal pull of a node kind.
func StrengthX(k lineage.Kind) float64 { return params(k).strengthX }

// StrengthY returns the vertical pull of a node kind.
func StrengthY(k lineage.Kind) float64 { return params(k).strengthY }

// Charge returns the many-body strength of a node kind. Negative values repel.
func Charge(k lineage.Kind) float64 { return params(k).charge }

// Radius returns the collision radius of a node kind.
func Radius(k lineage.Kind) float64 { return params(k).radius }

// LinkSpring returns the rest distance and strength of a link between
// nodes of kinds a and b.
func LinkSpring(a, b lineage.Kind) (distance, strength float64) {
	switch {
	case a.MainLine() && b.MainLine():
		return Spacing * 0.9, 0.9
	case a == lineage.KindRecovered || b == lineage.KindRecovered:
		return Spacing * 1.4, 0.5
	default:
		return 50, 0.3
	}
}

// TargetX returns the horizontal target of n.
func TargetX(n *lineage.Node) float64 {
	switch n.Kind {
	case lineage.KindRoot:
		return 0
	case lineage.KindPrincipal:
		sign := 1.0
		if n.EraSlot%2 != 0 {
			sign = -1
		}
		return sign * float64(n.EraSlot/2) * eraOffsetStep
	}
	depth := 1
	if n.TraceDepth != nil {
		depth = *n.TraceDepth
	}
	return Side(n.ID) * (sideBase + float64(depth)*sideDepthStep)
}

// TargetY returns the vertical target of n.
func TargetY(n *lineage.Node, in *Interpolator) float64 {
	if n.Kind == lineage.KindRoot {
		return 0
	}
	if n.InBackbone() {
		return float64(n.Seq) * Spacing
	}
	return in.Y(n.Year)
}

// Side returns +1 or -1 from the parity of the id's character codes.
func Side(id string) float64 {
	sum := 0
	for _, r := range id {
		sum += int(r)
	}
	if sum%2 == 0 {
		return 1
	}
	return -1
}

// =============================================================================
// Simulation wiring
// =============================================================================

// NewSimulation returns a simulation with the lineage view's cooling parameters.
func NewSimulation(seed int64) *sim.Simulation {
	return sim.New(
		sim.WithAlphaDecay(sim.DefaultAlphaDecay),
		sim.WithAlphaMin(sim.DefaultAlphaMin),
		sim.WithVelocityDecay(sim.DefaultVelocityDecay),
		sim.WithSeed(seed),
	)
}

// Configure pre-positions unplaced nodes, hands every node body to s and
// installs the five layout forces. It must be called again whenever the
// node or link set changes. It returns the node order used for indexing.
func Configure(s *sim.Simulation, g *lineage.Graph) []*lineage.Node {
	in := NewInterpolator(g)
	nodes := g.Nodes()
	Place(nodes, in)

	index := make(map[string]int, len(nodes))
	bodies := make([]*sim.Particle, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
		bodies[i] = &n.Body
	}

	var edges []sim.Edge
	var dist, strength []float64
	for _, l := range g.Links() {
		si, ok1 := index[l.Source]
		ti, ok2 := index[l.Target]
		if !ok1 || !ok2 {
			continue
		}
		d, k := LinkSpring(nodes[si].Kind, nodes[ti].Kind)
		edges = append(edges, sim.Edge{Source: si, Target: ti})
		dist = append(dist, d)
		strength = append(strength, k)
	}

	s.ClearForces()
	s.SetNodes(bodies)
	s.SetForce(ForceLink, &sim.Link{
		Edges:    edges,
		Distance: func(i int) float64 { return dist[i] },
		Strength: func(i int) float64 { return strength[i] },
	})
	s.SetForce(ForceY, &sim.PositionY{
		Target:   func(i int) float64 { return TargetY(nodes[i], in) },
		Strength: func(i int) float64 { return StrengthY(nodes[i].Kind) },
	})
	s.SetForce(ForceX, &sim.PositionX{
		Target:   func(i int) float64 { return TargetX(nodes[i]) },
		Strength: func(i int) float64 { return StrengthX(nodes[i].Kind) },
	})
	s.SetForce(ForceCollide, &sim.Collide{
		Radius:     func(i int) float64 { return Radius(nodes[i].Kind) },
		Strength:   collideStrength,
		Iterations: collideRounds,
	})
	s.SetForce(ForceCharge, &sim.ManyBody{
		Strength:    func(i int) float64 { return Charge(nodes[i].Kind) },
		DistanceMax: chargeMaxDist,
	})
	return nodes
}

// Place moves every unplaced or non-finite node onto its force targets so
// the simulation starts close to rest. The root is re-pinned at the origin.
func Place(nodes []*lineage.Node, in *Interpolator) {
	for _, n := range nodes {
		if n.Kind == lineage.KindRoot {
			n.Body.Pin(0, 0)
			continue
		}
		if n.Body.Placed && n.Body.Finite() {
			continue
		}
		n.Body.X = TargetX(n)
		n.Body.Y = TargetY(n, in)
		n.Body.VX, n.Body.VY = 0, 0
		n.Body.Placed = true
	}
}
