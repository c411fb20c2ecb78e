package sim

import (
	"math"
	"testing"
)

func particles(n int) []*Particle {
	out := make([]*Particle, n)
	for i := range out {
		out[i] = &Particle{}
	}
	return out
}

func TestSetNodesSeedsUnplaced(t *testing.T) {
	nodes := particles(3)
	nodes[1].X, nodes[1].Y, nodes[1].Placed = 5, 7, true

	s := New()
	s.SetNodes(nodes)

	if nodes[1].X != 5 || nodes[1].Y != 7 {
		t.Errorf("placed node moved to (%v, %v)", nodes[1].X, nodes[1].Y)
	}
	if nodes[0].X == nodes[2].X && nodes[0].Y == nodes[2].Y {
		t.Error("unplaced nodes should be seeded at distinct positions")
	}
	for i, p := range nodes {
		if !p.Placed {
			t.Errorf("node %d not marked placed", i)
		}
	}
}

func TestFixedParticleNeverMoves(t *testing.T) {
	nodes := particles(5)
	nodes[0].Pin(0, 0)

	s := New(WithSeed(7))
	s.SetNodes(nodes)
	s.SetForce("charge", &ManyBody{Strength: Constant(-30)})
	s.SetForce("x", &PositionX{Target: Constant(100), Strength: Constant(1)})
	s.Tick(200)

	if nodes[0].X != 0 || nodes[0].Y != 0 {
		t.Errorf("fixed particle at (%v, %v), want (0, 0)", nodes[0].X, nodes[0].Y)
	}
	if nodes[0].VX != 0 || nodes[0].VY != 0 {
		t.Error("fixed particle should have zero velocity")
	}
}

func TestPositionConverges(t *testing.T) {
	nodes := particles(1)
	s := New()
	s.SetNodes(nodes)
	s.SetForce("x", &PositionX{Target: Constant(40), Strength: Constant(1)})
	s.SetForce("y", &PositionY{Target: Constant(-20), Strength: Constant(1)})
	s.Tick(300)

	if math.Abs(nodes[0].X-40) > 0.5 || math.Abs(nodes[0].Y+20) > 0.5 {
		t.Errorf("node at (%v, %v), want near (40, -20)", nodes[0].X, nodes[0].Y)
	}
}

func TestLinkPullsTowardDistance(t *testing.T) {
	nodes := particles(2)
	nodes[0].Pin(0, 0)
	nodes[1].X, nodes[1].Y, nodes[1].Placed = 200, 0, true

	s := New()
	s.SetNodes(nodes)
	s.SetForce("link", &Link{
		Edges:    []Edge{{Source: 1, Target: 0}},
		Distance: Constant(20),
		Strength: Constant(1),
	})
	s.Tick(300)

	d := math.Hypot(nodes[1].X, nodes[1].Y)
	if math.Abs(d-20) > 1 {
		t.Errorf("link distance = %v, want about 20", d)
	}
}

func TestLinkIgnoresInvalidEdges(t *testing.T) {
	nodes := particles(2)
	f := &Link{Edges: []Edge{{0, 5}, {1, 1}, {0, 1}}}
	s := New()
	s.SetNodes(nodes)
	s.SetForce("link", f)

	if len(f.edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(f.edges))
	}
	s.Tick(10)
	for i, p := range nodes {
		if !p.Finite() {
			t.Errorf("node %d has non-finite position", i)
		}
	}
}

func TestCollideSeparates(t *testing.T) {
	nodes := particles(2)
	nodes[0].X, nodes[0].Placed = 0, true
	nodes[1].X, nodes[1].Placed = 1, true

	s := New()
	s.SetNodes(nodes)
	s.SetForce("collide", &Collide{Radius: Constant(5), Strength: 1, Iterations: 3})
	s.Tick(50)

	if d := math.Hypot(nodes[1].X-nodes[0].X, nodes[1].Y-nodes[0].Y); d < 9 {
		t.Errorf("collision distance = %v, want >= 9", d)
	}
}

func TestAlphaCools(t *testing.T) {
	s := New()
	s.SetNodes(particles(1))
	n := s.Run(DefaultWarmupTicks, DefaultCooldownTicks)

	if n <= DefaultWarmupTicks || n > DefaultWarmupTicks+DefaultCooldownTicks {
		t.Errorf("Run ticks = %d, out of range", n)
	}
	if !s.Cooled() {
		t.Errorf("alpha = %v, want below %v", s.Alpha(), DefaultAlphaMin)
	}
	if s.Step() {
		t.Error("Step on a cooled simulation should report inactive")
	}

	s.Reheat()
	if s.Alpha() != 1 || s.Cooled() {
		t.Error("Reheat should restore alpha to 1")
	}
}

func TestSetForceRemove(t *testing.T) {
	s := New()
	s.SetForce("x", &PositionX{})
	s.SetForce("y", &PositionY{})
	s.SetForce("x", nil)

	if s.Force("x") != nil {
		t.Error("force x should be removed")
	}
	if len(s.order) != 1 || s.order[0] != "y" {
		t.Errorf("order = %v, want [y]", s.order)
	}
}

func TestClearForcesBeforeGrowing(t *testing.T) {
	s := New()
	small := particles(1)
	s.SetNodes(small)
	s.SetForce("y", &PositionY{Target: func(i int) float64 { return float64(len(small) - 1 - i) }})

	s.ClearForces()
	if s.Force("y") != nil || len(s.order) != 0 {
		t.Fatalf("forces left after clear: %v", s.order)
	}
	s.SetNodes(particles(3))
	s.Tick(1)
}

func TestAccessorNonFiniteFallsBack(t *testing.T) {
	nodes := particles(1)
	f := &PositionY{Target: Constant(math.NaN())}
	f.Initialize(nodes, nil)
	if f.targets[0] != 0 {
		t.Errorf("target = %v, want fallback 0", f.targets[0])
	}
}
