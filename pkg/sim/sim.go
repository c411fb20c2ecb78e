package sim

import (
	"math"
	"math/rand"
)

// Default simulation parameters.
const (
	DefaultAlphaMin      = 0.001
	DefaultAlphaDecay    = 0.025
	DefaultVelocityDecay = 0.65
	DefaultWarmupTicks   = 120
	DefaultCooldownTicks = 300
)

// Particle is the mutable physical state of one simulated entity.
type Particle struct {
	X, Y   float64
	VX, VY float64

	// Fixed pins the particle at (FX, FY).
	Fixed  bool
	FX, FY float64

	// Placed reports whether X/Y hold a meaningful initial position.
	// Unplaced particles are seeded on a phyllotaxis spiral.
	Placed bool
}

// Pin fixes the particle at (x, y).
func (p *Particle) Pin(x, y float64) {
	p.Fixed = true
	p.FX, p.FY = x, y
	p.X, p.Y = x, y
	p.VX, p.VY = 0, 0
	p.Placed = true
}

// Unpin releases a fixed particle.
func (p *Particle) Unpin() { p.Fixed = false }

// Finite reports whether both coordinates are finite numbers.
func (p *Particle) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Force contributes velocity to particles each tick.
type Force interface {
	// Initialize is called whenever the node set changes.
	Initialize(nodes []*Particle, rnd *rand.Rand)
	// Apply adds velocity scaled by alpha.
	Apply(alpha float64)
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithAlphaMin sets the alpha value below which Step reports the simulation as cooled.
func WithAlphaMin(v float64) Option { return func(s *Simulation) { s.alphaMin = v } }

// WithAlphaDecay sets the per-tick alpha cooling rate.
func WithAlphaDecay(v float64) Option { return func(s *Simulation) { s.alphaDecay = v } }

// WithVelocityDecay sets the fraction of velocity lost per tick.
func WithVelocityDecay(v float64) Option { return func(s *Simulation) { s.velocityDecay = v } }

// WithSeed sets the seed of the jiggle source so runs are reproducible.
func WithSeed(seed int64) Option {
	return func(s *Simulation) { s.rnd = rand.New(rand.NewSource(seed)) }
}

// Simulation integrates particles under a set of named forces.
// It is not safe for concurrent use.
type Simulation struct {
	nodes  []*Particle
	forces map[string]Force
	order  []string

	alpha         float64
	alphaMin      float64
	alphaDecay    float64
	alphaTarget   float64
	velocityDecay float64
	rnd           *rand.Rand
}

// New creates a simulation with d3-style defaults.
func New(opts ...Option) *Simulation {
	s := &Simulation{
		forces:        make(map[string]Force),
		alpha:         1,
		alphaMin:      DefaultAlphaMin,
		alphaDecay:    DefaultAlphaDecay,
		velocityDecay: DefaultVelocityDecay,
		rnd:           rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNodes replaces the particle set and reinitializes every force.
func (s *Simulation) SetNodes(nodes []*Particle) {
	s.nodes = nodes
	s.seedPositions()
	for _, name := range s.order {
		s.forces[name].Initialize(s.nodes, s.rnd)
	}
}

// ClearForces removes every registered force. Callers that rebuild the
// force set for a new particle set clear first, so SetNodes does not
// reinitialize forces whose accessors index the old set.
func (s *Simulation) ClearForces() {
	clear(s.forces)
	s.order = s.order[:0]
}

// Nodes returns the current particle set.
func (s *Simulation) Nodes() []*Particle { return s.nodes }

// SetForce installs f under name, replacing any previous force with that
// name. A nil f removes the force.
func (s *Simulation) SetForce(name string, f Force) {
	if f == nil {
		if _, ok := s.forces[name]; ok {
			delete(s.forces, name)
			for i, n := range s.order {
				if n == name {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		}
		return
	}
	if _, ok := s.forces[name]; !ok {
		s.order = append(s.order, name)
	}
	s.forces[name] = f
	f.Initialize(s.nodes, s.rnd)
}

// Force returns the force registered under name, or nil.
func (s *Simulation) Force(name string) Force { return s.forces[name] }

// Alpha returns the current alpha.
func (s *Simulation) Alpha() float64 { return s.alpha }

// SetAlpha sets the current alpha.
func (s *Simulation) SetAlpha(a float64) { s.alpha = a }

// SetAlphaTarget sets the value alpha cools toward.
func (s *Simulation) SetAlphaTarget(a float64) { s.alphaTarget = a }

// Reheat restarts cooling from alpha 1.
func (s *Simulation) Reheat() { s.alpha = 1 }

// Cooled reports whether alpha dropped below the minimum.
func (s *Simulation) Cooled() bool { return s.alpha < s.alphaMin }

// Tick advances the simulation n times regardless of alpha.
func (s *Simulation) Tick(n int) {
	for k := 0; k < n; k++ {
		s.alpha += (s.alphaTarget - s.alpha) * s.alphaDecay
		for _, name := range s.order {
			s.forces[name].Apply(s.alpha)
		}
		keep := 1 - s.velocityDecay
		for _, p := range s.nodes {
			if p.Fixed {
				p.X, p.Y = p.FX, p.FY
				p.VX, p.VY = 0, 0
				continue
			}
			p.VX *= keep
			p.VY *= keep
			p.X += p.VX
			p.Y += p.VY
		}
	}
}

// Step advances one tick unless the simulation has cooled and reports
// whether it is still active.
func (s *Simulation) Step() bool {
	if s.Cooled() {
		return false
	}
	s.Tick(1)
	return !s.Cooled()
}

// Run performs warmup ticks followed by at most cooldown active steps.
// It returns the total number of ticks taken.
func (s *Simulation) Run(warmup, cooldown int) int {
	s.Tick(warmup)
	n := warmup
	for i := 0; i < cooldown && !s.Cooled(); i++ {
		s.Tick(1)
		n++
	}
	return n
}

func (s *Simulation) seedPositions() {
	const initialRadius = 10.0
	angle := math.Pi * (3 - math.Sqrt(5))
	for i, p := range s.nodes {
		if p.Fixed {
			p.X, p.Y = p.FX, p.FY
			p.Placed = true
			continue
		}
		if p.Placed && p.Finite() {
			continue
		}
		r := initialRadius * math.Sqrt(0.5+float64(i))
		a := float64(i) * angle
		p.X, p.Y = r*math.Cos(a), r*math.Sin(a)
		p.VX, p.VY = 0, 0
		p.Placed = true
	}
}

func jiggle(rnd *rand.Rand) float64 {
	return (rnd.Float64() - 0.5) * 1e-6
}
