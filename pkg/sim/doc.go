// Package sim implements a small velocity-Verlet force simulation in the
// style of d3-force.
//
// A [Simulation] owns an ordered slice of [Particle] pointers and a set of
// named [Force] values. Each tick cools alpha toward its target, lets every
// force add to particle velocities, then damps velocities and integrates
// positions. Fixed particles are snapped back to their pin every tick.
//
// Forces are configured through per-index accessor functions so callers can
// derive targets and strengths from their own node records:
//
//	s := sim.New(sim.WithSeed(1))
//	s.SetNodes(particles)
//	s.SetForce("y", &sim.PositionY{
//	    Target:   func(i int) float64 { return float64(i) * 14 },
//	    Strength: func(int) float64 { return 0.98 },
//	})
//	s.Run(120)
//
// Only the simulation and the forces write particle positions and velocities.
package sim
