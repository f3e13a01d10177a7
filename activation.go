package replisim

import "math/rand"

// ActivationBehavior governs when a particle becomes able to fire
// origins (SPB activation) and when it stops being able to
// (peripheral inactivation).
type ActivationBehavior interface {
	// IsActiveInitially reports whether a freshly created particle
	// starts out active.
	IsActiveInitially(p *Particle) bool
	// CheckSPBActivation is consulted once per iteration for every
	// inactive mobile particle, before the SPB membership test; the
	// particle is activated if it returns true and the particle is
	// inside the SPB region.
	CheckSPBActivation(p *Particle) bool
	// CheckPeripheryInactivation is consulted once per iteration for
	// every active mobile particle, before the periphery membership
	// test; the particle is inactivated if it returns true and the
	// particle is inside the peripheral region.
	CheckPeripheryInactivation(p *Particle) bool
}

// ProbabilisticActivation activates particles in the SPB with a fixed
// per-iteration probability, and optionally never lets the periphery
// inactivate them (or always does, per periphery enablement).
type ProbabilisticActivation struct {
	pActivate                    float64
	spbActivationEnabled         bool
	peripheryInactivationEnabled bool
	rng                          *rand.Rand
}

// NewProbabilisticActivation constructs a probabilistic activation
// strategy. When spbActivationEnabled is false, particles start out
// active; the flag has no other effect, so a particle that was
// inactivated is still reactivated in the SPB with probability
// pActivate. When peripheryInactivationEnabled is true, an active
// particle in the periphery is always inactivated.
func NewProbabilisticActivation(pActivate float64, spbActivationEnabled, peripheryInactivationEnabled bool, seed int64) *ProbabilisticActivation {
	return &ProbabilisticActivation{
		pActivate:                    pActivate,
		spbActivationEnabled:         spbActivationEnabled,
		peripheryInactivationEnabled: peripheryInactivationEnabled,
		rng:                          rand.New(rand.NewSource(seed)),
	}
}

func (b *ProbabilisticActivation) IsActiveInitially(p *Particle) bool {
	return !b.spbActivationEnabled
}

func (b *ProbabilisticActivation) CheckSPBActivation(p *Particle) bool {
	return b.rng.Float64() < b.pActivate
}

func (b *ProbabilisticActivation) CheckPeripheryInactivation(p *Particle) bool {
	return b.peripheryInactivationEnabled
}
