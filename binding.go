package replisim

import "math/rand"

// BindingBehavior governs which pre-replicative origins a particle
// considers binding to, and whether a binding attempt succeeds.
type BindingBehavior interface {
	// ShuffleOrigins randomizes the order in which idxs are tried as
	// binding candidates for a single particle.
	ShuffleOrigins(idxs []OriginIdx)
	// ShuffleParticles randomizes the order in which mobile particles
	// attempt binding within one iteration.
	ShuffleParticles(idxs []ParticleIdx)
	// InProximity reports whether a particle at p is close enough to
	// origin o to be a binding candidate.
	InProximity(p *Particle, o *Origin) bool
	// CheckBinding is consulted, once per candidate, to decide whether
	// a proximate particle actually binds to an origin.
	CheckBinding(p *Particle, o *Origin) bool
}

// ProbabilisticBinding binds a particle to a proximate pre-replicative
// origin with a fixed per-attempt probability. Proximity is an
// axis-aligned box of half-width dBind around the origin's granule.
type ProbabilisticBinding struct {
	dBind float64
	pBind float64
	rng   *rand.Rand
}

// NewProbabilisticBinding constructs a probabilistic binding
// strategy. dBind is the maximum per-axis distance (um) between a
// particle and an origin's granule for them to be considered
// proximate; pBind is the binding probability per proximate
// candidate, per iteration.
func NewProbabilisticBinding(dBind, pBind float64, seed int64) *ProbabilisticBinding {
	return &ProbabilisticBinding{
		dBind: dBind,
		pBind: pBind,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (b *ProbabilisticBinding) ShuffleOrigins(idxs []OriginIdx) {
	b.rng.Shuffle(len(idxs), func(i, j int) { idxs[i], idxs[j] = idxs[j], idxs[i] })
}

func (b *ProbabilisticBinding) ShuffleParticles(idxs []ParticleIdx) {
	b.rng.Shuffle(len(idxs), func(i, j int) { idxs[i], idxs[j] = idxs[j], idxs[i] })
}

func (b *ProbabilisticBinding) InProximity(p *Particle, o *Origin) bool {
	diff := p.Pos().Sub(o.Granule())
	return absLE(diff[0], b.dBind) && absLE(diff[1], b.dBind) && absLE(diff[2], b.dBind)
}

func (b *ProbabilisticBinding) CheckBinding(p *Particle, o *Origin) bool {
	return b.rng.Float64() < b.pBind
}

func absLE(v, bound float64) bool {
	if v < 0 {
		v = -v
	}
	return v <= bound
}
