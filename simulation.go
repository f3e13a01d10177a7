package replisim

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// OriginView is a read-only snapshot of an origin's externally
// visible state, returned by Simulation.Origins. It never exposes the
// arena's internal indices or pointers.
type OriginView struct {
	ID           string
	ChromosomeID string
	Pos          uint64
	State        OriginState
	FiringTime   float64
	Granule      Vec3
}

// ParticleView is a read-only snapshot of a particle's externally
// visible state, returned by Simulation.Particles.
type ParticleView struct {
	Pos    Vec3
	Active bool
	Bound  bool
}

// Simulation is a single, independent run of the replication model.
// It owns all of its origins, particles, and chromosomes in
// pre-sized arenas and is safe to run concurrently with other
// Simulation instances, but is not itself safe for concurrent use.
type Simulation struct {
	runID uuid.UUID
	vFork float64

	tCurrent float64

	chromosomes     []Chromosome
	chromosomesByID map[string]*Chromosome
	origins         *Origins
	particles       []Particle

	diffusion  DiffusionBehavior
	activation ActivationBehavior
	binding    BindingBehavior

	observers []Observer
	logger    Logger
}

// NewSimulation constructs a Simulation from plain loader records. All
// origins must reference chromosomes present in chromosomeData, and
// every origin/chromosome id must be unique; violations are reported
// as InvariantViolation.
func NewSimulation(
	vFork float64,
	originRecords []OriginRecord,
	chromosomeData []ChromosomeData,
	diffusion DiffusionBehavior,
	activation ActivationBehavior,
	binding BindingBehavior,
) (*Simulation, error) {
	if vFork <= 0 {
		return nil, newInvariantViolation("fork velocity must be positive, got %v", vFork)
	}

	chromosomes := make([]Chromosome, len(chromosomeData))
	byID := make(map[string]*Chromosome, len(chromosomeData))
	for i, data := range chromosomeData {
		if _, exists := byID[data.ID]; exists {
			return nil, newInvariantViolation("duplicate chromosome id %q", data.ID)
		}
		chromosomes[i] = newChromosome(data)
		byID[data.ID] = &chromosomes[i]
	}

	origins, err := newOrigins(originRecords, byID)
	if err != nil {
		return nil, err
	}

	return &Simulation{
		runID:           uuid.New(),
		vFork:           vFork,
		chromosomes:     chromosomes,
		chromosomesByID: byID,
		origins:         origins,
		diffusion:       diffusion,
		activation:      activation,
		binding:         binding,
		logger:          NewNopLogger(),
	}, nil
}

// RunID identifies this Simulation instance. It has no effect on
// simulation semantics; it exists so batch drivers and observers can
// label results and log lines.
func (s *Simulation) RunID() uuid.UUID { return s.runID }

// SetLogger installs l as the simulation's logger. The default is a
// no-op logger.
func (s *Simulation) SetLogger(l Logger) { s.logger = l }

// InitializeParticles replaces the particle set with n freshly
// sampled particles, each placed at a random in-domain position and
// given its initial activation state.
func (s *Simulation) InitializeParticles(n int) {
	s.particles = make([]Particle, n)
	for i := range s.particles {
		p := newParticle(true, s.diffusion.RandomPosition())
		p.setActive(s.activation.IsActiveInitially(&p))
		s.particles[i] = p
	}
}

// CurrentTime returns the simulated time, in seconds, reached so far.
func (s *Simulation) CurrentTime() float64 { return s.tCurrent }

// Origins returns a read-only snapshot of every origin's current
// state.
func (s *Simulation) Origins() []OriginView {
	views := make([]OriginView, s.origins.Len())
	for i := range views {
		o := s.origins.Get(OriginIdx(i))
		views[i] = OriginView{
			ID:           o.ID(),
			ChromosomeID: o.ChromosomeID(),
			Pos:          o.Pos(),
			State:        o.State(),
			FiringTime:   o.FiringTime(),
			Granule:      o.Granule(),
		}
	}
	return views
}

// Particles returns a read-only snapshot of every particle's current
// state.
func (s *Simulation) Particles() []ParticleView {
	views := make([]ParticleView, len(s.particles))
	for i := range s.particles {
		p := &s.particles[i]
		views[i] = ParticleView{Pos: p.Pos(), Active: p.Active(), Bound: p.BoundOrigin().Valid()}
	}
	return views
}

// ClearObservers removes every registered observer.
func (s *Simulation) ClearObservers() { s.observers = s.observers[:0] }

// RegisterObserver adds o to the set of observers notified of
// simulation events. Observers are notified synchronously, in
// registration order, from within Run.
func (s *Simulation) RegisterObserver(o Observer) { s.observers = append(s.observers, o) }

// Run executes the simulation to completion: every origin reaches
// OriginPass or OriginPost. It returns the first fatal error
// encountered; observers already notified before the error are not
// retracted.
func (s *Simulation) Run() error {
	mobile := make([]ParticleIdx, len(s.particles))
	for i := range s.particles {
		mobile[i] = ParticleIdx(i)
	}
	replicating := make([]OriginIdx, 0, s.origins.Len())

	s.logger.Infof("simulation %s starting: %d origins, %d particles, vFork=%v", s.runID, s.origins.Len(), len(s.particles), s.vFork)
	s.notifySimulationStarted()

	numPreOrigins := s.origins.Len()
	for numPreOrigins > 0 {
		s.tCurrent += s.diffusion.TimeStep()

		var err error
		if len(mobile) == 1 {
			mobile, numPreOrigins, replicating, err = s.stepSingleMobile(mobile, numPreOrigins, replicating)
		} else {
			mobile, numPreOrigins, replicating, err = s.stepManyMobile(mobile, numPreOrigins, replicating)
		}
		if err != nil {
			s.logger.Errorf("simulation %s failed: %v", s.runID, err)
			return err
		}

		if len(mobile) == 0 && len(replicating) > 0 {
			nextRelease := math.Inf(1)
			for _, idx := range replicating {
				t, err := s.origins.GetMinCollisionTime(idx, s.vFork)
				if err != nil {
					return err
				}
				if t < nextRelease {
					nextRelease = t
				}
			}
			s.tCurrent = nextRelease
		}

		mobile, numPreOrigins, replicating, err = s.advanceReplicatingOrigins(mobile, numPreOrigins, replicating)
		if err != nil {
			s.logger.Errorf("simulation %s failed: %v", s.runID, err)
			return err
		}
		s.notifyIterationCompleted()
	}

	if err := s.finishReplicatingOrigins(replicating); err != nil {
		s.logger.Errorf("simulation %s failed: %v", s.runID, err)
		return err
	}
	s.logger.Infof("simulation %s completed at t=%v", s.runID, s.tCurrent)
	return nil
}

// stepSingleMobile is the fast path for the common case of exactly
// one mobile (unbound) particle: it skips the particle shuffle and the
// rebuilding of the mobile list that stepManyMobile does.
func (s *Simulation) stepSingleMobile(mobile []ParticleIdx, numPreOrigins int, replicating []OriginIdx) ([]ParticleIdx, int, []OriginIdx, error) {
	mp := mobile[0]
	if err := s.diffuseParticle(mp); err != nil {
		return nil, 0, nil, err
	}
	s.activateParticle(mp)

	p := &s.particles[mp]
	if !p.Active() {
		return mobile, numPreOrigins, replicating, nil
	}
	proximity := s.updateParticle(mp)
	s.binding.ShuffleOrigins(proximity)
	for _, originIdx := range proximity {
		bound, err := s.bindParticleToOrigin(mp, originIdx)
		if err != nil {
			return nil, 0, nil, err
		}
		if bound {
			mobile = mobile[:0]
			if err := s.fireOrigin(originIdx); err != nil {
				return nil, 0, nil, err
			}
			replicating = append(replicating, originIdx)
			numPreOrigins--
			break
		}
	}
	return mobile, numPreOrigins, replicating, nil
}

// stepManyMobile is the general path for more than one mobile
// particle: every mobile particle diffuses and is considered for
// activation and binding once, in a shuffled order.
func (s *Simulation) stepManyMobile(mobile []ParticleIdx, numPreOrigins int, replicating []OriginIdx) ([]ParticleIdx, int, []OriginIdx, error) {
	for _, mp := range mobile {
		if err := s.diffuseParticle(mp); err != nil {
			return nil, 0, nil, err
		}
		s.activateParticle(mp)
	}

	newMobile := make([]ParticleIdx, 0, len(mobile))
	s.binding.ShuffleParticles(mobile)
	for _, mp := range mobile {
		p := &s.particles[mp]
		if p.Active() {
			proximity := s.updateParticle(mp)
			s.binding.ShuffleOrigins(proximity)
			for _, originIdx := range proximity {
				if s.origins.Get(originIdx).BoundParticle().Valid() {
					continue
				}
				bound, err := s.bindParticleToOrigin(mp, originIdx)
				if err != nil {
					return nil, 0, nil, err
				}
				if bound {
					if err := s.fireOrigin(originIdx); err != nil {
						return nil, 0, nil, err
					}
					replicating = append(replicating, originIdx)
					numPreOrigins--
					break
				}
			}
		}
		if !p.BoundOrigin().Valid() {
			newMobile = append(newMobile, mp)
		}
	}
	return newMobile, numPreOrigins, replicating, nil
}

// advanceReplicatingOrigins moves every active fork forward to
// tCurrent, releasing particles whose forks just collided and
// dropping origins that reached OriginPost from the replicating set.
func (s *Simulation) advanceReplicatingOrigins(mobile []ParticleIdx, numPreOrigins int, replicating []OriginIdx) ([]ParticleIdx, int, []OriginIdx, error) {
	remaining := replicating[:0]
	for _, originIdx := range replicating {
		nPassive, releasePos, err := s.replicateOrigin(originIdx)
		if err != nil {
			return nil, 0, nil, err
		}
		numPreOrigins -= nPassive
		if releasePos != nil {
			bound := s.origins.Get(originIdx).BoundParticle()
			mobile = append(mobile, bound)
			if err := s.releaseParticleFromOrigin(originIdx, *releasePos); err != nil {
				return nil, 0, nil, err
			}
		}
		if s.origins.Get(originIdx).State() != OriginPost {
			remaining = append(remaining, originIdx)
		}
	}
	return mobile, numPreOrigins, remaining, nil
}

// finishReplicatingOrigins completes every still-replicating origin
// without simulating further diffusion, in order of completion time,
// once every origin on the chromosome has either fired or been
// passively replicated.
func (s *Simulation) finishReplicatingOrigins(replicating []OriginIdx) error {
	if len(replicating) == 0 {
		return nil
	}
	sort.Slice(replicating, func(i, j int) bool {
		ti, _ := s.origins.GetMaxCollisionTime(replicating[i], s.vFork)
		tj, _ := s.origins.GetMaxCollisionTime(replicating[j], s.vFork)
		return ti < tj
	})
	for _, originIdx := range replicating {
		t, err := s.origins.GetMaxCollisionTime(originIdx, s.vFork)
		if err != nil {
			return err
		}
		s.tCurrent = t
		if _, _, err := s.replicateOrigin(originIdx); err != nil {
			return err
		}
		s.notifyIterationCompleted()
	}
	return nil
}

func (s *Simulation) diffuseParticle(idx ParticleIdx) error {
	p := &s.particles[idx]
	newPos := s.diffusion.Diffuse(p.Pos())
	if !s.diffusion.InDomain(newPos) {
		reflected, err := s.diffusion.Reflect(newPos)
		if err != nil {
			return err
		}
		newPos = reflected
	}
	p.setPos(newPos)
	s.notifyParticleDiffused(idx)
	return nil
}

func (s *Simulation) activateParticle(idx ParticleIdx) {
	p := &s.particles[idx]
	switch {
	case !p.Active() && s.activation.CheckSPBActivation(p) && s.diffusion.InSPB(p.Pos()):
		p.setActive(true)
		s.notifyParticleActivationStateChanged(idx)
	case p.Active() && s.activation.CheckPeripheryInactivation(p) && s.diffusion.InPeriphery(p.Pos()):
		p.deactivate()
		s.notifyParticleActivationStateChanged(idx)
	}
}

func (s *Simulation) updateParticle(idx ParticleIdx) []OriginIdx {
	p := &s.particles[idx]
	p.clearProximity()
	for i := 0; i < s.origins.Len(); i++ {
		originIdx := OriginIdx(i)
		o := s.origins.Get(originIdx)
		if o.State() == OriginPre && s.binding.InProximity(p, o) {
			p.addProximityOrigin(originIdx)
		}
	}
	return p.ProximityOrigins()
}

func (s *Simulation) bindParticleToOrigin(particleIdx ParticleIdx, originIdx OriginIdx) (bool, error) {
	p := &s.particles[particleIdx]
	o := s.origins.Get(originIdx)
	if p.wasPreviouslyInProximity(originIdx) {
		return false, nil
	}
	if !s.binding.CheckBinding(p, o) {
		return false, nil
	}
	p.boundOrigin = originIdx
	o.boundParticle = particleIdx
	s.notifyParticleBindingStateChanged(particleIdx)
	return true, nil
}

func (s *Simulation) fireOrigin(idx OriginIdx) error {
	if err := s.origins.Fire(idx, s.tCurrent); err != nil {
		return err
	}
	s.notifyOriginFired(idx)
	return nil
}

func (s *Simulation) replicateOrigin(idx OriginIdx) (nPassive int, releasePos *Vec3, err error) {
	o := s.origins.Get(idx)
	if o.State() == OriginReplLR || o.State() == OriginReplL {
		n, err := s.origins.ReplicateLeft(idx, s.tCurrent, s.vFork)
		if err != nil {
			return 0, nil, err
		}
		nPassive += n
	}
	if o.State() == OriginReplLR || o.State() == OriginReplR {
		n, rp, err := s.origins.ReplicateRight(idx, s.tCurrent, s.vFork)
		if err != nil {
			return 0, nil, err
		}
		nPassive += n
		releasePos = rp
	}
	s.notifyOriginReplicated(idx)
	return nPassive, releasePos, nil
}

func (s *Simulation) releaseParticleFromOrigin(originIdx OriginIdx, releasePos Vec3) error {
	o := s.origins.Get(originIdx)
	particleIdx := o.BoundParticle()
	o.boundParticle = noParticle
	p := &s.particles[particleIdx]
	p.boundOrigin = noOrigin
	p.setPos(releasePos)
	s.notifyParticleBindingStateChanged(particleIdx)
	return nil
}

func (s *Simulation) notifySimulationStarted() {
	e := SimulationEvent{Simulation: s}
	for _, o := range s.observers {
		o.HandleSimulationStarted(e)
	}
}

func (s *Simulation) notifyIterationCompleted() {
	e := SimulationEvent{Simulation: s}
	for _, o := range s.observers {
		o.HandleIterationCompleted(e)
	}
}

func (s *Simulation) notifyParticleDiffused(idx ParticleIdx) {
	e := ParticleEvent{Simulation: s, ParticleIdx: idx, Particle: &s.particles[idx]}
	for _, o := range s.observers {
		o.HandleParticleDiffused(e)
	}
}

func (s *Simulation) notifyParticleActivationStateChanged(idx ParticleIdx) {
	e := ParticleEvent{Simulation: s, ParticleIdx: idx, Particle: &s.particles[idx]}
	for _, o := range s.observers {
		o.HandleParticleActivationStateChanged(e)
	}
}

func (s *Simulation) notifyParticleBindingStateChanged(idx ParticleIdx) {
	e := ParticleEvent{Simulation: s, ParticleIdx: idx, Particle: &s.particles[idx]}
	for _, o := range s.observers {
		o.HandleParticleBindingStateChanged(e)
	}
}

func (s *Simulation) notifyOriginFired(idx OriginIdx) {
	e := OriginEvent{Simulation: s, OriginIdx: idx, Origin: s.origins.Get(idx)}
	for _, o := range s.observers {
		o.HandleOriginFired(e)
	}
}

func (s *Simulation) notifyOriginReplicated(idx OriginIdx) {
	e := OriginEvent{Simulation: s, OriginIdx: idx, Origin: s.origins.Get(idx)}
	for _, o := range s.observers {
		o.HandleOriginReplicated(e)
	}
}
