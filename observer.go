package replisim

// SimulationEvent is passed to observer callbacks that carry no
// additional payload beyond the simulation itself.
type SimulationEvent struct {
	Simulation *Simulation
}

// OriginEvent is passed to observer callbacks about a specific
// origin.
type OriginEvent struct {
	Simulation *Simulation
	OriginIdx  OriginIdx
	Origin     *Origin
}

// ParticleEvent is passed to observer callbacks about a specific
// particle.
type ParticleEvent struct {
	Simulation  *Simulation
	ParticleIdx ParticleIdx
	Particle    *Particle
}

// Observer receives synchronous, read-only notifications of
// simulation events. Implementations must not mutate the Simulation,
// Origin, or Particle passed to them, and must not re-enter the
// Simulation (e.g. by calling Run from within a callback). Every
// method has a no-op default via ObserverBase, so implementations
// only need to override what they care about.
type Observer interface {
	HandleSimulationStarted(e SimulationEvent)
	HandleIterationCompleted(e SimulationEvent)
	HandleParticleDiffused(e ParticleEvent)
	HandleParticleActivationStateChanged(e ParticleEvent)
	HandleParticleBindingStateChanged(e ParticleEvent)
	HandleOriginFired(e OriginEvent)
	HandleOriginReplicated(e OriginEvent)
}

// ObserverBase provides no-op implementations of every Observer
// method. Embed it to implement only the callbacks you need.
type ObserverBase struct{}

func (ObserverBase) HandleSimulationStarted(SimulationEvent)            {}
func (ObserverBase) HandleIterationCompleted(SimulationEvent)           {}
func (ObserverBase) HandleParticleDiffused(ParticleEvent)               {}
func (ObserverBase) HandleParticleActivationStateChanged(ParticleEvent) {}
func (ObserverBase) HandleParticleBindingStateChanged(ParticleEvent)    {}
func (ObserverBase) HandleOriginFired(OriginEvent)                      {}
func (ObserverBase) HandleOriginReplicated(OriginEvent)                 {}

// MultiSimulationObserver aggregates firing counts and cumulative
// firing times per origin id across one or more Simulation runs. It
// is intended to be registered on every Simulation in a batch so that
// per-origin statistics (mean firing time, firing frequency) can be
// computed once all runs complete.
type MultiSimulationObserver struct {
	ObserverBase

	nSimulations int
	fireCounts   map[string]int
	fireTimeSums map[string]float64
}

// NewMultiSimulationObserver constructs an empty aggregator.
func NewMultiSimulationObserver() *MultiSimulationObserver {
	return &MultiSimulationObserver{
		fireCounts:   make(map[string]int),
		fireTimeSums: make(map[string]float64),
	}
}

// HandleSimulationStarted counts the run so NSimulations() reflects
// how many independent Simulation runs contributed data.
func (m *MultiSimulationObserver) HandleSimulationStarted(e SimulationEvent) {
	m.nSimulations++
}

// HandleOriginFired records a firing event, keyed by origin id, so
// that origins can be aggregated across chromosome copies that share
// ids across runs.
func (m *MultiSimulationObserver) HandleOriginFired(e OriginEvent) {
	id := e.Origin.ID()
	m.fireCounts[id]++
	m.fireTimeSums[id] += e.Simulation.CurrentTime()
}

// NSimulations returns the number of simulation runs this observer
// has been notified of the start of.
func (m *MultiSimulationObserver) NSimulations() int { return m.nSimulations }

// FireCount returns the number of times the origin with the given id
// fired, across all observed runs.
func (m *MultiSimulationObserver) FireCount(originID string) int { return m.fireCounts[originID] }

// FireFrequency returns FireCount(originID) / NSimulations(), or 0 if
// no simulations have been observed.
func (m *MultiSimulationObserver) FireFrequency(originID string) float64 {
	if m.nSimulations == 0 {
		return 0
	}
	return float64(m.fireCounts[originID]) / float64(m.nSimulations)
}

// FireTimeSum returns the cumulative simulation time at which the
// origin with the given id fired, summed across every observed run.
func (m *MultiSimulationObserver) FireTimeSum(originID string) float64 {
	return m.fireTimeSums[originID]
}

// MeanFiringTime returns the mean simulation time at which the origin
// with the given id fired, across the runs in which it fired. Returns
// 0 if it never fired.
func (m *MultiSimulationObserver) MeanFiringTime(originID string) float64 {
	count := m.fireCounts[originID]
	if count == 0 {
		return 0
	}
	return m.fireTimeSums[originID] / float64(count)
}
