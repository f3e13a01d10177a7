package replisim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDiffusion is a minimal, fully deterministic DiffusionBehavior:
// particles never move and are always considered in-domain, never in
// the SPB or periphery, so activation never changes after construction.
type stubDiffusion struct{}

func (stubDiffusion) TimeStep() float64            { return 1 }
func (stubDiffusion) RandomPosition() Vec3         { return Vec3{0, 0, 0} }
func (stubDiffusion) InDomain(Vec3) bool           { return true }
func (stubDiffusion) InSPB(Vec3) bool              { return false }
func (stubDiffusion) InPeriphery(Vec3) bool        { return false }
func (stubDiffusion) Diffuse(pos Vec3) Vec3        { return pos }
func (stubDiffusion) Reflect(pos Vec3) (Vec3, error) { return pos, nil }

// stubActivation keeps every particle active from the start.
type stubActivation struct{}

func (stubActivation) IsActiveInitially(*Particle) bool       { return true }
func (stubActivation) CheckSPBActivation(*Particle) bool      { return false }
func (stubActivation) CheckPeripheryInactivation(*Particle) bool { return false }

// stubBinding always finds candidates in proximity and always binds.
type stubBinding struct{}

func (stubBinding) ShuffleOrigins([]OriginIdx)     {}
func (stubBinding) ShuffleParticles([]ParticleIdx) {}
func (stubBinding) InProximity(*Particle, *Origin) bool { return true }
func (stubBinding) CheckBinding(*Particle, *Origin) bool { return true }

type recordingObserver struct {
	ObserverBase
	started   int
	fired     []string
	completed int
}

func (r *recordingObserver) HandleSimulationStarted(SimulationEvent) { r.started++ }
func (r *recordingObserver) HandleOriginFired(e OriginEvent)         { r.fired = append(r.fired, e.Origin.ID()) }
func (r *recordingObserver) HandleIterationCompleted(SimulationEvent) { r.completed++ }

func newTestSimulation(t *testing.T, records []OriginRecord, contigEnd uint64) *Simulation {
	t.Helper()
	chromData := ChromosomeData{
		ID:       "chrI",
		Contigs:  []Contig{{Start: 0, End: contigEnd}},
		Granules: make([]Vec3, contigEnd/GranuleSize+1),
	}
	sim, err := NewSimulation(10, records, []ChromosomeData{chromData}, stubDiffusion{}, stubActivation{}, stubBinding{})
	require.NoError(t, err)
	sim.InitializeParticles(1)
	return sim
}

func TestSimulationSingleOriginReachesPost(t *testing.T) {
	sim := newTestSimulation(t, []OriginRecord{{ID: "oriA", ChromosomeID: "chrI", Pos: 500}}, 1000)

	obs := &recordingObserver{}
	sim.RegisterObserver(obs)

	err := sim.Run()
	require.NoError(t, err)

	assert.Equal(t, 1, obs.started)
	assert.Equal(t, []string{"oriA"}, obs.fired)
	assert.Positive(t, obs.completed)

	views := sim.Origins()
	require.Len(t, views, 1)
	assert.Equal(t, OriginPost, views[0].State)
}

func TestSimulationEveryOriginTerminates(t *testing.T) {
	sim := newTestSimulation(t, []OriginRecord{
		{ID: "oriA", ChromosomeID: "chrI", Pos: 1000},
		{ID: "oriB", ChromosomeID: "chrI", Pos: 5000},
		{ID: "oriC", ChromosomeID: "chrI", Pos: 9000},
	}, 10000)
	sim.InitializeParticles(3)

	err := sim.Run()
	require.NoError(t, err)

	for _, view := range sim.Origins() {
		assert.Contains(t, []OriginState{OriginPass, OriginPost}, view.State,
			"origin %s ended in non-terminal state %s", view.ID, view.State)
	}
}

func TestSimulationRejectsNonPositiveForkVelocity(t *testing.T) {
	chromData := ChromosomeData{ID: "chrI", Contigs: []Contig{{Start: 0, End: 100}}, Granules: make([]Vec3, 1)}
	_, err := NewSimulation(0, nil, []ChromosomeData{chromData}, stubDiffusion{}, stubActivation{}, stubBinding{})
	require.Error(t, err)
}

func TestMultiSimulationObserverAggregatesAcrossRuns(t *testing.T) {
	agg := NewMultiSimulationObserver()

	for i := 0; i < 3; i++ {
		sim := newTestSimulation(t, []OriginRecord{{ID: "oriA", ChromosomeID: "chrI", Pos: 500}}, 1000)
		sim.RegisterObserver(agg)
		require.NoError(t, sim.Run())
	}

	assert.Equal(t, 3, agg.NSimulations())
	assert.Equal(t, 3, agg.FireCount("oriA"))
	assert.Equal(t, 1.0, agg.FireFrequency("oriA"))
	assert.Positive(t, agg.MeanFiringTime("oriA"))
}
