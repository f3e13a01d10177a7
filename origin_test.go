package replisim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrigins(t *testing.T, records []OriginRecord) *Origins {
	t.Helper()
	chrom := newChromosome(ChromosomeData{
		ID:       "chrI",
		Contigs:  []Contig{{Start: 0, End: 100000}},
		Granules: make([]Vec3, 30),
	})
	byID := map[string]*Chromosome{"chrI": &chrom}
	origins, err := newOrigins(records, byID)
	require.NoError(t, err)
	return origins
}

func TestNewOriginsLinksNeighbors(t *testing.T) {
	origins := testOrigins(t, []OriginRecord{
		{ID: "oriA", ChromosomeID: "chrI", Pos: 1000},
		{ID: "oriB", ChromosomeID: "chrI", Pos: 5000},
		{ID: "oriC", ChromosomeID: "chrI", Pos: 9000},
	})

	oriB := origins.Get(1)
	assert.Equal(t, OriginIdx(0), oriB.leftOrigin)
	assert.Equal(t, OriginIdx(2), oriB.rightOrigin)

	oriA := origins.Get(0)
	assert.Equal(t, noOrigin, oriA.leftOrigin)
	assert.Equal(t, OriginIdx(1), oriA.rightOrigin)
}

func TestNewOriginsRejectsUnknownChromosome(t *testing.T) {
	chrom := newChromosome(ChromosomeData{ID: "chrI", Contigs: []Contig{{Start: 0, End: 100}}, Granules: make([]Vec3, 1)})
	byID := map[string]*Chromosome{"chrI": &chrom}
	_, err := newOrigins([]OriginRecord{{ID: "oriA", ChromosomeID: "chrX", Pos: 10}}, byID)
	require.Error(t, err)
	var invariant *InvariantViolation
	assert.ErrorAs(t, err, &invariant)
}

func TestNewOriginsRejectsDuplicateID(t *testing.T) {
	chrom := newChromosome(ChromosomeData{ID: "chrI", Contigs: []Contig{{Start: 0, End: 100}}, Granules: make([]Vec3, 1)})
	byID := map[string]*Chromosome{"chrI": &chrom}
	_, err := newOrigins([]OriginRecord{
		{ID: "oriA", ChromosomeID: "chrI", Pos: 10},
		{ID: "oriA", ChromosomeID: "chrI", Pos: 20},
	}, byID)
	require.Error(t, err)
}

func TestFireRequiresPreState(t *testing.T) {
	origins := testOrigins(t, []OriginRecord{{ID: "oriA", ChromosomeID: "chrI", Pos: 1000}})
	require.NoError(t, origins.Fire(0, 0))
	err := origins.Fire(0, 10)
	require.Error(t, err)
}

func TestSoloOriginCollidesWithContigBoundaries(t *testing.T) {
	const vFork = 10.0
	origins := testOrigins(t, []OriginRecord{{ID: "oriA", ChromosomeID: "chrI", Pos: 1000}})
	if err := origins.Fire(0, 0); err != nil {
		t.Fatalf("Fire failed: %v", err)
	}

	left, err := origins.getLeftCollisionTime(0, vFork)
	if err != nil {
		t.Fatalf("left collision time: %v", err)
	}
	if want := 1000.0 / vFork; left != want {
		t.Errorf("left collision time = %v, want %v", left, want)
	}

	right, err := origins.getRightCollisionTime(0, vFork)
	if err != nil {
		t.Fatalf("right collision time: %v", err)
	}
	if want := (100000.0 - 1000.0) / vFork; right != want {
		t.Errorf("right collision time = %v, want %v", right, want)
	}
}

func TestReplicateLeftPassiveActivationCascade(t *testing.T) {
	const vFork = 10.0
	origins := testOrigins(t, []OriginRecord{
		{ID: "oriA", ChromosomeID: "chrI", Pos: 10000},
		{ID: "oriB", ChromosomeID: "chrI", Pos: 9500},
		{ID: "oriC", ChromosomeID: "chrI", Pos: 9000},
	})
	require.NoError(t, origins.Fire(0, 0))

	// the left fork sweeps from 10000 down to 9400 after 60 seconds:
	// passes oriB (9500) but not oriC (9000)
	nPassive, err := origins.ReplicateLeft(0, 60, vFork)
	require.NoError(t, err)
	assert.Equal(t, 1, nPassive)
	assert.Equal(t, OriginPass, origins.Get(1).State())
	assert.Equal(t, OriginPre, origins.Get(2).State())
}

func TestReplicateRightReleasesParticleOnCollision(t *testing.T) {
	const vFork = 10.0
	origins := testOrigins(t, []OriginRecord{
		{ID: "oriA", ChromosomeID: "chrI", Pos: 1000},
		{ID: "oriB", ChromosomeID: "chrI", Pos: 2000},
	})
	require.NoError(t, origins.Fire(0, 0))
	require.NoError(t, origins.Fire(1, 0))

	origins.Get(0).boundParticle = 0
	rightCollision, err := origins.getRightCollisionTime(0, vFork)
	require.NoError(t, err)

	nPassive, releasePos, err := origins.ReplicateRight(0, rightCollision, vFork)
	require.NoError(t, err)
	assert.Equal(t, 0, nPassive)
	require.NotNil(t, releasePos)
	assert.Equal(t, OriginReplL, origins.Get(0).State())
}
