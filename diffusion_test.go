package replisim

import (
	"math"
	"testing"
)

func TestIsotropicDiffusionDomainPredicates(t *testing.T) {
	b := NewIsotropicDiffusion(0.1, 0.01, 2.0, 1.5, 0.3, 1.8, 1)

	if !b.InDomain(Vec3{-1.0, 0, 0}) {
		t.Errorf("position on the side of the nucleus away from the nucleolus should be in domain")
	}
	if b.InDomain(Vec3{3, 0, 0}) {
		t.Errorf("position outside the nucleus radius should not be in domain")
	}
	// xNucl=1.5, r=2.0: the nucleolus sphere is centered at (1.5,0,0)
	// with the same radius as the nucleus, so it overlaps the origin.
	if b.InDomain(Vec3{1.4, 0, 0}) {
		t.Errorf("position inside the nucleolus should not be in domain")
	}
}

func TestIsotropicDiffusionSPBAndPeriphery(t *testing.T) {
	b := NewIsotropicDiffusion(0.1, 0.01, 2.0, 100.0, 0.3, 1.8, 2)

	spbCenter := Vec3{-(2.0 - 0.3), 0, 0}
	if !b.InSPB(spbCenter) {
		t.Errorf("SPB center should be within the SPB region")
	}
	if b.InPeriphery(spbCenter) {
		t.Errorf("a position within the SPB should never be reported as periphery")
	}

	peripheral := Vec3{0, 1.9, 0}
	if !b.InDomain(peripheral) {
		t.Fatalf("test position should be within the (unobstructed) domain")
	}
	if !b.InPeriphery(peripheral) {
		t.Errorf("position near the boundary, away from the SPB, should be periphery")
	}
}

func TestIsotropicDiffusionStepIsSingleLatticeMove(t *testing.T) {
	b := NewIsotropicDiffusion(0.25, 0.01, 5.0, 100.0, 0.1, 4.0, 3)
	start := Vec3{0, 0, 0}
	next := b.Diffuse(start)
	dist := next.Sub(start).Len()
	if dist != 0 && math.Abs(dist-0.25) > 1e-9 {
		t.Errorf("diffusion step length = %v, want 0 or h=0.25", dist)
	}
}

func TestIsotropicDiffusionReflectStaysInDomain(t *testing.T) {
	b := NewIsotropicDiffusion(0.2, 0.01, 3.0, 100.0, 0.1, 2.8, 4)
	// just outside the nucleus radius, one lattice step from (2.9,0,0)
	outside := Vec3{3.1, 0, 0}
	reflected, err := b.Reflect(outside)
	if err != nil {
		t.Fatalf("Reflect returned error: %v", err)
	}
	if !b.InDomain(reflected) {
		t.Errorf("Reflect(%v) = %v, not in domain", outside, reflected)
	}
}

func TestIsotropicDiffusionRandomPositionInDomain(t *testing.T) {
	b := NewIsotropicDiffusion(0.1, 0.01, 1.0, 100.0, 0.1, 0.8, 5)
	for i := 0; i < 50; i++ {
		pos := b.RandomPosition()
		if !b.InDomain(pos) {
			t.Fatalf("RandomPosition() = %v, not in domain", pos)
		}
	}
}
