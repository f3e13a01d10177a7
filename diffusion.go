package replisim

import (
	"math"
	"math/rand"
	"sort"
)

// DiffusionBehavior supplies everything the simulation loop needs to
// move particles through the nucleus: time stepping, domain
// membership predicates, the diffusion step itself, and boundary
// reflection. Implementations own their randomness; a Simulation
// never seeds or reads behavior-internal RNG state.
type DiffusionBehavior interface {
	// TimeStep returns the next delta_t, in seconds.
	TimeStep() float64
	// RandomPosition returns a uniformly sampled position inside the
	// domain, used to seed initial particle positions.
	RandomPosition() Vec3
	// InDomain reports whether pos is inside the simulated volume.
	InDomain(pos Vec3) bool
	// InSPB reports whether pos is inside the spindle pole body
	// region, where particles may be activated.
	InSPB(pos Vec3) bool
	// InPeriphery reports whether pos is inside the peripheral region,
	// where active particles may be inactivated.
	InPeriphery(pos Vec3) bool
	// Diffuse returns the next candidate position for a particle
	// currently at pos. The result may fall outside the domain.
	Diffuse(pos Vec3) Vec3
	// Reflect maps a position outside the domain back to a position
	// inside it.
	Reflect(pos Vec3) (Vec3, error)
}

var diffusionMoves = [7]Vec3{
	{0, 0, 0},
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

var reflectionMoves = [26]Vec3{
	{0, 0, 1}, {0, 0, -1}, {0, 1, 0}, {0, 1, 1}, {0, 1, -1}, {0, -1, 0}, {0, -1, 1}, {0, -1, -1},
	{1, 0, 0}, {1, 0, 1}, {1, 0, -1}, {1, 1, 0}, {1, 1, 1}, {1, 1, -1}, {1, -1, 0}, {1, -1, 1}, {1, -1, -1},
	{-1, 0, 0}, {-1, 0, 1}, {-1, 0, -1}, {-1, 1, 0}, {-1, 1, 1}, {-1, 1, -1}, {-1, -1, 0}, {-1, -1, 1}, {-1, -1, -1},
}

// IsotropicDiffusion models isotropic diffusion in a spherical nucleus
// with a spherical nucleolus excluded from the domain, on a fixed-step
// lattice, with Kushner-type reflection at the boundary.
//
// delta_t is drawn from Exp(lambda), lambda = 6*D/h^2. Each step is one
// of seven equally likely moves: staying put, or one lattice step of
// length h along +-x, +-y or +-z, so a particle moves on 6/7 of its
// steps on average.
type IsotropicDiffusion struct {
	h          float64
	d          float64
	r          float64
	xNucl      float64
	rSPB       float64
	rPeriphery float64
	rng        *rand.Rand
}

// NewIsotropicDiffusion constructs an isotropic diffusion strategy.
//
//   - h: lattice step size (um)
//   - d: diffusion coefficient (um^2/s)
//   - r: nucleus radius (um)
//   - xNucl: nucleolus center x-offset from the nucleus center (um)
//   - rSPB: spindle pole body region radius (um)
//   - rPeriphery: peripheral region radius (um)
//   - seed: RNG seed; pass time-derived entropy for production runs,
//     a fixed value for reproducible tests
func NewIsotropicDiffusion(h, d, r, xNucl, rSPB, rPeriphery float64, seed int64) *IsotropicDiffusion {
	return &IsotropicDiffusion{
		h:          h,
		d:          d,
		r:          r,
		xNucl:      xNucl,
		rSPB:       rSPB,
		rPeriphery: rPeriphery,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (b *IsotropicDiffusion) TimeStep() float64 {
	lambda := 6 * b.d / (b.h * b.h)
	return b.rng.ExpFloat64() / lambda
}

func (b *IsotropicDiffusion) RandomPosition() Vec3 {
	for {
		pos := Vec3{
			b.uniform(-b.r, b.r),
			b.uniform(-b.r, b.r),
			b.uniform(-b.r, b.r),
		}
		if b.InDomain(pos) {
			return pos
		}
	}
}

func (b *IsotropicDiffusion) uniform(lo, hi float64) float64 {
	return lo + b.rng.Float64()*(hi-lo)
}

func (b *IsotropicDiffusion) inNucleus(pos Vec3) bool {
	return pos.LenSqr() <= b.r*b.r
}

func (b *IsotropicDiffusion) inNucleolus(pos Vec3) bool {
	d := pos.Sub(Vec3{b.xNucl, 0, 0})
	return d.LenSqr() <= b.r*b.r
}

func (b *IsotropicDiffusion) InDomain(pos Vec3) bool {
	return b.inNucleus(pos) && !b.inNucleolus(pos)
}

func (b *IsotropicDiffusion) InSPB(pos Vec3) bool {
	d := pos.Add(Vec3{b.r - b.rSPB, 0, 0})
	return d.LenSqr() <= b.rSPB*b.rSPB
}

func (b *IsotropicDiffusion) InPeriphery(pos Vec3) bool {
	if b.InSPB(pos) || !b.InDomain(pos) {
		return false
	}
	return pos.LenSqr() >= b.rPeriphery*b.rPeriphery
}

func (b *IsotropicDiffusion) Diffuse(pos Vec3) Vec3 {
	move := diffusionMoves[b.rng.Intn(len(diffusionMoves))]
	return pos.Add(move.Mul(b.h))
}

// Reflect implements the Kushner-type reflection: expand a ring of
// lattice-adjacent in-domain candidates around pos (and, once that's
// not enough, around the candidates already found) until at least
// three linearly independent candidates are available, solve for the
// barycentric-like coefficients of pos in that candidate basis, and
// sample the reflected point from the three candidates with
// probability proportional to the (absolute) coefficients.
func (b *IsotropicDiffusion) Reflect(pos Vec3) (Vec3, error) {
	candidates := []Vec3{pos}
	oldSize := 0
	var err error
	for len(candidates) <= 3 {
		candidates, oldSize, err = b.reflectExpand(candidates, oldSize)
		if err != nil {
			return Vec3{}, err
		}
		b.reflectSort(candidates, pos, oldSize)
	}

	thirdIdx := 3
	mat := Mat3{
		candidates[1][0], candidates[1][1], candidates[1][2],
		candidates[2][0], candidates[2][1], candidates[2][2],
		candidates[thirdIdx][0], candidates[thirdIdx][1], candidates[thirdIdx][2],
	}
	for singular(mat) {
		thirdIdx++
		if thirdIdx == len(candidates) {
			candidates, oldSize, err = b.reflectExpand(candidates, oldSize)
			if err != nil {
				return Vec3{}, err
			}
			b.reflectSort(candidates, pos, oldSize)
		}
		mat[6], mat[7], mat[8] = candidates[thirdIdx][0], candidates[thirdIdx][1], candidates[thirdIdx][2]
	}

	coef, err := solveAbs(mat, pos)
	if err != nil {
		return Vec3{}, err
	}
	sum := coef[0] + coef[1] + coef[2]
	target := b.rng.Float64() * sum
	switch {
	case target <= coef[0]:
		return candidates[1], nil
	case target <= coef[0]+coef[1]:
		return candidates[2], nil
	default:
		return candidates[thirdIdx], nil
	}
}

// reflectExpand appends, for every candidate from startIdx onward,
// every lattice-adjacent in-domain point not already present among
// the first oldSize candidates. It returns the grown slice and the
// size it had on entry (the new startIdx for a subsequent sort/scan).
func (b *IsotropicDiffusion) reflectExpand(candidates []Vec3, startIdx int) ([]Vec3, int, error) {
	oldSize := len(candidates)
	for i := startIdx; i < oldSize; i++ {
		for _, move := range reflectionMoves {
			candidate := candidates[i].Add(move.Mul(b.h))
			if !b.InDomain(candidate) {
				continue
			}
			seen := false
			for _, existing := range candidates[:oldSize] {
				if existing == candidate {
					seen = true
					break
				}
			}
			if !seen {
				candidates = append(candidates, candidate)
			}
		}
	}
	if len(candidates) == oldSize {
		return nil, 0, &ReflectionImpossible{Pos: candidates[0]}
	}
	return candidates, oldSize, nil
}

func (b *IsotropicDiffusion) reflectSort(candidates []Vec3, refPos Vec3, startIdx int) {
	tail := candidates[startIdx:]
	var key func(Vec3) float64
	if b.inNucleolus(refPos) {
		key = func(p Vec3) float64 { return refPos.Sub(p).LenSqr() }
	} else {
		neg := refPos.Mul(-1)
		key = func(p Vec3) float64 { return p.Dot(neg) }
	}
	sort.Slice(tail, func(i, j int) bool { return key(tail[i]) < key(tail[j]) })
}

// singular reports whether m is (numerically) rank-deficient.
func singular(m Mat3) bool {
	const tol = 1e-9
	return math.Abs(m.Det()) < tol
}

// solveAbs solves m*x = target and returns the component-wise
// absolute value of x, matching the reference implementation's
// "numeric instability -> take absolute values" comment. Callers must
// ensure m is non-singular (see singular).
func solveAbs(m Mat3, target Vec3) (Vec3, error) {
	if singular(m) {
		return Vec3{}, &ReflectionImpossible{Pos: target}
	}
	x := m.Inv().Mul3x1(target)
	return Vec3{math.Abs(x[0]), math.Abs(x[1]), math.Abs(x[2])}, nil
}
