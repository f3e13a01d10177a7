package replisim

import "math"

// OriginState is the replication state of a single origin.
type OriginState uint8

const (
	// OriginPre is the initial state: the origin can still be fired.
	OriginPre OriginState = iota
	// OriginPass means the origin was passively replicated and will
	// never fire.
	OriginPass
	// OriginReplLR means the origin is actively replicating in both
	// directions along the chromosome.
	OriginReplLR
	// OriginReplL means only the left fork is still active; the right
	// fork already collided.
	OriginReplL
	// OriginReplR means only the right fork is still active.
	OriginReplR
	// OriginPost means both forks have collided; replication from this
	// origin is finished.
	OriginPost
)

func (s OriginState) String() string {
	switch s {
	case OriginPre:
		return "Pre"
	case OriginPass:
		return "Pass"
	case OriginReplLR:
		return "ReplLR"
	case OriginReplL:
		return "ReplL"
	case OriginReplR:
		return "ReplR"
	case OriginPost:
		return "Post"
	default:
		return "Unknown"
	}
}

// OriginIdx is a stable index into an Origins arena. Neighbor and
// replication links are expressed as OriginIdx rather than pointers so
// that Origin values can live in a plain slice without ever being
// copied out of it.
type OriginIdx int

// noOrigin is the sentinel for "no such neighbor".
const noOrigin OriginIdx = -1

// Valid reports whether idx refers to a real origin.
func (idx OriginIdx) Valid() bool { return idx >= 0 }

// OriginRecord is the plain, loader-facing description of an origin:
// its id, the chromosome it sits on, and its base-pair position.
type OriginRecord struct {
	ID           string
	ChromosomeID string
	Pos          uint64
}

// Origin is a single replication origin. It is never copied once
// placed in an Origins arena; all cross-references to other origins
// are OriginIdx values resolved through that arena.
type Origin struct {
	id           string
	chromosomeID string
	pos          uint64

	state         OriginState
	firingTime    float64
	boundParticle ParticleIdx
	chromosome    *Chromosome
	granule       Vec3

	leftOrigin  OriginIdx
	rightOrigin OriginIdx

	leftReplOrigin  OriginIdx
	rightReplOrigin OriginIdx

	nextLeftPassOrigin  OriginIdx
	nextRightPassOrigin OriginIdx
}

// ID returns the origin's identifier.
func (o *Origin) ID() string { return o.id }

// Pos returns the origin's base-pair position.
func (o *Origin) Pos() uint64 { return o.pos }

// ChromosomeID returns the id of the chromosome this origin sits on.
func (o *Origin) ChromosomeID() string { return o.chromosomeID }

// State returns the origin's current replication state.
func (o *Origin) State() OriginState { return o.state }

// FiringTime returns the time (seconds) at which the origin fired.
// Meaningless while State() == OriginPre.
func (o *Origin) FiringTime() float64 { return o.firingTime }

// BoundParticle returns the particle currently bound to this origin,
// or noParticle if none is bound.
func (o *Origin) BoundParticle() ParticleIdx { return o.boundParticle }

// Chromosome returns the chromosome this origin was placed on.
func (o *Origin) Chromosome() *Chromosome { return o.chromosome }

// Granule returns the 3D granule position of this origin.
func (o *Origin) Granule() Vec3 { return o.granule }

// Origins is an arena of Origin values plus the neighbor/replication
// links between them. All mutation of an Origin's state goes through
// Origins methods so that cross-references stay consistent.
type Origins struct {
	items []Origin
}

// newOrigins builds an Origins arena from loader records, resolving
// each origin's chromosome and granule and linking direct
// left/right chromosome neighbors. chromosomes must outlive the
// returned Origins: pointers into it are retained.
func newOrigins(records []OriginRecord, chromosomes map[string]*Chromosome) (*Origins, error) {
	items := make([]Origin, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		if seen[rec.ID] {
			return nil, newInvariantViolation("duplicate origin id %q", rec.ID)
		}
		seen[rec.ID] = true
		chrom, ok := chromosomes[rec.ChromosomeID]
		if !ok {
			return nil, newInvariantViolation("origin %q references unknown chromosome %q", rec.ID, rec.ChromosomeID)
		}
		granule, err := chrom.FindGranule(rec.Pos)
		if err != nil {
			return nil, err
		}
		items[i] = Origin{
			id:                  rec.ID,
			chromosomeID:        rec.ChromosomeID,
			pos:                 rec.Pos,
			state:               OriginPre,
			boundParticle:       noParticle,
			chromosome:          chrom,
			granule:             granule,
			leftOrigin:          noOrigin,
			rightOrigin:         noOrigin,
			leftReplOrigin:      noOrigin,
			rightReplOrigin:     noOrigin,
			nextLeftPassOrigin:  noOrigin,
			nextRightPassOrigin: noOrigin,
		}
	}
	os := &Origins{items: items}
	os.linkNeighbors()
	return os, nil
}

// linkNeighbors finds, for every origin, the closest origin to its
// left and right within the same contig. O(n^2) in the number of
// origins, matching the reference implementation; origin counts per
// chromosome are small enough (hundreds to low thousands) that this
// never dominates a run.
func (os *Origins) linkNeighbors() {
	for i := range os.items {
		a := &os.items[i]
		for j := range os.items {
			if i == j {
				continue
			}
			b := &os.items[j]
			if b.chromosomeID != a.chromosomeID || !a.chromosome.InSameContig(a.pos, b.pos) {
				continue
			}
			if b.pos < a.pos && (!a.leftOrigin.Valid() || b.pos > os.items[a.leftOrigin].pos) {
				a.leftOrigin = OriginIdx(j)
				a.nextLeftPassOrigin = OriginIdx(j)
			}
			if b.pos > a.pos && (!a.rightOrigin.Valid() || b.pos < os.items[a.rightOrigin].pos) {
				a.rightOrigin = OriginIdx(j)
				a.nextRightPassOrigin = OriginIdx(j)
			}
		}
	}
}

// Len returns the number of origins in the arena.
func (os *Origins) Len() int { return len(os.items) }

// Get returns the origin at idx.
func (os *Origins) Get(idx OriginIdx) *Origin { return &os.items[idx] }

func (os *Origins) findLeftReplOrigin(idx OriginIdx) OriginIdx {
	cur := os.items[idx].leftOrigin
	for cur.Valid() {
		st := os.items[cur].state
		if st == OriginReplLR || st == OriginReplR {
			return cur
		}
		cur = os.items[cur].leftOrigin
	}
	return noOrigin
}

func (os *Origins) findRightReplOrigin(idx OriginIdx) OriginIdx {
	cur := os.items[idx].rightOrigin
	for cur.Valid() {
		st := os.items[cur].state
		if st == OriginReplLR || st == OriginReplL {
			return cur
		}
		cur = os.items[cur].rightOrigin
	}
	return noOrigin
}

// Fire transitions idx from Pre to ReplLR at tFire and resolves its
// nearest already-replicating neighbors.
func (os *Origins) Fire(idx OriginIdx, tFire float64) error {
	o := &os.items[idx]
	if o.state != OriginPre {
		return newInvariantViolation("Origins.Fire: origin %q is not Pre (state=%s)", o.id, o.state)
	}
	o.firingTime = tFire
	o.state = OriginReplLR

	o.leftReplOrigin = os.findLeftReplOrigin(idx)
	if o.leftReplOrigin.Valid() {
		os.items[o.leftReplOrigin].rightReplOrigin = idx
	}
	o.rightReplOrigin = os.findRightReplOrigin(idx)
	if o.rightReplOrigin.Valid() {
		os.items[o.rightReplOrigin].leftReplOrigin = idx
	}
	return nil
}

func (os *Origins) getLeftCollisionTime(idx OriginIdx, vFork float64) (float64, error) {
	o := &os.items[idx]
	if o.leftReplOrigin.Valid() {
		left := &os.items[o.leftReplOrigin]
		return (o.firingTime + left.firingTime + float64(o.pos-left.pos)/vFork) / 2, nil
	}
	contig, err := o.chromosome.FindContig(o.pos)
	if err != nil {
		return 0, err
	}
	return o.firingTime + float64(o.pos-contig.Start)/vFork, nil
}

func (os *Origins) getRightCollisionTime(idx OriginIdx, vFork float64) (float64, error) {
	o := &os.items[idx]
	if o.rightReplOrigin.Valid() {
		right := &os.items[o.rightReplOrigin]
		return (o.firingTime + right.firingTime + float64(right.pos-o.pos)/vFork) / 2, nil
	}
	contig, err := o.chromosome.FindContig(o.pos)
	if err != nil {
		return 0, err
	}
	return o.firingTime + float64(contig.End-o.pos)/vFork, nil
}

// GetMinCollisionTime returns the earlier of the two fork collision
// times for a replicating origin.
func (os *Origins) GetMinCollisionTime(idx OriginIdx, vFork float64) (float64, error) {
	o := &os.items[idx]
	switch o.state {
	case OriginReplL:
		return os.getLeftCollisionTime(idx, vFork)
	case OriginReplR:
		return os.getRightCollisionTime(idx, vFork)
	case OriginReplLR:
		l, err := os.getLeftCollisionTime(idx, vFork)
		if err != nil {
			return 0, err
		}
		r, err := os.getRightCollisionTime(idx, vFork)
		if err != nil {
			return 0, err
		}
		return math.Min(l, r), nil
	default:
		return 0, newDomainError("Origins.GetMinCollisionTime", "origin %q is not replicating (state=%s)", o.id, o.state)
	}
}

// GetMaxCollisionTime returns the later of the two fork collision
// times for a replicating origin.
func (os *Origins) GetMaxCollisionTime(idx OriginIdx, vFork float64) (float64, error) {
	o := &os.items[idx]
	switch o.state {
	case OriginReplL:
		return os.getLeftCollisionTime(idx, vFork)
	case OriginReplR:
		return os.getRightCollisionTime(idx, vFork)
	case OriginReplLR:
		l, err := os.getLeftCollisionTime(idx, vFork)
		if err != nil {
			return 0, err
		}
		r, err := os.getRightCollisionTime(idx, vFork)
		if err != nil {
			return 0, err
		}
		return math.Max(l, r), nil
	default:
		return 0, newDomainError("Origins.GetMaxCollisionTime", "origin %q is not replicating (state=%s)", o.id, o.state)
	}
}

// ReplicateLeft advances idx's left fork to tCurrent, collapsing it
// into the neighboring fork (or the contig start) if they have met,
// and cascades passive activation to origins the fork has swept past.
// It returns the number of origins passively activated by this call.
func (os *Origins) ReplicateLeft(idx OriginIdx, tCurrent, vFork float64) (int, error) {
	o := &os.items[idx]
	leftCollisionTime, err := os.getLeftCollisionTime(idx, vFork)
	if err != nil {
		return 0, err
	}
	leftPos := o.pos - uint64(math.Floor((tCurrent-o.firingTime)*vFork))
	if leftCollisionTime <= tCurrent {
		leftPos = o.pos - uint64(math.Floor((leftCollisionTime-o.firingTime)*vFork))
		if o.state == OriginReplLR {
			o.state = OriginReplR
		} else {
			o.state = OriginPost
		}
	}

	nPassive := 0
	for o.nextLeftPassOrigin.Valid() {
		next := &os.items[o.nextLeftPassOrigin]
		if next.pos < leftPos || next.state != OriginPre {
			break
		}
		next.state = OriginPass
		next.firingTime = o.firingTime + float64(o.pos-next.pos)/vFork
		o.nextLeftPassOrigin = next.leftOrigin
		nPassive++
	}
	return nPassive, nil
}

// ReplicateRight advances idx's right fork to tCurrent, mirroring
// ReplicateLeft. When the fork collides with an opposing fork (the
// origin has a right replicating neighbor), releasePos is set to the
// granule position at which the bound particle should be released; a
// fork that reaches the contig end yields no releasePos.
func (os *Origins) ReplicateRight(idx OriginIdx, tCurrent, vFork float64) (nPassive int, releasePos *Vec3, err error) {
	o := &os.items[idx]
	rightCollisionTime, err := os.getRightCollisionTime(idx, vFork)
	if err != nil {
		return 0, nil, err
	}
	rightPos := o.pos + uint64(math.Floor((tCurrent-o.firingTime)*vFork))
	if rightCollisionTime <= tCurrent {
		rightPos = o.pos + uint64(math.Floor((rightCollisionTime-o.firingTime)*vFork))
		if o.state == OriginReplLR {
			o.state = OriginReplL
		} else {
			o.state = OriginPost
		}
		if o.rightReplOrigin.Valid() {
			granule, gerr := o.chromosome.FindGranule(rightPos)
			if gerr != nil {
				return 0, nil, gerr
			}
			releasePos = &granule
		}
	}

	for o.nextRightPassOrigin.Valid() {
		next := &os.items[o.nextRightPassOrigin]
		if next.pos > rightPos || next.state != OriginPre {
			break
		}
		next.state = OriginPass
		next.firingTime = o.firingTime + float64(next.pos-o.pos)/vFork
		o.nextRightPassOrigin = next.rightOrigin
		nPassive++
	}
	return nPassive, releasePos, nil
}
