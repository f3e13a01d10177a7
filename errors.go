package replisim

import "fmt"

// DomainError reports a position or state query that has no valid
// answer: a base-pair position outside every contig or granule, or a
// collision-time query on a non-replicative origin.
type DomainError struct {
	Op  string
	Err error
}

func (e *DomainError) Error() string { return fmt.Sprintf("domain error in %s: %v", e.Op, e.Err) }
func (e *DomainError) Unwrap() error { return e.Err }

func newDomainError(op string, format string, args ...any) error {
	return &DomainError{Op: op, Err: fmt.Errorf(format, args...)}
}

// ReflectionImpossible is raised when IsotropicDiffusion's reflection
// expansion cannot find any new in-domain candidate point. This is a
// structural input error (granule positions outside the diffusion
// domain) and is always fatal.
type ReflectionImpossible struct {
	Pos Vec3
}

func (e *ReflectionImpossible) Error() string {
	return fmt.Sprintf("could not expand reflection candidates around %v", e.Pos)
}

// InvariantViolation reports a construction-time inconsistency in the
// entity graph: duplicated ids or an origin referencing an unknown
// chromosome.
type InvariantViolation struct {
	Err error
}

func (e *InvariantViolation) Error() string { return fmt.Sprintf("invariant violation: %v", e.Err) }
func (e *InvariantViolation) Unwrap() error { return e.Err }

func newInvariantViolation(format string, args ...any) error {
	return &InvariantViolation{Err: fmt.Errorf(format, args...)}
}

// InvalidInput is returned by the csvdata loader for malformed rows.
// The core never returns it directly.
type InvalidInput struct {
	Err error
}

func (e *InvalidInput) Error() string { return fmt.Sprintf("invalid input: %v", e.Err) }
func (e *InvalidInput) Unwrap() error { return e.Err }
