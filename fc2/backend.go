package fc2

import (
	"gonum.org/v1/gonum/mat"
)

// Backend performs the heavy tensor passes. GoBackend is the reference
// implementation and the default; an accelerated backend must satisfy the
// same pre/post-conditions on the tensor and agree with GoBackend within
// floating-point summation tolerance.
type Backend interface {
	// DistributeFC2 fills every target row by symmetry transport from
	// the rows whose atoms map to themselves.
	DistributeFC2(fc *ForceConstants, targets []int, rotsCart []*mat.Dense,
		permutations [][]int, mapAtoms, mapSyms []int) error

	// PermTransSymmetrize polishes a full tensor with level rounds of
	// translational-invariance and permutation-symmetry passes.
	PermTransSymmetrize(fc *ForceConstants, level int) error
}

var activeBackend Backend = GoBackend{}

// SetBackend installs an accelerated backend for the distribution and
// symmetrization passes. Passing nil restores the pure Go reference
// implementation.
func SetBackend(b Backend) {
	if b == nil {
		activeBackend = GoBackend{}
		return
	}
	activeBackend = b
}

// GoBackend is the pure Go reference implementation of Backend.
type GoBackend struct{}
