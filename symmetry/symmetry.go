// Package symmetry holds supplied space-group data and the bookkeeping
// that turns it into the arrays the force-constants engine consumes.
// It does not discover symmetry; operations come from the caller.
package symmetry

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/lattdyn/lattdyn/crystal"
)

// Rotation is a space-group rotation in fractional coordinates. Entries
// are integers for any crystallographic operation.
type Rotation [3][3]int

// Operation is one space-group operation acting on fractional positions
// as pos' = R*pos + t, modulo lattice translations.
type Operation struct {
	Rotation    Rotation
	Translation [3]float64
}

// Identity is the identity rotation.
var Identity = Rotation{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Dataset bundles the symmetry information of a supercell. All fields are
// supplied by the caller (typically from a symmetry-discovery tool); the
// constructors below only derive redundant bookkeeping from them.
type Dataset struct {
	// Operations of the space group, closed under composition.
	Operations []Operation

	// Permutations[op][atom] is the atom onto which the operation maps
	// atom: positions[Permutations[op][atom]] == R*positions[atom] + t.
	Permutations [][]int

	// SiteSymmetries[atom] lists the rotations of operations fixing the
	// atom (mapping it to itself modulo lattice translation).
	SiteSymmetries [][]Rotation

	// IndependentAtoms are the symmetry-representative atom indices.
	IndependentAtoms []int

	// MapAtoms[atom] is the independent atom the atom is equivalent to.
	MapAtoms []int

	// Symprec is the numeric tolerance for position matching.
	Symprec float64
}

// NewDataset derives permutations, site symmetries and the independent-
// atom maps from a supplied operation set. It is a convenience for
// callers that have only the operations.
func NewDataset(cell *crystal.Cell, ops []Operation, symprec float64) (*Dataset, error) {
	perms, err := AtomicPermutations(cell, ops, symprec)
	if err != nil {
		return nil, err
	}

	natom := cell.NumAtoms()
	siteSyms := make([][]Rotation, natom)
	for s, op := range ops {
		for i := 0; i < natom; i++ {
			if perms[s][i] == i {
				siteSyms[i] = append(siteSyms[i], op.Rotation)
			}
		}
	}

	mapAtoms := make([]int, natom)
	for i := range mapAtoms {
		mapAtoms[i] = -1
	}
	var indep []int
	for i := 0; i < natom; i++ {
		if mapAtoms[i] >= 0 {
			continue
		}
		indep = append(indep, i)
		for s := range ops {
			j := perms[s][i]
			if mapAtoms[j] < 0 {
				mapAtoms[j] = i
			}
		}
	}

	return &Dataset{
		Operations:       ops,
		Permutations:     perms,
		SiteSymmetries:   siteSyms,
		IndependentAtoms: indep,
		MapAtoms:         mapAtoms,
		Symprec:          symprec,
	}, nil
}

// Rotations returns the fractional rotations of all operations, in
// operation order.
func (d *Dataset) Rotations() []Rotation {
	rots := make([]Rotation, len(d.Operations))
	for i, op := range d.Operations {
		rots[i] = op.Rotation
	}
	return rots
}

// SiteSymmetry returns the site-symmetry rotations of one atom.
func (d *Dataset) SiteSymmetry(atom int) []Rotation {
	return d.SiteSymmetries[atom]
}

// AtomicPermutations computes, for each operation, the permutation of
// atom indices it induces on the cell. An operation that fails to map an
// atom onto the cell within symprec is a hard error: the operations do
// not belong to this structure.
func AtomicPermutations(cell *crystal.Cell, ops []Operation, symprec float64) ([][]int, error) {
	perms := make([][]int, len(ops))
	for s, op := range ops {
		perm := make([]int, cell.NumAtoms())
		for i, pos := range cell.Positions {
			mapped := op.Apply(pos)
			j := crystal.MatchPosition(cell, mapped, symprec)
			if j < 0 {
				return nil, fmt.Errorf("operation %d does not map atom %d onto the cell", s, i)
			}
			perm[i] = j
		}
		perms[s] = perm
	}
	return perms, nil
}

// Apply acts on a fractional position: R*pos + t.
func (op Operation) Apply(pos [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = op.Translation[i]
		for j := 0; j < 3; j++ {
			out[i] += float64(op.Rotation[i][j]) * pos[j]
		}
	}
	return out
}

// CartesianRotation transforms a fractional rotation into Cartesian form,
// L * R * L^-1, with the lattice vectors as columns of L.
func CartesianRotation(lattice *mat.Dense, rot Rotation) *mat.Dense {
	r := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, float64(rot[i][j]))
		}
	}
	var linv mat.Dense
	if err := linv.Inverse(lattice); err != nil {
		panic(err)
	}
	var tmp, out mat.Dense
	tmp.Mul(r, &linv)
	out.Mul(lattice, &tmp)
	return &out
}

// CartesianRotations converts a list of fractional rotations at once,
// preserving order.
func CartesianRotations(lattice *mat.Dense, rots []Rotation) []*mat.Dense {
	out := make([]*mat.Dense, len(rots))
	for i, rot := range rots {
		out[i] = CartesianRotation(lattice, rot)
	}
	return out
}
