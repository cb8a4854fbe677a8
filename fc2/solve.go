package fc2

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/lattdyn/lattdyn/crystal"
	"github.com/lattdyn/lattdyn/symmetry"
)

// Displacement is one finite-displacement measurement: one atom moved by
// a Cartesian vector, with the resulting forces on every supercell atom.
type Displacement struct {
	// Atom is the supercell index of the displaced atom.
	Atom int
	// Vector is the Cartesian displacement in Angstrom.
	Vector [3]float64
	// Forces holds the observed forces, one row per supercell atom, in
	// eV/Angstrom.
	Forces *mat.Dense
}

// DisplacementDataset is the full set of measurements for one supercell.
type DisplacementDataset struct {
	NumAtoms      int
	Displacements []Displacement
}

// Calculate builds the force-constants tensor from a displacement
// dataset: it solves the per-displaced-atom blocks under site symmetry,
// then distributes them to every remaining row through the space group.
//
// atomList selects the rows of a compact tensor (typically the primitive
// atoms); nil produces the full supercell-by-supercell tensor. Every
// displaced atom must be contained in atomList when one is given.
func Calculate(supercell *crystal.Cell, sym *symmetry.Dataset,
	dataset *DisplacementDataset, atomList []int) (*ForceConstants, error) {

	natom := supercell.NumAtoms()
	if dataset.NumAtoms != 0 && dataset.NumAtoms != natom {
		return nil, fmt.Errorf("dataset is for %d atoms, supercell has %d", dataset.NumAtoms, natom)
	}

	rows := natom
	if atomList != nil {
		rows = len(atomList)
	}
	fc := NewForceConstants(rows, natom)

	doneAtoms, err := solveDisplacedAtoms(fc, supercell, sym, dataset, atomList)
	if err != nil {
		return nil, err
	}
	err = Distribute(fc, doneAtoms, supercell.Lattice, sym.Rotations(), sym.Permutations, atomList)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// solveDisplacedAtoms runs the site-displacement solver for every unique
// displaced atom and writes the resulting rows. Returns the list of
// solved atoms.
func solveDisplacedAtoms(fc *ForceConstants, supercell *crystal.Cell,
	sym *symmetry.Dataset, dataset *DisplacementDataset, atomList []int) ([]int, error) {

	byAtom := make(map[int][]Displacement)
	for _, d := range dataset.Displacements {
		byAtom[d.Atom] = append(byAtom[d.Atom], d)
	}
	doneAtoms := make([]int, 0, len(byAtom))
	for atom := range byAtom {
		doneAtoms = append(doneAtoms, atom)
	}
	sort.Ints(doneAtoms)

	for _, atom := range doneAtoms {
		row := atom
		if atomList != nil {
			row = -1
			for i, a := range atomList {
				if a == atom {
					row = i
					break
				}
			}
			if row < 0 {
				return nil, fmt.Errorf("displaced atom %d is not in the requested row set", atom)
			}
		}

		var disps [][3]float64
		var forces []*mat.Dense
		for _, d := range byAtom[atom] {
			disps = append(disps, d.Vector)
			forces = append(forces, d.Forces)
		}
		block, err := SolveForAtom(supercell, atom, disps, forces, sym.SiteSymmetry(atom), sym.Symprec)
		if err != nil {
			return nil, err
		}
		for j := 0; j < fc.Cols(); j++ {
			copy(fc.Block(row, j), block[j*9:j*9+9])
		}
	}
	return doneAtoms, nil
}

// SolveForAtom solves the force-constant blocks linking one displaced
// atom to every supercell atom, Phi = -pinv(D) * F, where the
// displacement matrix D stacks every site-symmetry image of every
// measured displacement and F gathers the matching force rows rotated
// back into the same frame.
//
// The returned slice holds natom row-major 3x3 blocks. No rank check is
// performed: if the rotated displacements do not span three dimensions
// the pseudo-inverse silently yields a least-squares fit, which later
// invariance diagnostics will expose.
func SolveForAtom(supercell *crystal.Cell, dispAtom int, disps [][3]float64,
	forces []*mat.Dense, siteSym []symmetry.Rotation, symprec float64) ([]float64, error) {

	natom := supercell.NumAtoms()
	if len(disps) == 0 || len(disps) != len(forces) {
		return nil, fmt.Errorf("atom %d: %d displacements with %d force sets", dispAtom, len(disps), len(forces))
	}
	if len(siteSym) == 0 {
		return nil, fmt.Errorf("atom %d has an empty site-symmetry group", dispAtom)
	}
	for i, f := range forces {
		r, c := f.Dims()
		if r != natom || c != 3 {
			return nil, fmt.Errorf("force set %d of atom %d has shape %dx%d, want %dx3", i, dispAtom, r, c, natom)
		}
	}

	// Recenter on the displaced atom, so site-symmetry rotations act
	// about the origin.
	center := supercell.Positions[dispAtom]
	positions := make([][3]float64, natom)
	for i, p := range supercell.Positions {
		for k := 0; k < 3; k++ {
			positions[i][k] = p[k] - center[k]
		}
	}

	// Where the inverse of each site-symmetry rotation sends each atom:
	// rotated[rotMap[i]] == positions[i].
	rotMapSyms := make([][]int, len(siteSym))
	for s, rot := range siteSym {
		rotated := make([][3]float64, natom)
		for i, p := range positions {
			for k := 0; k < 3; k++ {
				rotated[i][k] = float64(rot[k][0])*p[0] + float64(rot[k][1])*p[1] + float64(rot[k][2])*p[2]
			}
		}
		rm, err := crystal.PermutationForRotation(rotated, positions, supercell.Lattice, symprec)
		if err != nil {
			return nil, fmt.Errorf("site symmetry %d of atom %d: %v", s, dispAtom, err)
		}
		rotMapSyms[s] = rm
	}

	siteSymCart := symmetry.CartesianRotations(supercell.Lattice, siteSym)

	// Stack all (displacement x operation) combinations into one
	// least-squares system.
	nops := len(siteSym)
	rotDisps := mat.NewDense(len(disps)*nops, 3, nil)
	row := 0
	for _, u := range disps {
		for s := 0; s < nops; s++ {
			r := siteSymCart[s]
			for k := 0; k < 3; k++ {
				rotDisps.Set(row, k, r.At(k, 0)*u[0]+r.At(k, 1)*u[1]+r.At(k, 2)*u[2])
			}
			row++
		}
	}
	pinv := PseudoInverse(rotDisps)

	out := make([]float64, natom*9)
	combined := mat.NewDense(len(disps)*nops, 3, nil)
	for i := 0; i < natom; i++ {
		row = 0
		for _, f := range forces {
			for s := 0; s < nops; s++ {
				r := siteSymCart[s]
				fj := f.RawRowView(rotMapSyms[s][i])
				for k := 0; k < 3; k++ {
					combined.Set(row, k, r.At(k, 0)*fj[0]+r.At(k, 1)*fj[1]+r.At(k, 2)*fj[2])
				}
				row++
			}
		}
		var phi mat.Dense
		phi.Mul(pinv, combined)
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				out[i*9+a*3+b] = -phi.At(a, b)
			}
		}
	}
	return out, nil
}
