package fc2

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/lattdyn/lattdyn/crystal"
	"github.com/lattdyn/lattdyn/symmetry"
)

// Distribute fills every row of the tensor not listed in doneAtoms by
// symmetry transport from a solved row: for each unsolved atom the first
// operation (in supplied order) whose permutation maps it onto a done
// atom is used as the witness, and every column block is rotated through
// that operation's Cartesian form. The first-match order is physically
// arbitrary but deterministic, and reference outputs depend on it.
//
// targets selects the rows of the tensor (nil means all supercell atoms,
// the full shape). An atom that cannot reach any done atom under any
// operation means the structure and the supplied symmetry are
// inconsistent, which is a hard error.
func Distribute(fc *ForceConstants, doneAtoms []int, lattice *mat.Dense,
	rotations []symmetry.Rotation, permutations [][]int, targets []int) error {

	mapAtoms, mapSyms, err := symMappingsFromPermutations(permutations, doneAtoms)
	if err != nil {
		return err
	}
	rotsCart := symmetry.CartesianRotations(lattice, rotations)
	if targets == nil {
		targets = make([]int, fc.Cols())
		for i := range targets {
			targets[i] = i
		}
	}
	if len(targets) != fc.Rows() {
		return fmt.Errorf("target count %d does not match tensor rows %d", len(targets), fc.Rows())
	}
	return activeBackend.DistributeFC2(fc, targets, rotsCart, permutations, mapAtoms, mapSyms)
}

// symMappingsFromPermutations finds, for every atom, a done atom it maps
// onto and the witness operation, searching operations in supplied order
// and accepting the first match. A done atom always maps to itself: its
// row is kept as a transport source, never overwritten, even when some
// operation carries it onto another done atom.
func symMappingsFromPermutations(permutations [][]int, doneAtoms []int) (mapAtoms, mapSyms []int, err error) {
	if len(permutations) == 0 {
		return nil, nil, fmt.Errorf("no symmetry operations supplied")
	}
	natom := len(permutations[0])
	inDone := make([]bool, natom)
	for _, a := range doneAtoms {
		inDone[a] = true
	}

	mapAtoms = make([]int, natom)
	mapSyms = make([]int, natom)
	for atom := 0; atom < natom; atom++ {
		if inDone[atom] {
			mapAtoms[atom] = atom
			continue
		}
		found := false
		for s, perm := range permutations {
			if inDone[perm[atom]] {
				mapAtoms[atom] = perm[atom]
				mapSyms[atom] = s
				found = true
				break
			}
		}
		if !found {
			return nil, nil, fmt.Errorf(
				"atom %d cannot be mapped to any solved atom by any symmetry operation: "+
					"forces are insufficient or the structure does not match the symmetry", atom)
		}
	}
	return mapAtoms, mapSyms, nil
}

// DistributeFC2 implements the distribution pass in pure Go.
func (GoBackend) DistributeFC2(fc *ForceConstants, targets []int, rotsCart []*mat.Dense,
	permutations [][]int, mapAtoms, mapSyms []int) error {

	natom := fc.Cols()

	// Row index of each done atom within the tensor.
	rowOf := make([]int, natom)
	for i := range rowOf {
		rowOf[i] = -1
	}
	for i, atom := range targets {
		if mapAtoms[atom] == atom {
			rowOf[atom] = i
		}
	}

	for i, atom := range targets {
		done := mapAtoms[atom]
		if done == atom {
			continue
		}
		if rowOf[done] < 0 {
			return fmt.Errorf("solved atom %d is not among the tensor rows", done)
		}
		perm := permutations[mapSyms[atom]]
		r := rotsCart[mapSyms[atom]]
		src := rowOf[done]
		for j := 0; j < natom; j++ {
			setRotatedT(fc.Block(i, j), fc.Block(src, perm[j]), r)
		}
	}
	return nil
}

// DistributeByTranslations fills a full tensor whose primitive-atom rows
// are already populated, using the pure translations of the supercell as
// the operation set. Translations alone reach every atom because each
// supercell atom is a lattice translate of a primitive atom.
func DistributeByTranslations(fc *ForceConstants, prim *crystal.Primitive) error {
	if !fc.IsFull() {
		return fmt.Errorf("translation distribution needs a full tensor, got shape (%d, %d)", fc.Rows(), fc.Cols())
	}
	trans := prim.Translations()
	rotations := make([]symmetry.Rotation, len(trans))
	for i := range rotations {
		rotations[i] = symmetry.Identity
	}
	return Distribute(fc, prim.P2S, prim.Supercell.Lattice, rotations,
		prim.TranslationPermutations(), nil)
}

// CompactToFull expands a compact tensor, indexed by primitive atoms on
// its first axis, to the full supercell tensor.
func CompactToFull(compact *ForceConstants, prim *crystal.Primitive) (*ForceConstants, error) {
	if compact.Rows() != len(prim.P2S) {
		return nil, fmt.Errorf("compact tensor has %d rows, want %d primitive atoms", compact.Rows(), len(prim.P2S))
	}
	if compact.Cols() != prim.Supercell.NumAtoms() {
		return nil, fmt.Errorf("compact tensor has %d columns, want %d supercell atoms", compact.Cols(), prim.Supercell.NumAtoms())
	}
	natom := compact.Cols()
	full := NewForceConstants(natom, natom)
	for k, s := range prim.P2S {
		for j := 0; j < natom; j++ {
			copy(full.Block(s, j), compact.Block(k, j))
		}
	}
	if err := DistributeByTranslations(full, prim); err != nil {
		return nil, err
	}
	return full, nil
}
