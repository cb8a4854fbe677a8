package fc2

import (
	"fmt"

	"github.com/lattdyn/lattdyn/crystal"
	"github.com/lattdyn/lattdyn/symmetry"
)

// TranslationalInvariance imposes the sum rule on a full tensor: for each
// axis pair the column sums and then the row sums are forced to zero by
// subtracting the mean, matching the requirement that a rigid translation
// of the crystal produces no net force.
func TranslationalInvariance(fc *ForceConstants) error {
	if !fc.IsFull() {
		return fmt.Errorf("translational invariance needs a full tensor, got shape (%d, %d)", fc.Rows(), fc.Cols())
	}
	for index := 0; index < 2; index++ {
		translationalInvariancePerIndex(fc, index)
	}
	return nil
}

func translationalInvariancePerIndex(fc *ForceConstants, index int) {
	rows, cols := fc.Rows(), fc.Cols()
	if index == 0 {
		for j := 0; j < cols; j++ {
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					sum := 0.0
					for i := 0; i < rows; i++ {
						sum += fc.At(i, j, a, b)
					}
					mean := sum / float64(rows)
					for i := 0; i < rows; i++ {
						fc.Set(i, j, a, b, fc.At(i, j, a, b)-mean)
					}
				}
			}
		}
		return
	}
	for i := 0; i < rows; i++ {
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				sum := 0.0
				for j := 0; j < cols; j++ {
					sum += fc.At(i, j, a, b)
				}
				mean := sum / float64(cols)
				for j := 0; j < cols; j++ {
					fc.Set(i, j, a, b, fc.At(i, j, a, b)-mean)
				}
			}
		}
	}
}

// PermutationSymmetry averages each block with the transpose of its
// mirror, Phi[i,j] <- (Phi[i,j] + Phi[j,i]^T) / 2, in place. Only a full
// tensor has both blocks of a pair.
func PermutationSymmetry(fc *ForceConstants) error {
	if !fc.IsFull() {
		return fmt.Errorf("permutation symmetry needs a full tensor, got shape (%d, %d)", fc.Rows(), fc.Cols())
	}
	n := fc.Rows()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a := fc.Block(i, j)
			b := fc.Block(j, i)
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					v := (a[k*3+l] + b[l*3+k]) / 2
					a[k*3+l] = v
					b[l*3+k] = v
				}
			}
		}
	}
	return nil
}

// Symmetrize polishes a full tensor with level rounds of translational
// and permutation passes followed by one more translational pass. The two
// passes do not commute; the iteration is bounded by level rather than by
// a convergence tolerance.
func Symmetrize(fc *ForceConstants, level int) error {
	if !fc.IsFull() {
		return fmt.Errorf("symmetrize needs a full tensor, got shape (%d, %d)", fc.Rows(), fc.Cols())
	}
	return activeBackend.PermTransSymmetrize(fc, level)
}

// PermTransSymmetrize implements the polishing iteration in pure Go.
func (GoBackend) PermTransSymmetrize(fc *ForceConstants, level int) error {
	for i := 0; i < level; i++ {
		if err := TranslationalInvariance(fc); err != nil {
			return err
		}
		if err := PermutationSymmetry(fc); err != nil {
			return err
		}
	}
	return TranslationalInvariance(fc)
}

// compactMaps derives the bookkeeping for compact-tensor symmetrization:
// s2pp maps each supercell atom to the compact index of its primitive
// representative, and nsymList names, per atom, the pure translation
// carrying it onto that representative.
func compactMaps(prim *crystal.Primitive) (s2pp, nsymList []int, err error) {
	p2p := prim.P2P()
	perms := prim.TranslationPermutations()
	natom := prim.Supercell.NumAtoms()

	s2pp = make([]int, natom)
	nsymList = make([]int, natom)
	for j := 0; j < natom; j++ {
		s2pp[j] = p2p[prim.S2P[j]]
		nsymList[j] = -1
		for s, perm := range perms {
			if perm[j] == prim.S2P[j] {
				nsymList[j] = s
				break
			}
		}
		if nsymList[j] < 0 {
			return nil, nil, fmt.Errorf("no pure translation maps atom %d onto its representative %d", j, prim.S2P[j])
		}
	}
	return s2pp, nsymList, nil
}

// pairCompact visits each permutation-symmetry pair of a compact tensor
// once: block (i, j) pairs with (s2pp[j], perm(p2s[i])) under the
// translation carrying atom j onto its primitive representative. When
// transpose is set the paired blocks are exchanged transposed (turning
// the compact tensor into its permutation mirror); otherwise the pair is
// averaged in place.
func pairCompact(fc *ForceConstants, perms [][]int, s2pp, p2s, nsymList []int, transpose bool) {
	npat, nsat := fc.Rows(), fc.Cols()
	done := make([]bool, npat*nsat)
	for j := 0; j < nsat; j++ {
		ip := s2pp[j]
		perm := perms[nsymList[j]]
		for i := 0; i < npat; i++ {
			if done[i*nsat+j] {
				continue
			}
			k := perm[p2s[i]]
			done[i*nsat+j] = true
			done[ip*nsat+k] = true

			a := fc.Block(i, j)
			b := fc.Block(ip, k)
			if ip == i && k == j {
				// Self-paired block: its mirror is its own transpose.
				for l := 0; l < 3; l++ {
					for m := l + 1; m < 3; m++ {
						if transpose {
							a[l*3+m], a[m*3+l] = a[m*3+l], a[l*3+m]
						} else {
							v := (a[l*3+m] + a[m*3+l]) / 2
							a[l*3+m] = v
							a[m*3+l] = v
						}
					}
				}
				continue
			}
			for l := 0; l < 3; l++ {
				for m := 0; m < 3; m++ {
					if transpose {
						a[l*3+m], b[m*3+l] = b[m*3+l], a[l*3+m]
					} else {
						v := (a[l*3+m] + b[m*3+l]) / 2
						a[l*3+m] = v
						b[m*3+l] = v
					}
				}
			}
		}
	}
}

// translationalInvarianceCompact imposes the sum rule on a compact
// tensor: the first-index sums are handled by transposing through the
// pure translations, the second-index sums directly.
func translationalInvarianceCompact(fc *ForceConstants, perms [][]int, s2pp, p2s, nsymList []int) {
	pairCompact(fc, perms, s2pp, p2s, nsymList, true)
	translationalInvariancePerIndex(fc, 1)
	pairCompact(fc, perms, s2pp, p2s, nsymList, true)
	translationalInvariancePerIndex(fc, 1)
}

// SymmetrizeCompact is Symmetrize for a compact tensor, using the
// primitive's pure translations to reach the mirror blocks that a compact
// tensor does not store.
func SymmetrizeCompact(fc *ForceConstants, prim *crystal.Primitive, level int) error {
	if fc.IsFull() {
		return fmt.Errorf("compact symmetrization got a full tensor; use Symmetrize")
	}
	if fc.Rows() != len(prim.P2S) {
		return fmt.Errorf("compact tensor has %d rows, want %d primitive atoms", fc.Rows(), len(prim.P2S))
	}
	s2pp, nsymList, err := compactMaps(prim)
	if err != nil {
		return err
	}
	perms := prim.TranslationPermutations()
	for i := 0; i < level; i++ {
		translationalInvarianceCompact(fc, perms, s2pp, prim.P2S, nsymList)
		pairCompact(fc, perms, s2pp, prim.P2S, nsymList, false)
	}
	translationalInvarianceCompact(fc, perms, s2pp, prim.P2S, nsymList)
	return nil
}

// SymmetrizeBySpaceGroup averages a full tensor over the entire space
// group: for each symmetry-independent atom the tensor is combined over
// every equivalent atom and every site-symmetry operation stabilizing it,
// then redistributed. Slower than Symmetrize by a group-size factor but
// smoother, and offered as an alternative rather than a refinement pass.
func SymmetrizeBySpaceGroup(fc *ForceConstants, cell *crystal.Cell, sym *symmetry.Dataset) error {
	if !fc.IsFull() {
		return fmt.Errorf("space-group averaging needs a full tensor, got shape (%d, %d)", fc.Rows(), fc.Cols())
	}
	natom := fc.Rows()
	perms := sym.Permutations
	nops := len(perms)
	rots := symmetry.CartesianRotations(cell.Lattice, sym.Rotations())
	rinvs := invertAll(rots)

	fcNew := NewForceConstants(natom, natom)
	for _, i := range sym.IndependentAtoms {
		combined := make([]float64, natom*9)
		numEquiv := 0
		for j := 0; j < natom; j++ {
			if sym.MapAtoms[j] != i {
				continue
			}
			numEquiv++
			ri := -1
			for s := 0; s < nops; s++ {
				if perms[s][j] == i {
					ri = s
					break
				}
			}
			if ri < 0 {
				return fmt.Errorf("no operation maps atom %d onto its representative %d", j, i)
			}
			for k := 0; k < natom; k++ {
				l := perms[ri][k]
				addSimilarity(combined[l*9:l*9+9], fc.Block(j, k), rots[ri], rinvs[ri])
			}
		}
		if numEquiv == 0 {
			return fmt.Errorf("independent atom %d has no equivalent atoms", i)
		}
		for k := range combined {
			combined[k] /= float64(numEquiv)
		}

		numSite := 0
		for ri := 0; ri < nops; ri++ {
			if perms[ri][i] != i {
				continue
			}
			numSite++
			for j := 0; j < natom; j++ {
				l := perms[ri][j]
				addSimilarity(fcNew.Block(i, j), combined[l*9:l*9+9], rots[ri].T(), rinvs[ri].T())
			}
		}
		for j := 0; j < natom; j++ {
			blk := fcNew.Block(i, j)
			for k := range blk {
				blk[k] /= float64(numSite)
			}
		}

		if numEquiv*numSite != nops {
			return fmt.Errorf("atom %d: orbit size %d times stabilizer size %d does not match group order %d",
				i, numEquiv, numSite, nops)
		}
	}

	err := Distribute(fcNew, sym.IndependentAtoms, cell.Lattice, sym.Rotations(), perms, nil)
	if err != nil {
		return err
	}
	return fc.CopyFrom(fcNew)
}

// SymmetrizeBySpaceGroupPJ is the one-shot whole-group average: every
// block is replaced by the mean of its images under all operations,
// Phi[i,j] <- avg_n R_n^T Phi[perm_n(i), perm_n(j)] R_n. Equivalent in
// intent to SymmetrizeBySpaceGroup without the distribute step.
func SymmetrizeBySpaceGroupPJ(fc *ForceConstants, cell *crystal.Cell, sym *symmetry.Dataset) error {
	if !fc.IsFull() {
		return fmt.Errorf("space-group averaging needs a full tensor, got shape (%d, %d)", fc.Rows(), fc.Cols())
	}
	natom := fc.Rows()
	perms := sym.Permutations
	nops := len(perms)
	rots := symmetry.CartesianRotations(cell.Lattice, sym.Rotations())
	rinvs := invertAll(rots)

	fcNew := NewForceConstants(natom, natom)
	for n := 0; n < nops; n++ {
		for i := 0; i < natom; i++ {
			for j := 0; j < natom; j++ {
				addSimilarity(fcNew.Block(i, j), fc.Block(perms[n][i], perms[n][j]), rots[n].T(), rinvs[n].T())
			}
		}
	}
	for k, v := range fcNew.data {
		fc.data[k] = v / float64(nops)
	}
	return nil
}
