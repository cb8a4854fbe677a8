package crystal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// translationRange bounds the lattice-translation search for minimum-image
// vectors. +/-2 is sufficient only for reasonably compact lattice bases;
// a strongly skewed cell can hide its true minimum image outside this
// window, so callers should supply a reduced basis.
const translationRange = 2

// PermutationForRotation matches rotated fractional positions against the
// original ones, modulo lattice translations. The returned permutation
// satisfies rotated[perm[i]] == original[i] within symprec (measured in
// Cartesian distance), which is the inverse-permutation lookup used by the
// displacement solver.
func PermutationForRotation(rotated, original [][3]float64, lattice *mat.Dense, symprec float64) ([]int, error) {
	if len(rotated) != len(original) {
		return nil, fmt.Errorf("position count mismatch: %d rotated vs %d original", len(rotated), len(original))
	}
	cell := &Cell{Lattice: lattice}
	perm := make([]int, len(original))
	for i, pos := range original {
		found := -1
		for j, rpos := range rotated {
			if fracDistance(cell, rpos, pos) < symprec {
				found = j
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("no rotated position matches atom %d within symprec=%g", i, symprec)
		}
		perm[i] = found
	}
	return perm, nil
}

// MatchPosition finds the atom whose fractional position coincides with
// pos modulo lattice translations, or -1 if none does.
func MatchPosition(cell *Cell, pos [3]float64, symprec float64) int {
	for j, p := range cell.Positions {
		if fracDistance(cell, p, pos) < symprec {
			return j
		}
	}
	return -1
}

// fracDistance is the Cartesian distance between two fractional positions
// reduced into the cell.
func fracDistance(cell *Cell, a, b [3]float64) float64 {
	var d [3]float64
	for k := 0; k < 3; k++ {
		d[k] = a[k] - b[k]
		d[k] -= math.Round(d[k])
	}
	return cell.cartesianNorm(d)
}

// SmallestVectors computes, for every (to, from) atom pair, the set of
// shortest fractional vectors from[j] -> to[i] under periodic boundary
// conditions. All vectors whose Cartesian length ties the minimum within
// symprec are kept, so multi[i][j] = len(svecs[i][j]) is the multiplicity
// of the minimum image.
func SmallestVectors(lattice *mat.Dense, to, from [][3]float64, symprec float64) (svecs [][][][3]float64, multi [][]int) {
	cell := &Cell{Lattice: lattice}
	svecs = make([][][][3]float64, len(to))
	multi = make([][]int, len(to))
	for i, pi := range to {
		svecs[i] = make([][][3]float64, len(from))
		multi[i] = make([]int, len(from))
		for j, pj := range from {
			base := [3]float64{pi[0] - pj[0], pi[1] - pj[1], pi[2] - pj[2]}

			minNorm := math.Inf(1)
			var candidates [][3]float64
			var norms []float64
			for l := -translationRange; l <= translationRange; l++ {
				for m := -translationRange; m <= translationRange; m++ {
					for n := -translationRange; n <= translationRange; n++ {
						v := [3]float64{
							base[0] + float64(l),
							base[1] + float64(m),
							base[2] + float64(n),
						}
						norm := cell.cartesianNorm(v)
						candidates = append(candidates, v)
						norms = append(norms, norm)
						if norm < minNorm {
							minNorm = norm
						}
					}
				}
			}

			for k, v := range candidates {
				if norms[k] < minNorm+symprec {
					svecs[i][j] = append(svecs[i][j], v)
				}
			}
			multi[i][j] = len(svecs[i][j])
		}
	}
	return svecs, multi
}

// MinimumDistances tabulates the minimum-image Cartesian distance for
// every (to, from) atom pair.
func MinimumDistances(lattice *mat.Dense, to, from [][3]float64, symprec float64) [][]float64 {
	svecs, _ := SmallestVectors(lattice, to, from, symprec)
	cell := &Cell{Lattice: lattice}
	dists := make([][]float64, len(to))
	for i := range svecs {
		dists[i] = make([]float64, len(from))
		for j := range svecs[i] {
			dists[i][j] = cell.cartesianNorm(svecs[i][j][0])
		}
	}
	return dists
}
