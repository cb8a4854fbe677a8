package fc2

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lattdyn/lattdyn/crystal"
)

const axisNames = "xyz"

// DriftReport is the residual violation of the sum rule: the largest
// column sum and row sum over all axis pairs, with the offending pair.
// A read-only diagnostic; it never modifies the tensor.
type DriftReport struct {
	ColumnDrift float64
	ColumnAxes  [2]int
	RowDrift    float64
	RowAxes     [2]int
}

// Max returns the larger magnitude of the two drifts.
func (r DriftReport) Max() float64 {
	return math.Max(math.Abs(r.ColumnDrift), math.Abs(r.RowDrift))
}

func (r DriftReport) String() string {
	return fmt.Sprintf("max drift: %f (%c%c) %f (%c%c)",
		r.ColumnDrift, axisNames[r.ColumnAxes[0]], axisNames[r.ColumnAxes[1]],
		r.RowDrift, axisNames[r.RowAxes[0]], axisNames[r.RowAxes[1]])
}

// Drift measures the sum-rule residual of a full tensor.
func Drift(fc *ForceConstants) (DriftReport, error) {
	if !fc.IsFull() {
		return DriftReport{}, fmt.Errorf("drift check needs a full tensor, got shape (%d, %d); use DriftCompact", fc.Rows(), fc.Cols())
	}
	var rep DriftReport
	n := fc.Rows()
	for i := 0; i < n; i++ {
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				col, row := 0.0, 0.0
				for j := 0; j < n; j++ {
					col += fc.At(j, i, a, b)
					row += fc.At(i, j, a, b)
				}
				if math.Abs(col) > math.Abs(rep.ColumnDrift) {
					rep.ColumnDrift = col
					rep.ColumnAxes = [2]int{a, b}
				}
				if math.Abs(row) > math.Abs(rep.RowDrift) {
					rep.RowDrift = row
					rep.RowAxes = [2]int{a, b}
				}
			}
		}
	}
	return rep, nil
}

// DriftCompact measures the sum-rule residual of a compact tensor. The
// first-index sums are reached by transposing through the primitive's
// pure translations; the tensor is restored before returning.
func DriftCompact(fc *ForceConstants, prim *crystal.Primitive) (DriftReport, error) {
	if fc.IsFull() {
		return DriftReport{}, fmt.Errorf("compact drift check got a full tensor; use Drift")
	}
	if fc.Rows() != len(prim.P2S) {
		return DriftReport{}, fmt.Errorf("compact tensor has %d rows, want %d primitive atoms", fc.Rows(), len(prim.P2S))
	}
	s2pp, nsymList, err := compactMaps(prim)
	if err != nil {
		return DriftReport{}, err
	}
	perms := prim.TranslationPermutations()

	var rep DriftReport
	pairCompact(fc, perms, s2pp, prim.P2S, nsymList, true)
	rep.ColumnDrift, rep.ColumnAxes = driftPerRow(fc)
	pairCompact(fc, perms, s2pp, prim.P2S, nsymList, true)
	rep.RowDrift, rep.RowAxes = driftPerRow(fc)
	return rep, nil
}

func driftPerRow(fc *ForceConstants) (float64, [2]int) {
	maxval := 0.0
	axes := [2]int{}
	for i := 0; i < fc.Rows(); i++ {
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				sum := 0.0
				for j := 0; j < fc.Cols(); j++ {
					sum += fc.At(i, j, a, b)
				}
				if math.Abs(sum) > math.Abs(maxval) {
					maxval = sum
					axes = [2]int{a, b}
				}
			}
		}
	}
	return maxval, axes
}

// RotationalInvariance computes the rotational-invariance residual of the
// tensor: for each primitive atom p and Cartesian direction i, the 3x3
// matrix M[j,k] = sum_s (Phi[p,s,i,j]*v_s[k] - Phi[p,s,i,k]*v_s[j]),
// where v_s is the mean minimum-image vector to atom s. Zero for an
// exactly rotationally invariant tensor; a validation aid only.
func RotationalInvariance(fc *ForceConstants, prim *crystal.Primitive) ([][3]*mat.Dense, error) {
	compact := !fc.IsFull()
	if compact && fc.Rows() != len(prim.P2S) {
		return nil, fmt.Errorf("compact tensor has %d rows, want %d primitive atoms", fc.Rows(), len(prim.P2S))
	}
	if fc.Cols() != prim.Supercell.NumAtoms() {
		return nil, fmt.Errorf("tensor has %d columns, want %d supercell atoms", fc.Cols(), prim.Supercell.NumAtoms())
	}

	svecs, multi := prim.SmallestVectors()
	out := make([][3]*mat.Dense, len(prim.P2S))
	for pi, p := range prim.P2S {
		row := p
		if compact {
			row = pi
		}
		for i := 0; i < 3; i++ {
			m := mat.NewDense(3, 3, nil)
			for s := 0; s < fc.Cols(); s++ {
				var mean [3]float64
				for _, v := range svecs[s][pi] {
					for k := 0; k < 3; k++ {
						mean[k] += v[k]
					}
				}
				for k := 0; k < 3; k++ {
					mean[k] /= float64(multi[s][pi])
				}
				v := prim.Cartesian(mean)
				for j := 0; j < 3; j++ {
					for k := 0; k < 3; k++ {
						m.Set(j, k, m.At(j, k)+fc.At(row, s, i, j)*v[k]-fc.At(row, s, i, k)*v[j])
					}
				}
			}
			out[pi][i] = m
		}
	}
	return out, nil
}

// HarmonicPotentialEnergy evaluates u . Phi . u / 2 for one displacement
// pattern (one Cartesian vector per supercell atom).
func HarmonicPotentialEnergy(fc *ForceConstants, displacements [][3]float64) (float64, error) {
	if !fc.IsFull() {
		return 0, fmt.Errorf("harmonic energy needs a full tensor, got shape (%d, %d)", fc.Rows(), fc.Cols())
	}
	n := fc.Rows()
	if len(displacements) != n {
		return 0, fmt.Errorf("got %d displacement vectors, want %d", len(displacements), n)
	}

	m := mat.NewDense(3*n, 3*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					m.Set(i*3+a, j*3+b, fc.At(i, j, a, b))
				}
			}
		}
	}
	d := mat.NewVecDense(3*n, nil)
	for i, u := range displacements {
		for a := 0; a < 3; a++ {
			d.SetVec(i*3+a, u[a])
		}
	}
	var md mat.VecDense
	md.MulVec(m, d)
	return mat.Dot(d, &md) / 2, nil
}
