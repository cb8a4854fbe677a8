package fc2

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/lattdyn/lattdyn/crystal"
	"github.com/lattdyn/lattdyn/symmetry"
)

// The shared fixture is a simple-cubic crystal, one atom per primitive
// cell, in a 2x2x2 supercell (8 atoms, lattice constant 1). Atom order is
// n = i*4 + j*2 + k for fractional position (i/2, j/2, k/2).

const testSymprec = 1e-5

func cubicSupercell(t *testing.T) *crystal.Cell {
	t.Helper()
	lattice := mat.NewDense(3, 3, []float64{
		2, 0, 0,
		0, 2, 0,
		0, 0, 2,
	})
	var positions [][3]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				positions = append(positions, [3]float64{
					float64(i) / 2, float64(j) / 2, float64(k) / 2,
				})
			}
		}
	}
	cell, err := crystal.NewCell(lattice, positions)
	if err != nil {
		t.Fatalf("building supercell: %v", err)
	}
	return cell
}

func cubicPrimitive(t *testing.T, supercell *crystal.Cell) *crystal.Primitive {
	t.Helper()
	lattice := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
	pcell, err := crystal.NewCell(lattice, [][3]float64{{0, 0, 0}})
	if err != nil {
		t.Fatalf("building primitive cell: %v", err)
	}
	s2p := make([]int, supercell.NumAtoms())
	prim, err := crystal.NewPrimitive(pcell, supercell, []int{0}, s2p, testSymprec)
	if err != nil {
		t.Fatalf("building primitive: %v", err)
	}
	return prim
}

// cubicPointGroup returns the 48 signed permutation matrices, the full
// point group of a cube.
func cubicPointGroup() []symmetry.Rotation {
	axisPerms := [][3]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	var rots []symmetry.Rotation
	for _, p := range axisPerms {
		for s := 0; s < 8; s++ {
			var r symmetry.Rotation
			signs := [3]int{1 - 2*(s&1), 1 - 2*(s>>1&1), 1 - 2*(s>>2&1)}
			for i := 0; i < 3; i++ {
				r[i][p[i]] = signs[i]
			}
			rots = append(rots, r)
		}
	}
	return rots
}

// cubicSpaceGroup combines the point group with the 8 half-cell
// translations of the 2x2x2 supercell: 384 operations.
func cubicSpaceGroup() []symmetry.Operation {
	var ops []symmetry.Operation
	for _, r := range cubicPointGroup() {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				for k := 0; k < 2; k++ {
					ops = append(ops, symmetry.Operation{
						Rotation: r,
						Translation: [3]float64{
							float64(i) / 2, float64(j) / 2, float64(k) / 2,
						},
					})
				}
			}
		}
	}
	return ops
}

func cubicSymmetry(t *testing.T, supercell *crystal.Cell) *symmetry.Dataset {
	t.Helper()
	sym, err := symmetry.NewDataset(supercell, cubicSpaceGroup(), testSymprec)
	if err != nil {
		t.Fatalf("building symmetry dataset: %v", err)
	}
	return sym
}

// cubicModelFC is the nearest-neighbor spring model on the fixture: each
// atom couples to its axis neighbor (a double image in the 2x2x2 cell)
// with longitudinal constant 2, giving off-diagonal blocks -2*e_a*e_a^T
// and on-site blocks 2*I. Satisfies all invariances exactly.
func cubicModelFC() *ForceConstants {
	fc := NewForceConstants(8, 8)
	for n := 0; n < 8; n++ {
		for a, mask := range []int{4, 2, 1} {
			fc.Set(n, n, a, a, 2)
			fc.Set(n, n^mask, a, a, -2)
		}
	}
	return fc
}

// modelForces evaluates F = -Phi*u for a displacement of one atom.
func modelForces(fc *ForceConstants, atom int, u [3]float64) *mat.Dense {
	f := mat.NewDense(fc.Cols(), 3, nil)
	for j := 0; j < fc.Cols(); j++ {
		for b := 0; b < 3; b++ {
			sum := 0.0
			for a := 0; a < 3; a++ {
				sum -= fc.At(atom, j, a, b) * u[a]
			}
			f.Set(j, b, sum)
		}
	}
	return f
}

func maxBlockDiff(a, b *ForceConstants) float64 {
	maxDiff := 0.0
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < a.Cols(); j++ {
			ba, bb := a.Block(i, j), b.Block(i, j)
			for k := range ba {
				d := ba[k] - bb[k]
				if d < 0 {
					d = -d
				}
				if d > maxDiff {
					maxDiff = d
				}
			}
		}
	}
	return maxDiff
}
