package fc2

import (
	"fmt"

	"github.com/lattdyn/lattdyn/crystal"
)

// Cutoff zeroes every block whose minimum-image distance exceeds the
// cutoff radius. Distances are Cartesian, computed by a smallest-vector
// search under periodic boundary conditions. For a compact tensor the
// primitive maps identify which atom pair each block belongs to; prim may
// be nil for a full tensor.
func Cutoff(fc *ForceConstants, supercell *crystal.Cell, prim *crystal.Primitive, radius, symprec float64) error {
	var dists [][]float64
	if fc.IsFull() {
		dists = crystal.MinimumDistances(supercell.Lattice, supercell.Positions, supercell.Positions, symprec)
	} else {
		if prim == nil {
			return fmt.Errorf("compact cutoff needs the primitive maps")
		}
		if fc.Rows() != len(prim.P2S) {
			return fmt.Errorf("compact tensor has %d rows, want %d primitive atoms", fc.Rows(), len(prim.P2S))
		}
		primAsSuper := make([][3]float64, len(prim.P2S))
		for k, s := range prim.P2S {
			primAsSuper[k] = supercell.Positions[s]
		}
		dists = crystal.MinimumDistances(supercell.Lattice, supercell.Positions, primAsSuper, symprec)
	}

	for i := 0; i < fc.Rows(); i++ {
		for j := 0; j < fc.Cols(); j++ {
			if dists[j][i] > radius {
				blk := fc.Block(i, j)
				for k := range blk {
					blk[k] = 0
				}
			}
		}
	}
	return nil
}
