package crystal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Cell is an ordered set of atoms in a periodic lattice.
type Cell struct {
	// Lattice holds the lattice vectors as the columns of a 3x3 matrix,
	// so a Cartesian position is Lattice * fractional.
	Lattice *mat.Dense

	// Positions are fractional (scaled) coordinates, one entry per atom.
	Positions [][3]float64
}

// NewCell validates the lattice and positions and wraps them in a Cell.
func NewCell(lattice *mat.Dense, positions [][3]float64) (*Cell, error) {
	r, c := lattice.Dims()
	if r != 3 || c != 3 {
		return nil, fmt.Errorf("lattice must be 3x3, got %dx%d", r, c)
	}
	if math.Abs(mat.Det(lattice)) < 1e-12 {
		return nil, fmt.Errorf("lattice is singular")
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("cell has no atoms")
	}
	return &Cell{Lattice: lattice, Positions: positions}, nil
}

// NumAtoms returns the number of atoms in the cell.
func (c *Cell) NumAtoms() int {
	return len(c.Positions)
}

// Cartesian converts a fractional vector to Cartesian coordinates.
func (c *Cell) Cartesian(v [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = c.Lattice.At(i, 0)*v[0] + c.Lattice.At(i, 1)*v[1] + c.Lattice.At(i, 2)*v[2]
	}
	return out
}

// cartesianNorm is the Cartesian length of a fractional vector.
func (c *Cell) cartesianNorm(v [3]float64) float64 {
	w := c.Cartesian(v)
	return math.Sqrt(w[0]*w[0] + w[1]*w[1] + w[2]*w[2])
}
