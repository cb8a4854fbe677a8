// Package fc2 builds and symmetrizes second-order interatomic force
// constants from displacement/force data, using supplied crystal symmetry
// to fill in unmeasured atom pairs.
//
// The central object is the rank-4 tensor Phi[i,j,a,b]: the 3x3 block
// Phi[i,j] relates a displacement of atom i to the force on atom j,
// F = -Phi*u. The first index runs over either all supercell atoms
// (full shape) or only symmetry-independent atoms (compact shape).
package fc2

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ForceConstants is the force-constants tensor, stored as one flat array
// of 3x3 row-major blocks. It is allocated once and mutated in place by
// the solver, distributor and invariance enforcers.
type ForceConstants struct {
	rows, cols int
	data       []float64
}

// NewForceConstants allocates a zero-filled tensor with the given number
// of displaced-atom rows and supercell-atom columns.
func NewForceConstants(rows, cols int) *ForceConstants {
	if rows <= 0 || cols <= 0 || rows > cols {
		panic(fmt.Sprintf("invalid force-constants shape (%d, %d)", rows, cols))
	}
	return &ForceConstants{
		rows: rows,
		cols: cols,
		data: make([]float64, rows*cols*9),
	}
}

// Rows returns the number of displaced-atom rows.
func (fc *ForceConstants) Rows() int { return fc.rows }

// Cols returns the number of supercell atoms.
func (fc *ForceConstants) Cols() int { return fc.cols }

// IsFull reports whether the tensor is square (indexed by all supercell
// atoms on both axes) rather than compact.
func (fc *ForceConstants) IsFull() bool { return fc.rows == fc.cols }

// Block returns the 3x3 block for the atom pair (i, j) as a row-major
// 9-element slice aliasing the tensor storage.
func (fc *ForceConstants) Block(i, j int) []float64 {
	off := (i*fc.cols + j) * 9
	return fc.data[off : off+9 : off+9]
}

// BlockMatrix wraps the (i, j) block in a gonum matrix sharing storage
// with the tensor.
func (fc *ForceConstants) BlockMatrix(i, j int) *mat.Dense {
	return mat.NewDense(3, 3, fc.Block(i, j))
}

// At reads one tensor element.
func (fc *ForceConstants) At(i, j, a, b int) float64 {
	return fc.data[(i*fc.cols+j)*9+a*3+b]
}

// Set writes one tensor element.
func (fc *ForceConstants) Set(i, j, a, b int, v float64) {
	fc.data[(i*fc.cols+j)*9+a*3+b] = v
}

// Data exposes the flat backing array, row-blocks-major. Shared with the
// tensor; intended for accelerated backends.
func (fc *ForceConstants) Data() []float64 { return fc.data }

// Copy returns a deep copy of the tensor.
func (fc *ForceConstants) Copy() *ForceConstants {
	out := NewForceConstants(fc.rows, fc.cols)
	copy(out.data, fc.data)
	return out
}

// CopyFrom overwrites this tensor with the contents of src. Shapes must
// match.
func (fc *ForceConstants) CopyFrom(src *ForceConstants) error {
	if fc.rows != src.rows || fc.cols != src.cols {
		return fmt.Errorf("shape mismatch: (%d, %d) vs (%d, %d)", fc.rows, fc.cols, src.rows, src.cols)
	}
	copy(fc.data, src.data)
	return nil
}
