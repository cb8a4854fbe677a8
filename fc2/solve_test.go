package fc2

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/lattdyn/lattdyn/symmetry"
)

func TestSolveForAtomReconstructsModel(t *testing.T) {
	supercell := cubicSupercell(t)
	sym := cubicSymmetry(t, supercell)
	model := cubicModelFC()

	// One displacement along x: site symmetry must supply the other
	// directions.
	u := [3]float64{0.01, 0, 0}
	forces := modelForces(model, 0, u)

	block, err := SolveForAtom(supercell, 0, [][3]float64{u},
		[]*mat.Dense{forces}, sym.SiteSymmetry(0), testSymprec)
	if err != nil {
		t.Fatalf("SolveForAtom: %v", err)
	}

	for j := 0; j < 8; j++ {
		assert.InDeltaSlicef(t, model.Block(0, j), block[j*9:j*9+9], 1e-9,
			"block (0,%d)", j)
	}
}

func TestCalculateFullTensor(t *testing.T) {
	supercell := cubicSupercell(t)
	sym := cubicSymmetry(t, supercell)
	model := cubicModelFC()

	u := [3]float64{0.01, 0, 0}
	ds := &DisplacementDataset{
		NumAtoms: 8,
		Displacements: []Displacement{
			{Atom: 0, Vector: u, Forces: modelForces(model, 0, u)},
		},
	}

	fc, err := Calculate(supercell, sym, ds, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !fc.IsFull() {
		t.Fatalf("expected full tensor, got shape (%d, %d)", fc.Rows(), fc.Cols())
	}
	assert.InDelta(t, 0, maxBlockDiff(fc, model), 1e-9)

	// The on-site block balances the sum of all other blocks in its row.
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			sum := 0.0
			for j := 0; j < 8; j++ {
				sum += fc.At(0, j, a, b)
			}
			assert.InDeltaf(t, 0, sum, 1e-9, "row sum (%d,%d)", a, b)
		}
	}

	rep, err := Drift(fc)
	if err != nil {
		t.Fatalf("Drift: %v", err)
	}
	assert.InDelta(t, 0, rep.Max(), 1e-9)
}

func TestCalculateCompactRoundTrip(t *testing.T) {
	supercell := cubicSupercell(t)
	prim := cubicPrimitive(t, supercell)
	sym := cubicSymmetry(t, supercell)
	model := cubicModelFC()

	u := [3]float64{0.01, 0, 0}
	ds := &DisplacementDataset{
		NumAtoms: 8,
		Displacements: []Displacement{
			{Atom: 0, Vector: u, Forces: modelForces(model, 0, u)},
		},
	}

	compact, err := Calculate(supercell, sym, ds, []int{0})
	if err != nil {
		t.Fatalf("Calculate compact: %v", err)
	}
	if compact.Rows() != 1 || compact.Cols() != 8 {
		t.Fatalf("compact shape (%d, %d), want (1, 8)", compact.Rows(), compact.Cols())
	}
	for j := 0; j < 8; j++ {
		assert.InDeltaSlicef(t, model.Block(0, j), compact.Block(0, j), 1e-9,
			"compact block (0,%d)", j)
	}

	full, err := CompactToFull(compact, prim)
	if err != nil {
		t.Fatalf("CompactToFull: %v", err)
	}
	assert.InDelta(t, 0, maxBlockDiff(full, model), 1e-9)
}

func TestCalculateDisplacedAtomOutsideRowSet(t *testing.T) {
	supercell := cubicSupercell(t)
	sym := cubicSymmetry(t, supercell)
	model := cubicModelFC()

	u := [3]float64{0.01, 0, 0}
	ds := &DisplacementDataset{
		NumAtoms: 8,
		Displacements: []Displacement{
			{Atom: 3, Vector: u, Forces: modelForces(model, 3, u)},
		},
	}
	_, err := Calculate(supercell, sym, ds, []int{0})
	if err == nil {
		t.Fatal("expected error for displaced atom outside the row set")
	}
}

// With only one displacement direction and no site symmetry beyond the
// identity, the solve cannot recover the y and z components. That is not
// an inline error: the defect shows up only in the tensor itself.
func TestCalculateInsufficientSiteSymmetry(t *testing.T) {
	supercell := cubicSupercell(t)
	model := cubicModelFC()

	var ops []symmetry.Operation
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				ops = append(ops, symmetry.Operation{
					Rotation: symmetry.Identity,
					Translation: [3]float64{
						float64(i) / 2, float64(j) / 2, float64(k) / 2,
					},
				})
			}
		}
	}
	sym, err := symmetry.NewDataset(supercell, ops, testSymprec)
	if err != nil {
		t.Fatalf("building translation-only dataset: %v", err)
	}

	u := [3]float64{0.01, 0, 0}
	ds := &DisplacementDataset{
		NumAtoms: 8,
		Displacements: []Displacement{
			{Atom: 0, Vector: u, Forces: modelForces(model, 0, u)},
		},
	}
	fc, err := Calculate(supercell, sym, ds, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// The x components are recovered, the unprobed ones are not.
	assert.InDelta(t, model.At(0, 0, 0, 0), fc.At(0, 0, 0, 0), 1e-9)
	assert.InDelta(t, 0, fc.At(0, 0, 1, 1), 1e-12)
	assert.Greater(t, math.Abs(model.At(0, 0, 1, 1)-fc.At(0, 0, 1, 1)), 1e-3)
}
