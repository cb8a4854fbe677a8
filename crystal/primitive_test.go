package crystal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// twoAtomPrimitive is a 2x1x1 supercell of a one-atom cubic cell.
func twoAtomPrimitive(t *testing.T) *Primitive {
	t.Helper()
	slat := mat.NewDense(3, 3, []float64{
		2, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
	supercell, err := NewCell(slat, [][3]float64{{0, 0, 0}, {0.5, 0, 0}})
	if err != nil {
		t.Fatalf("NewCell: %v", err)
	}
	pcell, err := NewCell(cubicLattice(1), [][3]float64{{0, 0, 0}})
	if err != nil {
		t.Fatalf("NewCell: %v", err)
	}
	prim, err := NewPrimitive(pcell, supercell, []int{0}, []int{0, 0}, testSymprec)
	if err != nil {
		t.Fatalf("NewPrimitive: %v", err)
	}
	return prim
}

func TestNewPrimitiveMaps(t *testing.T) {
	prim := twoAtomPrimitive(t)

	assert.Equal(t, []int{0, -1}, prim.P2P())

	trans := prim.Translations()
	if assert.Len(t, trans, 2) {
		assert.Equal(t, [3]float64{0, 0, 0}, trans[0])
		assert.Equal(t, [3]float64{0.5, 0, 0}, trans[1])
	}
	perms := prim.TranslationPermutations()
	assert.Equal(t, [][]int{{0, 1}, {1, 0}}, perms)
}

func TestNewPrimitiveRejectsBadMaps(t *testing.T) {
	supercell, err := NewCell(cubicLattice(2), [][3]float64{{0, 0, 0}, {0.5, 0, 0}})
	if err != nil {
		t.Fatalf("NewCell: %v", err)
	}
	pcell, err := NewCell(cubicLattice(1), [][3]float64{{0, 0, 0}})
	if err != nil {
		t.Fatalf("NewCell: %v", err)
	}

	// s2p of a primitive representative must be itself.
	_, err = NewPrimitive(pcell, supercell, []int{0}, []int{1, 0}, testSymprec)
	assert.Error(t, err)

	// s2p must point at representatives.
	_, err = NewPrimitive(pcell, supercell, []int{0}, []int{0, 1}, testSymprec)
	assert.Error(t, err)

	_, err = NewPrimitive(pcell, supercell, []int{0, 1}, []int{0, 0}, testSymprec)
	assert.Error(t, err)

	_, err = NewPrimitive(pcell, supercell, []int{0}, []int{0}, testSymprec)
	assert.Error(t, err)
}

func TestPrimitiveSmallestVectors(t *testing.T) {
	prim := twoAtomPrimitive(t)

	svecs, multi := prim.SmallestVectors()

	// Vectors are rebased to primitive fractional coordinates: the image
	// of atom 1 sits one primitive lattice constant away, on both sides.
	assert.Equal(t, 1, multi[0][0])
	assert.Equal(t, 2, multi[1][0])
	xs := []float64{svecs[1][0][0][0], svecs[1][0][1][0]}
	assert.ElementsMatch(t, []float64{1, -1}, xs)

	// Cached table is returned on repeat calls.
	again, _ := prim.SmallestVectors()
	assert.Same(t, &svecs[0], &again[0])
}
