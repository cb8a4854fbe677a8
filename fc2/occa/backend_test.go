package occa

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/lattdyn/lattdyn/fc2"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := NewBackend("")
	if err != nil {
		t.Skipf("no OCCA device available: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func randomFC(rows, cols int, seed int64) *fc2.ForceConstants {
	rng := rand.New(rand.NewSource(seed))
	fc := fc2.NewForceConstants(rows, cols)
	data := fc.Data()
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return fc
}

func TestPermTransSymmetrizeAgreesWithReference(t *testing.T) {
	b := newTestBackend(t)

	fc := randomFC(6, 6, 1)
	ref := fc.Copy()
	if err := (fc2.GoBackend{}).PermTransSymmetrize(ref, 2); err != nil {
		t.Fatalf("reference PermTransSymmetrize: %v", err)
	}
	if err := b.PermTransSymmetrize(fc, 2); err != nil {
		t.Fatalf("device PermTransSymmetrize: %v", err)
	}
	assert.InDeltaSlice(t, ref.Data(), fc.Data(), 1e-12)
}

func TestPermTransSymmetrizeRejectsCompact(t *testing.T) {
	b := newTestBackend(t)
	assert.Error(t, b.PermTransSymmetrize(fc2.NewForceConstants(1, 4), 2))
}

func TestDistributeFC2AgreesWithReference(t *testing.T) {
	b := newTestBackend(t)

	// Two atoms exchanged by a mirror: atom 1 is transported from the
	// solved row 0.
	rotsCart := []*mat.Dense{
		mat.NewDense(3, 3, []float64{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		}),
		mat.NewDense(3, 3, []float64{
			-1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		}),
	}
	permutations := [][]int{{0, 1}, {1, 0}}
	mapAtoms := []int{0, 0}
	mapSyms := []int{0, 1}
	targets := []int{0, 1}

	fc := randomFC(2, 2, 2)
	for _, blk := range [][]float64{fc.Block(1, 0), fc.Block(1, 1)} {
		for i := range blk {
			blk[i] = 0
		}
	}
	ref := fc.Copy()

	err := (fc2.GoBackend{}).DistributeFC2(ref, targets, rotsCart, permutations, mapAtoms, mapSyms)
	if err != nil {
		t.Fatalf("reference DistributeFC2: %v", err)
	}
	err = b.DistributeFC2(fc, targets, rotsCart, permutations, mapAtoms, mapSyms)
	if err != nil {
		t.Fatalf("device DistributeFC2: %v", err)
	}
	assert.InDeltaSlice(t, ref.Data(), fc.Data(), 1e-13)
}

func TestBackendSatisfiesInterface(t *testing.T) {
	var _ fc2.Backend = (*Backend)(nil)
}
