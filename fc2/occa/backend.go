// Package occa provides an OCCA-accelerated fc2.Backend for the
// distribution and symmetrization passes. The pure Go backend remains the
// behavioral reference; this one must agree with it within floating-point
// summation tolerance, since the two differ only in summation order.
package occa

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"gonum.org/v1/gonum/mat"

	"github.com/lattdyn/lattdyn/fc2"
)

const distributeKernel = `
@kernel void distributeFC2(double *fc,
                           const int *targets,
                           const double *rotsCart,
                           const int *permutations,
                           const int *mapAtoms,
                           const int *mapSyms,
                           const int *rowOf,
                           const int numTargets,
                           const int natom) {
  for (int i = 0; i < numTargets; ++i; @outer) {
    for (int j = 0; j < natom; ++j; @inner) {
      const int atom = targets[i];
      const int done = mapAtoms[atom];
      if (atom != done) {
        const int sym = mapSyms[atom];
        const int src = rowOf[done];
        const int pj = permutations[sym * natom + j];
        double out[9];
        for (int k = 0; k < 3; ++k) {
          for (int l = 0; l < 3; ++l) {
            double sum = 0.0;
            for (int p = 0; p < 3; ++p) {
              for (int q = 0; q < 3; ++q) {
                sum += rotsCart[sym * 9 + p * 3 + k] *
                       fc[(src * natom + pj) * 9 + p * 3 + q] *
                       rotsCart[sym * 9 + q * 3 + l];
              }
            }
            out[k * 3 + l] = sum;
          }
        }
        for (int k = 0; k < 9; ++k) {
          fc[(i * natom + j) * 9 + k] = out[k];
        }
      }
    }
  }
}
`

const transInvColKernel = `
@kernel void transInvCol(double *fc, const int natom) {
  for (int j = 0; j < natom; ++j; @outer) {
    for (int ab = 0; ab < 9; ++ab; @inner) {
      double sum = 0.0;
      for (int i = 0; i < natom; ++i) {
        sum += fc[(i * natom + j) * 9 + ab];
      }
      const double mean = sum / natom;
      for (int i = 0; i < natom; ++i) {
        fc[(i * natom + j) * 9 + ab] -= mean;
      }
    }
  }
}
`

const transInvRowKernel = `
@kernel void transInvRow(double *fc, const int natom) {
  for (int i = 0; i < natom; ++i; @outer) {
    for (int ab = 0; ab < 9; ++ab; @inner) {
      double sum = 0.0;
      for (int j = 0; j < natom; ++j) {
        sum += fc[(i * natom + j) * 9 + ab];
      }
      const double mean = sum / natom;
      for (int j = 0; j < natom; ++j) {
        fc[(i * natom + j) * 9 + ab] -= mean;
      }
    }
  }
}
`

const permSymKernel = `
@kernel void permSym(double *fc, const int natom) {
  for (int i = 0; i < natom; ++i; @outer) {
    for (int j = 0; j < natom; ++j; @inner) {
      if (j >= i) {
        for (int k = 0; k < 3; ++k) {
          for (int l = 0; l < 3; ++l) {
            const double v = (fc[(i * natom + j) * 9 + k * 3 + l] +
                              fc[(j * natom + i) * 9 + l * 3 + k]) / 2.0;
            fc[(i * natom + j) * 9 + k * 3 + l] = v;
            fc[(j * natom + i) * 9 + l * 3 + k] = v;
          }
        }
      }
    }
  }
}
`

// Backend runs the tensor passes on an OCCA device.
type Backend struct {
	device      *gocca.OCCADevice
	distribute  *gocca.OCCAKernel
	transInvCol *gocca.OCCAKernel
	transInvRow *gocca.OCCAKernel
	permSym     *gocca.OCCAKernel
}

// NewBackend creates a device and compiles the kernels. deviceProps is an
// OCCA device-properties JSON string; an empty string tries OpenMP, then
// CUDA, then Serial.
func NewBackend(deviceProps string) (*Backend, error) {
	var device *gocca.OCCADevice
	var err error
	if deviceProps != "" {
		device, err = gocca.NewDevice(deviceProps)
		if err != nil {
			return nil, fmt.Errorf("creating OCCA device: %w", err)
		}
	} else {
		for _, props := range []string{
			`{"mode": "OpenMP"}`,
			`{"mode": "CUDA", "device_id": 0}`,
			`{"mode": "Serial"}`,
		} {
			device, err = gocca.NewDevice(props)
			if err == nil {
				break
			}
		}
		if device == nil {
			return nil, fmt.Errorf("no OCCA device available: %w", err)
		}
	}

	b := &Backend{device: device}
	for _, k := range []struct {
		source, name string
		dst          **gocca.OCCAKernel
	}{
		{distributeKernel, "distributeFC2", &b.distribute},
		{transInvColKernel, "transInvCol", &b.transInvCol},
		{transInvRowKernel, "transInvRow", &b.transInvRow},
		{permSymKernel, "permSym", &b.permSym},
	} {
		kernel, err := device.BuildKernelFromString(k.source, k.name, nil)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("building kernel %s: %w", k.name, err)
		}
		*k.dst = kernel
	}
	return b, nil
}

// Close releases the kernels and the device.
func (b *Backend) Close() {
	for _, k := range []*gocca.OCCAKernel{b.distribute, b.transInvCol, b.transInvRow, b.permSym} {
		if k != nil {
			k.Free()
		}
	}
	if b.device != nil {
		b.device.Free()
	}
}

// DistributeFC2 implements fc2.Backend on the device. Source rows are
// never written, so all target rows run in parallel.
func (b *Backend) DistributeFC2(fc *fc2.ForceConstants, targets []int, rotsCart []*mat.Dense,
	permutations [][]int, mapAtoms, mapSyms []int) error {

	natom := fc.Cols()

	rowOf := make([]int, natom)
	for i := range rowOf {
		rowOf[i] = -1
	}
	for i, atom := range targets {
		if mapAtoms[atom] == atom {
			rowOf[atom] = i
		}
	}
	for _, atom := range targets {
		if done := mapAtoms[atom]; done != atom && rowOf[done] < 0 {
			return fmt.Errorf("solved atom %d is not among the tensor rows", done)
		}
	}

	rots := make([]float64, len(rotsCart)*9)
	for s, r := range rotsCart {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				rots[s*9+i*3+j] = r.At(i, j)
			}
		}
	}
	perms := make([]int32, len(permutations)*natom)
	for s, perm := range permutations {
		for i, p := range perm {
			perms[s*natom+i] = int32(p)
		}
	}

	fcMem := b.mallocFloat64(fc.Data())
	defer fcMem.Free()
	targetsMem := b.mallocInts(targets)
	defer targetsMem.Free()
	rotsMem := b.mallocFloat64(rots)
	defer rotsMem.Free()
	permsMem := b.mallocInt32(perms)
	defer permsMem.Free()
	mapAtomsMem := b.mallocInts(mapAtoms)
	defer mapAtomsMem.Free()
	mapSymsMem := b.mallocInts(mapSyms)
	defer mapSymsMem.Free()
	rowOfMem := b.mallocInts(rowOf)
	defer rowOfMem.Free()

	err := b.distribute.RunWithArgs(fcMem, targetsMem, rotsMem, permsMem,
		mapAtomsMem, mapSymsMem, rowOfMem, len(targets), natom)
	if err != nil {
		return fmt.Errorf("distribute kernel: %w", err)
	}
	b.device.Finish()

	data := fc.Data()
	fcMem.CopyTo(unsafe.Pointer(&data[0]), int64(len(data)*8))
	return nil
}

// PermTransSymmetrize implements fc2.Backend on the device: the tensor is
// uploaded once and the pass sequence of the reference implementation is
// replayed as kernel launches.
func (b *Backend) PermTransSymmetrize(fc *fc2.ForceConstants, level int) error {
	if !fc.IsFull() {
		return fmt.Errorf("symmetrize needs a full tensor, got shape (%d, %d)", fc.Rows(), fc.Cols())
	}
	natom := fc.Rows()

	fcMem := b.mallocFloat64(fc.Data())
	defer fcMem.Free()

	translational := func() error {
		if err := b.transInvCol.RunWithArgs(fcMem, natom); err != nil {
			return fmt.Errorf("translational-invariance kernel: %w", err)
		}
		if err := b.transInvRow.RunWithArgs(fcMem, natom); err != nil {
			return fmt.Errorf("translational-invariance kernel: %w", err)
		}
		return nil
	}
	for i := 0; i < level; i++ {
		if err := translational(); err != nil {
			return err
		}
		if err := b.permSym.RunWithArgs(fcMem, natom); err != nil {
			return fmt.Errorf("permutation-symmetry kernel: %w", err)
		}
	}
	if err := translational(); err != nil {
		return err
	}
	b.device.Finish()

	data := fc.Data()
	fcMem.CopyTo(unsafe.Pointer(&data[0]), int64(len(data)*8))
	return nil
}

func (b *Backend) mallocFloat64(data []float64) *gocca.OCCAMemory {
	return b.device.Malloc(int64(len(data)*8), unsafe.Pointer(&data[0]), nil)
}

func (b *Backend) mallocInt32(data []int32) *gocca.OCCAMemory {
	return b.device.Malloc(int64(len(data)*4), unsafe.Pointer(&data[0]), nil)
}

func (b *Backend) mallocInts(data []int) *gocca.OCCAMemory {
	conv := make([]int32, len(data))
	for i, v := range data {
		conv[i] = int32(v)
	}
	return b.mallocInt32(conv)
}
