package fc2

import (
	"gonum.org/v1/gonum/mat"
)

// SimilarityTransform applies R * M * R^-1.
func SimilarityTransform(rot, m mat.Matrix) *mat.Dense {
	var rinv mat.Dense
	if err := rinv.Inverse(rot); err != nil {
		panic(err)
	}
	var tmp, out mat.Dense
	tmp.Mul(m, &rinv)
	out.Mul(rot, &tmp)
	return &out
}

// PseudoInverse computes the Moore-Penrose pseudo-inverse via SVD. Both
// over- and under-determined systems are handled uniformly; singular
// values below max(m,n)*eps*sigma_max are treated as zero.
func PseudoInverse(a *mat.Dense) *mat.Dense {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		panic("SVD factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	m, n := a.Dims()
	dim := m
	if n > dim {
		dim = n
	}
	tol := 0.0
	if len(s) > 0 {
		tol = float64(dim) * 2.220446049250313e-16 * s[0]
	}

	// pinv = V * S^+ * U^T
	k := len(s)
	sinv := mat.NewDense(k, k, nil)
	for i, sv := range s {
		if sv > tol {
			sinv.Set(i, i, 1/sv)
		}
	}
	var tmp, out mat.Dense
	tmp.Mul(&v, sinv)
	out.Mul(&tmp, u.T())
	return &out
}

// addSimilarity accumulates R * M * Rinv into a 9-element row-major block.
func addSimilarity(dst, m []float64, r, rinv mat.Matrix) {
	for k := 0; k < 3; k++ {
		for l := 0; l < 3; l++ {
			sum := 0.0
			for p := 0; p < 3; p++ {
				for q := 0; q < 3; q++ {
					sum += r.At(k, p) * m[p*3+q] * rinv.At(q, l)
				}
			}
			dst[k*3+l] += sum
		}
	}
}

// invertAll inverts a list of rotation matrices, preserving order.
func invertAll(rots []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(rots))
	for i, r := range rots {
		var rinv mat.Dense
		if err := rinv.Inverse(r); err != nil {
			panic(err)
		}
		out[i] = &rinv
	}
	return out
}

// setRotatedT writes R^T * M * R into a 9-element row-major block. This
// is the block rotation of the symmetry distributor: with permutations
// defined as positions[perm[i]] == R*positions[i] + t, transporting a
// known block to an unsolved row applies the inverse rotation, and the
// Cartesian form of a crystallographic operation is orthogonal.
func setRotatedT(dst, m []float64, r *mat.Dense) {
	for k := 0; k < 3; k++ {
		for l := 0; l < 3; l++ {
			sum := 0.0
			for p := 0; p < 3; p++ {
				for q := 0; q < 3; q++ {
					sum += r.At(p, k) * m[p*3+q] * r.At(q, l)
				}
			}
			dst[k*3+l] = sum
		}
	}
}
