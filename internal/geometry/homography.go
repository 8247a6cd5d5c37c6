package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/positioning-tools/internal/faults"
)

// determinantEpsilon is the smallest |det(H)| accepted as invertible.
const determinantEpsilon = 1e-12

// Homography is a 3x3 projective transform stored row-major with H[8] = 1.
type Homography [9]float64

// ComputeHomography solves the projective transform that maps src[i] onto
// dst[i] exactly for all four correspondences.
//
// The eight unknowns h00..h21 (h22 fixed at 1) satisfy, per correspondence,
//
//	x' = (h00 x + h01 y + h02) / (h20 x + h21 y + 1)
//	y' = (h10 x + h11 y + h12) / (h20 x + h21 y + 1)
//
// which gives an 8x8 linear system. The system is singular when three of the
// source (or destination) points are collinear; that case fails with
// faults.ErrDegenerateGeometry.
func ComputeHomography(src, dst [4]PointF) (Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		r := 2 * i
		a.SetRow(r, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		b.SetVec(r, u)
		a.SetRow(r+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(r+1, v)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		// A finite mat.Condition only warns about precision on large pixel
		// coordinates; the determinant check below decides. An infinite one
		// means the system is singular.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return Homography{}, faults.Degenerate("perspective transform is singular: %v", err)
		}
	}

	var H Homography
	for i := 0; i < 8; i++ {
		H[i] = h.AtVec(i)
		if math.IsNaN(H[i]) || math.IsInf(H[i], 0) {
			return Homography{}, faults.Degenerate("perspective transform has non-finite coefficients")
		}
	}
	H[8] = 1
	if math.Abs(H.Determinant()) < determinantEpsilon {
		return Homography{}, faults.Degenerate("perspective transform is not invertible")
	}
	return H, nil
}

// Apply maps (x, y) through the transform. ok is false when the point maps
// to infinity.
func (h Homography) Apply(x, y float64) (float64, float64, bool) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w, true
}

// Determinant returns det(H).
func (h Homography) Determinant() float64 {
	return mat.Det(h.dense())
}

// Inverse returns the inverse transform, normalised so that its last
// coefficient is 1.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.dense()); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return Homography{}, faults.Degenerate("perspective transform is not invertible: %v", err)
		}
	}
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}
	if out[8] == 0 {
		return Homography{}, faults.Degenerate("inverse transform maps the origin to infinity")
	}
	norm := out[8]
	for i := range out {
		out[i] /= norm
	}
	return out, nil
}

func (h Homography) dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, h[:])
	return mat.NewDense(3, 3, data)
}
