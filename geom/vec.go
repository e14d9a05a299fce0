/*package geom contains the small amount of vector and tensor algebra needed
by the multipole kernels.

All quantities are float64 and stored by value. Positions, dipoles, and
fields are Vecs; quadrupoles are stored as their six independent components.
*/
package geom

import (
	"math"
)

// Vec is a three dimensional vector.
type Vec [3]float64

// Add returns v1 + v2.
func (v1 Vec) Add(v2 Vec) Vec {
	return Vec{v1[0] + v2[0], v1[1] + v2[1], v1[2] + v2[2]}
}

// Sub returns v1 - v2.
func (v1 Vec) Sub(v2 Vec) Vec {
	return Vec{v1[0] - v2[0], v1[1] - v2[1], v1[2] - v2[2]}
}

// Scale returns k * v.
func (v Vec) Scale(k float64) Vec {
	return Vec{k * v[0], k * v[1], k * v[2]}
}

// Dot returns the inner product of v1 and v2.
func (v1 Vec) Dot(v2 Vec) float64 {
	return v1[0]*v2[0] + v1[1]*v2[1] + v1[2]*v2[2]
}

// Norm2 returns |v|^2.
func (v Vec) Norm2() float64 { return v.Dot(v) }

// Norm returns |v|.
func (v Vec) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// AddScaled adds k * dv to v in place.
func (v *Vec) AddScaled(k float64, dv Vec) {
	v[0] += k * dv[0]
	v[1] += k * dv[1]
	v[2] += k * dv[2]
}

// Translate adds dx to v in place.
func (v *Vec) Translate(dx Vec) {
	v[0] += dx[0]
	v[1] += dx[1]
	v[2] += dx[2]
}

// IsFinite returns false if any component is NaN or infinite.
func (v Vec) IsFinite() bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) { return false }
	}
	return true
}
