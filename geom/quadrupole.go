package geom

import (
	"math"
)

// Quadrupole is a symmetric 3x3 tensor stored as its six independent
// components in the order XX, XY, XZ, YY, YZ, ZZ.
type Quadrupole [6]float64

const (
	XX = iota
	XY
	XZ
	YY
	YZ
	ZZ
)

// NewQuadrupole builds a Quadrupole from a full row-major 3x3 matrix. Only
// the upper triangle is read.
func NewQuadrupole(m [9]float64) Quadrupole {
	return Quadrupole{m[0], m[1], m[2], m[4], m[5], m[8]}
}

// Matrix expands q into a full row-major 3x3 matrix.
func (q Quadrupole) Matrix() [9]float64 {
	return [9]float64{
		q[XX], q[XY], q[XZ],
		q[XY], q[YY], q[YZ],
		q[XZ], q[YZ], q[ZZ],
	}
}

// Mul returns the matrix-vector product q * v.
func (q Quadrupole) Mul(v Vec) Vec {
	return Vec{
		q[XX]*v[0] + q[XY]*v[1] + q[XZ]*v[2],
		q[XY]*v[0] + q[YY]*v[1] + q[YZ]*v[2],
		q[XZ]*v[0] + q[YZ]*v[1] + q[ZZ]*v[2],
	}
}

// Quad returns the quadratic form v * q * v.
func (q Quadrupole) Quad(v Vec) float64 { return v.Dot(q.Mul(v)) }

// Contract returns the full double contraction sum_ab q1_ab q2_ab. The
// off-diagonal components appear twice.
func (q1 Quadrupole) Contract(q2 Quadrupole) float64 {
	return q1[XX]*q2[XX] + q1[YY]*q2[YY] + q1[ZZ]*q2[ZZ] +
		2*(q1[XY]*q2[XY]+q1[XZ]*q2[XZ]+q1[YZ]*q2[YZ])
}

// Trace returns XX + YY + ZZ.
func (q Quadrupole) Trace() float64 { return q[XX] + q[YY] + q[ZZ] }

// Scale returns k * q.
func (q Quadrupole) Scale(k float64) Quadrupole {
	var out Quadrupole
	for i := range q { out[i] = k * q[i] }
	return out
}

// IsFinite returns false if any component is NaN or infinite.
func (q Quadrupole) IsFinite() bool {
	for _, x := range q {
		if math.IsNaN(x) || math.IsInf(x, 0) { return false }
	}
	return true
}
