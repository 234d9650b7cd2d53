// Package quaternion provides unit-quaternion rotation math for the
// selection guide's stylized 3D orientation.
package quaternion

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is a rotation stored in (x, y, z, w) component order,
// w being the real part. The zero value is not a valid rotation;
// use Identity.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity returns the identity rotation.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// Norm returns the quaternion's magnitude.
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalize returns a unit-length copy. A degenerate (near-zero)
// quaternion normalizes to the identity.
func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	if n < 1e-12 {
		return Identity()
	}
	return fromNumber(quat.Scale(1/n, q.number()))
}

// Mul returns the Hamilton product q * other. Applying the result to a
// vector rotates by other first, then by q.
func (q Quaternion) Mul(other Quaternion) Quaternion {
	return fromNumber(quat.Mul(q.number(), other.number()))
}

// IsIdentity reports whether the rotation is the identity within tol.
func (q Quaternion) IsIdentity(tol float64) bool {
	return math.Abs(q.X) < tol && math.Abs(q.Y) < tol &&
		math.Abs(q.Z) < tol && math.Abs(math.Abs(q.W)-1) < tol
}

// FromAxisAngle builds a rotation of angle radians around the given axis.
// A degenerate axis yields the identity.
func FromAxisAngle(axis Vec3, angle float64) Quaternion {
	n := axis.Norm()
	if n < 1e-12 {
		return Identity()
	}
	s := math.Sin(angle/2) / n
	return Quaternion{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: math.Cos(angle / 2),
	}
}

// FromEuler builds a rotation from intrinsic XYZ Euler angles in radians.
func FromEuler(x, y, z float64) Quaternion {
	qx := FromAxisAngle(Vec3{X: 1}, x)
	qy := FromAxisAngle(Vec3{Y: 1}, y)
	qz := FromAxisAngle(Vec3{Z: 1}, z)
	return qx.Mul(qy).Mul(qz).Normalize()
}

// RotateVec3 rotates v by the quaternion (q v q*). The receiver is
// assumed to be unit length.
func (q Quaternion) RotateVec3(v Vec3) Vec3 {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q.number(), p), quat.Conj(q.number()))
	return Vec3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Vec3 is a 3-component vector.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the vector's magnitude.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns a unit-length copy, or the zero vector if degenerate.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n < 1e-12 {
		return Vec3{}
	}
	return Vec3{X: v.X / n, Y: v.Y / n, Z: v.Z / n}
}

// Dot returns the dot product.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the cross product.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}
