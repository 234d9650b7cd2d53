package quaternion

import (
	"math"
	"testing"
)

const tol = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestIdentityRotatesNothing(t *testing.T) {
	v := Vec3{X: 1, Y: 2, Z: 3}
	got := Identity().RotateVec3(v)
	if !almostEqual(got.X, v.X) || !almostEqual(got.Y, v.Y) || !almostEqual(got.Z, v.Z) {
		t.Errorf("identity rotation changed vector: %+v", got)
	}
}

func TestFromAxisAngleQuarterTurn(t *testing.T) {
	// 90 degrees about Z maps X onto Y.
	q := FromAxisAngle(Vec3{Z: 1}, math.Pi/2)
	got := q.RotateVec3(Vec3{X: 1})
	if !almostEqual(got.X, 0) || !almostEqual(got.Y, 1) || !almostEqual(got.Z, 0) {
		t.Errorf("quarter turn about Z: got %+v, want (0,1,0)", got)
	}
}

func TestFromAxisAngleNormalizesAxis(t *testing.T) {
	a := FromAxisAngle(Vec3{Z: 1}, math.Pi/3)
	b := FromAxisAngle(Vec3{Z: 10}, math.Pi/3)
	if !almostEqual(a.X, b.X) || !almostEqual(a.Y, b.Y) || !almostEqual(a.Z, b.Z) || !almostEqual(a.W, b.W) {
		t.Errorf("axis length leaked into rotation: %+v vs %+v", a, b)
	}
}

func TestMulComposesRotations(t *testing.T) {
	// Two 45 degree turns equal one 90 degree turn.
	half := FromAxisAngle(Vec3{Z: 1}, math.Pi/4)
	composed := half.Mul(half)
	quarter := FromAxisAngle(Vec3{Z: 1}, math.Pi/2)

	v := Vec3{X: 1}
	a := composed.RotateVec3(v)
	b := quarter.RotateVec3(v)
	if !almostEqual(a.X, b.X) || !almostEqual(a.Y, b.Y) {
		t.Errorf("composed rotation mismatch: %+v vs %+v", a, b)
	}
}

func TestNormalizeUnitNorm(t *testing.T) {
	q := Quaternion{X: 1, Y: 2, Z: 3, W: 4}.Normalize()
	if !almostEqual(q.Norm(), 1) {
		t.Errorf("normalized quaternion has norm %v", q.Norm())
	}
}

func TestNormalizeDegenerateFallsBackToIdentity(t *testing.T) {
	q := Quaternion{}.Normalize()
	if !q.IsIdentity(tol) {
		t.Errorf("zero quaternion normalized to %+v, want identity", q)
	}
}

func TestIsIdentity(t *testing.T) {
	if !Identity().IsIdentity(tol) {
		t.Error("Identity() not reported as identity")
	}
	if FromAxisAngle(Vec3{Z: 1}, 0.5).IsIdentity(tol) {
		t.Error("real rotation reported as identity")
	}
	// A tiny rotation within tolerance counts as identity.
	if !FromAxisAngle(Vec3{Z: 1}, 1e-12).IsIdentity(1e-6) {
		t.Error("negligible rotation not treated as identity")
	}
}

func TestFromEulerMatchesAxisAngle(t *testing.T) {
	a := FromEuler(0, 0, math.Pi/2)
	b := FromAxisAngle(Vec3{Z: 1}, math.Pi/2)
	v := Vec3{X: 1}
	ra, rb := a.RotateVec3(v), b.RotateVec3(v)
	if !almostEqual(ra.X, rb.X) || !almostEqual(ra.Y, rb.Y) {
		t.Errorf("euler Z rotation mismatch: %+v vs %+v", ra, rb)
	}
}

func TestVec3Cross(t *testing.T) {
	got := Vec3{X: 1}.Cross(Vec3{Y: 1})
	if !almostEqual(got.Z, 1) || !almostEqual(got.X, 0) || !almostEqual(got.Y, 0) {
		t.Errorf("X cross Y = %+v, want (0,0,1)", got)
	}
}

func TestRotationPreservesLength(t *testing.T) {
	q := FromAxisAngle(Vec3{X: 1, Y: 1, Z: 0.5}, 1.2)
	v := Vec3{X: 3, Y: -4, Z: 5}
	got := q.RotateVec3(v)
	if !almostEqual(got.Norm(), v.Norm()) {
		t.Errorf("rotation changed length: %v -> %v", v.Norm(), got.Norm())
	}
}
