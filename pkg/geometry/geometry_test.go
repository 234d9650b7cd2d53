package geometry

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func pointsClose(a, b Point2D) bool {
	return almostEqual(a.X, b.X) && almostEqual(a.Y, b.Y)
}

func TestAffineComposeOrder(t *testing.T) {
	// translate-then-scale differs from scale-then-translate
	ts := Translation(10, 0).Compose(ScaleTransform(2))
	got := ts.Apply(Point2D{X: 1, Y: 1})
	if !pointsClose(got, Point2D{X: 12, Y: 2}) {
		t.Errorf("translate-then-scale applied to (1,1) = %+v, want (12,2)", got)
	}

	st := ScaleTransform(2).Compose(Translation(10, 0))
	got = st.Apply(Point2D{X: 1, Y: 1})
	if !pointsClose(got, Point2D{X: 22, Y: 2}) {
		t.Errorf("scale-then-translate applied to (1,1) = %+v, want (22,2)", got)
	}
}

func TestAffineInverseRoundTrip(t *testing.T) {
	tf := Translation(13, -7).Compose(ScaleTransform(2.5))
	inv, ok := tf.Inverse()
	if !ok {
		t.Fatal("invertible transform reported singular")
	}
	p := Point2D{X: 3.25, Y: -9.5}
	back := inv.Apply(tf.Apply(p))
	if !pointsClose(back, p) {
		t.Errorf("inverse round trip: %+v -> %+v", p, back)
	}
}

func TestAffineSingularInverse(t *testing.T) {
	if _, ok := ScaleTransform(0).Inverse(); ok {
		t.Error("zero-scale transform reported invertible")
	}
}

func TestRectCenterAndContains(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 30, Height: 40}
	if c := r.Center(); !pointsClose(c, Point2D{X: 25, Y: 40}) {
		t.Errorf("center = %+v", c)
	}
	if !r.Contains(Point2D{X: 10, Y: 20}) {
		t.Error("corner not contained")
	}
	if r.Contains(Point2D{X: 9.9, Y: 20}) {
		t.Error("outside point contained")
	}
}

func TestPointInPolygon(t *testing.T) {
	square := []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	tests := []struct {
		name string
		p    Point2D
		want bool
	}{
		{"center", Point2D{X: 5, Y: 5}, true},
		{"outside", Point2D{X: 15, Y: 5}, false},
		{"above", Point2D{X: 5, Y: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInPolygon(tt.p, square); got != tt.want {
				t.Errorf("PointInPolygon(%+v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}

	if PointInPolygon(Point2D{X: 0, Y: 0}, square[:2]) {
		t.Error("degenerate polygon contained a point")
	}
}

func TestClampPoint(t *testing.T) {
	got := ClampPoint(Point2D{X: -5, Y: 120}, 100, 100)
	if !pointsClose(got, Point2D{X: 0, Y: 100}) {
		t.Errorf("ClampPoint = %+v, want (0,100)", got)
	}
	inside := Point2D{X: 40, Y: 60}
	if got := ClampPoint(inside, 100, 100); !pointsClose(got, inside) {
		t.Errorf("inside point moved: %+v", got)
	}
}
