package geometry

// PointInPolygon tests if a point is inside a polygon using ray casting.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}

	return inside
}

// ClampPoint limits a point to the rectangle [0,w] x [0,h].
func ClampPoint(p Point2D, w, h float64) Point2D {
	if p.X < 0 {
		p.X = 0
	} else if p.X > w {
		p.X = w
	}
	if p.Y < 0 {
		p.Y = 0
	} else if p.Y > h {
		p.Y = h
	}
	return p
}
