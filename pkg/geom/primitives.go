package geom

import (
	"fmt"
	"math"
)

// Line is a 2D segment between two distinct endpoints.
type Line struct {
	A Vec2 `json:"a"`
	B Vec2 `json:"b"`
}

// NewLine constructs a Line. Endpoints closer than CoincidenceTol fail
// with a DegenerateGeometryError.
func NewLine(a, b Vec2) (Line, error) {
	if a.Eq(b) {
		return Line{}, &DegenerateGeometryError{
			Kind:   "line",
			Detail: fmt.Sprintf("zero-length segment at (%g, %g)", a.X, a.Y),
		}
	}
	return Line{A: a, B: b}, nil
}

// Dir returns the unit direction from A to B.
func (l Line) Dir() Vec2 { return l.B.Sub(l.A).Normalize() }

// Len returns the segment length.
func (l Line) Len() float64 { return l.A.Dist(l.B) }

// Eval returns the point at parameter t, with t=0 at A and t=1 at B.
func (l Line) Eval(t float64) Vec2 {
	return l.A.Add(l.B.Sub(l.A).Scale(t))
}

// DistToPoint returns the distance from p to the infinite carrier line.
func (l Line) DistToPoint(p Vec2) float64 {
	d := l.B.Sub(l.A)
	return math.Abs(d.Cross(p.Sub(l.A))) / d.Len()
}

// ClosestParam returns the carrier-line parameter of the point on the
// line closest to p (unclamped).
func (l Line) ClosestParam(p Vec2) float64 {
	d := l.B.Sub(l.A)
	return p.Sub(l.A).Dot(d) / d.Dot(d)
}

// Intersect returns the intersection point of the two carrier lines.
// Parallel lines (within CoincidenceTol on the normalized cross product)
// report ok=false.
func (l Line) Intersect(m Line) (p Vec2, ok bool) {
	d1 := l.B.Sub(l.A)
	d2 := m.B.Sub(m.A)
	denom := d1.Cross(d2)
	if math.Abs(denom)/(d1.Len()*d2.Len()) <= CoincidenceTol {
		return Vec2{}, false
	}
	t := m.A.Sub(l.A).Cross(d2) / denom
	return l.A.Add(d1.Scale(t)), true
}

// Circle is a full circle with a positive radius.
type Circle struct {
	Center Vec2    `json:"center"`
	Radius float64 `json:"radius"`
}

// NewCircle constructs a Circle. Radii at or below CoincidenceTol fail
// with a DegenerateGeometryError.
func NewCircle(center Vec2, radius float64) (Circle, error) {
	if radius <= CoincidenceTol {
		return Circle{}, &DegenerateGeometryError{
			Kind:   "circle",
			Detail: fmt.Sprintf("radius %g is not positive", radius),
		}
	}
	return Circle{Center: center, Radius: radius}, nil
}

// Eval returns the point at angle theta (radians, counterclockwise from +X).
func (c Circle) Eval(theta float64) Vec2 {
	return Vec2{
		X: c.Center.X + c.Radius*math.Cos(theta),
		Y: c.Center.Y + c.Radius*math.Sin(theta),
	}
}

// DistToPoint returns the unsigned distance from p to the circle.
func (c Circle) DistToPoint(p Vec2) float64 {
	return math.Abs(c.Center.Dist(p) - c.Radius)
}

// TangentFromLine reports whether the carrier line of l is tangent to c
// within tol, and the tangent point if so.
func (c Circle) TangentFromLine(l Line, tol float64) (Vec2, bool) {
	if math.Abs(l.DistToPoint(c.Center)-c.Radius) > tol {
		return Vec2{}, false
	}
	t := l.ClosestParam(c.Center)
	foot := l.Eval(t)
	return c.Center.Add(foot.Sub(c.Center).Normalize().Scale(c.Radius)), true
}

// IntersectLine returns the 0, 1 or 2 intersection points of the carrier
// line of l with the circle.
func (c Circle) IntersectLine(l Line) []Vec2 {
	d := l.B.Sub(l.A).Normalize()
	f := c.Center.Sub(l.A)
	t0 := f.Dot(d)
	h2 := c.Radius*c.Radius - (f.Dot(f) - t0*t0)
	if h2 < -CoincidenceTol {
		return nil
	}
	if h2 < 0 {
		h2 = 0
	}
	h := math.Sqrt(h2)
	if h <= CoincidenceTol {
		return []Vec2{l.A.Add(d.Scale(t0))}
	}
	return []Vec2{
		l.A.Add(d.Scale(t0 - h)),
		l.A.Add(d.Scale(t0 + h)),
	}
}

// Arc is a counterclockwise circular arc from angle Start to angle End.
// End may exceed Start by up to 2*pi; the sweep End-Start must be positive.
type Arc struct {
	Center Vec2    `json:"center"`
	Radius float64 `json:"radius"`
	Start  float64 `json:"start"` // radians
	End    float64 `json:"end"`   // radians
}

// NewArc constructs an Arc. Non-positive radii and non-positive sweeps
// fail with a DegenerateGeometryError.
func NewArc(center Vec2, radius, start, end float64) (Arc, error) {
	if radius <= CoincidenceTol {
		return Arc{}, &DegenerateGeometryError{
			Kind:   "arc",
			Detail: fmt.Sprintf("radius %g is not positive", radius),
		}
	}
	if end-start <= CoincidenceTol {
		return Arc{}, &DegenerateGeometryError{
			Kind:   "arc",
			Detail: fmt.Sprintf("sweep %g is not positive", end-start),
		}
	}
	return Arc{Center: center, Radius: radius, Start: start, End: end}, nil
}

// Sweep returns the arc's angular extent in radians.
func (a Arc) Sweep() float64 { return a.End - a.Start }

// Eval returns the point at normalized parameter t in [0, 1].
func (a Arc) Eval(t float64) Vec2 {
	theta := a.Start + t*a.Sweep()
	return Vec2{
		X: a.Center.X + a.Radius*math.Cos(theta),
		Y: a.Center.Y + a.Radius*math.Sin(theta),
	}
}
