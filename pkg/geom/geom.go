// Package geom defines the exact 2D geometry primitives for Camber.
// All types are pure values with closed-form operations; nothing here
// depends on the rest of the system.
package geom

import (
	"fmt"
	"math"
)

// CoincidenceTol is the tolerance used when deciding whether two exact
// coordinates are the same point.
const CoincidenceTol = 1e-9

// DisplayTol is the coarser tolerance used for display-scale comparisons.
const DisplayTol = 1e-6

// DegenerateGeometryError reports a malformed primitive at construction
// time (zero-length line, zero-radius circle, empty arc sweep).
type DegenerateGeometryError struct {
	Kind   string // which primitive failed
	Detail string
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate %s: %s", e.Kind, e.Detail)
}

// Vec2 is a 2D vector or point.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns u + v.
func (u Vec2) Add(v Vec2) Vec2 { return Vec2{u.X + v.X, u.Y + v.Y} }

// Sub returns u - v.
func (u Vec2) Sub(v Vec2) Vec2 { return Vec2{u.X - v.X, u.Y - v.Y} }

// Scale returns u scaled by s.
func (u Vec2) Scale(s float64) Vec2 { return Vec2{u.X * s, u.Y * s} }

// Dot returns the dot product of u and v.
func (u Vec2) Dot(v Vec2) float64 { return u.X*v.X + u.Y*v.Y }

// Cross returns the scalar (z) component of the 2D cross product.
func (u Vec2) Cross(v Vec2) float64 { return u.X*v.Y - u.Y*v.X }

// Len returns the Euclidean length of u.
func (u Vec2) Len() float64 { return math.Hypot(u.X, u.Y) }

// Dist returns the distance between u and v.
func (u Vec2) Dist(v Vec2) float64 { return u.Sub(v).Len() }

// Eq reports whether u and v coincide within CoincidenceTol.
func (u Vec2) Eq(v Vec2) bool { return u.Dist(v) <= CoincidenceTol }

// Normalize returns u scaled to unit length. Normalizing a near-zero
// vector returns the zero vector rather than NaN.
func (u Vec2) Normalize() Vec2 {
	l := u.Len()
	if l <= CoincidenceTol {
		return Vec2{}
	}
	return u.Scale(1 / l)
}
