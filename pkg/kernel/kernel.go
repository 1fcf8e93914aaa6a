// Package kernel defines the abstract solid geometry kernel interface.
// Implementations provide profile sweeps and boolean operations behind
// this interface, so backends can be swapped without touching the rest
// of the system.
package kernel

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Profile is a closed 2D region to sweep into a solid. Either Circle is
// set, or Polygon holds the vertices of a closed loop in order.
type Profile struct {
	Polygon [][2]float64
	Circle  *CircleProfile
}

// CircleProfile is a circular profile region.
type CircleProfile struct {
	Center [2]float64
	Radius float64
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Sweeps. Extrude sweeps the profile along the plane normal by
	// height; Revolve sweeps it about the profile's Y axis through
	// angle radians (the profile must lie in the x >= 0 half-plane).
	Extrude(p Profile, height float64) (Solid, error)
	Revolve(p Profile, angle float64) (Solid, error)

	// Boolean operations.
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms.
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// Mesh output. cells controls tessellation resolution; 0 selects
	// the backend default.
	ToMesh(s Solid, cells int) (*Mesh, error)
}
