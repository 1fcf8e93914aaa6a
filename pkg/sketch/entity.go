package sketch

import "fmt"

// EntityID identifies an entity within one sketch. IDs are dense and
// never reused, so they double as stable solver indices.
type EntityID uint32

// ZeroEntity is the invalid entity id.
const ZeroEntity EntityID = 0

// EntityKind enumerates the geometric entity kinds a sketch can own.
type EntityKind int

const (
	KindPoint       EntityKind = iota // free point, params [x y]
	KindLine                          // segment, params [x1 y1 x2 y2]
	KindCircle                        // params [cx cy r]
	KindArc                           // params [cx cy r start end]
	KindSplinePoint                   // spline control point, params [x y]
)

func (k EntityKind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindCircle:
		return "circle"
	case KindArc:
		return "arc"
	case KindSplinePoint:
		return "spline-point"
	default:
		return "unknown"
	}
}

// ParamCount returns the number of free parameters for the kind.
func (k EntityKind) ParamCount() int {
	switch k {
	case KindPoint, KindSplinePoint:
		return 2
	case KindLine:
		return 4
	case KindCircle:
		return 3
	case KindArc:
		return 5
	default:
		return 0
	}
}

// Entity is one geometric object owned by a sketch. Params is the
// kind-specific free parameter vector; Fixed entities are user-pinned
// and exempt from solving.
type Entity struct {
	ID     EntityID   `json:"id"`
	Kind   EntityKind `json:"kind"`
	Params []float64  `json:"params"`
	Fixed  bool       `json:"fixed,omitempty"`
}

// pointLike reports whether the kind behaves as a 2-parameter point in
// constraint equations.
func (k EntityKind) pointLike() bool {
	return k == KindPoint || k == KindSplinePoint
}

// circleLike reports whether the kind carries a center and radius.
func (k EntityKind) circleLike() bool {
	return k == KindCircle || k == KindArc
}

// ParamRef addresses one scalar parameter of one entity.
type ParamRef struct {
	Entity EntityID
	Index  int
}

func (r ParamRef) String() string {
	return fmt.Sprintf("e%d[%d]", r.Entity, r.Index)
}
