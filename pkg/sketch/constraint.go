package sketch

// ConstraintID identifies a constraint within one sketch.
type ConstraintID uint32

// ConstraintKind enumerates the supported constraint relations.
type ConstraintKind int

const (
	Coincident    ConstraintKind = iota // point-point
	Distance                            // point-point or single line (length); Value in sketch units
	Angle                               // line-line; Value in radians
	Parallel                            // line-line
	Perpendicular                       // line-line
	Tangent                             // line-circle/arc or circle-circle
	Horizontal                          // point-point or single line
	Vertical                            // point-point or single line
	Equal                               // line-line (length) or circle/arc pair (radius)
)

func (k ConstraintKind) String() string {
	switch k {
	case Coincident:
		return "coincident"
	case Distance:
		return "distance"
	case Angle:
		return "angle"
	case Parallel:
		return "parallel"
	case Perpendicular:
		return "perpendicular"
	case Tangent:
		return "tangent"
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case Equal:
		return "equal"
	default:
		return "unknown"
	}
}

// valued reports whether the kind carries a numeric value.
func (k ConstraintKind) valued() bool {
	return k == Distance || k == Angle
}

// Constraint is one relation over an ordered list of entities.
type Constraint struct {
	ID       ConstraintID   `json:"id"`
	Kind     ConstraintKind `json:"kind"`
	Entities []EntityID     `json:"entities"`
	Value    float64        `json:"value,omitempty"`
}

// sameAs reports whether c and o are identical for duplicate detection:
// same kind, same ordered entity list and, for valued kinds, same value.
func (c *Constraint) sameAs(o *Constraint) bool {
	if c.Kind != o.Kind || len(c.Entities) != len(o.Entities) {
		return false
	}
	for i, id := range c.Entities {
		if o.Entities[i] != id {
			return false
		}
	}
	if c.Kind.valued() && c.Value != o.Value {
		return false
	}
	return true
}

// references reports whether the constraint mentions the entity.
func (c *Constraint) references(id EntityID) bool {
	for _, e := range c.Entities {
		if e == id {
			return true
		}
	}
	return false
}
