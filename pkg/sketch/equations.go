package sketch

import (
	"fmt"
	"math"
)

// Equation is one scalar equality over sketch parameters. Refs lists the
// parameters the equation touches; Eval returns the residual and the
// gradient aligned with Refs. Equations are sparse: most constraints
// touch at most eight parameters.
type Equation struct {
	Constraint ConstraintID
	Refs       []ParamRef
	Eval       func(get func(ParamRef) float64) (residual float64, grad []float64)
}

// checkSignature validates that a constraint kind applies to the given
// entity kinds. The switch is exhaustive over ConstraintKind.
func checkSignature(kind ConstraintKind, kinds []EntityKind) error {
	bad := func() error {
		return fmt.Errorf("%w: %s over %v", ErrKindMismatch, kind, kinds)
	}
	switch kind {
	case Coincident:
		if len(kinds) != 2 || !kinds[0].pointLike() || !kinds[1].pointLike() {
			return bad()
		}
	case Distance:
		switch {
		case len(kinds) == 2 && kinds[0].pointLike() && kinds[1].pointLike():
		case len(kinds) == 1 && kinds[0] == KindLine:
		default:
			return bad()
		}
	case Angle, Parallel, Perpendicular:
		if len(kinds) != 2 || kinds[0] != KindLine || kinds[1] != KindLine {
			return bad()
		}
	case Tangent:
		if len(kinds) != 2 {
			return bad()
		}
		lineCircle := kinds[0] == KindLine && kinds[1].circleLike() ||
			kinds[0].circleLike() && kinds[1] == KindLine
		circleCircle := kinds[0].circleLike() && kinds[1].circleLike()
		if !lineCircle && !circleCircle {
			return bad()
		}
	case Horizontal, Vertical:
		switch {
		case len(kinds) == 2 && kinds[0].pointLike() && kinds[1].pointLike():
		case len(kinds) == 1 && kinds[0] == KindLine:
		default:
			return bad()
		}
	case Equal:
		if len(kinds) != 2 {
			return bad()
		}
		if !(kinds[0] == KindLine && kinds[1] == KindLine) &&
			!(kinds[0].circleLike() && kinds[1].circleLike()) {
			return bad()
		}
	default:
		return fmt.Errorf("sketch: unknown constraint kind %d", kind)
	}
	return nil
}

// Equations translates every constraint into its scalar equations.
// The stack order follows constraint insertion order, so identical
// graphs always produce identical equation stacks.
func (s *Sketch) Equations() ([]Equation, error) {
	var eqs []Equation
	for _, cid := range s.constraintOrder {
		c := s.constraints[cid]
		built, err := s.buildEquations(c)
		if err != nil {
			return nil, err
		}
		eqs = append(eqs, built...)
	}
	return eqs, nil
}

// EquationCount returns the number of scalar equations the constraint
// set currently contributes.
func (s *Sketch) EquationCount() int {
	n := 0
	for _, cid := range s.constraintOrder {
		if s.constraints[cid].Kind == Coincident {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// pointRefs returns the x/y refs of a point-like entity.
func pointRefs(id EntityID) (x, y ParamRef) {
	return ParamRef{id, 0}, ParamRef{id, 1}
}

// lineRefs returns the endpoint refs of a line entity.
func lineRefs(id EntityID) [4]ParamRef {
	return [4]ParamRef{{id, 0}, {id, 1}, {id, 2}, {id, 3}}
}

// circleRefs returns the center and radius refs of a circle-like entity.
func circleRefs(id EntityID) (cx, cy, r ParamRef) {
	return ParamRef{id, 0}, ParamRef{id, 1}, ParamRef{id, 2}
}

// buildEquations expands one constraint. The switch is exhaustive over
// ConstraintKind; signatures were validated at AddConstraint time.
func (s *Sketch) buildEquations(c *Constraint) ([]Equation, error) {
	kind := func(i int) EntityKind { return s.entities[c.Entities[i]].Kind }

	switch c.Kind {
	case Coincident:
		p1x, p1y := pointRefs(c.Entities[0])
		p2x, p2y := pointRefs(c.Entities[1])
		return []Equation{
			differenceEq(c.ID, p1x, p2x),
			differenceEq(c.ID, p1y, p2y),
		}, nil

	case Distance:
		var refs []ParamRef
		if len(c.Entities) == 1 {
			lr := lineRefs(c.Entities[0])
			refs = lr[:]
		} else {
			p1x, p1y := pointRefs(c.Entities[0])
			p2x, p2y := pointRefs(c.Entities[1])
			refs = []ParamRef{p1x, p1y, p2x, p2y}
		}
		d := c.Value
		return []Equation{{
			Constraint: c.ID,
			Refs:       refs,
			Eval: func(get func(ParamRef) float64) (float64, []float64) {
				dx := get(refs[0]) - get(refs[2])
				dy := get(refs[1]) - get(refs[3])
				r := dx*dx + dy*dy - d*d
				return r, []float64{2 * dx, 2 * dy, -2 * dx, -2 * dy}
			},
		}}, nil

	case Angle:
		return []Equation{angleEq(c, c.Value)}, nil

	case Parallel:
		l1 := lineRefs(c.Entities[0])
		l2 := lineRefs(c.Entities[1])
		refs := append(append([]ParamRef{}, l1[:]...), l2[:]...)
		return []Equation{{
			Constraint: c.ID,
			Refs:       refs,
			Eval: func(get func(ParamRef) float64) (float64, []float64) {
				ux := get(l1[2]) - get(l1[0])
				uy := get(l1[3]) - get(l1[1])
				vx := get(l2[2]) - get(l2[0])
				vy := get(l2[3]) - get(l2[1])
				r := ux*vy - uy*vx
				return r, []float64{-vy, vx, vy, -vx, uy, -ux, -uy, ux}
			},
		}}, nil

	case Perpendicular:
		l1 := lineRefs(c.Entities[0])
		l2 := lineRefs(c.Entities[1])
		refs := append(append([]ParamRef{}, l1[:]...), l2[:]...)
		return []Equation{{
			Constraint: c.ID,
			Refs:       refs,
			Eval: func(get func(ParamRef) float64) (float64, []float64) {
				ux := get(l1[2]) - get(l1[0])
				uy := get(l1[3]) - get(l1[1])
				vx := get(l2[2]) - get(l2[0])
				vy := get(l2[3]) - get(l2[1])
				r := ux*vx + uy*vy
				return r, []float64{-vx, -vy, vx, vy, -ux, -uy, ux, uy}
			},
		}}, nil

	case Tangent:
		if kind(0).circleLike() && kind(1).circleLike() {
			return []Equation{circleCircleTangentEq(c)}, nil
		}
		lineID, circID := c.Entities[0], c.Entities[1]
		if kind(0).circleLike() {
			lineID, circID = circID, lineID
		}
		return []Equation{lineCircleTangentEq(c, lineID, circID)}, nil

	case Horizontal:
		return []Equation{axisEq(s, c, 1)}, nil

	case Vertical:
		return []Equation{axisEq(s, c, 0)}, nil

	case Equal:
		if kind(0) == KindLine {
			return []Equation{equalLengthEq(c)}, nil
		}
		_, _, r1 := circleRefs(c.Entities[0])
		_, _, r2 := circleRefs(c.Entities[1])
		return []Equation{differenceEq(c.ID, r1, r2)}, nil

	default:
		return nil, fmt.Errorf("sketch: unknown constraint kind %d", c.Kind)
	}
}

// differenceEq builds the linear equation get(a) - get(b) = 0.
func differenceEq(cid ConstraintID, a, b ParamRef) Equation {
	refs := []ParamRef{a, b}
	return Equation{
		Constraint: cid,
		Refs:       refs,
		Eval: func(get func(ParamRef) float64) (float64, []float64) {
			return get(a) - get(b), []float64{1, -1}
		},
	}
}

// axisEq builds the horizontal (axis=1, y-difference) or vertical
// (axis=0, x-difference) equation for points or a single line.
func axisEq(s *Sketch, c *Constraint, axis int) Equation {
	if len(c.Entities) == 1 {
		id := c.Entities[0]
		return differenceEq(c.ID, ParamRef{id, axis}, ParamRef{id, 2 + axis})
	}
	return differenceEq(c.ID,
		ParamRef{c.Entities[0], axis}, ParamRef{c.Entities[1], axis})
}

// angleEq builds atan2(u x v, u . v) - theta = 0 between two lines.
func angleEq(c *Constraint, theta float64) Equation {
	l1 := lineRefs(c.Entities[0])
	l2 := lineRefs(c.Entities[1])
	refs := append(append([]ParamRef{}, l1[:]...), l2[:]...)
	return Equation{
		Constraint: c.ID,
		Refs:       refs,
		Eval: func(get func(ParamRef) float64) (float64, []float64) {
			ux := get(l1[2]) - get(l1[0])
			uy := get(l1[3]) - get(l1[1])
			vx := get(l2[2]) - get(l2[0])
			vy := get(l2[3]) - get(l2[1])
			cross := ux*vy - uy*vx
			dot := ux*vx + uy*vy
			denom := cross*cross + dot*dot
			r := math.Atan2(cross, dot) - theta
			// d(atan2(c,d)) = (d*dc - c*dd) / (c^2 + d^2)
			gux := (dot*vy - cross*vx) / denom
			guy := (dot*(-vx) - cross*vy) / denom
			gvx := (dot*(-uy) - cross*ux) / denom
			gvy := (dot*ux - cross*uy) / denom
			return r, []float64{-gux, -guy, gux, guy, -gvx, -gvy, gvx, gvy}
		},
	}
}

// lineCircleTangentEq builds the smooth tangency residual between a
// line's carrier and a circle: cross(b-a, c-a)^2/|b-a|^2 - r^2 = 0.
func lineCircleTangentEq(c *Constraint, lineID, circID EntityID) Equation {
	l := lineRefs(lineID)
	ccx, ccy, cr := circleRefs(circID)
	refs := []ParamRef{l[0], l[1], l[2], l[3], ccx, ccy, cr}
	return Equation{
		Constraint: c.ID,
		Refs:       refs,
		Eval: func(get func(ParamRef) float64) (float64, []float64) {
			ax, ay := get(l[0]), get(l[1])
			bx, by := get(l[2]), get(l[3])
			cx, cy, r := get(ccx), get(ccy), get(cr)
			dx, dy := bx-ax, by-ay
			wx, wy := cx-ax, cy-ay
			cr2 := dx*wy - dy*wx
			l2 := dx*dx + dy*dy
			res := cr2*cr2/l2 - r*r

			dcdax := dy - wy
			dcday := wx - dx
			dcdbx := wy
			dcdby := -wx
			dcdcx := -dy
			dcdcy := dx
			dl2ax := -2 * dx
			dl2ay := -2 * dy
			dl2bx := 2 * dx
			dl2by := 2 * dy

			// d(c^2/L2) = (2c dc L2 - c^2 dL2) / L2^2
			d := func(dc, dl2 float64) float64 {
				return (2*cr2*dc*l2 - cr2*cr2*dl2) / (l2 * l2)
			}
			return res, []float64{
				d(dcdax, dl2ax), d(dcday, dl2ay),
				d(dcdbx, dl2bx), d(dcdby, dl2by),
				d(dcdcx, 0), d(dcdcy, 0),
				-2 * r,
			}
		},
	}
}

// circleCircleTangentEq builds the external tangency residual between
// two circles: |c1-c2|^2 - (r1+r2)^2 = 0.
func circleCircleTangentEq(c *Constraint) Equation {
	c1x, c1y, r1 := circleRefs(c.Entities[0])
	c2x, c2y, r2 := circleRefs(c.Entities[1])
	refs := []ParamRef{c1x, c1y, r1, c2x, c2y, r2}
	return Equation{
		Constraint: c.ID,
		Refs:       refs,
		Eval: func(get func(ParamRef) float64) (float64, []float64) {
			dx := get(c1x) - get(c2x)
			dy := get(c1y) - get(c2y)
			rs := get(r1) + get(r2)
			res := dx*dx + dy*dy - rs*rs
			return res, []float64{2 * dx, 2 * dy, -2 * rs, -2 * dx, -2 * dy, -2 * rs}
		},
	}
}

// equalLengthEq builds len(l1)^2 - len(l2)^2 = 0.
func equalLengthEq(c *Constraint) Equation {
	l1 := lineRefs(c.Entities[0])
	l2 := lineRefs(c.Entities[1])
	refs := append(append([]ParamRef{}, l1[:]...), l2[:]...)
	return Equation{
		Constraint: c.ID,
		Refs:       refs,
		Eval: func(get func(ParamRef) float64) (float64, []float64) {
			ux := get(l1[2]) - get(l1[0])
			uy := get(l1[3]) - get(l1[1])
			vx := get(l2[2]) - get(l2[0])
			vy := get(l2[3]) - get(l2[1])
			r := ux*ux + uy*uy - vx*vx - vy*vy
			return r, []float64{
				-2 * ux, -2 * uy, 2 * ux, 2 * uy,
				2 * vx, 2 * vy, -2 * vx, -2 * vy,
			}
		},
	}
}
