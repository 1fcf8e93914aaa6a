package sketch

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/camber/pkg/geom"
)

func TestAddEntityParamCounts(t *testing.T) {
	s := New(PlaneXY)

	p, err := s.AddPoint(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if e := s.Entity(p); e == nil || e.Kind != KindPoint || len(e.Params) != 2 {
		t.Fatalf("point entity = %+v", s.Entity(p))
	}

	if _, err := s.AddEntity(KindCircle, 1, 2); err == nil {
		t.Error("wrong param count should fail")
	}
}

func TestAddEntityDegenerate(t *testing.T) {
	s := New(PlaneXY)

	var dg *geom.DegenerateGeometryError
	if _, err := s.AddLine(3, 3, 3, 3); !errors.As(err, &dg) {
		t.Fatalf("zero-length line: err = %v, want DegenerateGeometryError", err)
	}

	if _, err := s.AddCircle(0, 0, 0); err == nil {
		t.Error("zero-radius circle accepted")
	}
	if _, err := s.AddEntity(KindArc, 0, 0, 5, 1, 1); err == nil {
		t.Error("zero-sweep arc accepted")
	}
}

func TestAddConstraintInvalidReference(t *testing.T) {
	s := New(PlaneXY)
	p, _ := s.AddPoint(0, 0)

	_, err := s.AddConstraint(Coincident, 0, p, EntityID(99))
	if !errors.Is(err, ErrInvalidReference) {
		t.Errorf("err = %v, want ErrInvalidReference", err)
	}
}

func TestAddConstraintKindMismatch(t *testing.T) {
	s := New(PlaneXY)
	p, _ := s.AddPoint(0, 0)
	c, _ := s.AddCircle(0, 0, 5)

	_, err := s.AddConstraint(Parallel, 0, p, c)
	if !errors.Is(err, ErrKindMismatch) {
		t.Errorf("parallel over point+circle: err = %v, want ErrKindMismatch", err)
	}
	if _, err := s.AddConstraint(Equal, 0, p, p); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("equal over points: err = %v, want ErrKindMismatch", err)
	}
}

func TestAddConstraintDuplicate(t *testing.T) {
	s := New(PlaneXY)
	a, _ := s.AddPoint(0, 0)
	b, _ := s.AddPoint(5, 0)

	if _, err := s.AddConstraint(Distance, 5, a, b); err != nil {
		t.Fatal(err)
	}
	_, err := s.AddConstraint(Distance, 5, a, b)
	if !errors.Is(err, ErrDuplicateConstraint) {
		t.Errorf("err = %v, want ErrDuplicateConstraint", err)
	}

	// Same pair with a different value is over-constraint, not a duplicate.
	if _, err := s.AddConstraint(Distance, 7, a, b); err != nil {
		t.Errorf("distance with different value rejected: %v", err)
	}
}

func TestRemoveEntityCascades(t *testing.T) {
	s := New(PlaneXY)
	a, _ := s.AddPoint(0, 0)
	b, _ := s.AddPoint(5, 0)
	c, _ := s.AddPoint(0, 5)
	s.AddConstraint(Distance, 5, a, b)
	s.AddConstraint(Coincident, 0, b, c)
	keep, _ := s.AddConstraint(Horizontal, 0, a, c)

	if err := s.RemoveEntity(b); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Constraints()); got != 1 {
		t.Fatalf("constraints after cascade = %d, want 1", got)
	}
	if s.Constraints()[0].ID != keep {
		t.Errorf("surviving constraint = %d, want %d", s.Constraints()[0].ID, keep)
	}
	if s.Entity(b) != nil {
		t.Error("removed entity still present")
	}
}

func TestAddRemoveConstraintRestoresCounts(t *testing.T) {
	s := New(PlaneXY)
	a, _ := s.AddPoint(0, 0)
	b, _ := s.AddPoint(5, 0)
	s.AddConstraint(Distance, 5, a, b)

	before := s.EquationCount()
	id, err := s.AddConstraint(Coincident, 0, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.EquationCount(); got != before+2 {
		t.Errorf("equation count after add = %d, want %d", got, before+2)
	}
	if err := s.RemoveConstraint(id); err != nil {
		t.Fatal(err)
	}
	if got := s.EquationCount(); got != before {
		t.Errorf("equation count after remove = %d, want %d", got, before)
	}
}

func TestRevisionBumpsOnEveryMutation(t *testing.T) {
	s := New(PlaneXY)
	last := s.Revision()
	step := func(name string) {
		if s.Revision() <= last {
			t.Errorf("%s did not bump revision", name)
		}
		last = s.Revision()
	}

	a, _ := s.AddPoint(0, 0)
	step("AddPoint")
	b, _ := s.AddPoint(1, 1)
	step("AddPoint")
	cid, _ := s.AddConstraint(Coincident, 0, a, b)
	step("AddConstraint")
	s.SetFixed(a, true)
	step("SetFixed")
	s.SetParams(b, []float64{2, 2})
	step("SetParams")
	s.RemoveConstraint(cid)
	step("RemoveConstraint")
	s.RemoveEntity(b)
	step("RemoveEntity")
}

func TestFreeParamsExcludesFixed(t *testing.T) {
	s := New(PlaneXY)
	a, _ := s.AddPoint(0, 0)
	s.AddLine(0, 0, 4, 0)
	s.SetFixed(a, true)

	refs := s.FreeParams()
	if len(refs) != 4 {
		t.Fatalf("free params = %d, want 4 (line only)", len(refs))
	}
	for _, r := range refs {
		if r.Entity == a {
			t.Errorf("fixed entity %d leaked into free params", a)
		}
	}
}

// numericGrad estimates the gradient of eq by central differences so
// analytic Jacobian entries can be cross-checked.
func numericGrad(s *Sketch, eq Equation) []float64 {
	const h = 1e-6
	get := func(r ParamRef) float64 { return s.Param(r) }
	grad := make([]float64, len(eq.Refs))
	for i, ref := range eq.Refs {
		orig := s.Param(ref)
		s.Entity(ref.Entity).Params[ref.Index] = orig + h
		rp, _ := eq.Eval(get)
		s.Entity(ref.Entity).Params[ref.Index] = orig - h
		rm, _ := eq.Eval(get)
		s.Entity(ref.Entity).Params[ref.Index] = orig
		grad[i] = (rp - rm) / (2 * h)
	}
	return grad
}

func TestAnalyticGradientsMatchNumeric(t *testing.T) {
	s := New(PlaneXY)
	a, _ := s.AddPoint(1, 2)
	b, _ := s.AddPoint(4, 6)
	l1, _ := s.AddLine(0, 0, 3, 1)
	l2, _ := s.AddLine(1, -1, 2, 4)
	c1, _ := s.AddCircle(8, 3, 2)
	c2, _ := s.AddCircle(1, 7, 1.5)

	cases := []struct {
		name  string
		kind  ConstraintKind
		value float64
		ids   []EntityID
	}{
		{"distance", Distance, 5, []EntityID{a, b}},
		{"line-length", Distance, 3, []EntityID{l1}},
		{"angle", Angle, math.Pi / 3, []EntityID{l1, l2}},
		{"parallel", Parallel, 0, []EntityID{l1, l2}},
		{"perpendicular", Perpendicular, 0, []EntityID{l1, l2}},
		{"tangent-line-circle", Tangent, 0, []EntityID{l1, c1}},
		{"tangent-circle-circle", Tangent, 0, []EntityID{c1, c2}},
		{"equal-length", Equal, 0, []EntityID{l1, l2}},
		{"equal-radius", Equal, 0, []EntityID{c1, c2}},
		{"horizontal", Horizontal, 0, []EntityID{a, b}},
		{"vertical", Vertical, 0, []EntityID{l1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := s.AddConstraint(tc.kind, tc.value, tc.ids...)
			if err != nil {
				t.Fatal(err)
			}
			defer s.RemoveConstraint(id)

			eqs, err := s.Equations()
			if err != nil {
				t.Fatal(err)
			}
			get := func(r ParamRef) float64 { return s.Param(r) }
			for _, eq := range eqs {
				if eq.Constraint != id {
					continue
				}
				_, grad := eq.Eval(get)
				want := numericGrad(s, eq)
				for i := range grad {
					if math.Abs(grad[i]-want[i]) > 1e-4*(1+math.Abs(want[i])) {
						t.Errorf("ref %v: grad = %g, numeric = %g",
							eq.Refs[i], grad[i], want[i])
					}
				}
			}
		})
	}
}

func TestPlaneToWorld(t *testing.T) {
	pt := geom.Vec2{X: 3, Y: 4}
	cases := []struct {
		plane Plane
		want  [3]float64
	}{
		{PlaneXY, [3]float64{3, 4, 7}},
		{PlaneXZ, [3]float64{3, 7, 4}},
		{PlaneYZ, [3]float64{7, 3, 4}},
	}
	for _, tc := range cases {
		got := tc.plane.ToWorld(pt, 7)
		if got != tc.want {
			t.Errorf("%s.ToWorld = %v, want %v", tc.plane, got, tc.want)
		}
	}
}
