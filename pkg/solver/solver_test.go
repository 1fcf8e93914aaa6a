package solver_test

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/camber/pkg/sketch"
	"github.com/chazu/camber/pkg/solver"
)

const tol = 1e-8

func near(a, b float64) bool { return math.Abs(a-b) <= tol }

func TestSolveDistanceHorizontalSignConvention(t *testing.T) {
	s := sketch.New(sketch.PlaneXY)
	a, _ := s.AddPoint(0, 0)
	b, _ := s.AddPoint(0, 0)
	s.SetFixed(a, true)
	s.AddConstraint(sketch.Distance, 5, a, b)
	s.AddConstraint(sketch.Horizontal, 0, a, b)

	res, err := solver.Solve(s, solver.Options{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	bp := s.Entity(b).Params
	if !near(bp[0], 5) || !near(bp[1], 0) {
		t.Errorf("B = (%g, %g), want (5, 0) per the %s sign convention",
			bp[0], bp[1], solver.SignConvention)
	}
	if res.DOF != 0 {
		t.Errorf("DOF = %d, want 0", res.DOF)
	}
}

func TestSolveStability(t *testing.T) {
	build := func() (*sketch.Sketch, sketch.EntityID) {
		s := sketch.New(sketch.PlaneXY)
		a, _ := s.AddPoint(0, 0)
		b, _ := s.AddPoint(3, 4)
		s.SetFixed(a, true)
		s.AddConstraint(sketch.Distance, 10, a, b)
		return s, b
	}

	s, b := build()
	if _, err := solver.Solve(s, solver.Options{}); err != nil {
		t.Fatal(err)
	}
	first := append([]float64(nil), s.Entity(b).Params...)

	// Solving again from the converged state must not move anything.
	if _, err := solver.Solve(s, solver.Options{}); err != nil {
		t.Fatal(err)
	}
	second := s.Entity(b).Params
	for i := range first {
		if math.Abs(first[i]-second[i]) > tol {
			t.Errorf("param %d moved between solves: %g -> %g", i, first[i], second[i])
		}
	}
	if d := math.Hypot(second[0], second[1]); !near(d, 10) {
		t.Errorf("|B| = %g, want 10", d)
	}
}

func TestSolveOverConstrainedRefusesAndRollsBack(t *testing.T) {
	s := sketch.New(sketch.PlaneXY)
	a, _ := s.AddPoint(0, 0)
	b, _ := s.AddPoint(0, 0)
	s.SetFixed(a, true)
	s.AddConstraint(sketch.Coincident, 0, a, b)
	s.AddConstraint(sketch.Distance, 0, a, b)
	s.AddConstraint(sketch.Distance, 7, a, b) // contradictory third equation

	before := append([]float64(nil), s.Entity(b).Params...)
	_, err := solver.Solve(s, solver.Options{})
	var se *solver.SolveError
	if !errors.As(err, &se) || se.Reason != solver.OverConstrained {
		t.Fatalf("err = %v, want OverConstrained", err)
	}
	after := s.Entity(b).Params
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("param %d changed on refused solve: %g -> %g", i, before[i], after[i])
		}
	}
}

func TestSolveRedundantConsistentIsDeterministic(t *testing.T) {
	build := func() *sketch.Sketch {
		s := sketch.New(sketch.PlaneXY)
		b, _ := s.AddPoint(1, 2)
		c, _ := s.AddPoint(4, 1)
		s.AddConstraint(sketch.Coincident, 0, b, c)
		s.AddConstraint(sketch.Horizontal, 0, b, c) // implied by coincident
		s.AddConstraint(sketch.Vertical, 0, b, c)   // implied by coincident
		return s
	}

	s1 := build()
	res, err := solver.Solve(s1, solver.Options{})
	if err != nil {
		t.Fatalf("redundant-but-consistent solve failed: %v", err)
	}
	// 4 free params, Jacobian rank 2: two real freedoms remain.
	if res.DOF != 2 {
		t.Errorf("DOF = %d, want 2", res.DOF)
	}

	s2 := build()
	if _, err := solver.Solve(s2, solver.Options{}); err != nil {
		t.Fatal(err)
	}
	for i, e := range s1.Entities() {
		other := s2.Entities()[i]
		for j := range e.Params {
			if !near(e.Params[j], other.Params[j]) {
				t.Errorf("entity %d param %d differs between identical runs: %g vs %g",
					e.ID, j, e.Params[j], other.Params[j])
			}
		}
	}
}

func TestSolveUnsatisfiableNotConverged(t *testing.T) {
	s := sketch.New(sketch.PlaneXY)
	a, _ := s.AddPoint(0, 0)
	c, _ := s.AddPoint(10, 0)
	b, _ := s.AddPoint(5, 1)
	s.SetFixed(a, true)
	s.SetFixed(c, true)
	// The fixed anchors are 10 apart; 2+3 cannot span them.
	s.AddConstraint(sketch.Distance, 2, a, b)
	s.AddConstraint(sketch.Distance, 3, c, b)

	before := append([]float64(nil), s.Entity(b).Params...)
	_, err := solver.Solve(s, solver.Options{})
	var se *solver.SolveError
	if !errors.As(err, &se) || se.Reason != solver.NotConverged {
		t.Fatalf("err = %v, want NotConverged", err)
	}
	after := s.Entity(b).Params
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("failed solve leaked params: %g -> %g", before[i], after[i])
		}
	}
}

func TestSolveRectangleCorner(t *testing.T) {
	s := sketch.New(sketch.PlaneXY)
	base, _ := s.AddLine(0, 0, 9, 1)
	side, _ := s.AddLine(0, 0, 1, 7)
	s.AddConstraint(sketch.Horizontal, 0, base)
	s.AddConstraint(sketch.Perpendicular, 0, base, side)
	s.AddConstraint(sketch.Distance, 10, base)

	if _, err := solver.Solve(s, solver.Options{}); err != nil {
		t.Fatal(err)
	}
	bp := s.Entity(base).Params
	if !near(bp[1], bp[3]) {
		t.Errorf("base not horizontal: y = %g, %g", bp[1], bp[3])
	}
	if l := math.Hypot(bp[2]-bp[0], bp[3]-bp[1]); !near(l, 10) {
		t.Errorf("base length = %g, want 10", l)
	}
	sp := s.Entity(side).Params
	dot := (bp[2]-bp[0])*(sp[2]-sp[0]) + (bp[3]-bp[1])*(sp[3]-sp[1])
	if math.Abs(dot) > tol {
		t.Errorf("base.side = %g, want 0", dot)
	}
}

func TestDegreesOfFreedomRankNotEquationCount(t *testing.T) {
	s := sketch.New(sketch.PlaneXY)
	a, _ := s.AddPoint(0, 0)
	b, _ := s.AddPoint(5, 5)

	dof, err := solver.DegreesOfFreedom(s)
	if err != nil {
		t.Fatal(err)
	}
	if dof != 4 {
		t.Errorf("unconstrained DOF = %d, want 4", dof)
	}

	s.AddConstraint(sketch.Horizontal, 0, a, b)
	s.AddConstraint(sketch.Vertical, 0, a, b)
	s.AddConstraint(sketch.Coincident, 0, a, b) // redundant with the two above

	dof, err = solver.DegreesOfFreedom(s)
	if err != nil {
		t.Fatal(err)
	}
	// 4 equations but rank 2: redundancy must not double-count.
	if dof != 2 {
		t.Errorf("DOF = %d, want 2", dof)
	}
}

func TestSolveTangentLineCircle(t *testing.T) {
	s := sketch.New(sketch.PlaneXY)
	l, _ := s.AddLine(-10, 4, 10, 4.5)
	c, _ := s.AddCircle(0, 0, 5)
	s.SetFixed(c, true)
	s.AddConstraint(sketch.Tangent, 0, l, c)

	if _, err := solver.Solve(s, solver.Options{}); err != nil {
		t.Fatal(err)
	}
	lp := s.Entity(l).Params
	dx, dy := lp[2]-lp[0], lp[3]-lp[1]
	dist := math.Abs(dx*(0-lp[1])-dy*(0-lp[0])) / math.Hypot(dx, dy)
	if math.Abs(dist-5) > 1e-6 {
		t.Errorf("center distance to line = %g, want 5", dist)
	}
}
