package tessellate_test

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/chazu/camber/pkg/sketch"
	"github.com/chazu/camber/pkg/tessellate"
)

// chordDeviation returns the worst sagitta of the closed polyline
// against a circle of radius r centered at the origin.
func chordDeviation(pts [][3]float64, r float64) float64 {
	worst := 0.0
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		mx, my := (a[0]+b[0])/2, (a[1]+b[1])/2
		dev := r - math.Hypot(mx, my)
		if dev > worst {
			worst = dev
		}
	}
	return worst
}

func TestCircleChordTolerance(t *testing.T) {
	sk := sketch.New(sketch.PlaneXY)
	if _, err := sk.AddCircle(0, 0, 10); err != nil {
		t.Fatalf("AddCircle: %v", err)
	}

	polys := tessellate.Collect(tessellate.Sketch(sk, tessellate.Options{ChordTol: 0.01}))
	if len(polys) != 1 {
		t.Fatalf("polyline count = %d, want 1", len(polys))
	}
	p := polys[0]
	if !p.Closed {
		t.Error("circle polyline not marked closed")
	}
	if dev := chordDeviation(p.Points, 10); dev > 0.01 {
		t.Errorf("chord deviation = %g, want <= 0.01", dev)
	}
	// Vertices stay on the circle.
	for _, pt := range p.Points {
		if math.Abs(math.Hypot(pt[0], pt[1])-10) > 1e-9 {
			t.Fatalf("vertex %v off the circle", pt)
		}
	}
}

func TestTighterToleranceMeansMoreVertices(t *testing.T) {
	sk := sketch.New(sketch.PlaneXY)
	if _, err := sk.AddCircle(0, 0, 5); err != nil {
		t.Fatalf("AddCircle: %v", err)
	}
	prev := 0
	for _, tol := range []float64{0.1, 0.01, 0.001} {
		polys := tessellate.Collect(tessellate.Sketch(sk, tessellate.Options{ChordTol: tol}))
		n := len(polys[0].Points)
		if n <= prev {
			t.Errorf("tol %g produced %d vertices, want more than %d", tol, n, prev)
		}
		prev = n
	}
}

func TestLineAndArcAndSpline(t *testing.T) {
	sk := sketch.New(sketch.PlaneXZ)
	line, err := sk.AddLine(0, 0, 4, 0)
	if err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if _, err := sk.AddEntity(sketch.KindArc, 0, 0, 2, 0, math.Pi/2); err != nil {
		t.Fatalf("AddEntity arc: %v", err)
	}
	for _, pt := range [][2]float64{{0, 0}, {1, 1}, {2, 0}} {
		if _, err := sk.AddEntity(sketch.KindSplinePoint, pt[0], pt[1]); err != nil {
			t.Fatalf("AddEntity spline point: %v", err)
		}
	}

	polys := tessellate.Collect(tessellate.Sketch(sk, tessellate.Options{}))
	if len(polys) != 3 {
		t.Fatalf("polyline count = %d, want 3 (line, arc, one folded spline)", len(polys))
	}

	lp := polys[0]
	if lp.Entity != line || len(lp.Points) != 2 {
		t.Errorf("line polyline = %d points for entity %d", len(lp.Points), lp.Entity)
	}
	// PlaneXZ maps sketch (x, y) to world (x, 0, y).
	if lp.Points[1] != [3]float64{4, 0, 0} {
		t.Errorf("line endpoint = %v, want [4 0 0]", lp.Points[1])
	}

	ap := polys[1]
	if len(ap.Points) < 4 {
		t.Errorf("arc polyline has %d points, want at least 4", len(ap.Points))
	}
	first, last := ap.Points[0], ap.Points[len(ap.Points)-1]
	if math.Abs(first[0]-2) > 1e-9 || math.Abs(last[2]-2) > 1e-9 {
		t.Errorf("arc spans %v..%v, want from [2 0 0] to [0 0 2]", first, last)
	}

	sp := polys[2]
	if sp.Kind != sketch.KindSplinePoint {
		t.Fatalf("third polyline kind = %v, want spline", sp.Kind)
	}
	// Catmull-Rom interpolates the control points: 8 samples per span
	// plus the final point, and the curve passes through each control.
	if len(sp.Points) != 17 {
		t.Fatalf("spline polyline has %d points, want 17", len(sp.Points))
	}
	for i, want := range [][3]float64{{0, 0, 0}, {1, 0, 1}, {2, 0, 0}} {
		got := sp.Points[8*i]
		if math.Abs(got[0]-want[0]) > 1e-9 || math.Abs(got[2]-want[2]) > 1e-9 {
			t.Errorf("spline point %d = %v, want %v", i, got, want)
		}
	}
}

func TestCancelStopsSequence(t *testing.T) {
	sk := sketch.New(sketch.PlaneXY)
	for i := 0; i < 10; i++ {
		if _, err := sk.AddCircle(float64(3*i), 0, 1); err != nil {
			t.Fatalf("AddCircle: %v", err)
		}
	}
	var cancel atomic.Bool
	count := 0
	for range tessellate.Sketch(sk, tessellate.Options{Cancel: &cancel}) {
		count++
		if count == 2 {
			cancel.Store(true)
		}
	}
	if count != 2 {
		t.Errorf("yielded %d polylines after cancel, want 2", count)
	}
}

func TestLazySequenceStopsOnBreak(t *testing.T) {
	sk := sketch.New(sketch.PlaneXY)
	for i := 0; i < 5; i++ {
		if _, err := sk.AddCircle(float64(3*i), 0, 1); err != nil {
			t.Fatalf("AddCircle: %v", err)
		}
	}
	count := 0
	for range tessellate.Sketch(sk, tessellate.Options{}) {
		count++
		break
	}
	if count != 1 {
		t.Errorf("yielded %d polylines after break, want 1", count)
	}
}
