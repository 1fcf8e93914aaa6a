// Package tessellate turns sketch entities into display polylines.
// Curves are subdivided adaptively so the chord deviation stays within
// a tolerance, and the output is a lazy sequence so callers can stop
// early or run under a cancellation flag.
package tessellate

import (
	"iter"
	"math"
	"sync/atomic"

	"github.com/chazu/camber/pkg/geom"
	"github.com/chazu/camber/pkg/sketch"
)

// DefaultChordTol is the maximum distance between a curve and its
// polyline approximation, in sketch units.
const DefaultChordTol = 0.01

// Options tune tessellation. The zero value selects the defaults.
type Options struct {
	// ChordTol bounds the curve-to-chord deviation.
	ChordTol float64
	// Cancel, when set and true, stops the sequence between entities.
	Cancel *atomic.Bool
}

func (o Options) withDefaults() Options {
	if o.ChordTol <= 0 {
		o.ChordTol = DefaultChordTol
	}
	return o
}

// Polyline is the display form of one entity, in world coordinates on
// the sketch's plane.
type Polyline struct {
	Entity sketch.EntityID
	Kind   sketch.EntityKind
	Points [][3]float64
	Closed bool
}

// arcSegments returns how many chords keep an arc of the given radius
// and sweep within tol. Sagitta of one chord spanning angle a is
// r*(1-cos(a/2)), so the widest admissible chord angle is
// 2*acos(1-tol/r).
func arcSegments(radius, sweep, tol float64) int {
	if radius <= 0 || sweep <= 0 {
		return 1
	}
	if tol >= radius {
		return 3
	}
	maxAngle := 2 * math.Acos(1-tol/radius)
	n := int(math.Ceil(sweep / maxAngle))
	if n < 3 {
		n = 3
	}
	return n
}

func circlePoints(plane sketch.Plane, c geom.Circle, tol float64) [][3]float64 {
	n := arcSegments(c.Radius, 2*math.Pi, tol)
	pts := make([][3]float64, n)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = plane.ToWorld(c.Eval(a), 0)
	}
	return pts
}

func arcPoints(plane sketch.Plane, a geom.Arc, tol float64) [][3]float64 {
	n := arcSegments(a.Radius, math.Abs(a.Sweep()), tol)
	pts := make([][3]float64, n+1)
	for i := 0; i <= n; i++ {
		pts[i] = plane.ToWorld(a.Eval(float64(i)/float64(n)), 0)
	}
	return pts
}

func entityPolyline(plane sketch.Plane, e *sketch.Entity, tol float64) (Polyline, bool) {
	p := Polyline{Entity: e.ID, Kind: e.Kind}
	switch e.Kind {
	case sketch.KindPoint, sketch.KindSplinePoint:
		p.Points = [][3]float64{plane.ToWorld(geom.Vec2{X: e.Params[0], Y: e.Params[1]}, 0)}
	case sketch.KindLine:
		p.Points = [][3]float64{
			plane.ToWorld(geom.Vec2{X: e.Params[0], Y: e.Params[1]}, 0),
			plane.ToWorld(geom.Vec2{X: e.Params[2], Y: e.Params[3]}, 0),
		}
	case sketch.KindCircle:
		c := geom.Circle{Center: geom.Vec2{X: e.Params[0], Y: e.Params[1]}, Radius: e.Params[2]}
		p.Points = circlePoints(plane, c, tol)
		p.Closed = true
	case sketch.KindArc:
		a := geom.Arc{
			Center: geom.Vec2{X: e.Params[0], Y: e.Params[1]},
			Radius: e.Params[2],
			Start:  e.Params[3],
			End:    e.Params[4],
		}
		p.Points = arcPoints(plane, a, tol)
	default:
		return Polyline{}, false
	}
	return p, true
}

// Sketch yields one polyline per entity, lazily, in insertion order.
// Spline control points are folded into a single open polyline. The
// sequence stops early when the caller breaks or Options.Cancel flips.
func Sketch(sk *sketch.Sketch, opts Options) iter.Seq[Polyline] {
	o := opts.withDefaults()
	return func(yield func(Polyline) bool) {
		var splineID sketch.EntityID
		var ctrl []geom.Vec2
		for _, e := range sk.Entities() {
			if o.Cancel != nil && o.Cancel.Load() {
				return
			}
			if e.Kind == sketch.KindSplinePoint {
				if ctrl == nil {
					splineID = e.ID
				}
				ctrl = append(ctrl, geom.Vec2{X: e.Params[0], Y: e.Params[1]})
				continue
			}
			p, ok := entityPolyline(sk.Plane, e, o.ChordTol)
			if !ok {
				continue
			}
			if !yield(p) {
				return
			}
		}
		if ctrl != nil {
			yield(splinePolyline(sk.Plane, splineID, ctrl))
		}
	}
}

// splineSamplesPerSpan is the Catmull-Rom sampling density for spline
// display geometry. Splines are display-only and never enter the
// solver, so a fixed density is enough.
const splineSamplesPerSpan = 8

// splinePolyline runs a Catmull-Rom curve through the control points,
// clamping the end tangents. Fewer than three points degrade to the raw
// polyline.
func splinePolyline(plane sketch.Plane, id sketch.EntityID, ctrl []geom.Vec2) Polyline {
	p := Polyline{Entity: id, Kind: sketch.KindSplinePoint}
	if len(ctrl) < 3 {
		for _, c := range ctrl {
			p.Points = append(p.Points, plane.ToWorld(c, 0))
		}
		return p
	}
	for i := 0; i < len(ctrl)-1; i++ {
		p0 := ctrl[max(i-1, 0)]
		p1 := ctrl[i]
		p2 := ctrl[i+1]
		p3 := ctrl[min(i+2, len(ctrl)-1)]
		for s := 0; s < splineSamplesPerSpan; s++ {
			t := float64(s) / splineSamplesPerSpan
			p.Points = append(p.Points, plane.ToWorld(catmullRom(p0, p1, p2, p3, t), 0))
		}
	}
	p.Points = append(p.Points, plane.ToWorld(ctrl[len(ctrl)-1], 0))
	return p
}

func catmullRom(p0, p1, p2, p3 geom.Vec2, t float64) geom.Vec2 {
	t2 := t * t
	t3 := t2 * t
	blend := func(a, b, c, d float64) float64 {
		return 0.5 * ((2 * b) +
			(-a+c)*t +
			(2*a-5*b+4*c-d)*t2 +
			(-a+3*b-3*c+d)*t3)
	}
	return geom.Vec2{
		X: blend(p0.X, p1.X, p2.X, p3.X),
		Y: blend(p0.Y, p1.Y, p2.Y, p3.Y),
	}
}

// Collect materializes the sequence.
func Collect(seq iter.Seq[Polyline]) []Polyline {
	var out []Polyline
	for p := range seq {
		out = append(out, p)
	}
	return out
}
