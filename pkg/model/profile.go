package model

import (
	"errors"
	"fmt"

	"github.com/chazu/camber/pkg/geom"
	"github.com/chazu/camber/pkg/kernel"
	"github.com/chazu/camber/pkg/sketch"
)

// ErrOpenProfile reports a sketch whose line segments do not chain into
// a single closed loop.
var ErrOpenProfile = errors.New("model: sketch profile is not a closed loop")

// profileChainTol is the endpoint gap tolerated when chaining segments
// into a loop. Solved sketches close loops to solver tolerance; this is
// display-scale slack on top.
const profileChainTol = geom.DisplayTol

// sketchProfile extracts the sweepable region from a solved sketch:
// either a single circle, or the closed loop formed by its line
// segments. Points and spline points are construction geometry and are
// ignored.
func sketchProfile(sk *sketch.Sketch) (kernel.Profile, error) {
	var circles []*sketch.Entity
	var lines []*sketch.Entity
	for _, e := range sk.Entities() {
		switch e.Kind {
		case sketch.KindCircle:
			circles = append(circles, e)
		case sketch.KindLine:
			lines = append(lines, e)
		}
	}

	if len(circles) == 1 && len(lines) == 0 {
		p := circles[0].Params
		return kernel.Profile{Circle: &kernel.CircleProfile{
			Center: [2]float64{p[0], p[1]},
			Radius: p[2],
		}}, nil
	}
	if len(circles) > 0 {
		return kernel.Profile{}, fmt.Errorf(
			"%w: mixed circles and segments are not sweepable", ErrOpenProfile)
	}
	if len(lines) < 3 {
		return kernel.Profile{}, fmt.Errorf(
			"%w: %d segments cannot close a region", ErrOpenProfile, len(lines))
	}
	return chainLoop(lines)
}

// chainLoop orders line segments into one closed loop by joining
// endpoints within profileChainTol. Every segment must be used exactly
// once and the walk must return to its start.
func chainLoop(lines []*sketch.Entity) (kernel.Profile, error) {
	type seg struct {
		a, b geom.Vec2
		used bool
	}
	segs := make([]*seg, len(lines))
	for i, e := range lines {
		p := e.Params
		segs[i] = &seg{
			a: geom.Vec2{X: p[0], Y: p[1]},
			b: geom.Vec2{X: p[2], Y: p[3]},
		}
	}

	start := segs[0]
	start.used = true
	loop := []geom.Vec2{start.a, start.b}
	cursor := start.b

	for used := 1; used < len(segs); used++ {
		var next *seg
		var flipped bool
		for _, s := range segs {
			if s.used {
				continue
			}
			if cursor.Dist(s.a) <= profileChainTol {
				next, flipped = s, false
				break
			}
			if cursor.Dist(s.b) <= profileChainTol {
				next, flipped = s, true
				break
			}
		}
		if next == nil {
			return kernel.Profile{}, fmt.Errorf(
				"%w: no segment continues from (%g, %g)", ErrOpenProfile, cursor.X, cursor.Y)
		}
		next.used = true
		end := next.b
		if flipped {
			end = next.a
		}
		loop = append(loop, end)
		cursor = end
	}

	if cursor.Dist(start.a) > profileChainTol {
		return kernel.Profile{}, fmt.Errorf(
			"%w: loop ends %g away from its start", ErrOpenProfile, cursor.Dist(start.a))
	}
	// Drop the duplicated closing vertex.
	loop = loop[:len(loop)-1]

	poly := make([][2]float64, len(loop))
	for i, v := range loop {
		poly[i] = [2]float64{v.X, v.Y}
	}
	return kernel.Profile{Polygon: poly}, nil
}

// orientToPlane rotates a solid built in profile-local coordinates
// (profile in XY, sweep along +Z) into the sketch's work plane.
func orientToPlane(k kernel.Kernel, s kernel.Solid, plane sketch.Plane) kernel.Solid {
	switch plane {
	case sketch.PlaneXZ:
		return k.Rotate(s, 90, 0, 0)
	case sketch.PlaneYZ:
		return k.Rotate(s, 0, -90, 0)
	default:
		return s
	}
}
