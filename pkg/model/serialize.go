package model

import (
	"encoding/json"
	"fmt"

	"github.com/chazu/camber/pkg/kernel"
	"github.com/chazu/camber/pkg/sketch"
)

// featureJSON is the persistence form of one feature.
type featureJSON struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Upstream []string `json:"upstream,omitempty"`

	// Sketch payload.
	Plane       string              `json:"plane,omitempty"`
	Entities    []sketch.Entity     `json:"entities,omitempty"`
	Constraints []sketch.Constraint `json:"constraints,omitempty"`

	// Solid payloads.
	Height *float64 `json:"height,omitempty"`
	Angle  *float64 `json:"angle,omitempty"`
	Op     string   `json:"op,omitempty"`
}

// documentJSON is the persistence form of a document: the ordered
// feature list, dependency order preserved.
type documentJSON struct {
	Features []featureJSON `json:"features"`
}

// Serialize encodes the document. The encoding round-trips: decoding
// and one recompute reproduces the same entities, constraints,
// dependency order and solved parameters within tolerance.
func Serialize(d *Document) ([]byte, error) {
	out := documentJSON{Features: make([]featureJSON, 0, len(d.order))}
	for _, f := range d.Features() {
		fj := featureJSON{
			ID:   string(f.ID),
			Kind: f.Kind.String(),
			Name: f.Name,
		}
		for _, up := range f.Upstream {
			fj.Upstream = append(fj.Upstream, string(up))
		}
		switch data := f.Data.(type) {
		case *SketchData:
			fj.Plane = data.Sketch.Plane.String()
			for _, e := range data.Sketch.Entities() {
				fj.Entities = append(fj.Entities, *e)
			}
			for _, c := range data.Sketch.Constraints() {
				fj.Constraints = append(fj.Constraints, *c)
			}
		case *ExtrudeData:
			h := data.Height
			fj.Height = &h
		case *RevolveData:
			a := data.Angle
			fj.Angle = &a
		case *BooleanData:
			fj.Op = data.Op.String()
		}
		out.Features = append(out.Features, fj)
	}
	return json.MarshalIndent(out, "", "  ")
}

func parsePlane(s string) (sketch.Plane, error) {
	switch s {
	case "xy", "":
		return sketch.PlaneXY, nil
	case "xz":
		return sketch.PlaneXZ, nil
	case "yz":
		return sketch.PlaneYZ, nil
	}
	return 0, fmt.Errorf("model: unknown plane %q", s)
}

func parseKind(s string) (FeatureKind, error) {
	switch s {
	case "sketch":
		return FeatureSketch, nil
	case "extrude":
		return FeatureExtrude, nil
	case "revolve":
		return FeatureRevolve, nil
	case "boolean":
		return FeatureBoolean, nil
	}
	return 0, fmt.Errorf("model: unknown feature kind %q", s)
}

func parseOp(s string) (BoolOp, error) {
	switch s {
	case "union":
		return BoolUnion, nil
	case "difference":
		return BoolDifference, nil
	case "intersection":
		return BoolIntersection, nil
	}
	return 0, fmt.Errorf("model: unknown boolean op %q", s)
}

// Deserialize decodes a document onto the given kernel. Dangling
// references, cycles and malformed payloads are rejected. Every feature
// comes back Dirty; run Recompute to restore solved state.
func Deserialize(data []byte, k kernel.Kernel) (*Document, error) {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("model: decode: %w", err)
	}

	d := New(k)
	for _, fj := range in.Features {
		kind, err := parseKind(fj.Kind)
		if err != nil {
			return nil, err
		}
		f := &Feature{
			ID:   FeatureID(fj.ID),
			Kind: kind,
			Name: fj.Name,
		}
		for _, up := range fj.Upstream {
			f.Upstream = append(f.Upstream, FeatureID(up))
		}

		switch kind {
		case FeatureSketch:
			plane, err := parsePlane(fj.Plane)
			if err != nil {
				return nil, err
			}
			sk := sketch.New(plane)
			for _, e := range fj.Entities {
				if err := sk.InsertEntity(e); err != nil {
					return nil, fmt.Errorf("model: feature %s: %w", f.ID.Short(), err)
				}
			}
			for _, c := range fj.Constraints {
				if err := sk.InsertConstraint(c); err != nil {
					return nil, fmt.Errorf("model: feature %s: %w", f.ID.Short(), err)
				}
			}
			f.Data = &SketchData{Sketch: sk}
		case FeatureExtrude:
			if fj.Height == nil {
				return nil, fmt.Errorf("model: extrude %s has no height", f.ID.Short())
			}
			f.Data = &ExtrudeData{Height: *fj.Height}
		case FeatureRevolve:
			var angle float64
			if fj.Angle != nil {
				angle = *fj.Angle
			}
			f.Data = &RevolveData{Angle: angle}
		case FeatureBoolean:
			op, err := parseOp(fj.Op)
			if err != nil {
				return nil, err
			}
			f.Data = &BooleanData{Op: op}
		}

		// AddFeature validates upstream existence; serialized order is
		// dependency order, so upstreams always precede their users.
		if err := d.AddFeature(f); err != nil {
			return nil, err
		}
	}
	if d.hasCycle() {
		return nil, ErrCyclicDependency
	}
	return d, nil
}
