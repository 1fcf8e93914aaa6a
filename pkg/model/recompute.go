package model

import (
	"fmt"

	"github.com/chazu/camber/pkg/solver"
)

// StateChange reports one feature's state transition during a
// recompute cascade.
type StateChange struct {
	Feature  FeatureID
	NewState FeatureState
}

// needsRecompute reports whether the feature itself is stale. Upstream
// staleness is handled by the cascade.
func (d *Document) needsRecompute(f *Feature) bool {
	switch f.State {
	case StateDirty, StateError, StateBlocked:
		return true
	}
	if sk := f.SketchGraph(); sk != nil && sk.Revision() != f.solvedRevision {
		return true
	}
	return false
}

// Recompute walks the DAG in dependency order and recomputes every
// stale feature. A failure halts propagation: downstream dependents
// stay unrecomputed and are flagged blocked rather than silently using
// stale data. The returned changes list every state transition in walk
// order.
func (d *Document) Recompute() []StateChange {
	var changes []StateChange
	record := func(f *Feature, s FeatureState, detail string) {
		if f.State != s || f.StateDetail != detail {
			f.State = s
			f.StateDetail = detail
			changes = append(changes, StateChange{Feature: f.ID, NewState: s})
		}
	}

	// Propagate staleness first so dependents of a mutated sketch are
	// dirty even if the edit skipped MarkDirty.
	for _, id := range d.order {
		if d.needsRecompute(d.features[id]) {
			d.MarkDirty(id)
		}
	}

	failed := make(map[FeatureID]bool)
	for _, id := range d.order {
		f := d.features[id]

		// A failed upstream blocks this feature outright.
		if up := d.failedUpstream(f, failed); !up.IsZero() {
			failed[id] = true
			record(f, StateBlocked, fmt.Sprintf("upstream %s failed", up.Short()))
			continue
		}
		if !d.needsRecompute(f) {
			continue
		}

		record(f, StateSolving, "")
		if err := d.recomputeFeature(f); err != nil {
			failed[id] = true
			record(f, StateError, err.Error())
			continue
		}
		record(f, StateClean, "")
	}
	return changes
}

// failedUpstream returns the first direct upstream of f that failed in
// this cascade or is carrying an Error/Blocked state, or ZeroFeature.
func (d *Document) failedUpstream(f *Feature, failed map[FeatureID]bool) FeatureID {
	for _, up := range f.Upstream {
		uf := d.features[up]
		if failed[up] || uf.State == StateError || uf.State == StateBlocked {
			return up
		}
	}
	return ZeroFeature
}

// recomputeFeature recomputes one feature from its committed upstream
// results. The switch is exhaustive over FeatureKind.
func (d *Document) recomputeFeature(f *Feature) error {
	switch f.Kind {
	case FeatureSketch:
		sk := f.SketchGraph()
		res, err := solver.Solve(sk, d.solveOpts)
		if err != nil {
			return err
		}
		f.DOF = res.DOF
		f.solvedRevision = sk.Revision()
		return nil

	case FeatureExtrude:
		data := f.Data.(*ExtrudeData)
		up := d.features[f.Upstream[0]]
		profile, err := sketchProfile(up.SketchGraph())
		if err != nil {
			return err
		}
		solid, err := d.kernel.Extrude(profile, data.Height)
		if err != nil {
			return err
		}
		f.Solid = orientToPlane(d.kernel, solid, up.SketchGraph().Plane)
		return nil

	case FeatureRevolve:
		data := f.Data.(*RevolveData)
		up := d.features[f.Upstream[0]]
		profile, err := sketchProfile(up.SketchGraph())
		if err != nil {
			return err
		}
		solid, err := d.kernel.Revolve(profile, data.Angle)
		if err != nil {
			return err
		}
		f.Solid = orientToPlane(d.kernel, solid, up.SketchGraph().Plane)
		return nil

	case FeatureBoolean:
		data := f.Data.(*BooleanData)
		a := d.features[f.Upstream[0]].Solid
		b := d.features[f.Upstream[1]].Solid
		if a == nil || b == nil {
			return fmt.Errorf("model: boolean upstream has no committed solid")
		}
		switch data.Op {
		case BoolUnion:
			f.Solid = d.kernel.Union(a, b)
		case BoolDifference:
			f.Solid = d.kernel.Difference(a, b)
		case BoolIntersection:
			f.Solid = d.kernel.Intersection(a, b)
		default:
			return fmt.Errorf("model: unknown boolean op %d", data.Op)
		}
		return nil

	default:
		return fmt.Errorf("model: unknown feature kind %d", f.Kind)
	}
}
