// Package model owns the document: a dependency-ordered DAG of
// features (sketches, extrusions, revolves, booleans) with
// dirty-tracked, topologically ordered recomputation.
package model

import (
	"errors"
	"fmt"

	"github.com/chazu/camber/pkg/kernel"
	"github.com/chazu/camber/pkg/solver"
)

// Document-level structural errors.
var (
	ErrUnknownFeature   = errors.New("model: feature does not exist")
	ErrCyclicDependency = errors.New("model: dependency cycle rejected")
	ErrHasDependents    = errors.New("model: feature has downstream dependents")
	ErrDuplicateFeature = errors.New("model: feature id already exists")
	ErrUpstreamMismatch = errors.New("model: upstream features do not fit this kind")
)

// Document owns the ordered feature list. The order is always a
// topological order of the dependency DAG: a feature's upstream
// features precede it.
type Document struct {
	features map[FeatureID]*Feature
	order    []FeatureID

	kernel    kernel.Kernel
	solveOpts solver.Options
}

// New creates an empty document backed by the given geometry kernel.
func New(k kernel.Kernel) *Document {
	return &Document{
		features: make(map[FeatureID]*Feature),
		kernel:   k,
	}
}

// SetSolveOptions overrides the solver options used during recompute.
func (d *Document) SetSolveOptions(o solver.Options) { d.solveOpts = o }

// Feature returns the feature with the given id, or nil.
func (d *Document) Feature(id FeatureID) *Feature { return d.features[id] }

// Features returns the features in build (dependency) order.
func (d *Document) Features() []*Feature {
	out := make([]*Feature, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.features[id])
	}
	return out
}

// FeatureCount returns the number of features.
func (d *Document) FeatureCount() int { return len(d.features) }

// checkUpstream validates that a feature's upstream list fits its kind.
func (d *Document) checkUpstream(f *Feature) error {
	for _, up := range f.Upstream {
		if _, ok := d.features[up]; !ok {
			return fmt.Errorf("%w: upstream %s", ErrUnknownFeature, up.Short())
		}
	}
	switch f.Kind {
	case FeatureSketch:
		if len(f.Upstream) != 0 {
			return fmt.Errorf("%w: sketch takes no upstream features", ErrUpstreamMismatch)
		}
	case FeatureExtrude, FeatureRevolve:
		if len(f.Upstream) != 1 {
			return fmt.Errorf("%w: %s wants exactly one upstream sketch", ErrUpstreamMismatch, f.Kind)
		}
		if d.features[f.Upstream[0]].Kind != FeatureSketch {
			return fmt.Errorf("%w: %s upstream must be a sketch", ErrUpstreamMismatch, f.Kind)
		}
	case FeatureBoolean:
		if len(f.Upstream) != 2 {
			return fmt.Errorf("%w: boolean wants exactly two upstream solids", ErrUpstreamMismatch)
		}
		for _, up := range f.Upstream {
			if d.features[up].Kind == FeatureSketch {
				return fmt.Errorf("%w: boolean upstream must be a solid feature", ErrUpstreamMismatch)
			}
		}
	}
	return nil
}

// AddFeature appends a feature. Upstream features must already exist,
// which keeps the order topological by construction. The new feature
// starts Dirty.
func (d *Document) AddFeature(f *Feature) error {
	if f.ID.IsZero() {
		f.ID = NewFeatureID()
	}
	if _, ok := d.features[f.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFeature, f.ID.Short())
	}
	if err := d.checkUpstream(f); err != nil {
		return err
	}
	f.State = StateDirty
	d.features[f.ID] = f
	d.order = append(d.order, f.ID)
	return nil
}

// InsertFeature re-inserts a feature at a given position in the
// dependency order, as undo of a deletion does. The position must keep
// the order topological; passing the feature's original index after a
// RemoveFeature always does.
func (d *Document) InsertFeature(f *Feature, at int) error {
	if f.ID.IsZero() {
		return fmt.Errorf("%w: insert needs an id", ErrUnknownFeature)
	}
	if _, ok := d.features[f.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFeature, f.ID.Short())
	}
	if err := d.checkUpstream(f); err != nil {
		return err
	}
	if at < 0 || at > len(d.order) {
		at = len(d.order)
	}
	f.State = StateDirty
	d.features[f.ID] = f
	d.order = append(d.order, "")
	copy(d.order[at+1:], d.order[at:])
	d.order[at] = f.ID
	if d.hasCycle() {
		delete(d.features, f.ID)
		d.order = append(d.order[:at], d.order[at+1:]...)
		return ErrCyclicDependency
	}
	return nil
}

// FeatureIndex returns the feature's position in the dependency order,
// or -1.
func (d *Document) FeatureIndex(id FeatureID) int {
	for i, oid := range d.order {
		if oid == id {
			return i
		}
	}
	return -1
}

// RemoveFeature deletes a feature. Features with downstream dependents
// cannot be removed; delete the dependents first.
func (d *Document) RemoveFeature(id FeatureID) (*Feature, error) {
	f, ok := d.features[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, id.Short())
	}
	for _, other := range d.features {
		for _, up := range other.Upstream {
			if up == id {
				return nil, fmt.Errorf("%w: %s depends on %s",
					ErrHasDependents, other.ID.Short(), id.Short())
			}
		}
	}
	delete(d.features, id)
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return f, nil
}

// SetUpstream rewires a feature's dependencies. An edge set that would
// create a cycle is rejected and the document is left unchanged.
func (d *Document) SetUpstream(id FeatureID, upstream []FeatureID) error {
	f, ok := d.features[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, id.Short())
	}
	old := f.Upstream
	f.Upstream = upstream
	if err := d.checkUpstream(f); err != nil {
		f.Upstream = old
		return err
	}
	if d.hasCycle() {
		f.Upstream = old
		return fmt.Errorf("%w: rewiring %s", ErrCyclicDependency, id.Short())
	}
	d.reorder()
	d.MarkDirty(id)
	return nil
}

// hasCycle checks the dependency relation with DFS 3-color marking.
// White (0) = unvisited, gray (1) = on the current path, black (2) =
// fully explored; meeting a gray node means a cycle.
func (d *Document) hasCycle() bool {
	const (
		white = iota
		gray
		black
	)
	color := make(map[FeatureID]int, len(d.features))

	var visit func(id FeatureID) bool
	visit = func(id FeatureID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			return true
		}
		color[id] = gray
		f := d.features[id]
		if f != nil {
			for _, up := range f.Upstream {
				if visit(up) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for id := range d.features {
		if color[id] == white && visit(id) {
			return true
		}
	}
	return false
}

// reorder rebuilds d.order as a topological order, keeping the current
// relative order among unrelated features stable.
func (d *Document) reorder() {
	placed := make(map[FeatureID]bool, len(d.features))
	var out []FeatureID

	var place func(id FeatureID)
	place = func(id FeatureID) {
		if placed[id] {
			return
		}
		placed[id] = true
		for _, up := range d.features[id].Upstream {
			place(up)
		}
		out = append(out, id)
	}
	for _, id := range d.order {
		place(id)
	}
	d.order = out
}

// Dependents returns the ids of features that directly depend on id.
func (d *Document) Dependents(id FeatureID) []FeatureID {
	var out []FeatureID
	for _, oid := range d.order {
		for _, up := range d.features[oid].Upstream {
			if up == id {
				out = append(out, oid)
				break
			}
		}
	}
	return out
}

// MarkDirty flags a feature and all its transitive dependents Dirty.
func (d *Document) MarkDirty(id FeatureID) {
	f, ok := d.features[id]
	if !ok {
		return
	}
	if f.State != StateDirty {
		f.State = StateDirty
		f.StateDetail = ""
	}
	for _, dep := range d.Dependents(id) {
		d.MarkDirty(dep)
	}
}
