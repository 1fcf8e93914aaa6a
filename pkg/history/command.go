// Package history implements the undoable command layer over a
// document. Every document mutation goes through a Command; applying a
// command captures whatever the document assigned (feature ids, entity
// ids, cascaded deletions) so that Invert restores the exact prior
// state and a later re-Apply reproduces the exact same ids.
package history

import (
	"fmt"

	"github.com/chazu/camber/pkg/model"
	"github.com/chazu/camber/pkg/sketch"
)

// Command is one reversible document mutation. Apply and Invert come in
// pairs: Invert after a successful Apply restores the document to its
// prior state, and Apply after Invert reproduces the original result,
// ids included.
type Command interface {
	Name() string
	Apply(d *model.Document) error
	Invert(d *model.Document) error

	command()
}

func sketchOf(d *model.Document, id model.FeatureID) (*sketch.Sketch, error) {
	f := d.Feature(id)
	if f == nil {
		return nil, fmt.Errorf("history: %w: %s", model.ErrUnknownFeature, id.Short())
	}
	sk := f.SketchGraph()
	if sk == nil {
		return nil, fmt.Errorf("history: feature %s is not a sketch", id.Short())
	}
	return sk, nil
}

// AddFeature appends a feature to the document.
type AddFeature struct {
	Feature *model.Feature
}

func (*AddFeature) command()       {}
func (c *AddFeature) Name() string { return "add " + c.Feature.Kind.String() }

func (c *AddFeature) Apply(d *model.Document) error {
	return d.AddFeature(c.Feature)
}

func (c *AddFeature) Invert(d *model.Document) error {
	_, err := d.RemoveFeature(c.Feature.ID)
	return err
}

// DeleteFeature removes a feature, remembering it and its position so
// undo restores the dependency order exactly.
type DeleteFeature struct {
	ID model.FeatureID

	removed *model.Feature
	index   int
}

func (*DeleteFeature) command()       {}
func (c *DeleteFeature) Name() string { return "delete feature" }

func (c *DeleteFeature) Apply(d *model.Document) error {
	c.index = d.FeatureIndex(c.ID)
	f, err := d.RemoveFeature(c.ID)
	if err != nil {
		return err
	}
	c.removed = f
	return nil
}

func (c *DeleteFeature) Invert(d *model.Document) error {
	return d.InsertFeature(c.removed, c.index)
}

// AddEntity adds a sketch entity. The id assigned on first apply is
// reused on every re-apply.
type AddEntity struct {
	Feature model.FeatureID
	Kind    sketch.EntityKind
	Params  []float64

	id sketch.EntityID
}

func (*AddEntity) command()       {}
func (c *AddEntity) Name() string { return "add " + c.Kind.String() }

// ID returns the entity id assigned by the first Apply.
func (c *AddEntity) ID() sketch.EntityID { return c.id }

func (c *AddEntity) Apply(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	if c.id != sketch.ZeroEntity {
		return sk.InsertEntity(sketch.Entity{
			ID:     c.id,
			Kind:   c.Kind,
			Params: append([]float64(nil), c.Params...),
		})
	}
	id, err := sk.AddEntity(c.Kind, c.Params...)
	if err != nil {
		return err
	}
	c.id = id
	return nil
}

func (c *AddEntity) Invert(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	return sk.RemoveEntity(c.id)
}

// RemoveEntity removes a sketch entity, capturing it together with
// every constraint the removal cascades away.
type RemoveEntity struct {
	Feature model.FeatureID
	ID      sketch.EntityID

	removed     sketch.Entity
	constraints []sketch.Constraint
}

func (*RemoveEntity) command()       {}
func (c *RemoveEntity) Name() string { return "remove entity" }

func (c *RemoveEntity) Apply(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	e := sk.Entity(c.ID)
	if e == nil {
		return fmt.Errorf("history: %w: entity %d", sketch.ErrInvalidReference, c.ID)
	}
	c.removed = *e
	c.removed.Params = append([]float64(nil), e.Params...)
	c.constraints = c.constraints[:0]
	for _, con := range sk.Constraints() {
		for _, ref := range con.Entities {
			if ref == c.ID {
				snap := *con
				snap.Entities = append([]sketch.EntityID(nil), con.Entities...)
				c.constraints = append(c.constraints, snap)
				break
			}
		}
	}
	return sk.RemoveEntity(c.ID)
}

func (c *RemoveEntity) Invert(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	if err := sk.InsertEntity(c.removed); err != nil {
		return err
	}
	for _, con := range c.constraints {
		if err := sk.InsertConstraint(con); err != nil {
			return err
		}
	}
	return nil
}

// AddConstraint adds a sketch constraint, reusing the assigned id on
// re-apply.
type AddConstraint struct {
	Feature  model.FeatureID
	Kind     sketch.ConstraintKind
	Value    float64
	Entities []sketch.EntityID

	id sketch.ConstraintID
}

func (*AddConstraint) command()       {}
func (c *AddConstraint) Name() string { return "add " + c.Kind.String() + " constraint" }

// ID returns the constraint id assigned by the first Apply.
func (c *AddConstraint) ID() sketch.ConstraintID { return c.id }

func (c *AddConstraint) Apply(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	if c.id != 0 {
		return sk.InsertConstraint(sketch.Constraint{
			ID:       c.id,
			Kind:     c.Kind,
			Entities: append([]sketch.EntityID(nil), c.Entities...),
			Value:    c.Value,
		})
	}
	id, err := sk.AddConstraint(c.Kind, c.Value, c.Entities...)
	if err != nil {
		return err
	}
	c.id = id
	return nil
}

func (c *AddConstraint) Invert(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	return sk.RemoveConstraint(c.id)
}

// RemoveConstraint removes one constraint.
type RemoveConstraint struct {
	Feature model.FeatureID
	ID      sketch.ConstraintID

	removed sketch.Constraint
}

func (*RemoveConstraint) command()       {}
func (c *RemoveConstraint) Name() string { return "remove constraint" }

func (c *RemoveConstraint) Apply(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	con := sk.Constraint(c.ID)
	if con == nil {
		return fmt.Errorf("history: %w: constraint %d", sketch.ErrInvalidReference, c.ID)
	}
	c.removed = *con
	c.removed.Entities = append([]sketch.EntityID(nil), con.Entities...)
	return sk.RemoveConstraint(c.ID)
}

func (c *RemoveConstraint) Invert(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	return sk.InsertConstraint(c.removed)
}

// SetParameters overwrites an entity's parameters, remembering the
// prior values. Undo restores the pre-edit geometry; a recompute after
// undo re-solves from there.
type SetParameters struct {
	Feature model.FeatureID
	Entity  sketch.EntityID
	Params  []float64

	prev []float64
}

func (*SetParameters) command()       {}
func (c *SetParameters) Name() string { return "edit parameters" }

func (c *SetParameters) Apply(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	e := sk.Entity(c.Entity)
	if e == nil {
		return fmt.Errorf("history: %w: entity %d", sketch.ErrInvalidReference, c.Entity)
	}
	c.prev = append(c.prev[:0], e.Params...)
	return sk.SetParams(c.Entity, c.Params)
}

func (c *SetParameters) Invert(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	return sk.SetParams(c.Entity, c.prev)
}

// SetFixed toggles an entity's fixed flag.
type SetFixed struct {
	Feature model.FeatureID
	Entity  sketch.EntityID
	Fixed   bool

	prev bool
}

func (*SetFixed) command()       {}
func (c *SetFixed) Name() string { return "set fixed" }

func (c *SetFixed) Apply(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	e := sk.Entity(c.Entity)
	if e == nil {
		return fmt.Errorf("history: %w: entity %d", sketch.ErrInvalidReference, c.Entity)
	}
	c.prev = e.Fixed
	return sk.SetFixed(c.Entity, c.Fixed)
}

func (c *SetFixed) Invert(d *model.Document) error {
	sk, err := sketchOf(d, c.Feature)
	if err != nil {
		return err
	}
	return sk.SetFixed(c.Entity, c.prev)
}
