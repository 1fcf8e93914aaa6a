// Package sketch maintains the live constraint graph of a 2D sketch:
// the entities, the constraints between them, and the translation of
// each constraint into scalar equations over entity parameters.
package sketch

import (
	"errors"
	"fmt"

	"github.com/chazu/camber/pkg/geom"
)

// Graph mutation errors. Callers match with errors.Is.
var (
	ErrInvalidReference    = errors.New("sketch: entity reference does not exist")
	ErrDuplicateConstraint = errors.New("sketch: identical constraint already exists")
	ErrKindMismatch        = errors.New("sketch: constraint does not apply to these entity kinds")
)

// Plane is the work plane a sketch lives on.
type Plane int

const (
	PlaneXY Plane = iota
	PlaneXZ
	PlaneYZ
)

func (p Plane) String() string {
	switch p {
	case PlaneXY:
		return "xy"
	case PlaneXZ:
		return "xz"
	case PlaneYZ:
		return "yz"
	default:
		return "unknown"
	}
}

// ToWorld maps a 2D sketch point plus an out-of-plane depth into 3D.
func (p Plane) ToWorld(pt geom.Vec2, depth float64) [3]float64 {
	switch p {
	case PlaneXZ:
		return [3]float64{pt.X, depth, pt.Y}
	case PlaneYZ:
		return [3]float64{depth, pt.X, pt.Y}
	default:
		return [3]float64{pt.X, pt.Y, depth}
	}
}

// Sketch owns a set of entities and the constraints between them.
// All lookups are by id; insertion order is preserved so parameter
// vectors and equation stacks are deterministic.
type Sketch struct {
	Plane Plane

	entities        map[EntityID]*Entity
	entityOrder     []EntityID
	constraints     map[ConstraintID]*Constraint
	constraintOrder []ConstraintID

	nextEntity     EntityID
	nextConstraint ConstraintID
	revision       uint64
}

// New creates an empty sketch on the given work plane.
func New(plane Plane) *Sketch {
	return &Sketch{
		Plane:       plane,
		entities:    make(map[EntityID]*Entity),
		constraints: make(map[ConstraintID]*Constraint),
	}
}

// Revision returns the mutation counter. It strictly increases on every
// graph change and is the dirty signal for the owning feature.
func (s *Sketch) Revision() uint64 { return s.revision }

func (s *Sketch) touch() { s.revision++ }

// Entity returns the entity with the given id, or nil.
func (s *Sketch) Entity(id EntityID) *Entity { return s.entities[id] }

// Constraint returns the constraint with the given id, or nil.
func (s *Sketch) Constraint(id ConstraintID) *Constraint { return s.constraints[id] }

// Entities returns the entities in insertion order.
func (s *Sketch) Entities() []*Entity {
	out := make([]*Entity, 0, len(s.entityOrder))
	for _, id := range s.entityOrder {
		out = append(out, s.entities[id])
	}
	return out
}

// Constraints returns the constraints in insertion order.
func (s *Sketch) Constraints() []*Constraint {
	out := make([]*Constraint, 0, len(s.constraintOrder))
	for _, id := range s.constraintOrder {
		out = append(out, s.constraints[id])
	}
	return out
}

// AddEntity adds an entity of the given kind with the given initial
// parameters. Degenerate initial geometry is rejected the same way the
// geom constructors reject it.
func (s *Sketch) AddEntity(kind EntityKind, params ...float64) (EntityID, error) {
	if len(params) != kind.ParamCount() {
		return ZeroEntity, fmt.Errorf("sketch: %s wants %d params, got %d",
			kind, kind.ParamCount(), len(params))
	}
	if err := checkDegenerate(kind, params); err != nil {
		return ZeroEntity, err
	}

	s.nextEntity++
	id := s.nextEntity
	e := &Entity{ID: id, Kind: kind, Params: append([]float64(nil), params...)}
	s.entities[id] = e
	s.entityOrder = append(s.entityOrder, id)
	s.touch()
	return id, nil
}

// checkDegenerate validates initial parameters through the geom
// constructors so NaN-bearing entities never enter the graph.
func checkDegenerate(kind EntityKind, p []float64) error {
	switch kind {
	case KindLine:
		_, err := geom.NewLine(geom.Vec2{X: p[0], Y: p[1]}, geom.Vec2{X: p[2], Y: p[3]})
		return err
	case KindCircle:
		_, err := geom.NewCircle(geom.Vec2{X: p[0], Y: p[1]}, p[2])
		return err
	case KindArc:
		_, err := geom.NewArc(geom.Vec2{X: p[0], Y: p[1]}, p[2], p[3], p[4])
		return err
	}
	return nil
}

// AddPoint adds a free point entity.
func (s *Sketch) AddPoint(x, y float64) (EntityID, error) {
	return s.AddEntity(KindPoint, x, y)
}

// AddLine adds a line segment entity.
func (s *Sketch) AddLine(x1, y1, x2, y2 float64) (EntityID, error) {
	return s.AddEntity(KindLine, x1, y1, x2, y2)
}

// AddCircle adds a circle entity.
func (s *Sketch) AddCircle(cx, cy, r float64) (EntityID, error) {
	return s.AddEntity(KindCircle, cx, cy, r)
}

// SetFixed pins or unpins an entity. Fixed entities keep their
// parameters through solves.
func (s *Sketch) SetFixed(id EntityID, fixed bool) error {
	e := s.entities[id]
	if e == nil {
		return fmt.Errorf("%w: entity %d", ErrInvalidReference, id)
	}
	if e.Fixed != fixed {
		e.Fixed = fixed
		s.touch()
	}
	return nil
}

// SetParams overwrites an entity's parameter vector.
func (s *Sketch) SetParams(id EntityID, params []float64) error {
	e := s.entities[id]
	if e == nil {
		return fmt.Errorf("%w: entity %d", ErrInvalidReference, id)
	}
	if len(params) != len(e.Params) {
		return fmt.Errorf("sketch: entity %d wants %d params, got %d",
			id, len(e.Params), len(params))
	}
	copy(e.Params, params)
	s.touch()
	return nil
}

// AddConstraint adds a constraint of the given kind over the listed
// entities. It fails with ErrInvalidReference if any entity is absent,
// ErrKindMismatch if the kind does not apply to the entity kinds, and
// ErrDuplicateConstraint if an identical constraint already exists.
func (s *Sketch) AddConstraint(kind ConstraintKind, value float64, ids ...EntityID) (ConstraintID, error) {
	kinds := make([]EntityKind, len(ids))
	for i, id := range ids {
		e := s.entities[id]
		if e == nil {
			return 0, fmt.Errorf("%w: entity %d", ErrInvalidReference, id)
		}
		kinds[i] = e.Kind
	}
	if err := checkSignature(kind, kinds); err != nil {
		return 0, err
	}

	c := &Constraint{Kind: kind, Entities: append([]EntityID(nil), ids...), Value: value}
	for _, other := range s.constraints {
		if other.sameAs(c) {
			return 0, fmt.Errorf("%w: %s over %v", ErrDuplicateConstraint, kind, ids)
		}
	}

	s.nextConstraint++
	c.ID = s.nextConstraint
	s.constraints[c.ID] = c
	s.constraintOrder = append(s.constraintOrder, c.ID)
	s.touch()
	return c.ID, nil
}

// RemoveConstraint deletes a constraint.
func (s *Sketch) RemoveConstraint(id ConstraintID) error {
	if _, ok := s.constraints[id]; !ok {
		return fmt.Errorf("%w: constraint %d", ErrInvalidReference, id)
	}
	delete(s.constraints, id)
	s.constraintOrder = removeID(s.constraintOrder, id)
	s.touch()
	return nil
}

// RemoveEntity deletes an entity and cascades removal of every
// constraint that references it.
func (s *Sketch) RemoveEntity(id EntityID) error {
	if _, ok := s.entities[id]; !ok {
		return fmt.Errorf("%w: entity %d", ErrInvalidReference, id)
	}
	for _, cid := range append([]ConstraintID(nil), s.constraintOrder...) {
		if s.constraints[cid].references(id) {
			delete(s.constraints, cid)
			s.constraintOrder = removeID(s.constraintOrder, cid)
		}
	}
	delete(s.entities, id)
	s.entityOrder = removeID(s.entityOrder, id)
	s.touch()
	return nil
}

func removeID[T comparable](list []T, id T) []T {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// FreeParams returns the parameter refs of all non-fixed entities in
// deterministic order. This is the solver's unknown vector layout.
func (s *Sketch) FreeParams() []ParamRef {
	var refs []ParamRef
	for _, id := range s.entityOrder {
		e := s.entities[id]
		if e.Fixed {
			continue
		}
		for i := range e.Params {
			refs = append(refs, ParamRef{Entity: id, Index: i})
		}
	}
	return refs
}

// Param returns the current value of one scalar parameter.
func (s *Sketch) Param(r ParamRef) float64 {
	return s.entities[r.Entity].Params[r.Index]
}

// InsertEntity re-inserts an entity with a known id, as undo and
// deserialization need. The id must not be in use.
func (s *Sketch) InsertEntity(e Entity) error {
	if _, ok := s.entities[e.ID]; ok {
		return fmt.Errorf("sketch: entity %d already exists", e.ID)
	}
	if len(e.Params) != e.Kind.ParamCount() {
		return fmt.Errorf("sketch: %s wants %d params, got %d",
			e.Kind, e.Kind.ParamCount(), len(e.Params))
	}
	cp := e
	cp.Params = append([]float64(nil), e.Params...)
	s.entities[e.ID] = &cp
	s.entityOrder = append(s.entityOrder, e.ID)
	if e.ID > s.nextEntity {
		s.nextEntity = e.ID
	}
	s.touch()
	return nil
}

// InsertConstraint re-inserts a constraint with a known id, validating
// references and duplicates the same way AddConstraint does.
func (s *Sketch) InsertConstraint(c Constraint) error {
	if _, ok := s.constraints[c.ID]; ok {
		return fmt.Errorf("sketch: constraint %d already exists", c.ID)
	}
	kinds := make([]EntityKind, len(c.Entities))
	for i, id := range c.Entities {
		e := s.entities[id]
		if e == nil {
			return fmt.Errorf("%w: entity %d", ErrInvalidReference, id)
		}
		kinds[i] = e.Kind
	}
	if err := checkSignature(c.Kind, kinds); err != nil {
		return err
	}
	for _, other := range s.constraints {
		if other.sameAs(&c) {
			return fmt.Errorf("%w: %s over %v", ErrDuplicateConstraint, c.Kind, c.Entities)
		}
	}
	cp := c
	cp.Entities = append([]EntityID(nil), c.Entities...)
	s.constraints[c.ID] = &cp
	s.constraintOrder = append(s.constraintOrder, c.ID)
	if c.ID > s.nextConstraint {
		s.nextConstraint = c.ID
	}
	s.touch()
	return nil
}

// WriteSolution writes converged parameter values back to entities.
// It does not bump the revision: solver write-back is not a user edit.
func (s *Sketch) WriteSolution(refs []ParamRef, vals []float64) {
	for i, r := range refs {
		s.entities[r.Entity].Params[r.Index] = vals[i]
	}
}
