// Package core is the modeling session facade. A Session owns one
// document, its undo history and the geometry kernel, funnels every
// mutation through the command layer, recomputes synchronously, and
// keeps a render-ready mesh cache with last-good fallbacks.
package core

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/camber/pkg/history"
	"github.com/chazu/camber/pkg/kernel"
	"github.com/chazu/camber/pkg/model"
	"github.com/chazu/camber/pkg/solver"
	"github.com/chazu/camber/pkg/tessellate"
)

// defaultMeshCells is the marching-cubes resolution used for render
// meshes when the caller does not override it.
const defaultMeshCells = 0 // 0 selects the kernel default

// Notification reports one feature's state transition to listeners.
type Notification struct {
	Feature model.FeatureID
	State   model.FeatureState
	Detail  string
}

// Listener receives state change notifications. Listeners run on the
// mutating goroutine; keep them short.
type Listener func(Notification)

// Diagnostics is the per-feature health view.
type Diagnostics struct {
	Feature model.FeatureID
	Name    string
	Kind    model.FeatureKind
	State   model.FeatureState
	Detail  string
	DOF     int
}

// Session ties a document, its history and a kernel together behind a
// single mutex. All methods are safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	doc       *model.Document
	hist      *history.Stack
	kern      kernel.Kernel
	listeners []Listener
	meshCells int

	// meshes holds the last successfully built mesh per feature, so a
	// feature that turns dirty or broken keeps showing its previous
	// shape until it recomputes.
	meshes map[model.FeatureID]*kernel.Mesh
}

// NewSession creates a session over an empty document.
func NewSession(k kernel.Kernel) *Session {
	return &Session{
		doc:       model.New(k),
		hist:      history.NewStack(),
		kern:      k,
		meshCells: defaultMeshCells,
		meshes:    make(map[model.FeatureID]*kernel.Mesh),
	}
}

// SetMeshCells overrides the render mesh resolution.
func (s *Session) SetMeshCells(cells int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meshCells = cells
}

// SetSolveOptions overrides the constraint solver tuning.
func (s *Session) SetSolveOptions(o solver.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.SetSolveOptions(o)
}

// Subscribe registers a listener for feature state changes.
func (s *Session) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Document exposes the underlying document for read access. Mutations
// must go through Apply so they are undoable and trigger recompute.
func (s *Session) Document() *model.Document {
	return s.doc
}

// Apply runs a command, recomputes everything it made stale, refreshes
// render meshes and notifies listeners. The recompute is synchronous:
// when Apply returns, every feature state is settled.
func (s *Session) Apply(cmd history.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hist.Apply(s.doc, cmd); err != nil {
		return err
	}
	s.recomputeLocked()
	return nil
}

// Undo inverts the most recent command and recomputes.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.hist.Undo(s.doc); err != nil {
		return err
	}
	s.recomputeLocked()
	return nil
}

// Redo re-applies the most recently undone command and recomputes.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.hist.Redo(s.doc); err != nil {
		return err
	}
	s.recomputeLocked()
	return nil
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.CanRedo()
}

// HistoryDepth returns the undo stack depth. Callers batching commands
// can record it and unwind back to it on failure.
func (s *Session) HistoryDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Depth()
}

func (s *Session) recomputeLocked() {
	changes := s.doc.Recompute()
	changed := make(map[model.FeatureID]bool, len(changes))
	for _, ch := range changes {
		changed[ch.Feature] = true
	}
	s.refreshMeshesLocked(changed)
	s.pruneMeshesLocked()
	for _, ch := range changes {
		n := Notification{Feature: ch.Feature, State: ch.NewState}
		if f := s.doc.Feature(ch.Feature); f != nil {
			n.Detail = f.StateDetail
		}
		for _, fn := range s.listeners {
			fn(n)
		}
	}
}

// refreshMeshesLocked rebuilds meshes for clean solid features whose
// mesh is missing or stale. Independent features mesh in parallel; the
// marching cubes pass dominates recompute cost.
func (s *Session) refreshMeshesLocked(changed map[model.FeatureID]bool) {
	var g errgroup.Group
	var mu sync.Mutex
	for _, f := range s.doc.Features() {
		if f.State != model.StateClean || f.Solid == nil {
			continue
		}
		if _, ok := s.meshes[f.ID]; ok && !changed[f.ID] {
			continue
		}
		g.Go(func() error {
			m, err := s.kern.ToMesh(f.Solid, s.meshCells)
			if err != nil {
				return fmt.Errorf("mesh %s: %w", f.ID.Short(), err)
			}
			mu.Lock()
			s.meshes[f.ID] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// A meshing failure is a display problem, not a model problem;
		// the stale mesh stays in the cache.
		return
	}
}

// pruneMeshesLocked drops cached meshes for features that no longer
// exist. Meshes of dirty or broken features are kept as last-good.
func (s *Session) pruneMeshesLocked() {
	for id := range s.meshes {
		if s.doc.Feature(id) == nil {
			delete(s.meshes, id)
		}
	}
}

// RenderItem pairs a feature with its display mesh.
type RenderItem struct {
	Feature model.FeatureID
	Name    string
	State   model.FeatureState
	Mesh    *kernel.Mesh
}

// RenderSnapshot returns deep copies of the cached meshes in dependency
// order. The snapshot is immutable: later recomputes never mutate a
// mesh a renderer already holds.
func (s *Session) RenderSnapshot() []RenderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RenderItem
	for _, f := range s.doc.Features() {
		m, ok := s.meshes[f.ID]
		if !ok {
			continue
		}
		out = append(out, RenderItem{
			Feature: f.ID,
			Name:    f.Name,
			State:   f.State,
			Mesh:    m.Clone(),
		})
	}
	return out
}

// SketchPolylines tessellates a sketch feature's entities into world
// space display polylines. Opts follow tessellate.Options semantics.
func (s *Session) SketchPolylines(id model.FeatureID, opts tessellate.Options) ([]tessellate.Polyline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.doc.Feature(id)
	if f == nil {
		return nil, fmt.Errorf("core: %w: %s", model.ErrUnknownFeature, id.Short())
	}
	sk := f.SketchGraph()
	if sk == nil {
		return nil, fmt.Errorf("core: feature %s is not a sketch", id.Short())
	}
	return tessellate.Collect(tessellate.Sketch(sk, opts)), nil
}

// Diagnose returns the health view for every feature in dependency
// order.
func (s *Session) Diagnose() []Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostics, 0, s.doc.FeatureCount())
	for _, f := range s.doc.Features() {
		out = append(out, Diagnostics{
			Feature: f.ID,
			Name:    f.Name,
			Kind:    f.Kind,
			State:   f.State,
			Detail:  f.StateDetail,
			DOF:     f.DOF,
		})
	}
	return out
}

// Save serializes the document.
func (s *Session) Save() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Serialize(s.doc)
}

// Load replaces the document with a deserialized one, resets history
// and recomputes. The old document is discarded.
func (s *Session) Load(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := model.Deserialize(data, s.kern)
	if err != nil {
		return err
	}
	s.doc = doc
	s.hist = history.NewStack()
	s.meshes = make(map[model.FeatureID]*kernel.Mesh)
	s.recomputeLocked()
	return nil
}
