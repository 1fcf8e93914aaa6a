package core_test

import (
	"testing"

	"github.com/chazu/camber/pkg/core"
	"github.com/chazu/camber/pkg/history"
	"github.com/chazu/camber/pkg/kernel/sdfx"
	"github.com/chazu/camber/pkg/model"
	"github.com/chazu/camber/pkg/sketch"
	"github.com/chazu/camber/pkg/tessellate"
)

// padSession builds a session holding a circle sketch and an extrude,
// fully recomputed.
func padSession(t *testing.T) (*core.Session, model.FeatureID, model.FeatureID) {
	t.Helper()
	s := core.NewSession(sdfx.New())
	s.SetMeshCells(32)

	skF := &model.Feature{
		Name: "profile",
		Kind: model.FeatureSketch,
		Data: &model.SketchData{Sketch: sketch.New(sketch.PlaneXY)},
	}
	if err := s.Apply(&history.AddFeature{Feature: skF}); err != nil {
		t.Fatalf("add sketch: %v", err)
	}
	if err := s.Apply(&history.AddEntity{
		Feature: skF.ID, Kind: sketch.KindCircle, Params: []float64{0, 0, 2},
	}); err != nil {
		t.Fatalf("add circle: %v", err)
	}
	extF := &model.Feature{
		Name: "pad", Kind: model.FeatureExtrude,
		Upstream: []model.FeatureID{skF.ID},
		Data:     &model.ExtrudeData{Height: 4},
	}
	if err := s.Apply(&history.AddFeature{Feature: extF}); err != nil {
		t.Fatalf("add extrude: %v", err)
	}
	return s, skF.ID, extF.ID
}

func TestApplyNotifiesAndMeshes(t *testing.T) {
	s := core.NewSession(sdfx.New())
	s.SetMeshCells(32)

	var notes []core.Notification
	s.Subscribe(func(n core.Notification) { notes = append(notes, n) })

	skF := &model.Feature{
		Kind: model.FeatureSketch,
		Data: &model.SketchData{Sketch: sketch.New(sketch.PlaneXY)},
	}
	if err := s.Apply(&history.AddFeature{Feature: skF}); err != nil {
		t.Fatalf("add sketch: %v", err)
	}
	if len(notes) == 0 {
		t.Fatal("no notifications for the first command")
	}
	last := notes[len(notes)-1]
	if last.Feature != skF.ID || last.State != model.StateClean {
		t.Errorf("last notification = %+v, want %s clean", last, skF.ID.Short())
	}

	if err := s.Apply(&history.AddEntity{
		Feature: skF.ID, Kind: sketch.KindCircle, Params: []float64{0, 0, 2},
	}); err != nil {
		t.Fatalf("add circle: %v", err)
	}
	extF := &model.Feature{
		Kind: model.FeatureExtrude, Upstream: []model.FeatureID{skF.ID},
		Data: &model.ExtrudeData{Height: 4},
	}
	if err := s.Apply(&history.AddFeature{Feature: extF}); err != nil {
		t.Fatalf("add extrude: %v", err)
	}

	snap := s.RenderSnapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot items = %d, want 1 (the extrude)", len(snap))
	}
	if snap[0].Feature != extF.ID || snap[0].Mesh.IsEmpty() {
		t.Errorf("snapshot = %s with %d triangles, want non-empty mesh for extrude",
			snap[0].Feature.Short(), snap[0].Mesh.TriangleCount())
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	s, _, _ := padSession(t)
	snap := s.RenderSnapshot()
	if len(snap) != 1 || snap[0].Mesh.VertexCount() == 0 {
		t.Fatal("expected one non-empty mesh")
	}
	snap[0].Mesh.Vertices[0] = 9999

	again := s.RenderSnapshot()
	if again[0].Mesh.Vertices[0] == 9999 {
		t.Error("mutating a snapshot leaked into the cache")
	}
}

func TestUndoRedoThroughSession(t *testing.T) {
	s, _, extID := padSession(t)

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if s.Document().Feature(extID) != nil {
		t.Fatal("extrude still in document after undo")
	}
	if len(s.RenderSnapshot()) != 0 {
		t.Error("snapshot still holds a mesh for the undone extrude")
	}
	if err := s.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if f := s.Document().Feature(extID); f == nil || f.State != model.StateClean {
		t.Fatal("redo did not restore a clean extrude")
	}
	if len(s.RenderSnapshot()) != 1 {
		t.Error("snapshot missing the redone extrude mesh")
	}
}

func TestLastGoodMeshSurvivesError(t *testing.T) {
	s, skID, extID := padSession(t)
	circ := s.Document().Feature(skID).SketchGraph().Entities()[0].ID

	// Removing the only entity leaves the extrude with no profile.
	if err := s.Apply(&history.RemoveEntity{Feature: skID, ID: circ}); err != nil {
		t.Fatalf("remove circle: %v", err)
	}
	if f := s.Document().Feature(extID); f.State != model.StateError {
		t.Fatalf("extrude state = %v, want error", f.State)
	}
	snap := s.RenderSnapshot()
	if len(snap) != 1 || snap[0].Mesh.IsEmpty() {
		t.Fatal("last-good mesh gone after the extrude broke")
	}
	if snap[0].State != model.StateError {
		t.Errorf("snapshot state = %v, want error alongside the stale mesh", snap[0].State)
	}

	// Undo heals the sketch and the extrude remeshes.
	if err := s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if f := s.Document().Feature(extID); f.State != model.StateClean {
		t.Fatalf("extrude state after undo = %v, want clean", f.State)
	}
}

func TestDiagnostics(t *testing.T) {
	s, skID, _ := padSession(t)
	diags := s.Diagnose()
	if len(diags) != 2 {
		t.Fatalf("diagnostics count = %d, want 2", len(diags))
	}
	if diags[0].Feature != skID || diags[0].State != model.StateClean {
		t.Errorf("sketch diagnostics = %+v, want clean", diags[0])
	}
	// Unconstrained circle: three degrees of freedom.
	if diags[0].DOF != 3 {
		t.Errorf("sketch DOF = %d, want 3", diags[0].DOF)
	}
}

func TestSketchPolylines(t *testing.T) {
	s, skID, extID := padSession(t)
	polys, err := s.SketchPolylines(skID, tessellate.Options{})
	if err != nil {
		t.Fatalf("SketchPolylines: %v", err)
	}
	if len(polys) != 1 || !polys[0].Closed || len(polys[0].Points) < 8 {
		t.Fatalf("polylines = %+v, want one closed circle polyline", polys)
	}
	if _, err := s.SketchPolylines(extID, tessellate.Options{}); err == nil {
		t.Error("SketchPolylines accepted a non-sketch feature")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, _, extID := padSession(t)
	data, err := s.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	fresh := core.NewSession(sdfx.New())
	fresh.SetMeshCells(32)
	if err := fresh.Load(data); err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := fresh.Document().Feature(extID)
	if f == nil || f.State != model.StateClean {
		t.Fatal("loaded extrude is not clean after the load recompute")
	}
	if len(fresh.RenderSnapshot()) != 1 {
		t.Error("loaded session has no render mesh")
	}
	if fresh.CanUndo() {
		t.Error("history survived a load")
	}
}
