package model

import (
	"github.com/google/uuid"

	"github.com/chazu/camber/pkg/kernel"
	"github.com/chazu/camber/pkg/sketch"
)

// FeatureID identifies a feature across the document's lifetime.
type FeatureID string

// ZeroFeature is the invalid feature id.
const ZeroFeature FeatureID = ""

// NewFeatureID returns a fresh random feature id.
func NewFeatureID() FeatureID {
	return FeatureID(uuid.NewString())
}

// IsZero reports whether the id is unset.
func (id FeatureID) IsZero() bool { return id == ZeroFeature }

// Short returns a truncated id for messages.
func (id FeatureID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// FeatureKind enumerates the supported feature kinds.
type FeatureKind int

const (
	FeatureSketch FeatureKind = iota
	FeatureExtrude
	FeatureRevolve
	FeatureBoolean
)

func (k FeatureKind) String() string {
	switch k {
	case FeatureSketch:
		return "sketch"
	case FeatureExtrude:
		return "extrude"
	case FeatureRevolve:
		return "revolve"
	case FeatureBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// FeatureState is the cache-validity state of a feature relative to its
// own and upstream inputs.
type FeatureState int

const (
	StateClean FeatureState = iota
	StateDirty
	StateSolving
	StateError
	StateBlocked // BlockedByUpstreamError: a dependency failed
)

func (s FeatureState) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSolving:
		return "solving"
	case StateError:
		return "error"
	case StateBlocked:
		return "blocked-by-upstream-error"
	default:
		return "unknown"
	}
}

// FeatureData is the interface for kind-specific feature payloads.
type FeatureData interface {
	featureData() // marker method restricting implementations to this package
}

// SketchData holds a sketch feature's constraint graph.
type SketchData struct {
	Sketch *sketch.Sketch
}

func (*SketchData) featureData() {}

// ExtrudeData sweeps the upstream sketch's profile by Height along the
// sketch plane normal.
type ExtrudeData struct {
	Height float64 `json:"height"`
}

func (*ExtrudeData) featureData() {}

// RevolveData sweeps the upstream sketch's profile about the sketch Y
// axis through Angle radians; 0 means a full revolution.
type RevolveData struct {
	Angle float64 `json:"angle"`
}

func (*RevolveData) featureData() {}

// BoolOp enumerates boolean combine operations.
type BoolOp int

const (
	BoolUnion BoolOp = iota
	BoolDifference
	BoolIntersection
)

func (o BoolOp) String() string {
	switch o {
	case BoolUnion:
		return "union"
	case BoolDifference:
		return "difference"
	case BoolIntersection:
		return "intersection"
	default:
		return "unknown"
	}
}

// BooleanData combines the two upstream solid features with Op.
type BooleanData struct {
	Op BoolOp `json:"op"`
}

func (*BooleanData) featureData() {}

// Feature is one node in the document's dependency DAG.
type Feature struct {
	ID       FeatureID
	Kind     FeatureKind
	Name     string
	Upstream []FeatureID
	Data     FeatureData

	// Recompute state. StateDetail carries the failure description
	// while State is StateError or StateBlocked.
	State       FeatureState
	StateDetail string

	// Committed result of the last successful recompute.
	Solid kernel.Solid
	DOF   int

	// solvedRevision is the sketch revision the last solve committed;
	// a mismatch means the sketch mutated since.
	solvedRevision uint64
}

// SketchGraph returns the feature's sketch, or nil for non-sketch kinds.
func (f *Feature) SketchGraph() *sketch.Sketch {
	if d, ok := f.Data.(*SketchData); ok {
		return d.Sketch
	}
	return nil
}
