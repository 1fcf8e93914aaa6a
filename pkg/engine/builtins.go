package engine

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/camber/pkg/core"
	"github.com/chazu/camber/pkg/history"
	"github.com/chazu/camber/pkg/model"
	"github.com/chazu/camber/pkg/sketch"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// kwPrefix marks keyword strings produced by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites script source into what zygomys accepts:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords
//     need no global symbol registration and cannot collide with user
//     variables.
//  2. kebab-case identifiers become underscore form; zygomys reads a
//     bare hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals and comments are left untouched inside.
func preprocessSource(source string) string {
	out := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			out = append(out, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					out = append(out, b[i], b[i+1])
					i += 2
					continue
				}
				out = append(out, b[i])
				i++
			}
			if i < len(b) {
				out = append(out, b[i])
				i++
			}

		case b[i] == '`':
			out = append(out, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				out = append(out, b[i])
				i++
			}
			if i < len(b) {
				out = append(out, b[i])
				i++
			}

		case b[i] == ';':
			out = append(out, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				out = append(out, b[i])
				i++
			}

		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			out = append(out, b[i], b[i+1])
			i += 2

		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			for _, c := range b[i+1 : j] {
				if c == '-' {
					c = '_'
				}
				out = append(out, c)
			}
			out = append(out, '"')
			i = j

		case b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out = append(out, '_')
			i++

		default:
			out = append(out, b[i])
			i++
		}
	}
	return string(out)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpFeature wraps a feature id so features flow between forms.
type sexpFeature struct {
	id   model.FeatureID
	kind model.FeatureKind
	name string
}

func (f *sexpFeature) SexpString(ps *zygo.PrintState) string {
	if f.name != "" {
		return fmt.Sprintf("(%s %q)", f.kind, f.name)
	}
	return fmt.Sprintf("(%s %s)", f.kind, f.id.Short())
}
func (f *sexpFeature) Type() *zygo.RegisteredType { return nil }

// sexpEntity wraps a sketch entity reference.
type sexpEntity struct {
	feature model.FeatureID
	id      sketch.EntityID
	kind    sketch.EntityKind
}

func (e *sexpEntity) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %d)", e.kind, e.id)
}
func (e *sexpEntity) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Argument parsing
// ---------------------------------------------------------------------------

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		if name, ok := isKW(args[i]); ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
			continue
		}
		result.positional = append(result.positional, args[i])
		i++
	}
	return result
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts a preprocessed keyword or a plain string.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toPlane(s zygo.Sexp) (sketch.Plane, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, fmt.Errorf("expected plane keyword (:xy, :xz, :yz): %w", err)
	}
	switch name {
	case "xy":
		return sketch.PlaneXY, nil
	case "xz":
		return sketch.PlaneXZ, nil
	case "yz":
		return sketch.PlaneYZ, nil
	}
	return 0, fmt.Errorf("invalid plane %q, expected xy, xz, or yz", name)
}

var constraintKinds = map[string]sketch.ConstraintKind{
	"coincident":    sketch.Coincident,
	"distance":      sketch.Distance,
	"angle":         sketch.Angle,
	"parallel":      sketch.Parallel,
	"perpendicular": sketch.Perpendicular,
	"tangent":       sketch.Tangent,
	"horizontal":    sketch.Horizontal,
	"vertical":      sketch.Vertical,
	"equal":         sketch.Equal,
}

func toConstraintKind(s zygo.Sexp) (sketch.ConstraintKind, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, fmt.Errorf("expected constraint keyword: %w", err)
	}
	if k, ok := constraintKinds[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("invalid constraint %q", name)
}

func toFeature(s zygo.Sexp) (*sexpFeature, error) {
	if f, ok := s.(*sexpFeature); ok {
		return f, nil
	}
	return nil, fmt.Errorf("expected feature, got %T (%s)", s, s.SexpString(nil))
}

func toSketchFeature(s zygo.Sexp) (*sexpFeature, error) {
	f, err := toFeature(s)
	if err != nil {
		return nil, err
	}
	if f.kind != model.FeatureSketch {
		return nil, fmt.Errorf("expected a sketch feature, got %s", f.kind)
	}
	return f, nil
}

func toSolidFeature(s zygo.Sexp) (*sexpFeature, error) {
	f, err := toFeature(s)
	if err != nil {
		return nil, err
	}
	if f.kind == model.FeatureSketch {
		return nil, fmt.Errorf("expected a solid feature, got a sketch")
	}
	return f, nil
}

func toEntity(s zygo.Sexp) (*sexpEntity, error) {
	if e, ok := s.(*sexpEntity); ok {
		return e, nil
	}
	return nil, fmt.Errorf("expected entity, got %T (%s)", s, s.SexpString(nil))
}

// floats pulls n positional numbers starting at offset.
func floats(pa kwArgs, offset, n int, form string) ([]float64, error) {
	if len(pa.positional) < offset+n {
		return nil, fmt.Errorf("%s: want %d coordinates, got %d", form, n, len(pa.positional)-offset)
	}
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := toFloat64(pa.positional[offset+i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", form, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the modeling DSL into a zygomys
// environment. Every builtin mutates the session through the command
// layer, so scripted edits land on the undo stack like interactive
// ones.
func registerBuiltins(env *zygo.Zlisp, sess *core.Session) {

	// (sketch :plane :xz :name "base")
	env.AddFunction("sketch", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		plane := sketch.PlaneXY
		if v, ok := pa.kw["plane"]; ok {
			p, err := toPlane(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sketch: %w", err)
			}
			plane = p
		}
		f := &model.Feature{
			Kind: model.FeatureSketch,
			Data: &model.SketchData{Sketch: sketch.New(plane)},
		}
		if v, ok := pa.kw["name"]; ok {
			s, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sketch: name: %w", err)
			}
			f.Name = s
		}
		if err := sess.Apply(&history.AddFeature{Feature: f}); err != nil {
			return zygo.SexpNull, fmt.Errorf("sketch: %w", err)
		}
		return &sexpFeature{id: f.ID, kind: model.FeatureSketch, name: f.Name}, nil
	})

	addEntity := func(form string, kind sketch.EntityKind) {
		env.AddFunction(form, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) == 0 {
				return zygo.SexpNull, fmt.Errorf("%s: want a sketch as first argument", form)
			}
			sk, err := toSketchFeature(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
			}
			params, err := floats(pa, 1, kind.ParamCount(), form)
			if err != nil {
				return zygo.SexpNull, err
			}
			cmd := &history.AddEntity{Feature: sk.id, Kind: kind, Params: params}
			if err := sess.Apply(cmd); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
			}
			return &sexpEntity{feature: sk.id, id: cmd.ID(), kind: kind}, nil
		})
	}
	// (point sk x y) (line sk x1 y1 x2 y2) (circle sk cx cy r)
	// (arc sk cx cy r start end) (spline-point sk x y)
	addEntity("point", sketch.KindPoint)
	addEntity("line", sketch.KindLine)
	addEntity("circle", sketch.KindCircle)
	addEntity("arc", sketch.KindArc)
	addEntity("spline_point", sketch.KindSplinePoint)

	// (fix e) pins an entity; (unfix e) releases it.
	setFixed := func(form string, fixed bool) {
		env.AddFunction(form, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) == 0 {
				return zygo.SexpNull, fmt.Errorf("%s: want an entity", form)
			}
			e, err := toEntity(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
			}
			cmd := &history.SetFixed{Feature: e.feature, Entity: e.id, Fixed: fixed}
			if err := sess.Apply(cmd); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
			}
			return args[0], nil
		})
	}
	setFixed("fix", true)
	setFixed("unfix", false)

	// (constrain :horizontal l) (constrain :distance 4 l)
	// (constrain :coincident a b)
	env.AddFunction("constrain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("constrain: want a constraint keyword")
		}
		kind, err := toConstraintKind(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("constrain: %w", err)
		}
		rest := args[1:]
		var value float64
		switch kind {
		case sketch.Distance, sketch.Angle:
			if len(rest) == 0 {
				return zygo.SexpNull, fmt.Errorf("constrain: %s wants a value", kind)
			}
			value, err = toFloat64(rest[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("constrain: %s: %w", kind, err)
			}
			if kind == sketch.Angle {
				value = value * math.Pi / 180
			}
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return zygo.SexpNull, fmt.Errorf("constrain: %s wants at least one entity", kind)
		}
		var feat model.FeatureID
		ids := make([]sketch.EntityID, 0, len(rest))
		for _, a := range rest {
			e, err := toEntity(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("constrain: %w", err)
			}
			if feat.IsZero() {
				feat = e.feature
			} else if e.feature != feat {
				return zygo.SexpNull, fmt.Errorf("constrain: entities belong to different sketches")
			}
			ids = append(ids, e.id)
		}
		cmd := &history.AddConstraint{Feature: feat, Kind: kind, Value: value, Entities: ids}
		if err := sess.Apply(cmd); err != nil {
			return zygo.SexpNull, fmt.Errorf("constrain: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// (extrude sk :height 4 :name "pad")
	env.AddFunction("extrude", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) == 0 {
			return zygo.SexpNull, fmt.Errorf("extrude: want a sketch")
		}
		sk, err := toSketchFeature(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("extrude: %w", err)
		}
		height := 1.0
		if v, ok := pa.kw["height"]; ok {
			height, err = toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("extrude: height: %w", err)
			}
		}
		f := &model.Feature{
			Kind:     model.FeatureExtrude,
			Upstream: []model.FeatureID{sk.id},
			Data:     &model.ExtrudeData{Height: height},
		}
		if v, ok := pa.kw["name"]; ok {
			if f.Name, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("extrude: name: %w", err)
			}
		}
		if err := sess.Apply(&history.AddFeature{Feature: f}); err != nil {
			return zygo.SexpNull, fmt.Errorf("extrude: %w", err)
		}
		return &sexpFeature{id: f.ID, kind: model.FeatureExtrude, name: f.Name}, nil
	})

	// (revolve sk :angle 270 :name "bowl"), angle in degrees, full turn
	// by default.
	env.AddFunction("revolve", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) == 0 {
			return zygo.SexpNull, fmt.Errorf("revolve: want a sketch")
		}
		sk, err := toSketchFeature(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("revolve: %w", err)
		}
		// Zero angle means a full revolution, matching the kernel.
		angle := 0.0
		if v, ok := pa.kw["angle"]; ok {
			deg, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("revolve: angle: %w", err)
			}
			if deg > 0 && deg < 360 {
				angle = deg * math.Pi / 180
			}
		}
		f := &model.Feature{
			Kind:     model.FeatureRevolve,
			Upstream: []model.FeatureID{sk.id},
			Data:     &model.RevolveData{Angle: angle},
		}
		if v, ok := pa.kw["name"]; ok {
			if f.Name, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("revolve: name: %w", err)
			}
		}
		if err := sess.Apply(&history.AddFeature{Feature: f}); err != nil {
			return zygo.SexpNull, fmt.Errorf("revolve: %w", err)
		}
		return &sexpFeature{id: f.ID, kind: model.FeatureRevolve, name: f.Name}, nil
	})

	addBoolean := func(form string, op model.BoolOp) {
		env.AddFunction(form, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s: want exactly two solids", form)
			}
			a, err := toSolidFeature(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
			}
			b, err := toSolidFeature(pa.positional[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
			}
			f := &model.Feature{
				Kind:     model.FeatureBoolean,
				Upstream: []model.FeatureID{a.id, b.id},
				Data:     &model.BooleanData{Op: op},
			}
			if v, ok := pa.kw["name"]; ok {
				if f.Name, err = toString(v); err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: name: %w", form, err)
				}
			}
			if err := sess.Apply(&history.AddFeature{Feature: f}); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
			}
			return &sexpFeature{id: f.ID, kind: model.FeatureBoolean, name: f.Name}, nil
		})
	}
	// (union a b) (difference a b) (intersect a b)
	addBoolean("union", model.BoolUnion)
	addBoolean("difference", model.BoolDifference)
	addBoolean("intersect", model.BoolIntersection)

	env.AddFunction("undo", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := sess.Undo(); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})
	env.AddFunction("redo", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := sess.Redo(); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})
}
