// Package solver implements the numerical constraint solver: damped
// Newton-Raphson iteration over the stacked residuals of a sketch's
// constraint equations, with minimum-norm update steps so redundant but
// consistent constraint sets solve deterministically.
package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/chazu/camber/pkg/sketch"
)

// Defaults. Overridable per solve through Options.
const (
	DefaultConvergenceTol = 1e-10
	DefaultMaxIterations  = 50
	DefaultMaxBacktracks  = 8
	DefaultRankTol        = 1e-9
)

// SignConvention documents how ambiguous solutions are disambiguated:
// when a constraint row is degenerate at the initial guess (for example
// a distance constraint between coincident points), the first free
// parameter of that row is advanced along its positive axis before
// iterating. The canonical two-point distance case therefore lands on
// the +X solution.
const SignConvention = "+x"

// FailReason classifies a solve failure.
type FailReason int

const (
	NotConverged FailReason = iota
	Singular
	OverConstrained
)

func (r FailReason) String() string {
	switch r {
	case NotConverged:
		return "not-converged"
	case Singular:
		return "singular"
	case OverConstrained:
		return "over-constrained"
	default:
		return "unknown"
	}
}

// SolveError reports a failed solve. Entity parameters are left at
// their pre-solve values whenever a SolveError is returned.
type SolveError struct {
	Reason     FailReason
	Iterations int
	Residual   float64
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("solve failed (%s) after %d iterations, residual %g",
		e.Reason, e.Iterations, e.Residual)
}

// Options tune a solve. Zero values select the defaults.
type Options struct {
	ConvergenceTol float64
	MaxIterations  int
	MaxBacktracks  int
	RankTol        float64
}

func (o Options) withDefaults() Options {
	if o.ConvergenceTol == 0 {
		o.ConvergenceTol = DefaultConvergenceTol
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxBacktracks == 0 {
		o.MaxBacktracks = DefaultMaxBacktracks
	}
	if o.RankTol == 0 {
		o.RankTol = DefaultRankTol
	}
	return o
}

// Result reports a successful solve.
type Result struct {
	Iterations int
	Residual   float64
	DOF        int // remaining degrees of freedom (free params - Jacobian rank)
}

// system is the assembled view of one sketch's equations over its free
// parameters.
type system struct {
	sk    *sketch.Sketch
	refs  []sketch.ParamRef
	index map[sketch.ParamRef]int
	eqs   []sketch.Equation
}

func newSystem(sk *sketch.Sketch) (*system, error) {
	eqs, err := sk.Equations()
	if err != nil {
		return nil, err
	}
	refs := sk.FreeParams()
	index := make(map[sketch.ParamRef]int, len(refs))
	for i, r := range refs {
		index[r] = i
	}
	return &system{sk: sk, refs: refs, index: index, eqs: eqs}, nil
}

// eval computes the residual vector and dense Jacobian at x. Fixed
// entity parameters are read from the sketch; free ones from x.
func (sys *system) eval(x []float64) (r []float64, jac *mat.Dense) {
	get := func(ref sketch.ParamRef) float64 {
		if i, ok := sys.index[ref]; ok {
			return x[i]
		}
		return sys.sk.Param(ref)
	}
	m, n := len(sys.eqs), len(sys.refs)
	r = make([]float64, m)
	jac = mat.NewDense(max(m, 1), max(n, 1), nil)
	for i, eq := range sys.eqs {
		res, grad := eq.Eval(get)
		r[i] = res
		for k, ref := range eq.Refs {
			if j, ok := sys.index[ref]; ok {
				jac.Set(i, j, jac.At(i, j)+grad[k])
			}
		}
	}
	return r, jac
}

func norm(r []float64) float64 {
	var s float64
	for _, v := range r {
		s += v * v
	}
	return math.Sqrt(s)
}

// DegreesOfFreedom returns free-parameter count minus the rank of the
// constraint Jacobian at the current parameters. Redundant constraints
// do not double-count because rank, not equation count, is subtracted.
func DegreesOfFreedom(sk *sketch.Sketch) (int, error) {
	sys, err := newSystem(sk)
	if err != nil {
		return 0, err
	}
	n := len(sys.refs)
	if len(sys.eqs) == 0 {
		return n, nil
	}
	x := make([]float64, n)
	for i, ref := range sys.refs {
		x[i] = sk.Param(ref)
	}
	_, jac := sys.eval(x)
	var svd mat.SVD
	if !svd.Factorize(jac, mat.SVDThin) {
		return 0, &SolveError{Reason: Singular}
	}
	return n - rank(svd.Values(nil), DefaultRankTol), nil
}

func rank(singular []float64, tol float64) int {
	if len(singular) == 0 {
		return 0
	}
	thresh := tol * (1 + singular[0])
	n := 0
	for _, sv := range singular {
		if sv > thresh {
			n++
		}
	}
	return n
}

// Solve runs damped Newton-Raphson on the sketch's equations and, on
// convergence, writes the solved parameters back to the entities. On
// failure the entities keep their pre-solve values and a *SolveError is
// returned. Only the given sketch is touched.
func Solve(sk *sketch.Sketch, opts Options) (Result, error) {
	o := opts.withDefaults()
	sys, err := newSystem(sk)
	if err != nil {
		return Result{}, err
	}
	m, n := len(sys.eqs), len(sys.refs)

	// Equations outnumber free parameters: refuse before iterating.
	if m > n {
		return Result{}, &SolveError{Reason: OverConstrained}
	}
	if m == 0 {
		return Result{DOF: n}, nil
	}

	x := make([]float64, n)
	for i, ref := range sys.refs {
		x[i] = sk.Param(ref)
	}
	nudgeDegenerateRows(sys, x, o)

	r, jac := sys.eval(x)
	resNorm := norm(r)
	dof := 0

	for iter := 0; iter < o.MaxIterations; iter++ {
		var svd mat.SVD
		if !svd.Factorize(jac, mat.SVDThin) {
			return Result{}, &SolveError{Reason: Singular, Iterations: iter, Residual: resNorm}
		}
		singular := svd.Values(nil)
		rk := rank(singular, o.RankTol)
		dof = n - rk

		if resNorm < o.ConvergenceTol {
			sk.WriteSolution(sys.refs, x)
			return Result{Iterations: iter, Residual: resNorm, DOF: dof}, nil
		}
		if rk == 0 {
			return Result{}, &SolveError{Reason: Singular, Iterations: iter, Residual: resNorm}
		}

		step := minNormStep(&svd, singular, rk, r, n)

		// Damped update: full step first, halved on residual increase.
		lambda := 1.0
		trial := make([]float64, n)
		var trialRes []float64
		var trialJac *mat.Dense
		var trialNorm float64
		for bt := 0; ; bt++ {
			for i := range x {
				trial[i] = x[i] + lambda*step[i]
			}
			trialRes, trialJac = sys.eval(trial)
			trialNorm = norm(trialRes)
			if trialNorm <= resNorm || bt >= o.MaxBacktracks {
				break
			}
			lambda /= 2
		}
		copy(x, trial)
		r, jac, resNorm = trialRes, trialJac, trialNorm
	}

	if resNorm < o.ConvergenceTol {
		sk.WriteSolution(sys.refs, x)
		return Result{Iterations: o.MaxIterations, Residual: resNorm, DOF: dof}, nil
	}
	return Result{}, &SolveError{
		Reason:     NotConverged,
		Iterations: o.MaxIterations,
		Residual:   resNorm,
	}
}

// minNormStep computes the minimum-norm solution of J*step = -r from
// the thin SVD factors (pseudo-inverse semantics), so redundant but
// consistent constraint sets move deterministically.
func minNormStep(svd *mat.SVD, singular []float64, rk int, r []float64, n int) []float64 {
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	w := make([]float64, rk)
	for k := 0; k < rk; k++ {
		var s float64
		for i := range r {
			s += u.At(i, k) * -r[i]
		}
		w[k] = s / singular[k]
	}
	step := make([]float64, n)
	for j := 0; j < n; j++ {
		var s float64
		for k := 0; k < rk; k++ {
			s += v.At(j, k) * w[k]
		}
		step[j] = s
	}
	return step
}

// nudgeDegenerateRows applies the sign convention: a row whose gradient
// vanishes while its residual does not (for example a distance between
// coincident points) gets its first free parameter advanced along the
// positive axis, proportionally to the residual magnitude.
func nudgeDegenerateRows(sys *system, x []float64, o Options) {
	get := func(ref sketch.ParamRef) float64 {
		if i, ok := sys.index[ref]; ok {
			return x[i]
		}
		return sys.sk.Param(ref)
	}
	for _, eq := range sys.eqs {
		res, grad := eq.Eval(get)
		if math.Abs(res) < o.ConvergenceTol {
			continue
		}
		gnorm := 0.0
		for _, g := range grad {
			gnorm += g * g
		}
		if gnorm > o.RankTol {
			continue
		}
		for _, ref := range eq.Refs {
			if i, ok := sys.index[ref]; ok {
				x[i] += math.Sqrt(math.Abs(res))
				break
			}
		}
	}
}
