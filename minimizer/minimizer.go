package minimizer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"

	"github.com/notargets/goreg/logging"
	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

// Problem is the objective handed to a Minimizer
type Problem interface {
	Size() int
	F(x []float64) float64
	// DF overwrites g with the gradient at x
	DF(x, g []float64)
	FDF(x, g []float64) float64
}

// Failer is implemented by problems whose evaluation can fail, the
// minimization stops at the first error
type Failer interface {
	Err() error
}

//go:generate stringer -type=Algorithm

type Algorithm uint8

const (
	Simplex Algorithm = iota
	ConjugateFR
	ConjugatePR
	BFGS
	LBFGS
	GradientDescent
)

var AlgorithmNameMap = map[string]Algorithm{
	"simplex": Simplex,
	"cg-fr":   ConjugateFR,
	"cg-pr":   ConjugatePR,
	"bfgs":    BFGS,
	"bfgs2":   LBFGS,
	"lbfgs":   LBFGS,
	"gd":      GradientDescent,
}

func (a Algorithm) String() string {
	var names []string
	for name, aa := range AlgorithmNameMap {
		if aa == a {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("Algorithm(%d)", uint8(a))
	}
	sort.Strings(names)
	return names[len(names)-1]
}

var methods = map[Algorithm]func() optimize.Method{
	Simplex: func() optimize.Method { return &optimize.NelderMead{} },
	ConjugateFR: func() optimize.Method {
		return &optimize.CG{Variant: &optimize.FletcherReeves{}}
	},
	ConjugatePR: func() optimize.Method {
		return &optimize.CG{Variant: &optimize.PolakRibierePolyak{}}
	},
	BFGS:            func() optimize.Method { return &optimize.BFGS{} },
	LBFGS:           func() optimize.Method { return &optimize.LBFGS{} },
	GradientDescent: func() optimize.Method { return &optimize.GradientDescent{} },
}

type Minimizer struct {
	Algorithm Algorithm
	// MaxIterations caps the major iterations, zero is unlimited
	MaxIterations int
	// GradientThreshold stops gradient methods once the gradient norm drops below it
	GradientThreshold float64
	// FunctionTolerance stops when the value stalls for StallIterations major iterations
	FunctionTolerance float64
	StallIterations   int
	// MaxEvaluations caps the function evaluations, zero is unlimited
	MaxEvaluations int
}

func New(algorithm Algorithm) *Minimizer {
	return &Minimizer{
		Algorithm:         algorithm,
		MaxIterations:     200,
		GradientThreshold: 1.e-6,
		FunctionTolerance: 1.e-10,
		StallIterations:   20,
	}
}

// ParseMinimizer understands gonum:opt=<algorithm>,iter=200,eps=1e-6,ftol=1e-10,stall=20,fevals=0
func ParseMinimizer(descr string) (m *Minimizer, err error) {
	var d utils.Descriptor
	if d, err = utils.ParseDescriptor(descr); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	fail := func(err error) (*Minimizer, error) {
		return nil, fmt.Errorf("%w: minimizer %s: %v", types.ErrConfiguration, descr, err)
	}
	if d.Name != "gonum" {
		return fail(fmt.Errorf("unknown minimizer %q", d.Name))
	}
	if unknown := d.Unknown("opt", "iter", "eps", "ftol", "stall", "fevals"); len(unknown) != 0 {
		return fail(fmt.Errorf("unknown options %v", unknown))
	}
	alg, ok := AlgorithmNameMap[d.String("opt", "lbfgs")]
	if !ok {
		return fail(fmt.Errorf("unknown algorithm %q, have %v", d.String("opt", ""), AlgorithmNames()))
	}
	m = New(alg)
	if m.MaxIterations, err = d.Int("iter", m.MaxIterations); err != nil {
		return fail(err)
	}
	if m.GradientThreshold, err = d.Float("eps", m.GradientThreshold); err != nil {
		return fail(err)
	}
	if m.FunctionTolerance, err = d.Float("ftol", m.FunctionTolerance); err != nil {
		return fail(err)
	}
	if m.StallIterations, err = d.Int("stall", m.StallIterations); err != nil {
		return fail(err)
	}
	if m.MaxEvaluations, err = d.Int("fevals", m.MaxEvaluations); err != nil {
		return fail(err)
	}
	if m.MaxIterations < 0 || m.MaxEvaluations < 0 || m.StallIterations < 0 {
		return fail(fmt.Errorf("negative limits"))
	}
	return
}

func AlgorithmNames() (names []string) {
	for name := range AlgorithmNameMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func (m *Minimizer) String() string {
	return fmt.Sprintf("gonum:opt=%s,iter=%d,eps=%g,ftol=%g,stall=%d,fevals=%d",
		m.Algorithm, m.MaxIterations, m.GradientThreshold, m.FunctionTolerance,
		m.StallIterations, m.MaxEvaluations)
}

func (m *Minimizer) method() optimize.Method {
	newMethod, ok := methods[m.Algorithm]
	if !ok {
		panic(fmt.Sprintf("no method for algorithm %s", m.Algorithm))
	}
	return newMethod()
}

// NeedsGradient is true when the algorithm can not run on function values alone
func (m *Minimizer) NeedsGradient() bool {
	_, err := m.method().Uses(optimize.Available{})
	return err != nil
}

// Status reports how a Run ended
type Status struct {
	optimize.Status
	F           float64
	Iterations  int
	Evaluations int
}

func (s Status) String() string {
	return fmt.Sprintf("%s after %d iterations, %d evaluations, f=%g",
		s.Status, s.Iterations, s.Evaluations, s.F)
}

// Run minimizes the problem starting from x and leaves the best location found in x.
// Hitting a limit or a failing line search is not an error, cancellation and
// evaluation failures are.
func (m *Minimizer) Run(ctx context.Context, p Problem, x []float64) (st Status, err error) {
	if len(x) != p.Size() {
		err = fmt.Errorf("%w: start vector of length %d for a problem of size %d",
			types.ErrInvalidArgument, len(x), p.Size())
		return
	}
	if err = ctx.Err(); err != nil {
		return
	}
	var (
		method  = m.method()
		problem = optimize.Problem{
			Func: p.F,
			Status: func() (optimize.Status, error) {
				if err := ctx.Err(); err != nil {
					return optimize.Failure, err
				}
				if f, ok := p.(Failer); ok && f.Err() != nil {
					return optimize.Failure, f.Err()
				}
				return optimize.NotTerminated, nil
			},
		}
		settings = &optimize.Settings{
			GradientThreshold: m.GradientThreshold,
			MajorIterations:   m.MaxIterations,
			FuncEvaluations:   m.MaxEvaluations,
			Converger: &optimize.FunctionConverge{
				Absolute:   m.FunctionTolerance,
				Relative:   m.FunctionTolerance,
				Iterations: m.StallIterations,
			},
			Recorder: logRecorder{},
		}
		f0     = p.F(x)
		result *optimize.Result
	)
	if !m.NeedsGradient() {
		settings.GradientThreshold = 0
	} else {
		problem.Grad = func(grad, x []float64) { p.DF(x, grad) }
	}
	if f, ok := p.(Failer); ok && f.Err() != nil {
		err = f.Err()
		return
	}
	result, err = optimize.Minimize(problem, x, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
		return
	}
	if f, ok := p.(Failer); ok && f.Err() != nil {
		err = f.Err()
		return
	}
	if err != nil {
		logging.Debugf("%s: %v, keeping the best location\n", m.Algorithm, err)
		err = nil
	}
	st = Status{Status: optimize.Failure, F: f0}
	if result == nil {
		return
	}
	st.Status = result.Status
	st.Iterations = result.Stats.MajorIterations
	st.Evaluations = result.Stats.FuncEvaluations
	if !math.IsNaN(result.F) && result.F <= f0 && len(result.X) == len(x) {
		copy(x, result.X)
		st.F = result.F
	}
	return
}

type logRecorder struct{}

func (logRecorder) Init() error { return nil }

func (logRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op&optimize.MajorIteration != 0 {
		logging.Debugf("iteration %4d: f=%.8g evaluations %d\n", stats.MajorIterations, loc.F, stats.FuncEvaluations)
	}
	return nil
}
