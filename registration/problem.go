package registration

import (
	"fmt"
	"math"

	"github.com/notargets/goreg/cost"
	"github.com/notargets/goreg/transform2D"
	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

// problem exposes the cost of a transformation as a function of its parameters
type problem struct {
	costs       *cost.Aggregator
	regularizer *cost.DivCurlCost
	t           transform2D.Transformation
	evaluations int
	gradients   int
	err         error
}

func newProblem(costs *cost.Aggregator, regularizer *cost.DivCurlCost, t transform2D.Transformation) *problem {
	return &problem{costs: costs, regularizer: regularizer, t: t}
}

func (p *problem) Size() int  { return p.t.DegreesOfFreedom() }
func (p *problem) Err() error { return p.err }

func (p *problem) resetCounters() {
	p.evaluations, p.gradients = 0, 0
}

func (p *problem) setParameters(x []float64) bool {
	if p.err != nil {
		return false
	}
	if utils.IsNan(x) {
		p.err = fmt.Errorf("%w: NaN in the %s parameters", types.ErrInvalidArgument, p.t.Variant())
		return false
	}
	if p.err = p.t.SetParameters(x); p.err != nil {
		return false
	}
	return true
}

// F is infinite after a failure, so that no line search accepts the step
func (p *problem) F(x []float64) (f float64) {
	var r float64
	if !p.setParameters(x) {
		return math.Inf(1)
	}
	p.evaluations++
	if f, p.err = p.costs.Value(p.t); p.err != nil {
		return math.Inf(1)
	}
	if p.regularizer != nil {
		if r, p.err = p.regularizer.Value(p.t); p.err != nil {
			return math.Inf(1)
		}
		f += r
	}
	return p.checkValue(f)
}

func (p *problem) checkValue(f float64) float64 {
	if utils.IsNan(f) {
		p.err = fmt.Errorf("%w: cost evaluated to NaN", types.ErrInvalidArgument)
		return math.Inf(1)
	}
	return f
}

func (p *problem) FDF(x, g []float64) (f float64) {
	var r float64
	clear(g)
	if !p.setParameters(x) {
		return math.Inf(1)
	}
	p.evaluations++
	p.gradients++
	if f, p.err = p.costs.Evaluate(p.t, g); p.err != nil {
		return math.Inf(1)
	}
	if p.regularizer != nil {
		if r, p.err = p.regularizer.Evaluate(p.t, g); p.err != nil {
			return math.Inf(1)
		}
		f += r
	}
	return p.checkValue(f)
}

func (p *problem) DF(x, g []float64) {
	p.FDF(x, g)
}
