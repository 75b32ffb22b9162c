package registration

import (
	"context"
	"fmt"

	"github.com/notargets/goreg/InputParameters"
	"github.com/notargets/goreg/cost"
	"github.com/notargets/goreg/image2D"
	"github.com/notargets/goreg/logging"
	"github.com/notargets/goreg/minimizer"
	"github.com/notargets/goreg/transform2D"
	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

// NonrigidRegister runs the coarse to fine registration of a source image onto a reference
type NonrigidRegister struct {
	costs      *cost.Aggregator
	minimizer  *minimizer.Minimizer
	refinement *minimizer.Minimizer
	creator    transform2D.Creator
	// DivCurl is added to the objective when the transformation provides the energy
	DivCurl *cost.DivCurlCost
	// Levels is the number of resolution levels, zero derives it from StartSize
	Levels    int
	StartSize int
	// levels with a downscaled size below MinSize are skipped
	MinSize   int
	FinalPass bool
	Normalize bool
}

func NewNonrigidRegister(costs *cost.Aggregator, m *minimizer.Minimizer, creator transform2D.Creator) (nr *NonrigidRegister, err error) {
	if costs == nil || costs.Len() == 0 {
		return nil, fmt.Errorf("%w: registration without cost terms", types.ErrConfiguration)
	}
	if m.NeedsGradient() && !costs.Has(cost.Gradient) {
		return nil, fmt.Errorf("%w: minimizer %s needs a gradient that the costs %s don't provide",
			types.ErrConfiguration, m, costs)
	}
	nr = &NonrigidRegister{
		costs:     costs,
		minimizer: m,
		creator:   creator,
		StartSize: 16,
		MinSize:   4,
		Normalize: true,
	}
	return
}

// SetRefinementMinimizer adds a second minimization after the first one at every level
func (nr *NonrigidRegister) SetRefinementMinimizer(m *minimizer.Minimizer) error {
	if m != nil && m.NeedsGradient() && !nr.costs.Has(cost.Gradient) {
		return fmt.Errorf("%w: refinement minimizer %s needs a gradient that the costs %s don't provide",
			types.ErrConfiguration, m, nr.costs)
	}
	nr.refinement = m
	return nil
}

// NewFromParameters assembles the registration described by a parameter file
func NewFromParameters(rp *InputParameters.RegistrationParameters) (nr *NonrigidRegister, err error) {
	var (
		costs   *cost.Aggregator
		m, rm   *minimizer.Minimizer
		creator transform2D.Creator
	)
	if creator, err = transform2D.ParseCreator(rp.Transform); err != nil {
		return
	}
	if costs, err = cost.ParseAggregator(rp.Costs...); err != nil {
		return
	}
	if m, err = minimizer.ParseMinimizer(rp.Minimizer); err != nil {
		return
	}
	if nr, err = NewNonrigidRegister(costs, m, creator); err != nil {
		return
	}
	if len(rp.RefinementMinimizer) != 0 {
		if rm, err = minimizer.ParseMinimizer(rp.RefinementMinimizer); err != nil {
			return nil, err
		}
		if err = nr.SetRefinementMinimizer(rm); err != nil {
			return nil, err
		}
	}
	if len(rp.DivCurl) != 0 {
		var c cost.Cost
		if c, err = cost.ParseCost(rp.DivCurl); err != nil {
			return nil, err
		}
		dc, ok := c.(*cost.DivCurlCost)
		if !ok {
			return nil, fmt.Errorf("%w: regularizer %q is not a divcurl term", types.ErrConfiguration, rp.DivCurl)
		}
		nr.DivCurl = dc
	}
	if rp.Levels < 0 || rp.StartSize < 0 || rp.MinSize < 0 {
		return nil, fmt.Errorf("%w: negative level configuration", types.ErrConfiguration)
	}
	nr.Levels = rp.Levels
	if rp.StartSize > 0 {
		nr.StartSize = rp.StartSize
	}
	if rp.MinSize > 0 {
		nr.MinSize = rp.MinSize
	}
	nr.FinalPass = rp.FinalPass
	nr.Normalize = rp.NormalizeImages()
	return
}

// LevelReport describes the optimization at one resolution
type LevelReport struct {
	Block      int
	Size       types.Size
	Parameters int
	Skipped    bool
	Refined    bool
	Start      float64
	Final      float64
	Status     minimizer.Status
	// Evaluations counts cost evaluations, Gradients those with a gradient
	Evaluations, Gradients int
}

type Result struct {
	Transform transform2D.Transformation
	Levels    []LevelReport
}

// levelCount is floor(log2(min size / StartSize)), at least one
func (nr *NonrigidRegister) levelCount(size types.Size) int {
	if nr.Levels > 0 {
		return nr.Levels
	}
	if nr.StartSize <= 0 {
		return 1
	}
	return max(1, utils.Log2Floor(size.Min()/nr.StartSize))
}

// Run registers src onto ref, the returned transformation maps reference grid
// points into the source. Non convergence is not an error, the best parameters are kept.
func (nr *NonrigidRegister) Run(ctx context.Context, src, ref *image2D.Image) (res *Result, err error) {
	if src.Size != ref.Size {
		return nil, fmt.Errorf("%w: source image %s and reference image %s differ in size",
			types.ErrInvalidArgument, src.Size, ref.Size)
	}
	var (
		size   = src.Size
		t      transform2D.Transformation
		levels = nr.levelCount(size)
	)
	res = &Result{}
	if nr.Normalize {
		var sigma float64
		if src, ref, _, sigma, err = image2D.NormalizePair(src, ref); err != nil {
			return nil, err
		}
		if sigma == 0 {
			logging.Infof("constant images, nothing to register\n")
			res.Transform, err = nr.creator.Create(size)
			return
		}
	}
	for shift := levels - 1; shift >= 0; shift-- {
		var (
			block    = 1 << shift
			lsrc     = src
			lref     = ref
			lsize    = size
			report   LevelReport
			upscaled transform2D.Transformation
		)
		if block > 1 {
			var ds *image2D.Downscaler
			if ds, err = image2D.NewDownscaler(block); err != nil {
				return nil, err
			}
			lsize = ds.TargetSize(size)
			if lsize.Min() >= nr.MinSize {
				if lsrc, err = ds.Filter(src); err != nil {
					return nil, err
				}
				if lref, err = ds.Filter(ref); err != nil {
					return nil, err
				}
			}
		}
		report.Block, report.Size = block, lsize
		if lsize.Min() < nr.MinSize {
			logging.Infof("level %d: size %s below %d, skipped\n", shift, lsize, nr.MinSize)
			report.Skipped = true
			res.Levels = append(res.Levels, report)
			continue
		}
		if t == nil {
			logging.Infof("level %d: create %s transformation of size %s\n", shift, nr.creator, lsize)
			if t, err = nr.creator.Create(lsize); err != nil {
				return nil, err
			}
		} else {
			logging.Infof("level %d: upscale transformation to %s\n", shift, lsize)
			if upscaled, err = t.Upscale(lsize); err != nil {
				return nil, err
			}
			t = upscaled
		}
		if err = nr.prepareCosts(lsrc, lref); err != nil {
			return nil, err
		}
		if err = nr.optimizeLevel(ctx, t, &report); err != nil {
			return nil, err
		}
		res.Levels = append(res.Levels, report)
	}
	if t == nil {
		logging.Infof("no level large enough to register, returning the identity\n")
		res.Transform, err = nr.creator.Create(size)
		return
	}
	if nr.FinalPass {
		report := LevelReport{Block: 1, Size: size}
		if err = nr.optimizeLevel(ctx, t, &report); err != nil {
			return nil, err
		}
		res.Levels = append(res.Levels, report)
	}
	res.Transform = t
	return
}

// prepareCosts hands a new image pair to the costs, sizes are checked here once per level
func (nr *NonrigidRegister) prepareCosts(src, ref *image2D.Image) (err error) {
	if err = nr.costs.SetImages(src, ref); err != nil {
		return
	}
	if err = nr.costs.Reinit(); err != nil {
		return
	}
	return nr.costs.SetSize(src.Size)
}

func (nr *NonrigidRegister) optimizeLevel(ctx context.Context, t transform2D.Transformation, report *LevelReport) (err error) {
	var (
		p        = newProblem(nr.costs, nr.DivCurl, t)
		x        = t.Parameters()
		minimize = func() (err error) {
			logging.Infof("registration at %s with %d parameters\n", t.Size(), len(x))
			if report.Status, err = nr.minimizer.Run(ctx, p, x); err != nil {
				return
			}
			if nr.refinement != nil {
				if report.Status, err = nr.refinement.Run(ctx, p, x); err != nil {
					return
				}
			}
			if err = t.SetParameters(x); err != nil {
				return
			}
			logging.Debugf("%s\n", report.Status)
			return
		}
	)
	report.Start = p.F(x)
	if err = p.Err(); err != nil {
		return
	}
	if err = minimize(); err != nil {
		return
	}
	if r, ok := t.(transform2D.Refinable); ok {
		if report.Refined, err = r.Refine(); err != nil {
			return
		}
		if report.Refined {
			p.resetCounters()
			x = t.Parameters()
			if err = minimize(); err != nil {
				return
			}
		}
	}
	report.Parameters = t.DegreesOfFreedom()
	report.Evaluations, report.Gradients = p.evaluations, p.gradients
	report.Final = p.F(x)
	logging.Infof("level %s: cost %.6g -> %.6g\n", t.Size(), report.Start, report.Final)
	logging.Debugf("%s\n", utils.GetMemUsage())
	return p.Err()
}
