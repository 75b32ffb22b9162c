package splinekernel

import "math"

// Cache remembers the weights and (boundary folded) indices of the last
// coordinate evaluated along one axis. Each goroutine needs its own cache.
type Cache struct {
	X          float64
	Order      int
	StartIndex int
	IndexLimit int // largest start index that needs no folding
	Weights    []float64
	Index      []int
	IsFlat     bool // Index is StartIndex, StartIndex+1, ... and no weight was altered
	NeverFlat  bool
	BC         BoundaryCondition
}

func (k *Kernel) NewCache(bc BoundaryCondition, neverFlat bool) (c *Cache) {
	c = &Cache{
		X:          math.NaN(),
		IndexLimit: bc.Width() - k.SupportSize,
		Weights:    make([]float64, k.SupportSize),
		Index:      make([]int, k.SupportSize),
		NeverFlat:  neverFlat,
		BC:         bc,
	}
	return
}

// Reset forces the next evaluation to recompute
func (c *Cache) Reset() {
	c.X = math.NaN()
	c.IndexLimit = c.BC.Width() - len(c.Weights)
}

func (k *Kernel) Evaluate(x float64, c *Cache) {
	k.EvaluateDerivative(x, 0, c)
}

// EvaluateDerivative refreshes the cache for coordinate x unless x and order are unchanged
func (k *Kernel) EvaluateDerivative(x float64, order int, c *Cache) {
	if x == c.X && order == c.Order {
		return
	}
	c.X, c.Order = x, order
	c.StartIndex = k.DerivativeWeights(x, order, c.Weights)
	for i := range c.Index {
		c.Index[i] = c.StartIndex + i
	}
	inside := c.StartIndex >= 0 && c.StartIndex <= c.IndexLimit
	c.IsFlat = inside && !c.NeverFlat
	if !inside {
		c.BC.Apply(c.Index, c.Weights)
	}
}
