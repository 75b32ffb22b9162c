package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	getHisto := func(K, Np int) (histo map[int]int) {
		pm := NewPartitionMap(Np, K)
		histo = make(map[int]int)
		for np := 0; np < pm.ParallelDegree; np++ {
			histo[pm.bucketDimension(np)]++
		}
		return
	}
	getTotal := func(histo map[int]int) (total int) {
		for key, count := range histo {
			total += key * count
		}
		return
	}
	{ // Bucket sizes for image rows
		assert.Equal(t, map[int]int{0: 6, 1: 2}, getHisto(2, 8))
		assert.Equal(t, map[int]int{8: 8}, getHisto(64, 8))
		assert.Equal(t, map[int]int{12: 1, 13: 7}, getHisto(103, 8))
		assert.Equal(t, 103, getTotal(getHisto(103, 8)))
	}
	{ // Buckets are contiguous and cover every row once
		for n := 1; n < 600; n++ {
			pm := NewPartitionMap(7, n)
			next := 0
			for bn := 0; bn < pm.ParallelDegree; bn++ {
				kMin, kMax := pm.GetBucketRange(bn)
				assert.Equal(t, next, kMin)
				next = kMax
			}
			assert.Equal(t, n, next)
			var keys []float64
			for key := range getHisto(n, 7) {
				keys = append(keys, float64(key))
			}
			if len(keys) == 2 {
				assert.Equal(t, 1., math.Abs(keys[0]-keys[1])) // Maximum imbalance of 1
			}
		}
	}
	{
		assert.Equal(t, 1, DefaultParallelDegree(0))
		assert.Equal(t, 1, DefaultParallelDegree(1))
		assert.Equal(t, 1, NewPartitionMap(0, 5).ParallelDegree)
	}
}
