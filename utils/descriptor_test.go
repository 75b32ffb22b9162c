package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor(t *testing.T) {
	{ // Nested kernel option
		d, err := ParseDescriptor("spline:rate=8,kernel=[bspline:d=3],debug")
		require.NoError(t, err)
		assert.Equal(t, "spline", d.Name)
		assert.Equal(t, "bspline:d=3", d.String("kernel", ""))
		rate, err := d.Int("rate", 0)
		assert.NoError(t, err)
		assert.Equal(t, 8, rate)
		dbg, err := d.Bool("debug", false)
		assert.NoError(t, err)
		assert.True(t, dbg)
		assert.Empty(t, d.Unknown("rate", "kernel", "debug"))
		assert.Equal(t, []string{"kernel", "rate"}, d.Unknown("debug"))
	}
	{ // Bare name with defaults
		d, err := ParseDescriptor(" rigid ")
		require.NoError(t, err)
		assert.Equal(t, "rigid", d.Name)
		f, err := d.Float("weight", 2.5)
		assert.NoError(t, err)
		assert.Equal(t, 2.5, f)
		assert.False(t, d.Has("weight"))
	}
	{ // Deep nesting keeps inner commas
		d, err := ParseDescriptor("image:interp=[bspline:d=3,bc=[mirror]],weight=0.5")
		require.NoError(t, err)
		assert.Equal(t, "bspline:d=3,bc=[mirror]", d.String("interp", ""))
		f, _ := d.Float("weight", 0)
		assert.Equal(t, 0.5, f)
	}
	{ // Errors
		_, err := ParseDescriptor("")
		assert.Error(t, err)
		_, err = ParseDescriptor("a:k=[b")
		assert.Error(t, err)
		_, err = ParseDescriptor("a:k=1,k=2")
		assert.Error(t, err)
		d, _ := ParseDescriptor("a:k=x")
		_, err = d.Int("k", 0)
		assert.Error(t, err)
	}
}
