package build

import (
	"testing"

	"github.com/scadform/scadform/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactCacheKeyDistinguishesOverrides(t *testing.T) {
	c := NewArtifactCache(8)

	base := c.Key("a = 1;\n", nil)
	same := c.Key("a = 1;\n", nil)
	edited := c.Key("a = 1;\n", []types.Override{{Name: "a", Value: 2.0, Type: types.ParamNumber}})
	otherSource := c.Key("a = 2;\n", nil)

	assert.Equal(t, base, same)
	assert.NotEqual(t, base, edited)
	assert.NotEqual(t, base, otherSource)
}

func TestArtifactCacheReturnsCopies(t *testing.T) {
	c := NewArtifactCache(8)
	c.Set("k", []byte{1, 2, 3})

	first, ok := c.Get("k")
	require.True(t, ok)
	first[0] = 99

	second, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, second)
}

func TestArtifactCacheEvictsBeyondCapacity(t *testing.T) {
	c := NewArtifactCache(2)
	c.Set("a", []byte("a"))
	c.Set("b", []byte("b"))
	c.Set("c", []byte("c"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}
