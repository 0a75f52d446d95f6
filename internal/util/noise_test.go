package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerlinHeightIsDeterministic(t *testing.T) {
	a := NewPerlinHeight(64)
	b := NewPerlinHeight(64)

	for x := -20; x < 20; x += 3 {
		for z := -20; z < 20; z += 5 {
			ha, err := a.Height(1234, x, z)
			require.NoError(t, err)
			hb, err := b.Height(1234, x, z)
			require.NoError(t, err)
			assert.Equal(t, ha, hb, "высота колонки (%d,%d) должна совпадать", x, z)
			assert.GreaterOrEqual(t, ha, 1)
			assert.LessOrEqual(t, ha, 64)
		}
	}
}

func TestPerlinHeightRejectsBadScale(t *testing.T) {
	p := NewPerlinHeight(64)
	p.Scale = 0
	_, err := p.Height(1, 0, 0)
	assert.Error(t, err)
}

func TestHeightFuncAdapter(t *testing.T) {
	boom := errors.New("boom")
	var src HeightSource = HeightFunc(func(seed int64, x, z int) (int, error) {
		if x < 0 {
			return 0, boom
		}
		return x + z, nil
	})

	h, err := src.Height(0, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, h)

	_, err = src.Height(0, -1, 0)
	assert.ErrorIs(t, err, boom)

	h, err = FlatHeight(10).Height(99, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, h)
}
