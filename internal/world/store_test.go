package world

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world/block"
)

func TestStoreMissingChunk(t *testing.T) {
	s := NewStore()

	assert.Equal(t, block.AirID, s.GetBlock(vec.Vec3{X: 100, Y: 5, Z: -7}))

	err := s.SetBlock(vec.Vec3{X: 100, Y: 5, Z: -7}, block.StoneID)
	assert.ErrorIs(t, err, ErrChunkNotLoaded)
	assert.Equal(t, 0, s.Len(), "запись не должна создавать чанк")
}

func TestStoreResolvesNegativeCoordinates(t *testing.T) {
	s := NewStore()
	s.InsertChunk(vec.Vec3{X: -1, Y: 0, Z: -1}, NewChunk(vec.Vec3{}))

	pos := vec.Vec3{X: -1, Y: 3, Z: -4}
	require.NoError(t, s.SetBlock(pos, block.DirtID))
	assert.Equal(t, block.DirtID, s.GetBlock(pos))

	c, ok := s.Chunk(vec.Vec3{X: -1, Y: 0, Z: -1})
	require.True(t, ok)
	assert.Equal(t, block.DirtID, c.GetBlock(vec.Vec3{X: 3, Y: 3, Z: 0}))

	// соседний чанк с неотрицательными координатами не загружен
	assert.ErrorIs(t, s.SetBlock(vec.Vec3{X: 0, Y: 0, Z: 0}, block.DirtID), ErrChunkNotLoaded)
}

func TestStoreInsertOverwrites(t *testing.T) {
	s := NewStore()
	coords := vec.Vec3{X: 2, Y: 3, Z: 4}

	first := NewChunk(vec.Vec3{})
	require.NoError(t, first.SetBlock(vec.Vec3{}, block.StoneID))
	s.InsertChunk(coords, first)
	s.InsertChunk(coords, NewChunk(vec.Vec3{}))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, block.AirID, s.GetBlock(coords.Mul(ChunkDims)))
	assert.True(t, s.Has(coords))
}

func TestStoreChunkReturnsSnapshot(t *testing.T) {
	s := NewStore()
	s.InsertChunk(vec.Vec3{}, NewChunk(vec.Vec3{}))

	snap, ok := s.Chunk(vec.Vec3{})
	require.True(t, ok)
	require.NoError(t, snap.SetBlock(vec.Vec3{}, block.StoneID))

	assert.Equal(t, block.AirID, s.GetBlock(vec.Vec3{}))

	_, ok = s.Chunk(vec.Vec3{X: 9})
	assert.False(t, ok)
}

func TestStoreReplaceAndClear(t *testing.T) {
	s := NewStore()
	s.InsertChunk(vec.Vec3{X: 7}, NewChunk(vec.Vec3{}))

	s.Replace([]*Chunk{NewChunk(vec.Vec3{X: 1}), NewChunk(vec.Vec3{X: 2})})
	assert.Equal(t, []vec.Vec3{{X: 1}, {X: 2}}, s.Coords())
	assert.False(t, s.Has(vec.Vec3{X: 7}))

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Coords())
}

func TestStoreDigestIgnoresInsertOrder(t *testing.T) {
	build := func(order []int) *Store {
		s := NewStore()
		for _, x := range order {
			c := NewChunk(vec.Vec3{})
			_ = c.SetBlock(vec.Vec3{X: x % ChunkWidth}, block.StoneID)
			s.InsertChunk(vec.Vec3{X: x}, c)
		}
		return s
	}

	a := build([]int{0, 1, 2, 3})
	b := build([]int{3, 1, 0, 2})
	assert.Equal(t, a.Digest(), b.Digest())

	require.NoError(t, b.SetBlock(vec.Vec3{X: 1, Y: 1}, block.DirtID))
	assert.NotEqual(t, a.Digest(), b.Digest())
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	for x := 0; x < 4; x++ {
		s.InsertChunk(vec.Vec3{X: x}, NewChunk(vec.Vec3{}))
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				pos := vec.Vec3{X: (w*3 + i) % (4 * ChunkWidth), Y: i % ChunkHeight, Z: w % ChunkDepth}
				if i%2 == 0 {
					_ = s.SetBlock(pos, block.ID(1+i%3))
				} else {
					_ = s.GetBlock(pos)
				}
			}
		}(w)
	}
	wg.Wait()

	for _, coords := range s.Coords() {
		c, ok := s.Chunk(coords)
		require.True(t, ok)
		seen := map[block.ID]bool{}
		for _, id := range c.Data() {
			if id != block.AirID {
				seen[id] = true
			}
		}
		assert.Len(t, c.Textures(), len(seen), "набор текстур чанка %v", coords)
	}
}
