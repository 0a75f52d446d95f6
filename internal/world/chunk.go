package world

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// Размеры чанка в вокселях
const (
	ChunkWidth  = 4
	ChunkHeight = 4
	ChunkDepth  = 4

	ChunkVolume = ChunkWidth * ChunkHeight * ChunkDepth
)

// ChunkDims - размеры чанка в виде вектора для пересчёта координат
var ChunkDims = vec.Vec3{X: ChunkWidth, Y: ChunkHeight, Z: ChunkDepth}

// Chunk представляет участок мира 4x4x4 вокселя.
//
// Chunk не содержит собственной блокировки: пока он строится генератором,
// им владеет одна горутина, после публикации в Store все обращения идут
// под блокировкой хранилища.
type Chunk struct {
	Coords vec.Vec3 // Координаты чанка в решетке чанков

	blocks   [ChunkVolume]block.ID
	textures map[block.ID]int // число вокселей каждого непустого типа
}

// NewChunk создаёт пустой (заполненный воздухом) чанк
func NewChunk(coords vec.Vec3) *Chunk {
	return &Chunk{
		Coords:   coords,
		textures: make(map[block.ID]int),
	}
}

// InBounds проверяет, что локальная координата лежит в [0, dim) по всем осям
func InBounds(local vec.Vec3) bool {
	return local.X >= 0 && local.X < ChunkWidth &&
		local.Y >= 0 && local.Y < ChunkHeight &&
		local.Z >= 0 && local.Z < ChunkDepth
}

func index(local vec.Vec3) int {
	return local.X*ChunkDepth*ChunkHeight + local.Y*ChunkDepth + local.Z
}

// GetBlock возвращает ID блока по локальным координатам; вне чанка - воздух
func (c *Chunk) GetBlock(local vec.Vec3) block.ID {
	if !InBounds(local) {
		return block.AirID
	}
	return c.blocks[index(local)]
}

// SetBlock устанавливает блок по локальным координатам и поддерживает набор текстур
func (c *Chunk) SetBlock(local vec.Vec3, id block.ID) error {
	if !InBounds(local) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, local)
	}

	i := index(local)
	old := c.blocks[i]
	if old == id {
		return nil
	}
	c.blocks[i] = id

	if old != block.AirID {
		c.textures[old]--
		if c.textures[old] <= 0 {
			delete(c.textures, old)
		}
	}
	if id != block.AirID {
		c.textures[id]++
	}
	return nil
}

// Textures возвращает отсортированный набор непустых типов, присутствующих в чанке
func (c *Chunk) Textures() []block.ID {
	ids := make([]block.ID, 0, len(c.textures))
	for id := range c.textures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasTexture сообщает, есть ли в чанке хотя бы один воксель типа id
func (c *Chunk) HasTexture(id block.ID) bool {
	return c.textures[id] > 0
}

// IsEmpty возвращает true, если чанк состоит только из воздуха
func (c *Chunk) IsEmpty() bool {
	return len(c.textures) == 0
}

// Data возвращает копию решетки в порядке x*D*H + y*D + z (формат рендера)
func (c *Chunk) Data() [ChunkVolume]block.ID {
	return c.blocks
}

// Clone создаёт независимую копию чанка
func (c *Chunk) Clone() *Chunk {
	cp := &Chunk{
		Coords:   c.Coords,
		blocks:   c.blocks,
		textures: make(map[block.ID]int, len(c.textures)),
	}
	for id, n := range c.textures {
		cp.textures[id] = n
	}
	return cp
}

// Digest возвращает отпечаток координат и содержимого чанка.
// Одинаковый сид на разных узлах должен давать одинаковый отпечаток.
func (c *Chunk) Digest() uint64 {
	var buf [12 + ChunkVolume*2]byte
	binary.BigEndian.PutUint32(buf[0:], uint32(int32(c.Coords.X)))
	binary.BigEndian.PutUint32(buf[4:], uint32(int32(c.Coords.Y)))
	binary.BigEndian.PutUint32(buf[8:], uint32(int32(c.Coords.Z)))
	for i, id := range c.blocks {
		binary.BigEndian.PutUint16(buf[12+i*2:], uint16(id))
	}
	return xxhash.Sum64(buf[:])
}
