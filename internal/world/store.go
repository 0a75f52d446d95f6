package world

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// Store - общее хранилище чанков мира, защищённое одной блокировкой.
//
// Ключ присутствует в карте только для полностью построенного чанка:
// генерация идёт в приватный буфер, а публикация выполняется под записью.
// Все изменения решетки чанка также выполняются под записью, поэтому
// читатель никогда не видит чанк в частично изменённом состоянии.
type Store struct {
	mu     sync.RWMutex
	chunks map[vec.Vec3]*Chunk
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	return &Store{
		chunks: make(map[vec.Vec3]*Chunk),
	}
}

// resolve переводит мировую позицию в координату чанка и локальное смещение
func resolve(pos vec.Vec3) (vec.Vec3, vec.Vec3) {
	return pos.ToChunkCoords(ChunkDims), pos.LocalInChunk(ChunkDims)
}

// GetBlock возвращает блок по мировой позиции; отсутствующий чанк - воздух
func (s *Store) GetBlock(pos vec.Vec3) block.ID {
	coords, local := resolve(pos)

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[coords]
	if !ok {
		return block.AirID
	}
	return c.GetBlock(local)
}

// SetBlock изменяет блок по мировой позиции.
// Возвращает ErrChunkNotLoaded, если чанк-владелец отсутствует.
func (s *Store) SetBlock(pos vec.Vec3, id block.ID) error {
	coords, local := resolve(pos)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[coords]
	if !ok {
		return fmt.Errorf("%w: %v (позиция %v)", ErrChunkNotLoaded, coords, pos)
	}
	return c.SetBlock(local, id)
}

// InsertChunk публикует полностью построенный чанк, перезаписывая существующий.
// После вызова хранилище владеет чанком, вызывающий не должен его изменять.
func (s *Store) InsertChunk(coords vec.Vec3, c *Chunk) {
	c.Coords = coords

	s.mu.Lock()
	s.chunks[coords] = c
	n := len(s.chunks)
	s.mu.Unlock()

	chunksLoaded.Set(float64(n))
}

// Replace атомарно очищает хранилище и публикует новый набор чанков
func (s *Store) Replace(chunks []*Chunk) {
	next := make(map[vec.Vec3]*Chunk, len(chunks))
	for _, c := range chunks {
		next[c.Coords] = c
	}

	s.mu.Lock()
	s.chunks = next
	s.mu.Unlock()

	chunksLoaded.Set(float64(len(next)))
}

// Clear удаляет все чанки (используется перед полной регенерацией)
func (s *Store) Clear() {
	s.mu.Lock()
	s.chunks = make(map[vec.Vec3]*Chunk)
	s.mu.Unlock()

	chunksLoaded.Set(0)
}

// Has проверяет, загружен ли чанк
func (s *Store) Has(coords vec.Vec3) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[coords]
	return ok
}

// Chunk возвращает снимок чанка; изменения снимка не затрагивают хранилище
func (s *Store) Chunk(coords vec.Vec3) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[coords]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Len возвращает число загруженных чанков
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Coords возвращает отсортированный список координат загруженных чанков
func (s *Store) Coords() []vec.Vec3 {
	s.mu.RLock()
	keys := make([]vec.Vec3, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sortCoords(keys)
	return keys
}

// Digest возвращает отпечаток всего мира в детерминированном порядке чанков
func (s *Store) Digest() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]vec.Vec3, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sortCoords(keys)

	h := xxhash.New()
	var buf [8]byte
	for _, k := range keys {
		binary.BigEndian.PutUint64(buf[:], s.chunks[k].Digest())
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func sortCoords(keys []vec.Vec3) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		if keys[i].Y != keys[j].Y {
			return keys[i].Y < keys[j].Y
		}
		return keys[i].Z < keys[j].Z
	})
}
