package world

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/sciencecraft/internal/util"
	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// Константы генерации по умолчанию
const (
	DefaultColumnHeight = 16 // Чанков в колонке по вертикали
	BedrockLevels       = 2  // Уровни h < 2 - бедрок
)

// Region описывает прямоугольник колонок чанков (X x Z)
type Region struct {
	MinX, MinZ    int
	Width, Depth int
}

// CenteredRegion возвращает регион width x depth с центром в начале координат
func CenteredRegion(width, depth int) Region {
	return Region{MinX: -width / 2, MinZ: -depth / 2, Width: width, Depth: depth}
}

// Columns возвращает координаты колонок региона (X - внешний цикл)
func (r Region) Columns() []vec.Vec2 {
	cols := make([]vec.Vec2, 0, r.Width*r.Depth)
	for i := 0; i < r.Width; i++ {
		for j := 0; j < r.Depth; j++ {
			cols = append(cols, vec.Vec2{X: r.MinX + i, Y: r.MinZ + j})
		}
	}
	return cols
}

// Heightmap - высоты поверхности для каждой вертикали (i, j) внутри колонки
type Heightmap [ChunkWidth][ChunkDepth]int

// Generator генерирует ландшафт: одна колонка - ColumnHeight чанков.
// Колонки независимы и не разделяют изменяемого состояния.
type Generator struct {
	heights      util.HeightSource
	columnHeight int
	workers      int
}

// NewGenerator создаёт генератор. workers <= 0 означает GOMAXPROCS.
func NewGenerator(heights util.HeightSource, columnHeight, workers int) *Generator {
	if columnHeight <= 0 {
		columnHeight = DefaultColumnHeight
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Generator{
		heights:      heights,
		columnHeight: columnHeight,
		workers:      workers,
	}
}

// ColumnHeight возвращает число чанков в колонке
func (g *Generator) ColumnHeight() int {
	return g.columnHeight
}

// MaterialAt возвращает материал уровня h в вертикали с поверхностью surface.
// Полосы не смешиваются: уровень surface-1 всегда трава, даже если он попадает в бедрок.
func MaterialAt(h, surface int) block.ID {
	if h < 0 || h >= surface {
		return block.AirID
	}
	if h == surface-1 {
		return block.GrassID
	}

	switch {
	case h < BedrockLevels:
		return block.BedrockID
	case h < surface/2:
		return block.StoneID
	default:
		// h < surface-1 здесь гарантировано
		return block.DirtID
	}
}

// Heightmap запрашивает у оракула высоты для всех вертикалей колонки
func (g *Generator) Heightmap(seed uint32, column vec.Vec2) (Heightmap, error) {
	var hm Heightmap
	for i := 0; i < ChunkWidth; i++ {
		for j := 0; j < ChunkDepth; j++ {
			wx := column.X*ChunkWidth + i
			wz := column.Y*ChunkDepth + j
			h, err := g.heights.Height(int64(seed), wx, wz)
			if err != nil {
				return hm, fmt.Errorf("%w: колонка %v, вертикаль (%d, %d): %v", ErrGenerationFailure, column, wx, wz, err)
			}
			hm[i][j] = h
		}
	}
	return hm, nil
}

// FillChunk строит чанк по карте высот в приватном буфере
func FillChunk(coords vec.Vec3, hm *Heightmap) *Chunk {
	c := NewChunk(coords)
	base := coords.Y * ChunkHeight

	for i := 0; i < ChunkWidth; i++ {
		for j := 0; j < ChunkDepth; j++ {
			surface := hm[i][j]
			for k := 0; k < ChunkHeight; k++ {
				id := MaterialAt(base+k, surface)
				if id == block.AirID {
					continue
				}
				// координата всегда в пределах чанка
				_ = c.SetBlock(vec.Vec3{X: i, Y: k, Z: j}, id)
			}
		}
	}
	return c
}

// GenerateColumn строит все чанки колонки (снизу вверх)
func (g *Generator) GenerateColumn(seed uint32, column vec.Vec2) ([]*Chunk, error) {
	hm, err := g.Heightmap(seed, column)
	if err != nil {
		return nil, err
	}

	chunks := make([]*Chunk, 0, g.columnHeight)
	for y := 0; y < g.columnHeight; y++ {
		chunks = append(chunks, FillChunk(vec.Vec3{X: column.X, Y: y, Z: column.Y}, &hm))
	}
	return chunks, nil
}

// GenerateRegion параллельно строит все колонки региона и ждёт завершения каждой.
// При первой ошибке остальные задачи отменяются, а частичный результат не возвращается.
func (g *Generator) GenerateRegion(ctx context.Context, seed uint32, region Region) ([]*Chunk, error) {
	ctx, span := otel.Tracer("world").Start(ctx, "GenerateRegion")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("world.seed", int64(seed)),
		attribute.Int("world.columns", region.Width*region.Depth),
	)

	start := time.Now()
	columns := region.Columns()
	results := make([][]*Chunk, len(columns))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, col := range columns {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunks, err := g.GenerateColumn(seed, col)
			if err != nil {
				return err
			}
			results[i] = chunks
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		generationFailures.Inc()
		span.RecordError(err)
		return nil, err
	}

	out := make([]*Chunk, 0, len(columns)*g.columnHeight)
	for _, chunks := range results {
		out = append(out, chunks...)
	}
	regenerationDuration.Observe(time.Since(start).Seconds())
	return out, nil
}

// Populate генерирует регион и атомарно заменяет им содержимое хранилища.
// При ошибке хранилище не изменяется.
func (g *Generator) Populate(ctx context.Context, store *Store, seed uint32, region Region) error {
	chunks, err := g.GenerateRegion(ctx, seed, region)
	if err != nil {
		return err
	}
	store.Replace(chunks)
	return nil
}
