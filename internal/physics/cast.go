package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// ReachDistance - дальность луча взаимодействия игрока
const ReachDistance float32 = 4.0

// BlockReader - источник блоков для трассировки (хранилище чанков)
type BlockReader interface {
	GetBlock(pos vec.Vec3) block.ID
}

// Hit описывает первый непустой воксель на луче
type Hit struct {
	Pos      vec.Vec3 // Клетка попадания
	Block    block.ID // Тип блока в клетке
	Distance float32  // Расстояние от начала луча до входа в клетку
	Prev     vec.Vec3 // Последняя пустая клетка перед попаданием (для установки блока)
	Normal   vec.Vec3 // Нормаль грани входа; нулевая, если луч начался внутри блока
}

// Cast проходит луч по решетке и возвращает первый непустой воксель ближе limit
func Cast(world BlockReader, origin, dir mgl32.Vec3, limit float32) (Hit, bool) {
	dda := NewDDA3D(origin, dir, limit)

	prev := vec.FromFloat(origin)
	for dda.Next() {
		cell := dda.Cell()
		if id := world.GetBlock(cell); !id.IsAir() {
			return Hit{
				Pos:      cell,
				Block:    id,
				Distance: dda.Distance(),
				Prev:     prev,
				Normal:   dda.Normal(),
			}, true
		}
		prev = cell
	}
	return Hit{}, false
}
