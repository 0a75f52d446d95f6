package protocol

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// Message - кадр протокола фиксированной длины
type Message interface {
	Opcode() Opcode
}

// IdentityAssign назначает клиенту идентификатор и сид мира
type IdentityAssign struct {
	ID   uint16
	Seed uint32
}

// BlockUpdate - изменение одного вокселя в мировых координатах
type BlockUpdate struct {
	Pos   vec.Vec3
	Block block.ID
}

// PlayerUpdate - позиция и ориентация игрока.
// Color передаётся для совместимости формата, получатель выводит цвет из ID.
type PlayerUpdate struct {
	ID       uint16
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	Color    mgl32.Vec3
}

func (IdentityAssign) Opcode() Opcode { return OpIdentityAssign }
func (BlockUpdate) Opcode() Opcode    { return OpBlockUpdate }
func (PlayerUpdate) Opcode() Opcode   { return OpPlayerUpdate }
