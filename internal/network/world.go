package network

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/sciencecraft/internal/session"
	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// World - локальное состояние, которое изменяют входящие сообщения.
// Методы вызываются из горутин соединений параллельно.
type World interface {
	ApplyBlockUpdate(pos vec.Vec3, id block.ID) error
	ApplyPlayerUpdate(id uint16, pos mgl32.Vec3, yaw, pitch float32)
	RemovePlayer(id uint16)
}

// HostWorld - состояние авторитетного узла
type HostWorld interface {
	World
	Seed() uint32
	SpawnPlayer(id uint16)
}

// ClientWorld - состояние клиента. AssignIdentity блокирует до завершения
// полной регенерации мира по полученному сиду. LocalPlayer отдаёт позицию,
// которую клиент повторяет в keepalive.
type ClientWorld interface {
	World
	AssignIdentity(ctx context.Context, id uint16, seed uint32) error
	LocalPlayer() session.Player
}
