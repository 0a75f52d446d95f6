package session

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Player - последнее известное состояние игрока
type Player struct {
	ID       uint16
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	Color    mgl32.Vec3
	LastSeen time.Time
}

// ColorFor выводит цвет игрока из битов идентификатора.
// Одинаковый ID даёт одинаковый цвет на всех узлах, поэтому цвет не передаётся по сети.
func ColorFor(id uint16) mgl32.Vec3 {
	return mgl32.Vec3{
		float32((id>>10)&63) / 64,
		float32((id>>5)&31) / 32,
		float32(id&31) / 32,
	}
}

// Rotation возвращает ориентацию как вектор (yaw, pitch)
func (p Player) Rotation() mgl32.Vec2 {
	return mgl32.Vec2{p.Yaw, p.Pitch}
}
