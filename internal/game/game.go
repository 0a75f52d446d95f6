package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/sciencecraft/internal/logging"
	"github.com/annel0/sciencecraft/internal/physics"
	"github.com/annel0/sciencecraft/internal/session"
	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// Пороги отправки позиции локального игрока
const (
	MoveThreshold   float32 = 0.1
	RotateThreshold float32 = 0.1
)

// SpawnPosition - начальная позиция нового игрока (над поверхностью в центре мира)
var SpawnPosition = mgl32.Vec3{0.5, 70, 0.5}

// Replicator пересылает локальные изменения пирам (сервер или клиент)
type Replicator interface {
	SendBlockUpdate(pos vec.Vec3, id block.ID) error
	SendPlayerUpdate(pos mgl32.Vec3, yaw, pitch float32) error
}

// Config - параметры мира
type Config struct {
	Seed   uint32
	Region world.Region
}

// Game - единственный живой контекст мира в процессе. Передаётся по ссылке
// сетевому слою, API и циклу взаимодействия вместо глобальных переменных.
type Game struct {
	store     *world.Store
	roster    *session.Roster
	generator *world.Generator
	region    world.Region
	logger    *logging.Logger

	mu         sync.RWMutex
	seed       uint32
	selfID     uint16
	identified bool
	replicator Replicator

	// Состояние локального игрока
	local    session.Player
	lastSent *session.Player
}

// New создаёт контекст мира; мир пуст до вызова Regenerate
func New(cfg Config, generator *world.Generator) *Game {
	return &Game{
		store:     world.NewStore(),
		roster:    session.NewRoster(),
		generator: generator,
		region:    cfg.Region,
		logger:    logging.GetGameLogger(),
		seed:      cfg.Seed,
		local:     session.Player{Position: SpawnPosition},
	}
}

// Store возвращает хранилище чанков
func (g *Game) Store() *world.Store { return g.store }

// Roster возвращает реестр игроков
func (g *Game) Roster() *session.Roster { return g.roster }

// Region возвращает регион генерации
func (g *Game) Region() world.Region { return g.region }

// Seed возвращает текущий сид мира
func (g *Game) Seed() uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seed
}

// SelfID возвращает ID локального игрока, если он известен
func (g *Game) SelfID() (uint16, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.selfID, g.identified
}

// SetSelfID задаёт ID локального игрока (хост знает его сразу)
func (g *Game) SetSelfID(id uint16) {
	g.mu.Lock()
	g.selfID = id
	g.identified = true
	g.local.ID = id
	g.local.Color = session.ColorFor(id)
	g.mu.Unlock()
}

// SetReplicator подключает сетевой слой
func (g *Game) SetReplicator(r Replicator) {
	g.mu.Lock()
	g.replicator = r
	g.mu.Unlock()
}

func (g *Game) currentReplicator() Replicator {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.replicator
}

// Regenerate строит мир по сиду и атомарно заменяет содержимое хранилища.
// Блокирует до завершения всех задач генерации; при ошибке мир не меняется.
func (g *Game) Regenerate(ctx context.Context, seed uint32) error {
	ctx, span := otel.Tracer("game").Start(ctx, "Regenerate")
	defer span.End()
	span.SetAttributes(attribute.Int64("world.seed", int64(seed)))

	g.logger.Info("🌍 Generating world: seed %d, region %dx%d", seed, g.region.Width, g.region.Depth)
	if err := g.generator.Populate(ctx, g.store, seed, g.region); err != nil {
		span.RecordError(err)
		g.logger.Error("World generation aborted: %v", err)
		return err
	}

	g.mu.Lock()
	g.seed = seed
	g.mu.Unlock()

	g.logger.Info("✅ World ready: %d chunks, digest %016x", g.store.Len(), g.store.Digest())
	return nil
}

// AssignIdentity применяет рукопожатие сервера: ID и сид, затем полная регенерация.
// Локальный выбор сида отбрасывается.
func (g *Game) AssignIdentity(ctx context.Context, id uint16, seed uint32) error {
	if err := g.Regenerate(ctx, seed); err != nil {
		return err
	}
	g.SetSelfID(id)
	return nil
}

// SpawnPlayer регистрирует нового пира в реестре
func (g *Game) SpawnPlayer(id uint16) {
	g.roster.Spawn(id, SpawnPosition)
}

// RemovePlayer удаляет пира из реестра
func (g *Game) RemovePlayer(id uint16) {
	g.roster.Remove(id)
}

// ApplyPlayerUpdate обновляет состояние удалённого игрока
func (g *Game) ApplyPlayerUpdate(id uint16, pos mgl32.Vec3, yaw, pitch float32) {
	g.roster.Upsert(id, pos, yaw, pitch)
}

// ApplyBlockUpdate применяет входящее изменение вокселя (последняя запись побеждает)
func (g *Game) ApplyBlockUpdate(pos vec.Vec3, id block.ID) error {
	return g.store.SetBlock(pos, id)
}

// SetBlock изменяет воксель локально и пересылает изменение пирам
func (g *Game) SetBlock(pos vec.Vec3, id block.ID) error {
	if err := g.store.SetBlock(pos, id); err != nil {
		return err
	}
	if r := g.currentReplicator(); r != nil {
		if err := r.SendBlockUpdate(pos, id); err != nil {
			return fmt.Errorf("блок %v изменён локально, но не отправлен: %w", pos, err)
		}
	}
	return nil
}

// Target возвращает блок, на который смотрит игрок из eye в направлении dir
func (g *Game) Target(eye, dir mgl32.Vec3) (physics.Hit, bool) {
	return physics.Cast(g.store, eye, dir, physics.ReachDistance)
}

// Break убирает блок под прицелом
func (g *Game) Break(eye, dir mgl32.Vec3) (physics.Hit, bool, error) {
	hit, ok := g.Target(eye, dir)
	if !ok {
		return hit, false, nil
	}
	return hit, true, g.SetBlock(hit.Pos, block.AirID)
}

// ErrNoPlaceTarget - перед целью нет пустой клетки (луч начался внутри блока)
var ErrNoPlaceTarget = errors.New("нет места для установки блока")

// Place ставит блок id в пустую клетку перед блоком под прицелом
func (g *Game) Place(eye, dir mgl32.Vec3, id block.ID) (vec.Vec3, bool, error) {
	hit, ok := g.Target(eye, dir)
	if !ok {
		return vec.Vec3{}, false, nil
	}
	if hit.Prev == hit.Pos || !g.store.GetBlock(hit.Prev).IsAir() {
		return hit.Prev, false, ErrNoPlaceTarget
	}
	return hit.Prev, true, g.SetBlock(hit.Prev, id)
}

// MoveLocalPlayer обновляет позицию локального игрока и отправляет её пирам,
// если ID уже известен и игрок сдвинулся или повернулся больше порога.
// Возвращает true, если обновление было отправлено.
func (g *Game) MoveLocalPlayer(pos mgl32.Vec3, yaw, pitch float32) (bool, error) {
	g.mu.Lock()
	g.local.Position = pos
	g.local.Yaw = yaw
	g.local.Pitch = pitch

	if !g.identified || g.replicator == nil {
		g.mu.Unlock()
		return false, nil
	}
	if g.lastSent != nil && !changedEnough(*g.lastSent, g.local) {
		g.mu.Unlock()
		return false, nil
	}
	sent := g.local
	g.lastSent = &sent
	r := g.replicator
	g.mu.Unlock()

	if err := r.SendPlayerUpdate(pos, yaw, pitch); err != nil {
		return false, err
	}
	return true, nil
}

// LocalPlayer возвращает состояние локального игрока
func (g *Game) LocalPlayer() session.Player {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.local
}

// Players возвращает снимок удалённых игроков для отрисовки
func (g *Game) Players() []session.Player {
	return g.roster.All()
}

func changedEnough(prev, cur session.Player) bool {
	if cur.Position.Sub(prev.Position).Len() >= MoveThreshold {
		return true
	}
	rot := cur.Rotation().Sub(prev.Rotation())
	return rot.Len() >= RotateThreshold
}
