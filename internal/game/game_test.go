package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/sciencecraft/internal/network"
	"github.com/annel0/sciencecraft/internal/util"
	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world"
	"github.com/annel0/sciencecraft/internal/world/block"
)

var (
	_ network.HostWorld   = (*Game)(nil)
	_ network.ClientWorld = (*Game)(nil)
	_ Replicator          = (*network.Server)(nil)
	_ Replicator          = (*network.Client)(nil)
)

type recorder struct {
	mu      sync.Mutex
	blocks  []vec.Vec3
	players []mgl32.Vec3
	err     error
}

func (r *recorder) SendBlockUpdate(pos vec.Vec3, id block.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, pos)
	return r.err
}

func (r *recorder) SendPlayerUpdate(pos mgl32.Vec3, yaw, pitch float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = append(r.players, pos)
	return r.err
}

// newFlatGame создаёт мир 2x2 колонки с плоской поверхностью на высоте 10
func newFlatGame(t *testing.T) *Game {
	t.Helper()
	g := New(Config{Seed: 1, Region: world.CenteredRegion(2, 2)}, world.NewGenerator(util.FlatHeight(10), 4, 2))
	require.NoError(t, g.Regenerate(context.Background(), 1))
	return g
}

func TestRegenerate(t *testing.T) {
	g := newFlatGame(t)

	assert.Equal(t, 2*2*4, g.Store().Len())
	assert.Equal(t, block.GrassID, g.Store().GetBlock(vec.Vec3{X: -1, Y: 9, Z: 0}))
	assert.Equal(t, block.AirID, g.Store().GetBlock(vec.Vec3{X: -1, Y: 10, Z: 0}))
	assert.Equal(t, block.BedrockID, g.Store().GetBlock(vec.Vec3{X: 3, Y: 0, Z: 3}))
}

func TestRegenerateFailureKeepsWorld(t *testing.T) {
	failing := world.NewGenerator(util.HeightFunc(func(int64, int, int) (int, error) {
		return 0, errors.New("нет шума")
	}), 4, 2)
	g := New(Config{Seed: 5, Region: world.CenteredRegion(2, 2)}, failing)

	err := g.Regenerate(context.Background(), 9)
	assert.ErrorIs(t, err, world.ErrGenerationFailure)
	assert.Equal(t, uint32(5), g.Seed(), "сид не меняется при ошибке")
	assert.Equal(t, 0, g.Store().Len())
}

func TestAssignIdentityRegeneratesWithServerSeed(t *testing.T) {
	g := New(Config{Seed: 1, Region: world.CenteredRegion(2, 2)}, world.NewGenerator(util.NewPerlinHeight(64), 16, 2))
	other := New(Config{Seed: 77, Region: world.CenteredRegion(2, 2)}, world.NewGenerator(util.NewPerlinHeight(64), 16, 2))
	require.NoError(t, other.Regenerate(context.Background(), 77))

	_, ok := g.SelfID()
	assert.False(t, ok)

	require.NoError(t, g.AssignIdentity(context.Background(), 12, 77))
	id, ok := g.SelfID()
	assert.True(t, ok)
	assert.Equal(t, uint16(12), id)
	assert.Equal(t, uint32(77), g.Seed())
	assert.Equal(t, other.Store().Digest(), g.Store().Digest(), "одинаковый сид даёт одинаковый мир")
}

func TestSetBlockForwardsToReplicator(t *testing.T) {
	g := newFlatGame(t)
	r := &recorder{}
	g.SetReplicator(r)

	pos := vec.Vec3{X: 0, Y: 12, Z: 0}
	require.NoError(t, g.SetBlock(pos, block.StoneID))
	assert.Equal(t, block.StoneID, g.Store().GetBlock(pos))
	assert.Equal(t, []vec.Vec3{pos}, r.blocks)

	err := g.SetBlock(vec.Vec3{X: 100}, block.StoneID)
	assert.ErrorIs(t, err, world.ErrChunkNotLoaded)
	assert.Len(t, r.blocks, 1, "неудачное изменение не пересылается")

	r.err = network.ErrConnectionLost
	err = g.SetBlock(pos, block.DirtID)
	assert.ErrorIs(t, err, network.ErrConnectionLost)
	assert.Equal(t, block.DirtID, g.Store().GetBlock(pos))
}

func TestApplyBlockUpdateLastWriteWins(t *testing.T) {
	g := newFlatGame(t)
	pos := vec.Vec3{X: 1, Y: 11, Z: 1}

	require.NoError(t, g.ApplyBlockUpdate(pos, block.StoneID))
	require.NoError(t, g.ApplyBlockUpdate(pos, block.DirtID))
	assert.Equal(t, block.DirtID, g.Store().GetBlock(pos))

	assert.ErrorIs(t, g.ApplyBlockUpdate(vec.Vec3{Y: 500}, block.StoneID), world.ErrChunkNotLoaded)
}

func TestBreakAndPlace(t *testing.T) {
	g := newFlatGame(t)
	r := &recorder{}
	g.SetReplicator(r)

	eye := mgl32.Vec3{0.5, 12.5, 0.5}
	down := mgl32.Vec3{0, -1, 0}

	hit, ok := g.Target(eye, down)
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 0, Y: 9, Z: 0}, hit.Pos)
	assert.Equal(t, block.GrassID, hit.Block)

	_, ok, err := g.Break(eye, down)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, block.AirID, g.Store().GetBlock(vec.Vec3{Y: 9}))

	placed, ok, err := g.Place(eye, down, block.StoneID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{Y: 9}, placed, "блок ставится в пустую клетку перед землёй")
	assert.Equal(t, block.StoneID, g.Store().GetBlock(placed))
	assert.Len(t, r.blocks, 2)

	_, ok = g.Target(mgl32.Vec3{0.5, 30, 0.5}, down)
	assert.False(t, ok, "цель дальше досягаемости")
}

func TestPlaceInsideBlock(t *testing.T) {
	g := newFlatGame(t)
	_, ok, err := g.Place(mgl32.Vec3{0.5, 5.5, 0.5}, mgl32.Vec3{0, -1, 0}, block.StoneID)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoPlaceTarget)
}

func TestMoveLocalPlayerThreshold(t *testing.T) {
	g := newFlatGame(t)
	r := &recorder{}
	g.SetReplicator(r)

	sent, err := g.MoveLocalPlayer(mgl32.Vec3{1, 11, 1}, 0, 0)
	require.NoError(t, err)
	assert.False(t, sent, "до получения ID позиция не отправляется")
	assert.Equal(t, mgl32.Vec3{1, 11, 1}, g.LocalPlayer().Position)

	g.SetSelfID(3)

	sent, _ = g.MoveLocalPlayer(mgl32.Vec3{1, 11, 1}, 0, 0)
	assert.True(t, sent, "первое обновление после рукопожатия отправляется всегда")

	sent, _ = g.MoveLocalPlayer(mgl32.Vec3{1.05, 11, 1}, 0.05, 0)
	assert.False(t, sent)

	sent, _ = g.MoveLocalPlayer(mgl32.Vec3{1.2, 11, 1}, 0.05, 0)
	assert.True(t, sent)

	sent, _ = g.MoveLocalPlayer(mgl32.Vec3{1.2, 11, 1}, 0.05, 0.2)
	assert.True(t, sent, "поворот тоже считается изменением")

	assert.Len(t, r.players, 3)
	assert.Equal(t, uint16(3), g.LocalPlayer().ID)
}

func TestRosterLifecycleThroughGame(t *testing.T) {
	g := newFlatGame(t)

	g.ApplyPlayerUpdate(40, mgl32.Vec3{1, 2, 3}, 0, 0)
	g.SpawnPlayer(41)
	require.Len(t, g.Players(), 2)

	p, ok := g.Roster().Get(41)
	require.True(t, ok)
	assert.Equal(t, SpawnPosition, p.Position)

	g.RemovePlayer(40)
	g.RemovePlayer(41)
	assert.Empty(t, g.Players())
}
