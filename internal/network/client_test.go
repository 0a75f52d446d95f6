package network

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/sciencecraft/internal/protocol"
	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// startClient запускает клиента поверх net.Pipe; второй конец играет роль сервера
func startClient(t *testing.T, w *fakeWorld) (*Client, net.Conn) {
	t.Helper()
	clientSide, serverSide := net.Pipe()

	c := NewClient(ClientConfig{Addr: "pipe"}, w)
	c.Serve(context.Background(), clientSide)
	t.Cleanup(func() {
		_ = serverSide.Close()
		_ = c.Close()
	})
	return c, serverSide
}

func waitDone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("клиент не завершил соединение")
	}
}

func TestClientHandshake(t *testing.T) {
	w := newFakeWorld(0)
	c, srv := startClient(t, w)

	_, ok := c.ID()
	assert.False(t, ok)
	assert.ErrorIs(t, c.SendPlayerUpdate(mgl32.Vec3{}, 0, 0), ErrNoIdentity, "позиция не отправляется до рукопожатия")

	require.NoError(t, protocol.WriteMessage(srv, protocol.IdentityAssign{ID: 17, Seed: 555}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, err := c.WaitIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(17), id)
	assert.Equal(t, []protocol.IdentityAssign{{ID: 17, Seed: 555}}, w.assigned)

	go func() { _ = c.SendPlayerUpdate(mgl32.Vec3{1, 2, 3}, 0.1, 0.2) }()
	got, ok := readFrame(t, srv).(protocol.PlayerUpdate)
	require.True(t, ok)
	assert.Equal(t, uint16(17), got.ID)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, got.Position)
}

func TestClientAppliesUpdates(t *testing.T) {
	w := newFakeWorld(0)
	c, srv := startClient(t, w)

	require.NoError(t, protocol.WriteMessage(srv, protocol.IdentityAssign{ID: 4, Seed: 1}))
	require.NoError(t, protocol.WriteMessage(srv, protocol.PlayerUpdate{ID: 4, Position: mgl32.Vec3{9, 9, 9}}))
	require.NoError(t, protocol.WriteMessage(srv, protocol.PlayerUpdate{ID: 8, Position: mgl32.Vec3{1, 1, 1}}))
	require.NoError(t, protocol.WriteMessage(srv, protocol.BlockUpdate{Pos: vec.Vec3{X: -2, Y: 5, Z: 3}, Block: block.GrassID}))

	require.Eventually(t, func() bool {
		_, ok := w.block(vec.Vec3{X: -2, Y: 5, Z: 3})
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	pos, ok := w.player(8)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, pos)

	_, ok = w.player(4)
	assert.False(t, ok, "собственные обновления игнорируются")

	select {
	case <-c.Done():
		t.Fatal("соединение не должно закрываться")
	default:
	}
}

func TestClientRequiresIdentityFirst(t *testing.T) {
	w := newFakeWorld(0)
	c, srv := startClient(t, w)

	require.NoError(t, protocol.WriteMessage(srv, protocol.BlockUpdate{Pos: vec.Vec3{}, Block: block.StoneID}))

	waitDone(t, c)
	assert.ErrorIs(t, c.Err(), ErrHandshakeViolation)
	_, ok := w.block(vec.Vec3{})
	assert.False(t, ok, "изменение до рукопожатия не применяется")

	_, err := c.WaitIdentity(context.Background())
	assert.ErrorIs(t, err, ErrHandshakeViolation)
}

func TestClientRejectsSecondIdentity(t *testing.T) {
	c, srv := startClient(t, newFakeWorld(0))

	require.NoError(t, protocol.WriteMessage(srv, protocol.IdentityAssign{ID: 1, Seed: 1}))
	require.NoError(t, protocol.WriteMessage(srv, protocol.IdentityAssign{ID: 2, Seed: 2}))

	waitDone(t, c)
	assert.ErrorIs(t, c.Err(), ErrHandshakeViolation)
	id, _ := c.ID()
	assert.Equal(t, uint16(1), id)
}

func TestClientRegenerationFailureDropsConnection(t *testing.T) {
	w := newFakeWorld(0)
	w.assignErr = errors.New("оракул недоступен")
	c, srv := startClient(t, w)

	require.NoError(t, protocol.WriteMessage(srv, protocol.IdentityAssign{ID: 1, Seed: 1}))

	waitDone(t, c)
	assert.ErrorIs(t, c.Err(), w.assignErr)
	_, ok := c.ID()
	assert.False(t, ok)
}

func TestClientServerClose(t *testing.T) {
	c, srv := startClient(t, newFakeWorld(0))
	require.NoError(t, srv.Close())

	waitDone(t, c)
	assert.NoError(t, c.Err())
	assert.Error(t, c.SendBlockUpdate(vec.Vec3{}, block.StoneID))
}

func TestClientLocalCloseIsClean(t *testing.T) {
	c, srv := startClient(t, newFakeWorld(0))
	go func() { _, _ = io.Copy(io.Discard, srv) }()

	require.NoError(t, c.Close())
	waitDone(t, c)
	assert.NoError(t, c.Err(), "Close не должен выглядеть как потеря соединения")
}

func TestClientKeepAliveRepeatsLocalPlayer(t *testing.T) {
	w := newFakeWorld(0)
	w.local = mgl32.Vec3{4, 5, 6}

	clientSide, serverSide := net.Pipe()
	c := NewClient(ClientConfig{Addr: "pipe", KeepAlive: 20 * time.Millisecond}, w)
	c.Serve(context.Background(), clientSide)
	t.Cleanup(func() {
		_ = serverSide.Close()
		_ = c.Close()
	})

	require.NoError(t, serverSide.SetWriteDeadline(time.Now().Add(time.Second)))
	require.NoError(t, protocol.WriteMessage(serverSide, protocol.IdentityAssign{ID: 9, Seed: 1}))

	msg := readFrame(t, serverSide)
	upd, ok := msg.(protocol.PlayerUpdate)
	require.True(t, ok, "ожидался PLAYER_UPDATE, получено %T", msg)
	assert.Equal(t, uint16(9), upd.ID)
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, upd.Position)
}

func TestClientNoKeepAliveBeforeIdentity(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	c := NewClient(ClientConfig{Addr: "pipe", KeepAlive: 20 * time.Millisecond}, newFakeWorld(0))
	c.Serve(context.Background(), clientSide)
	t.Cleanup(func() {
		_ = serverSide.Close()
		_ = c.Close()
	})

	expectSilence(t, serverSide)
}

func TestClientNotConnected(t *testing.T) {
	c := NewClient(ClientConfig{}, newFakeWorld(0))
	assert.ErrorIs(t, c.SendBlockUpdate(vec.Vec3{}, block.StoneID), ErrNotConnected)
	assert.ErrorIs(t, c.SendPlayerUpdate(mgl32.Vec3{}, 0, 0), ErrNotConnected)
	assert.NoError(t, c.Close())
}
