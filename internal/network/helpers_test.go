package network

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/annel0/sciencecraft/internal/protocol"
	"github.com/annel0/sciencecraft/internal/session"
	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// fakeWorld записывает все вызовы из сетевого слоя
type fakeWorld struct {
	mu        sync.Mutex
	seed      uint32
	unloaded  bool // ApplyBlockUpdate возвращает ErrChunkNotLoaded
	blocks    map[vec.Vec3]block.ID
	players   map[uint16]mgl32.Vec3
	spawned   []uint16
	removed   []uint16
	assigned  []protocol.IdentityAssign
	assignErr error
	local     mgl32.Vec3
}

func newFakeWorld(seed uint32) *fakeWorld {
	return &fakeWorld{
		seed:    seed,
		blocks:  make(map[vec.Vec3]block.ID),
		players: make(map[uint16]mgl32.Vec3),
	}
}

func (w *fakeWorld) Seed() uint32 { return w.seed }

func (w *fakeWorld) SpawnPlayer(id uint16) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.spawned = append(w.spawned, id)
	w.players[id] = mgl32.Vec3{}
}

func (w *fakeWorld) ApplyBlockUpdate(pos vec.Vec3, id block.ID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unloaded {
		return world.ErrChunkNotLoaded
	}
	w.blocks[pos] = id
	return nil
}

func (w *fakeWorld) ApplyPlayerUpdate(id uint16, pos mgl32.Vec3, yaw, pitch float32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.players[id] = pos
}

func (w *fakeWorld) RemovePlayer(id uint16) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removed = append(w.removed, id)
	delete(w.players, id)
}

func (w *fakeWorld) AssignIdentity(ctx context.Context, id uint16, seed uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assigned = append(w.assigned, protocol.IdentityAssign{ID: id, Seed: seed})
	return w.assignErr
}

func (w *fakeWorld) LocalPlayer() session.Player {
	w.mu.Lock()
	defer w.mu.Unlock()
	return session.Player{Position: w.local}
}

func (w *fakeWorld) block(pos vec.Vec3) (block.ID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.blocks[pos]
	return id, ok
}

func (w *fakeWorld) player(id uint16) (mgl32.Vec3, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	return p, ok
}

func (w *fakeWorld) removedIDs() []uint16 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]uint16(nil), w.removed...)
}

func readFrame(t *testing.T, conn net.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg, _, err := protocol.ReadMessage(conn)
	require.NoError(t, err)
	return msg
}

func expectSilence(t *testing.T, conn net.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var b [1]byte
	_, err := conn.Read(b[:])
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	require.True(t, ne.Timeout(), "ожидалось отсутствие кадров, получено %v", err)
}

func waitEvent(t *testing.T, events <-chan PeerEvent, kind PeerEventKind) PeerEvent {
	t.Helper()
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("нет события %s", kind)
		}
	}
}

// readEach читает по одному кадру из каждого соединения параллельно:
// сервер рассылает пирам в произвольном порядке, а запись в net.Pipe синхронна.
func readEach(t *testing.T, conns ...net.Conn) []protocol.Message {
	t.Helper()
	out := make([]protocol.Message, len(conns))
	errs := make([]error, len(conns))

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
				errs[i] = err
				return
			}
			out[i], _, errs[i] = protocol.ReadMessage(conn)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	return out
}
