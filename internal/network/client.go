package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/annel0/sciencecraft/internal/logging"
	"github.com/annel0/sciencecraft/internal/protocol"
	"github.com/annel0/sciencecraft/internal/session"
	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// ClientConfig - параметры подключения к серверу
type ClientConfig struct {
	Addr         string
	Transport    string
	WriteTimeout time.Duration
	KeepAlive    time.Duration // Повтор PLAYER_UPDATE при простое исходящего потока; 0 - только для kcp (DefaultKCPKeepAlive)
}

// Client - соединение с авторитетным узлом.
// Пока не получен IDENTITY_ASSIGN, клиент не знает свой ID и не отправляет позицию.
type Client struct {
	cfg    ClientConfig
	world  ClientWorld
	logger *logging.Logger

	mu         sync.RWMutex
	p          *peer
	id         uint16
	identified bool

	identity chan struct{} // закрывается после рукопожатия
	done     chan struct{} // закрывается при завершении цикла чтения
	err      error
	closing  atomic.Bool // Close вызван локально
}

// NewClient создаёт клиента; соединение открывается в Connect
func NewClient(cfg ClientConfig, w ClientWorld) *Client {
	return &Client{
		cfg:      cfg,
		world:    w,
		logger:   logging.GetNetworkLogger(),
		identity: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Connect подключается к серверу и запускает цикл чтения
func (c *Client) Connect(ctx context.Context) error {
	conn, err := Dial(ctx, c.cfg.Transport, c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.Addr, err)
	}
	c.Serve(ctx, conn)
	return nil
}

// Serve запускает цикл чтения поверх готового соединения.
// ctx ограничивает время жизни соединения.
func (c *Client) Serve(ctx context.Context, conn net.Conn) {
	traceID := uuid.New().String()
	p := &peer{
		traceID:      traceID,
		conn:         conn,
		role:         "client",
		logger:       c.logger.With("conn=" + traceID[:8]),
		writeTimeout: c.cfg.WriteTimeout,
	}

	c.mu.Lock()
	c.p = p
	c.mu.Unlock()

	p.logger.Info("🔌 Connected to %s", conn.RemoteAddr())

	go func() {
		select {
		case <-ctx.Done():
			p.close()
		case <-c.done:
		}
	}()
	go c.readLoop(ctx, p)

	if interval := keepAliveInterval(c.cfg.Transport, c.cfg.KeepAlive); interval > 0 {
		go c.keepAlive(ctx, p, interval)
	}
}

// keepAlive повторяет позицию локального игрока, если исходящий поток молчит
// дольше interval. Сервер kcp иначе отключит клиента по таймауту чтения.
func (c *Client) keepAlive(ctx context.Context, p *peer, interval time.Duration) {
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case now := <-ticker.C:
			if _, ok := c.ID(); !ok || p.idleFor(now) < interval {
				continue
			}
			local := c.world.LocalPlayer()
			if err := c.SendPlayerUpdate(local.Position, local.Yaw, local.Pitch); err != nil {
				p.logger.Debug("Keepalive failed: %v", err)
				return
			}
		}
	}
}

// ID возвращает назначенный идентификатор, если рукопожатие завершено
func (c *Client) ID() (uint16, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id, c.identified
}

// WaitIdentity ждёт завершения рукопожатия (включая регенерацию мира)
func (c *Client) WaitIdentity(ctx context.Context) (uint16, error) {
	select {
	case <-c.identity:
		id, _ := c.ID()
		return id, nil
	case <-c.done:
		if err := c.Err(); err != nil {
			return 0, err
		}
		return 0, ErrConnectionLost
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Done закрывается, когда соединение завершено
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err возвращает причину завершения соединения (nil при штатном закрытии)
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close закрывает соединение и ждёт завершения цикла чтения
func (c *Client) Close() error {
	c.mu.RLock()
	p := c.p
	c.mu.RUnlock()
	if p == nil {
		return nil
	}
	c.closing.Store(true)
	p.close()
	<-c.done
	return nil
}

// SendBlockUpdate отправляет локальное изменение вокселя серверу
func (c *Client) SendBlockUpdate(pos vec.Vec3, id block.ID) error {
	c.mu.RLock()
	p := c.p
	c.mu.RUnlock()
	if p == nil {
		return ErrNotConnected
	}
	return p.send(protocol.BlockUpdate{Pos: pos, Block: id})
}

// SendPlayerUpdate отправляет позицию локального игрока, подписанную назначенным ID
func (c *Client) SendPlayerUpdate(pos mgl32.Vec3, yaw, pitch float32) error {
	c.mu.RLock()
	p, id, ok := c.p, c.id, c.identified
	c.mu.RUnlock()
	if p == nil {
		return ErrNotConnected
	}
	if !ok {
		return ErrNoIdentity
	}
	return p.send(protocol.PlayerUpdate{
		ID:       id,
		Position: pos,
		Yaw:      yaw,
		Pitch:    pitch,
		Color:    session.ColorFor(id),
	})
}

func (c *Client) readLoop(ctx context.Context, p *peer) {
	err := c.receive(ctx, p)
	p.close()

	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	if err != nil {
		p.logger.Warn("Disconnected: %v", err)
	} else {
		p.logger.Info("Disconnected")
	}
	close(c.done)
}

func (c *Client) receive(ctx context.Context, p *peer) error {
	reader := bufio.NewReaderSize(p.conn, protocol.ReceiveBufferSize)

	for {
		msg, raw, err := protocol.ReadMessage(reader)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), ctx.Err() != nil, c.closing.Load():
				return nil
			case protocol.IsMalformed(err):
				handshakeViolations.WithLabelValues(p.role).Inc()
				p.logger.LogProtocolError(p.traceID, err, raw)
				return fmt.Errorf("%w: %v", ErrHandshakeViolation, err)
			default:
				return fmt.Errorf("%w: %v", ErrConnectionLost, err)
			}
		}
		messagesReceived.WithLabelValues(p.role, msg.Opcode().String()).Inc()
		p.logger.LogMessage(p.traceID, "IN", msg.Opcode(), raw)

		if err := c.handle(ctx, p, msg); err != nil {
			if errors.Is(err, ErrHandshakeViolation) {
				handshakeViolations.WithLabelValues(p.role).Inc()
				p.logger.LogProtocolError(p.traceID, err, raw)
			}
			return err
		}
	}
}

func (c *Client) handle(ctx context.Context, p *peer, msg protocol.Message) error {
	_, identified := c.ID()

	if m, ok := msg.(protocol.IdentityAssign); ok {
		if identified {
			return fmt.Errorf("%w: повторный IDENTITY_ASSIGN", ErrHandshakeViolation)
		}
		return c.assign(ctx, p, m)
	}
	if !identified {
		return fmt.Errorf("%w: %s до IDENTITY_ASSIGN", ErrHandshakeViolation, msg.Opcode())
	}

	switch m := msg.(type) {
	case protocol.BlockUpdate:
		if err := c.world.ApplyBlockUpdate(m.Pos, m.Block); err != nil && !errors.Is(err, world.ErrChunkNotLoaded) {
			p.logger.Warn("Block update %v rejected: %v", m.Pos, err)
		}

	case protocol.PlayerUpdate:
		if m.ID == p.id {
			return nil
		}
		c.world.ApplyPlayerUpdate(m.ID, m.Position, m.Yaw, m.Pitch)
	}
	return nil
}

// assign применяет рукопожатие: регенерирует мир по сиду сервера и только
// после этого открывает отправку позиции
func (c *Client) assign(ctx context.Context, p *peer, m protocol.IdentityAssign) error {
	p.logger.Info("🪪 Assigned id %d, seed %d", m.ID, m.Seed)

	if err := c.world.AssignIdentity(ctx, m.ID, m.Seed); err != nil {
		return fmt.Errorf("регенерация мира по сиду %d: %w", m.Seed, err)
	}

	p.id = m.ID
	c.mu.Lock()
	c.id = m.ID
	c.identified = true
	c.mu.Unlock()
	close(c.identity)
	return nil
}
