package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/annel0/sciencecraft/internal/logging"
	"github.com/annel0/sciencecraft/internal/protocol"
	"github.com/annel0/sciencecraft/internal/session"
	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// ServerConfig - параметры сервера репликации
type ServerConfig struct {
	Addr         string        // Адрес для bind, например ":25565"
	Transport    string        // tcp или kcp
	Identity     string        // sequential или checksum
	WriteTimeout time.Duration // 0 - без таймаута
	ReadTimeout  time.Duration // Простой входящего потока до отключения; 0 - только для kcp (DefaultKCPReadTimeout)
	RateLimit    float64       // Входящих кадров в секунду на соединение; 0 - без ограничения
	RateBurst    int
}

// Server - авторитетный узел. Каждое соединение обслуживается своей горутиной;
// входящие изменения применяются к миру и рассылаются всем остальным пирам.
type Server struct {
	cfg    ServerConfig
	world  HostWorld
	alloc  session.Allocator
	hostID uint16
	logger *logging.Logger

	listener net.Listener

	mu    sync.RWMutex
	peers map[*peer]struct{}

	events chan PeerEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer создаёт сервер. ID хоста выводится из адреса bind и никогда не выдаётся клиентам.
func NewServer(cfg ServerConfig, w HostWorld) (*Server, error) {
	hostID := session.Checksum([]byte(cfg.Addr))

	alloc, err := session.NewAllocator(cfg.Identity, hostID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		world:  w,
		alloc:  alloc,
		hostID: hostID,
		logger: logging.GetNetworkLogger(),
		peers:  make(map[*peer]struct{}),
		events: make(chan PeerEvent, eventBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// HostID возвращает идентификатор игрока хоста
func (s *Server) HostID() uint16 {
	return s.hostID
}

// Events возвращает канал событий подключения и отключения
func (s *Server) Events() <-chan PeerEvent {
	return s.events
}

// Start открывает слушающий сокет и запускает цикл приёма.
// Ошибка bind - единственная фатальная ошибка сервера.
func (s *Server) Start() error {
	listener, err := Listen(s.cfg.Transport, s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("🚀 Replication server started on %s (%s, host id %d)", listener.Addr(), transportName(s.cfg.Transport), s.hostID)
	return nil
}

// Addr возвращает фактический адрес слушающего сокета
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop закрывает сокет и все соединения и ждёт завершения их горутин
func (s *Server) Stop() error {
	s.cancel()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.mu.RLock()
	for p := range s.peers {
		p.close()
	}
	s.mu.RUnlock()

	s.wg.Wait()
	s.logger.Info("🛑 Replication server stopped")
	return err
}

// PeerCount возвращает число установленных соединений
func (s *Server) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return // Сервер останавливается
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Failed to accept connection: %v", err)
			continue
		}

		s.ServeConn(conn)
	}
}

// ServeConn обслуживает уже установленное соединение в отдельной горутине
func (s *Server) ServeConn(conn net.Conn) {
	if s.ctx.Err() != nil {
		_ = conn.Close()
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.handleConnection(conn)
	}()
}

func (s *Server) handleConnection(conn net.Conn) {
	traceID := uuid.New().String()
	p := &peer{
		traceID:      traceID,
		conn:         conn,
		role:         "server",
		logger:       s.logger.With("conn=" + traceID[:8]),
		writeTimeout: s.cfg.WriteTimeout,
	}

	// Остановка сервера закрывает соединение на любом этапе, в том числе
	// пока запись IDENTITY_ASSIGN висит на медленном пире
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-s.ctx.Done():
			p.close()
		case <-finished:
		}
	}()

	if err := prepareConn(conn); err != nil {
		p.logger.Warn("Rejecting %s: %v", conn.RemoteAddr(), err)
		p.close()
		return
	}

	id, err := s.alloc.Acquire(conn.RemoteAddr())
	if err != nil {
		p.logger.Error("Rejecting %s: %v", conn.RemoteAddr(), err)
		p.close()
		return
	}
	p.id = id
	p.logger = s.logger.With(fmt.Sprintf("conn=%s id=%d", traceID[:8], id))

	// Рукопожатие: запись в реестре, затем назначение идентификатора и сида
	s.world.SpawnPlayer(id)
	if err := p.send(protocol.IdentityAssign{ID: id, Seed: s.world.Seed()}); err != nil {
		p.logger.Warn("Handshake failed: %v", err)
		s.alloc.Release(id)
		s.world.RemovePlayer(id)
		p.close()
		return
	}

	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	activeConnections.Inc()

	p.logger.Info("👋 Client connected from %s", conn.RemoteAddr())
	s.emit(PeerEvent{Kind: PeerJoined, ID: id, TraceID: traceID, Addr: conn.RemoteAddr()})

	reason := s.readLoop(p)

	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
	activeConnections.Dec()

	p.close()
	s.alloc.Release(id)
	s.world.RemovePlayer(id)

	if reason != nil {
		p.logger.Warn("Client disconnected: %v", reason)
	} else {
		p.logger.Info("Client disconnected")
	}
	s.emit(PeerEvent{Kind: PeerLeft, ID: id, TraceID: traceID, Addr: conn.RemoteAddr(), Err: reason})
}

// readLoop читает кадры до закрытия потока. Возвращает nil при штатном закрытии.
func (s *Server) readLoop(p *peer) error {
	reader := bufio.NewReaderSize(p.conn, protocol.ReceiveBufferSize)

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		burst := s.cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)
	}
	idle := readTimeout(s.cfg.Transport, s.cfg.ReadTimeout)

	for {
		// Ограничитель задерживает чтение, а не отбрасывает кадры:
		// отправитель упирается в буфер потока.
		if limiter != nil {
			if err := limiter.Wait(s.ctx); err != nil {
				return nil
			}
		}

		// Каждый кадр продлевает срок; молчащий пир отключается как потерянный
		if idle > 0 {
			_ = p.conn.SetReadDeadline(time.Now().Add(idle))
		}

		msg, raw, err := protocol.ReadMessage(reader)
		if err != nil {
			return s.classify(p, err, raw)
		}
		messagesReceived.WithLabelValues(p.role, msg.Opcode().String()).Inc()
		p.logger.LogMessage(p.traceID, "IN", msg.Opcode(), raw)

		if err := s.handle(p, msg); err != nil {
			handshakeViolations.WithLabelValues(p.role).Inc()
			p.logger.LogProtocolError(p.traceID, err, raw)
			return err
		}
	}
}

func (s *Server) classify(p *peer, err error, raw []byte) error {
	switch {
	case errors.Is(err, io.EOF), s.ctx.Err() != nil:
		return nil
	case protocol.IsMalformed(err):
		handshakeViolations.WithLabelValues(p.role).Inc()
		p.logger.LogProtocolError(p.traceID, err, raw)
		return fmt.Errorf("%w: %v", ErrHandshakeViolation, err)
	default:
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
}

func (s *Server) handle(p *peer, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.IdentityAssign:
		return fmt.Errorf("%w: клиент прислал IDENTITY_ASSIGN", ErrHandshakeViolation)

	case protocol.BlockUpdate:
		// Изменение в незагруженном чанке не применяется локально, но рассылается:
		// у других пиров этот чанк может быть загружен.
		if err := s.world.ApplyBlockUpdate(m.Pos, m.Block); err != nil {
			if !errors.Is(err, world.ErrChunkNotLoaded) {
				p.logger.Warn("Block update %v rejected: %v", m.Pos, err)
			} else {
				p.logger.Debug("Block update %v: %v", m.Pos, err)
			}
		}
		s.broadcast(p, m)

	case protocol.PlayerUpdate:
		// Отправитель не может выдать себя за другого игрока
		m.ID = p.id
		s.world.ApplyPlayerUpdate(p.id, m.Position, m.Yaw, m.Pitch)
		s.broadcast(p, m)
	}
	return nil
}

// broadcast рассылает кадр всем пирам, кроме except (nil - всем).
// Медленный пир задерживает рассылку остальным: очереди отправки нет.
func (s *Server) broadcast(except *peer, m protocol.Message) {
	s.mu.RLock()
	targets := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		if p != except {
			targets = append(targets, p)
		}
	}
	s.mu.RUnlock()

	for _, p := range targets {
		if err := p.send(m); err != nil {
			p.logger.Debug("Broadcast failed: %v", err)
		}
	}
}

// SendBlockUpdate рассылает локальное изменение хоста всем клиентам
func (s *Server) SendBlockUpdate(pos vec.Vec3, id block.ID) error {
	s.broadcast(nil, protocol.BlockUpdate{Pos: pos, Block: id})
	return nil
}

// SendPlayerUpdate рассылает позицию игрока хоста всем клиентам
func (s *Server) SendPlayerUpdate(pos mgl32.Vec3, yaw, pitch float32) error {
	s.broadcast(nil, protocol.PlayerUpdate{
		ID:       s.hostID,
		Position: pos,
		Yaw:      yaw,
		Pitch:    pitch,
		Color:    session.ColorFor(s.hostID),
	})
	return nil
}

func (s *Server) emit(ev PeerEvent) {
	select {
	case s.events <- ev:
	default:
		droppedEvents.Inc()
	}
}

func transportName(t string) string {
	if t == "" {
		return TransportTCP
	}
	return t
}
