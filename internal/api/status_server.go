package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/sciencecraft/internal/logging"
	"github.com/annel0/sciencecraft/internal/middleware"
	"github.com/annel0/sciencecraft/internal/session"
	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// WorldState - то, что статус-API читает из игрового состояния узла
type WorldState interface {
	Seed() uint32
	Store() *world.Store
	Players() []session.Player
	SelfID() (uint16, bool)
}

// PeerCounter сообщает число подключённых клиентов (есть только у хоста)
type PeerCounter interface {
	PeerCount() int
}

// GenericResponse - общий конверт ответов API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Config содержит конфигурацию статус-сервера
type Config struct {
	Addr        string      // адрес для запуска, например ":8088"
	Role        string      // "host" или "client"
	ServiceName string      // имя сервиса для otelgin и префикс HTTP-метрик
	World       WorldState  // игровое состояние узла
	Peers       PeerCounter // может быть nil на клиенте

	Logger     *logging.Logger
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// StatusServer - read-only HTTP API состояния узла
type StatusServer struct {
	cfg      Config
	router   *gin.Engine
	stats    *ProcessStats
	logger   *logging.Logger
	server   *http.Server
	listener net.Listener
}

// NewStatusServer создаёт статус-сервер и настраивает маршруты
func NewStatusServer(cfg Config) *StatusServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "status_api"
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetAPILogger()
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())
	router.Use(otelgin.Middleware(cfg.ServiceName))

	promMw := middleware.NewPrometheusMiddleware(cfg.ServiceName, cfg.Registerer, cfg.Gatherer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	s := &StatusServer{
		cfg:    cfg,
		router: router,
		stats:  NewProcessStats(),
		logger: cfg.Logger,
	}
	s.setupRoutes()
	return s
}

func (s *StatusServer) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/world", s.handleWorld)
		api.GET("/world/block", s.handleBlock)
		api.GET("/players", s.handlePlayers)
		api.GET("/server", s.handleServer)
	}
}

// Handler возвращает http.Handler роутера (удобно для httptest)
func (s *StatusServer) Handler() http.Handler {
	return s.router
}

// Start занимает порт синхронно и обслуживает запросы в фоне.
// Ошибка привязки возвращается сразу.
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("status api: %w", err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("❌ Статус-API остановлен с ошибкой: %v", err)
		}
	}()
	s.logger.Info("🌐 Статус-API слушает %s", ln.Addr())
	return nil
}

// Addr возвращает фактический адрес после Start
func (s *StatusServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown корректно останавливает HTTP-сервер
func (s *StatusServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleHealth проверка состояния узла
func (s *StatusServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"role":   s.cfg.Role,
		"time":   time.Now().Unix(),
	})
}

// handleWorld возвращает сид, число чанков и отпечаток мира
func (s *StatusServer) handleWorld(c *gin.Context) {
	store := s.cfg.World.Store()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data: gin.H{
			"seed":   s.cfg.World.Seed(),
			"chunks": store.Len(),
			"digest": fmt.Sprintf("%016x", store.Digest()),
		},
	})
}

// handleBlock возвращает блок по мировым координатам ?x=&y=&z=
func (s *StatusServer) handleBlock(c *gin.Context) {
	var coords [3]int
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Query(name))
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: fmt.Sprintf("некорректный параметр %s", name),
			})
			return
		}
		coords[i] = v
	}

	pos := vec.Vec3{X: coords[0], Y: coords[1], Z: coords[2]}
	store := s.cfg.World.Store()
	id := store.GetBlock(pos)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data: gin.H{
			"x":      pos.X,
			"y":      pos.Y,
			"z":      pos.Z,
			"block":  uint16(id),
			"name":   id.String(),
			"air":    id == block.AirID,
			"loaded": store.Has(pos.ToChunkCoords(world.ChunkDims)),
		},
	})
}

type playerView struct {
	ID       uint16     `json:"id"`
	Self     bool       `json:"self"`
	Position [3]float32 `json:"position"`
	Yaw      float32    `json:"yaw"`
	Pitch    float32    `json:"pitch"`
	Color    [3]float32 `json:"color"`
	LastSeen time.Time  `json:"last_seen"`
}

// handlePlayers возвращает снимок ростера
func (s *StatusServer) handlePlayers(c *gin.Context) {
	self, identified := s.cfg.World.SelfID()
	players := s.cfg.World.Players()

	views := make([]playerView, 0, len(players))
	for _, p := range players {
		views = append(views, playerView{
			ID:       p.ID,
			Self:     identified && p.ID == self,
			Position: p.Position,
			Yaw:      p.Yaw,
			Pitch:    p.Pitch,
			Color:    p.Color,
			LastSeen: p.LastSeen,
		})
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data: gin.H{
			"count":   len(views),
			"players": views,
		},
	})
}

// handleServer возвращает сведения о процессе узла
func (s *StatusServer) handleServer(c *gin.Context) {
	cpuPercent, err := s.stats.CPUUsage()
	if err != nil {
		s.logger.Debug("cpu недоступен: %v", err)
	}

	info := gin.H{
		"role":        s.cfg.Role,
		"uptime":      FormatUptime(s.stats.Uptime()),
		"uptime_sec":  int64(s.stats.Uptime().Seconds()),
		"memory_mb":   fmt.Sprintf("%.1f", s.stats.MemoryUsage()),
		"cpu_percent": fmt.Sprintf("%.1f", cpuPercent),
		"goroutines":  runtime.NumGoroutine(),
		"memory":      s.stats.MemoryDetails(),
	}
	if id, ok := s.cfg.World.SelfID(); ok {
		info["id"] = id
	}
	if s.cfg.Peers != nil {
		info["peers"] = s.cfg.Peers.PeerCount()
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация об узле",
		Data:    info,
	})
}
