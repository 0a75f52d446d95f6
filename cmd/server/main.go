package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/sciencecraft/internal/api"
	"github.com/annel0/sciencecraft/internal/config"
	"github.com/annel0/sciencecraft/internal/game"
	"github.com/annel0/sciencecraft/internal/logging"
	"github.com/annel0/sciencecraft/internal/network"
	"github.com/annel0/sciencecraft/internal/observability"
	"github.com/annel0/sciencecraft/internal/util"
	"github.com/annel0/sciencecraft/internal/world"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Path to YAML config (default $GAME_CONFIG)")
		serverPort = flag.Int("server", 0, "Host mode: listen on this port (overrides config)")
		connect    = flag.String("connect", "", "Client mode: connect to host:port")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *serverPort > 0 {
		cfg.Server.Port = *serverPort
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	opts := logging.DefaultOptions()
	opts.ConsoleLevel = level
	opts.ToFile = cfg.Logging.ToFile
	opts.Dir = cfg.Logging.Dir
	if err := logging.InitLogger(opts); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseLogger()
	defer logging.GetLoggerManager().CloseAll()

	for component, name := range cfg.Logging.Components {
		componentLevel, err := logging.ParseLevel(name)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		if err := logging.GetLoggerManager().SetLogLevel(component, componentLevel, opts.FileLevel); err != nil {
			log.Fatalf("❌ Логгер компонента %s: %v", component, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled)
	if err != nil {
		logging.LogWarn("⚠️ Телеметрия отключена: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.LogWarn("Ошибка остановки телеметрии: %v", err)
		}
	}()

	gen := world.NewGenerator(util.NewPerlinHeight(cfg.World.MaxHeight), cfg.World.ColumnHeight, cfg.World.Workers)
	g := game.New(game.Config{
		Seed:   cfg.World.Seed,
		Region: world.CenteredRegion(cfg.World.RegionWidth, cfg.World.RegionDepth),
	}, gen)

	if *connect != "" {
		err = runClient(ctx, cfg, g, *connect)
	} else {
		err = runHost(ctx, cfg, g)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.LogError("❌ %v", err)
		return err
	}
	logging.LogInfo("👋 Узел остановлен")
	return nil
}

// runHost генерирует мир, поднимает сервер репликации и статус-API
func runHost(ctx context.Context, cfg *config.Config, g *game.Game) error {
	seed := cfg.World.Seed
	if seed == 0 {
		seed = rand.Uint32()
	}
	if err := g.Regenerate(ctx, seed); err != nil {
		return fmt.Errorf("генерация мира: %w", err)
	}

	server, err := network.NewServer(network.ServerConfig{
		Addr:         cfg.Server.Addr(),
		Transport:    cfg.Server.Transport,
		Identity:     cfg.Network.Identity,
		WriteTimeout: cfg.Network.WriteTimeout,
		ReadTimeout:  cfg.Network.ReadTimeout,
		RateLimit:    cfg.Network.RateLimit,
		RateBurst:    cfg.Network.RateBurst,
	}, g)
	if err != nil {
		return err
	}
	g.SetSelfID(server.HostID())
	g.SetReplicator(server)

	if err := server.Start(); err != nil {
		return fmt.Errorf("запуск сервера: %w", err)
	}
	defer server.Stop()

	status, err := startStatusAPI(cfg, g, "host", server)
	if err != nil {
		return err
	}
	defer shutdownStatusAPI(status)

	logging.LogInfo("✅ Хост запущен: %s (%s), ID %d, сид %d",
		server.Addr(), cfg.Server.Transport, server.HostID(), seed)

	// Позиция хоста появляется у клиентов с первым обновлением
	if _, err := g.MoveLocalPlayer(game.SpawnPosition, 0, 0); err != nil {
		logging.LogWarn("Не удалось разослать позицию хоста: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			logging.LogInfo("📡 Получен сигнал завершения, останавливаем хост...")
			return nil
		case ev := <-server.Events():
			switch ev.Kind {
			case network.PeerJoined:
				logging.LogInfo("➕ Игрок %d подключился (%s, trace=%s)", ev.ID, ev.Addr, ev.TraceID)
				// Новичок узнаёт о хосте только из следующего обновления
				if err := server.SendPlayerUpdate(g.LocalPlayer().Position, 0, 0); err != nil {
					logging.LogWarn("Не удалось разослать позицию хоста: %v", err)
				}
			case network.PeerLeft:
				if ev.Err != nil {
					logging.LogInfo("➖ Игрок %d отключился: %v", ev.ID, ev.Err)
				} else {
					logging.LogInfo("➖ Игрок %d отключился", ev.ID)
				}
			}
		}
	}
}

// runClient подключается к хосту и ждёт рукопожатия
func runClient(ctx context.Context, cfg *config.Config, g *game.Game, addr string) error {
	client := network.NewClient(network.ClientConfig{
		Addr:         addr,
		Transport:    cfg.Server.Transport,
		WriteTimeout: cfg.Network.WriteTimeout,
		KeepAlive:    cfg.Network.KeepAlive,
	}, g)
	g.SetReplicator(client)

	// ctx ограничивает всю жизнь соединения, поэтому таймаут здесь только на рукопожатие
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("подключение к %s: %w", addr, err)
	}
	defer client.Close()

	handshakeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	id, err := client.WaitIdentity(handshakeCtx)
	if err != nil {
		return fmt.Errorf("рукопожатие: %w", err)
	}
	logging.LogInfo("✅ Подключены к %s как игрок %d, сид %d", addr, id, g.Seed())

	if _, err := g.MoveLocalPlayer(game.SpawnPosition, 0, 0); err != nil {
		logging.LogWarn("Не удалось отправить позицию: %v", err)
	}

	// На одной машине с хостом порт статус-API обычно занят
	status, err := startStatusAPI(cfg, g, "client", nil)
	if err != nil {
		logging.LogWarn("⚠️ Статус-API клиента не запущен: %v", err)
	}
	defer shutdownStatusAPI(status)

	select {
	case <-ctx.Done():
		logging.LogInfo("📡 Получен сигнал завершения, отключаемся...")
		return nil
	case <-client.Done():
		return client.Err()
	}
}

func startStatusAPI(cfg *config.Config, g *game.Game, role string, peers api.PeerCounter) (*api.StatusServer, error) {
	port := cfg.Server.GetStatusPort()
	if port <= 0 {
		return nil, nil
	}

	status := api.NewStatusServer(api.Config{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.BindAddress, port),
		Role:        role,
		ServiceName: cfg.Telemetry.ServiceName,
		World:       g,
		Peers:       peers,
	})
	if err := status.Start(); err != nil {
		return nil, err
	}
	return status, nil
}

func shutdownStatusAPI(status *api.StatusServer) {
	if status == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := status.Shutdown(ctx); err != nil {
		logging.LogWarn("Ошибка остановки статус-API: %v", err)
	}
}
