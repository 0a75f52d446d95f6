package network

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/xtaci/kcp-go/v5"
)

// Поддерживаемые транспорты: оба дают надёжный упорядоченный поток байтов
const (
	TransportTCP = "tcp"
	TransportKCP = "kcp"
)

// kcpPreamble - первый байт клиента в kcp-сессии. Сервер kcp-go узнаёт о сессии
// только по первому пакету клиента, а клиент до IDENTITY_ASSIGN молчит;
// преамбула открывает сессию и снимается сервером до рукопожатия.
// 0x00 не является опкодом протокола.
const kcpPreamble byte = 0x00

// Значения по умолчанию для kcp: у UDP-сессии нет сигнала закрытия,
// поэтому молчащий пир отключается по таймауту чтения, а клиент шлёт keepalive.
const (
	DefaultKCPReadTimeout = 15 * time.Second
	DefaultKCPKeepAlive   = 5 * time.Second

	preambleTimeout = 5 * time.Second
)

// Listen открывает слушающий сокет выбранного транспорта
func Listen(transport, addr string) (net.Listener, error) {
	switch transport {
	case "", TransportTCP:
		return net.Listen("tcp", addr)
	case TransportKCP:
		return kcp.ListenWithOptions(addr, nil, 0, 0)
	default:
		return nil, fmt.Errorf("неизвестный транспорт: %q", transport)
	}
}

// Dial подключается к серверу выбранным транспортом
func Dial(ctx context.Context, transport, addr string) (net.Conn, error) {
	switch transport {
	case "", TransportTCP:
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	case TransportKCP:
		conn, err := kcp.DialWithOptions(addr, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		tuneKCP(conn)
		if _, err := conn.Write([]byte{kcpPreamble}); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("неизвестный транспорт: %q", transport)
	}
}

// prepareConn настраивает принятое соединение под поток мелких кадров.
// Для kcp дополнительно снимает преамбулу клиента.
func prepareConn(conn net.Conn) error {
	switch c := conn.(type) {
	case *kcp.UDPSession:
		tuneKCP(c)
		return readPreamble(c)
	case *net.TCPConn:
		_ = c.SetNoDelay(true)
	}
	return nil
}

func readPreamble(conn net.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(preambleTimeout)); err != nil {
		return err
	}
	var b [1]byte
	if _, err := io.ReadFull(conn, b[:]); err != nil {
		return fmt.Errorf("kcp preamble: %w", err)
	}
	if b[0] != kcpPreamble {
		return fmt.Errorf("kcp preamble: неожиданный байт 0x%02x", b[0])
	}
	return conn.SetReadDeadline(time.Time{})
}

// readTimeout возвращает таймаут простоя входящего потока для транспорта
func readTimeout(transport string, configured time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	if transport == TransportKCP {
		return DefaultKCPReadTimeout
	}
	return 0
}

// keepAliveInterval возвращает период keepalive клиента для транспорта
func keepAliveInterval(transport string, configured time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	if transport == TransportKCP {
		return DefaultKCPKeepAlive
	}
	return 0
}

func tuneKCP(conn *kcp.UDPSession) {
	conn.SetStreamMode(true)
	conn.SetNoDelay(1, 20, 2, 1) // Агрессивные настройки для игр
	conn.SetWindowSize(512, 512)
}
