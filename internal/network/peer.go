package network

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/sciencecraft/internal/logging"
	"github.com/annel0/sciencecraft/internal/protocol"
)

// peer - одно установленное соединение. Запись сериализуется мьютексом,
// чтобы кадры из разных горутин рассылки не перемешивались в потоке.
type peer struct {
	id      uint16
	traceID string
	conn    net.Conn
	role    string
	logger  *logging.Logger

	writeMu      sync.Mutex
	writeTimeout time.Duration
	lastWrite    atomic.Int64 // unix nano последней успешной записи

	closeOnce sync.Once
}

// send записывает один кадр целиком. Ошибка записи закрывает соединение,
// после чего цикл чтения этого пира завершится сам.
func (p *peer) send(m protocol.Message) error {
	buf, err := protocol.Encode(m)
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.writeTimeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	}
	if _, err := p.conn.Write(buf); err != nil {
		p.close()
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	p.lastWrite.Store(time.Now().UnixNano())
	messagesSent.WithLabelValues(p.role, m.Opcode().String()).Inc()
	p.logger.LogMessage(p.traceID, "OUT", m.Opcode(), buf)
	return nil
}

// idleFor возвращает время с последней успешной записи
func (p *peer) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, p.lastWrite.Load()))
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		_ = p.conn.Close()
	})
}
