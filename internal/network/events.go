package network

import "net"

// PeerEventKind - тип события соединения
type PeerEventKind int

const (
	PeerJoined PeerEventKind = iota
	PeerLeft
)

func (k PeerEventKind) String() string {
	switch k {
	case PeerJoined:
		return "joined"
	case PeerLeft:
		return "left"
	default:
		return "unknown"
	}
}

// PeerEvent сообщает владельцу сервера о подключении и отключении пиров
type PeerEvent struct {
	Kind    PeerEventKind
	ID      uint16
	TraceID string
	Addr    net.Addr
	Err     error // причина отключения; nil при штатном закрытии
}

// Размер буфера событий; при переполнении события отбрасываются
const eventBufferSize = 64
