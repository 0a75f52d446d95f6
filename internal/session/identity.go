package session

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrIdentitiesExhausted - все 16-битные идентификаторы заняты живыми соединениями
var ErrIdentitiesExhausted = errors.New("свободные идентификаторы закончились")

// Checksum считает 16-битную контрольную сумму по RFC 1071:
// сумма 16-битных слов (big-endian) с переносом, затем дополнение до единицы.
// Последний нечётный байт считается старшим байтом слова.
func Checksum(data []byte) uint16 {
	var sum uint32
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// AddressKey возвращает строку "адрес:порт", по которой считается идентификатор
func AddressKey(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return fmt.Sprintf("%s:%d", tcp.IP.String(), tcp.Port)
	}
	if udp, ok := addr.(*net.UDPAddr); ok {
		return fmt.Sprintf("%s:%d", udp.IP.String(), udp.Port)
	}
	return addr.String()
}

// Allocator выдаёт идентификаторы соединениям и освобождает их при закрытии
type Allocator interface {
	Acquire(addr net.Addr) (uint16, error)
	Release(id uint16)
}

// SequentialAllocator выдаёт возрастающие ID, пропуская занятые и зарезервированные.
// Среди живых соединений коллизий нет.
type SequentialAllocator struct {
	mu       sync.Mutex
	next     uint16
	used     map[uint16]struct{}
	reserved map[uint16]struct{}
}

// NewSequentialAllocator создаёт аллокатор; reserved никогда не выдаются (например, ID хоста)
func NewSequentialAllocator(reserved ...uint16) *SequentialAllocator {
	a := &SequentialAllocator{
		next:     1,
		used:     make(map[uint16]struct{}),
		reserved: make(map[uint16]struct{}),
	}
	for _, id := range reserved {
		a.reserved[id] = struct{}{}
	}
	return a
}

// Acquire возвращает следующий свободный ID
func (a *SequentialAllocator) Acquire(net.Addr) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i <= 0xFFFF; i++ {
		id := a.next
		a.next++
		if id == 0 {
			continue
		}
		if _, ok := a.used[id]; ok {
			continue
		}
		if _, ok := a.reserved[id]; ok {
			continue
		}
		a.used[id] = struct{}{}
		return id, nil
	}
	return 0, ErrIdentitiesExhausted
}

// Release освобождает ID
func (a *SequentialAllocator) Release(id uint16) {
	a.mu.Lock()
	delete(a.used, id)
	a.mu.Unlock()
}

// ChecksumAllocator выводит ID из адреса клиента через Checksum.
// Разные адреса могут дать одинаковый ID; коллизии только считаются в метрике.
type ChecksumAllocator struct {
	mu   sync.Mutex
	live map[uint16]int
}

// NewChecksumAllocator создаёт аллокатор на контрольной сумме адреса
func NewChecksumAllocator() *ChecksumAllocator {
	return &ChecksumAllocator{live: make(map[uint16]int)}
}

// Acquire возвращает контрольную сумму строки "адрес:порт"
func (a *ChecksumAllocator) Acquire(addr net.Addr) (uint16, error) {
	id := Checksum([]byte(AddressKey(addr)))

	a.mu.Lock()
	if a.live[id] > 0 {
		identityCollisions.Inc()
	}
	a.live[id]++
	a.mu.Unlock()
	return id, nil
}

// Release уменьшает счётчик живых соединений с этим ID
func (a *ChecksumAllocator) Release(id uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.live[id] <= 1 {
		delete(a.live, id)
		return
	}
	a.live[id]--
}

// NewAllocator создаёт аллокатор по имени схемы ("sequential" или "checksum")
func NewAllocator(scheme string, reserved ...uint16) (Allocator, error) {
	switch scheme {
	case "", "sequential":
		return NewSequentialAllocator(reserved...), nil
	case "checksum":
		return NewChecksumAllocator(), nil
	default:
		return nil, fmt.Errorf("неизвестная схема идентификаторов: %q", scheme)
	}
}
