package protocol

import "fmt"

// Opcode - первый байт каждого кадра; определяет размер полезной нагрузки
type Opcode byte

const (
	OpIdentityAssign Opcode = 0xAA // сервер -> клиент, один раз после accept
	OpBlockUpdate    Opcode = 0xB0 // в обе стороны
	OpPlayerUpdate   Opcode = 0xC0 // в обе стороны
)

// Размеры полезной нагрузки (без байта опкода)
const (
	IdentityAssignSize = 2 + 4               // id u16 + seed u32
	BlockUpdateSize    = 3*4 + 4             // x, y, z i32 + тип u32
	PlayerUpdateSize   = 2 + 3*4 + 2*4 + 3*4 // id u16 + позиция + yaw/pitch + цвет
)

// Ограничения буферов, общие для всех узлов
const (
	MaxMessageSize    = 64   // Наибольший исходящий кадр
	ReceiveBufferSize = 1024 // Буфер чтения соединения
)

// PayloadSize возвращает размер полезной нагрузки для опкода
func PayloadSize(op Opcode) (int, error) {
	switch op {
	case OpIdentityAssign:
		return IdentityAssignSize, nil
	case OpBlockUpdate:
		return BlockUpdateSize, nil
	case OpPlayerUpdate:
		return PlayerUpdateSize, nil
	default:
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, byte(op))
	}
}

// String возвращает имя опкода (используется как метка метрик)
func (op Opcode) String() string {
	switch op {
	case OpIdentityAssign:
		return "identity_assign"
	case OpBlockUpdate:
		return "block_update"
	case OpPlayerUpdate:
		return "player_update"
	default:
		return fmt.Sprintf("0x%02X", byte(op))
	}
}
