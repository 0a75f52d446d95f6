package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/annel0/sciencecraft/internal/vec"
	"github.com/annel0/sciencecraft/internal/world/block"
)

// Все многобайтовые поля передаются в big-endian.
var order = binary.BigEndian

// Encode сериализует сообщение в кадр: опкод + полезная нагрузка без выравнивания
func Encode(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case IdentityAssign:
		buf := make([]byte, 1+IdentityAssignSize)
		buf[0] = byte(OpIdentityAssign)
		order.PutUint16(buf[1:], msg.ID)
		order.PutUint32(buf[3:], msg.Seed)
		return buf, nil

	case BlockUpdate:
		if !fitsInt32(msg.Pos.X) || !fitsInt32(msg.Pos.Y) || !fitsInt32(msg.Pos.Z) {
			return nil, fmt.Errorf("%w: позиция %v", ErrInvalidValue, msg.Pos)
		}
		buf := make([]byte, 1+BlockUpdateSize)
		buf[0] = byte(OpBlockUpdate)
		order.PutUint32(buf[1:], uint32(int32(msg.Pos.X)))
		order.PutUint32(buf[5:], uint32(int32(msg.Pos.Y)))
		order.PutUint32(buf[9:], uint32(int32(msg.Pos.Z)))
		order.PutUint32(buf[13:], uint32(msg.Block))
		return buf, nil

	case PlayerUpdate:
		buf := make([]byte, 1+PlayerUpdateSize)
		buf[0] = byte(OpPlayerUpdate)
		order.PutUint16(buf[1:], msg.ID)
		floats := [8]float32{
			msg.Position.X(), msg.Position.Y(), msg.Position.Z(),
			msg.Yaw, msg.Pitch,
			msg.Color.X(), msg.Color.Y(), msg.Color.Z(),
		}
		for i, f := range floats {
			order.PutUint32(buf[3+i*4:], math.Float32bits(f))
		}
		return buf, nil

	case nil:
		return nil, fmt.Errorf("%w: nil", ErrUnknownOpcode)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownOpcode, m)
	}
}

// Decode разбирает один полный кадр (опкод + полезная нагрузка)
func Decode(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: пустой кадр", ErrShortPayload)
	}
	op := Opcode(frame[0])
	size, err := PayloadSize(op)
	if err != nil {
		return nil, err
	}
	payload := frame[1:]
	if len(payload) < size {
		return nil, fmt.Errorf("%w: %s ожидает %d байт, получено %d", ErrShortPayload, op, size, len(payload))
	}
	if len(payload) > size {
		return nil, fmt.Errorf("%w: %s ожидает %d байт, получено %d", ErrFrameSize, op, size, len(payload))
	}
	return decodePayload(op, payload)
}

func decodePayload(op Opcode, p []byte) (Message, error) {
	switch op {
	case OpIdentityAssign:
		return IdentityAssign{
			ID:   order.Uint16(p[0:]),
			Seed: order.Uint32(p[2:]),
		}, nil

	case OpBlockUpdate:
		raw := order.Uint32(p[12:])
		if raw > uint32(block.MaxID) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidBlock, raw)
		}
		return BlockUpdate{
			Pos: vec.Vec3{
				X: int(int32(order.Uint32(p[0:]))),
				Y: int(int32(order.Uint32(p[4:]))),
				Z: int(int32(order.Uint32(p[8:]))),
			},
			Block: block.ID(raw),
		}, nil

	case OpPlayerUpdate:
		var f [8]float32
		for i := range f {
			f[i] = math.Float32frombits(order.Uint32(p[2+i*4:]))
		}
		for _, v := range f[:5] {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, fmt.Errorf("%w: %v в позиции игрока", ErrInvalidValue, v)
			}
		}
		msg := PlayerUpdate{ID: order.Uint16(p[0:]), Yaw: f[3], Pitch: f[4]}
		msg.Position[0], msg.Position[1], msg.Position[2] = f[0], f[1], f[2]
		msg.Color[0], msg.Color[1], msg.Color[2] = f[5], f[6], f[7]
		return msg, nil
	}
	return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, byte(op))
}

// ReadMessage читает из потока ровно один кадр.
// Чистый конец потока на границе кадра возвращается как io.EOF.
func ReadMessage(r io.Reader) (Message, []byte, error) {
	var frame [MaxMessageSize]byte
	if _, err := io.ReadFull(r, frame[:1]); err != nil {
		return nil, nil, err
	}

	op := Opcode(frame[0])
	size, err := PayloadSize(op)
	if err != nil {
		return nil, frame[:1], err
	}

	n, err := io.ReadFull(r, frame[1:1+size])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, frame[:1+n], fmt.Errorf("%w: %s оборван после %d байт", ErrShortPayload, op, n)
		}
		return nil, frame[:1+n], err
	}

	raw := frame[:1+size]
	msg, err := decodePayload(op, raw[1:])
	return msg, raw, err
}

// WriteMessage сериализует и записывает один кадр
func WriteMessage(w io.Writer, m Message) error {
	buf, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func fitsInt32(v int) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}
