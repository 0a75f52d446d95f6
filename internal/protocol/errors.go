package protocol

import "errors"

var (
	// ErrUnknownOpcode - первый байт кадра не является известным опкодом
	ErrUnknownOpcode = errors.New("неизвестный опкод")
	// ErrShortPayload - полезная нагрузка короче, чем требует опкод
	ErrShortPayload = errors.New("полезная нагрузка слишком короткая")
	// ErrFrameSize - длина кадра не совпадает с размером для опкода
	ErrFrameSize = errors.New("неверная длина кадра")
	// ErrInvalidBlock - тип блока не помещается в решетку чанка
	ErrInvalidBlock = errors.New("недопустимый тип блока")
	// ErrInvalidValue - координата вне диапазона или нечисловое значение
	ErrInvalidValue = errors.New("недопустимое значение поля")
)

// IsMalformed сообщает, что ошибка вызвана содержимым кадра, а не транспортом
func IsMalformed(err error) bool {
	return errors.Is(err, ErrUnknownOpcode) ||
		errors.Is(err, ErrShortPayload) ||
		errors.Is(err, ErrFrameSize) ||
		errors.Is(err, ErrInvalidBlock) ||
		errors.Is(err, ErrInvalidValue)
}
