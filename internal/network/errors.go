package network

import "errors"

var (
	// ErrConnectionLost - ошибка чтения/записи или разрыв соединения пиром
	ErrConnectionLost = errors.New("соединение потеряно")
	// ErrHandshakeViolation - нарушение порядка рукопожатия или искажённый кадр
	ErrHandshakeViolation = errors.New("нарушение протокола рукопожатия")
	// ErrNoIdentity - клиент ещё не получил идентификатор от сервера
	ErrNoIdentity = errors.New("идентификатор ещё не назначен")
	// ErrNotConnected - клиент не подключён
	ErrNotConnected = errors.New("нет соединения")
)
