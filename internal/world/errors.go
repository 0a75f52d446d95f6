package world

import "errors"

var (
	// ErrOutOfBounds - локальная координата вне размеров чанка
	ErrOutOfBounds = errors.New("локальная координата вне чанка")
	// ErrChunkNotLoaded - мировая позиция попадает в отсутствующий чанк
	ErrChunkNotLoaded = errors.New("чанк не загружен")
	// ErrGenerationFailure - генерация колонки не удалась, пакет регенерации отменён
	ErrGenerationFailure = errors.New("ошибка генерации мира")
)
