package block

import "fmt"

// ID представляет идентификатор типа блока (вокселя).
// 0 - воздух, остальные значения - непрозрачные виды материала.
type ID uint16

// Константы ID блоков; значения совпадают с индексами текстур клиента.
const (
	AirID     ID = 0
	StoneID   ID = 1
	GrassID   ID = 2
	DirtID    ID = 3
	BedrockID ID = 7
)

// MaxID - наибольший идентификатор, который помещается в решетку чанка
const MaxID = ID(0xFFFF)

// Имена известных материалов
var names = map[ID]string{
	AirID:     "air",
	StoneID:   "stone",
	GrassID:   "grass",
	DirtID:    "dirt",
	BedrockID: "bedrock",
}

// Name возвращает имя материала или "block#N" для неизвестных ID
func Name(id ID) string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("block#%d", id)
}

// IsAir сообщает, является ли блок пустым
func (id ID) IsAir() bool {
	return id == AirID
}

// String возвращает имя материала
func (id ID) String() string {
	return Name(id)
}
