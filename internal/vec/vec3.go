package vec

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Vec3 представляет трехмерный вектор с целочисленными координатами.
// Используется и как мировая позиция блока, и как координата чанка в решетке.
type Vec3 struct {
	X int
	Y int
	Z int
}

// String возвращает ключ вида "x;y;z". Знак и разделитель делают запись однозначной.
func (v Vec3) String() string {
	return fmt.Sprintf("%d;%d;%d", v.X, v.Y, v.Z)
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Mul покомпонентно умножает векторы
func (v Vec3) Mul(other Vec3) Vec3 {
	return Vec3{
		X: v.X * other.X,
		Y: v.Y * other.Y,
		Z: v.Z * other.Z,
	}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// ToChunkCoords возвращает координату чанка размера dims, содержащего позицию.
// Деление округляет вниз, поэтому -1 попадает в чанк -1, а не 0.
func (v Vec3) ToChunkCoords(dims Vec3) Vec3 {
	return Vec3{
		X: FloorDiv(v.X, dims.X),
		Y: FloorDiv(v.Y, dims.Y),
		Z: FloorDiv(v.Z, dims.Z),
	}
}

// LocalInChunk возвращает локальные координаты внутри чанка размера dims (всегда в [0, dim)).
func (v Vec3) LocalInChunk(dims Vec3) Vec3 {
	return Vec3{
		X: Mod(v.X, dims.X),
		Y: Mod(v.Y, dims.Y),
		Z: Mod(v.Z, dims.Z),
	}
}

// ToFloat переводит позицию блока в float-вектор его минимального угла
func (v Vec3) ToFloat() mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// FromFloat возвращает блок, содержащий точку p
func FromFloat(p mgl32.Vec3) Vec3 {
	return Vec3{
		X: int(math.Floor(float64(p.X()))),
		Y: int(math.Floor(float64(p.Y()))),
		Z: int(math.Floor(float64(p.Z()))),
	}
}

// FloorDiv делит с округлением к минус бесконечности
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Mod возвращает неотрицательный остаток для b > 0
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
