package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/sciencecraft/internal/vec"
)

// traversal - пошаговый обход решетки по методу Amanatides-Woo.
//
// tMax[a] - параметрическое расстояние вдоль луча до следующей границы по оси a,
// tDelta[a] - расстояние между соседними границами по оси a. На каждом шаге
// выбирается ось с минимальным tMax; при равенстве побеждает младшая ось (x, y, z).
type traversal struct {
	axes   int
	cell   [3]int
	step   [3]int
	tMax   [3]float64
	tDelta [3]float64
	dist   float64
	limit  float64
	axis   int // ось последнего шага, -1 до первого шага
	primed bool
	done   bool
}

func newTraversal(axes int, origin, dir [3]float64, limit float64) *traversal {
	t := &traversal{axes: axes, limit: limit, axis: -1}

	var length float64
	for a := 0; a < axes; a++ {
		length += dir[a] * dir[a]
	}
	length = math.Sqrt(length)

	for a := 0; a < axes; a++ {
		t.cell[a] = int(math.Floor(origin[a]))

		d := 0.0
		if length > 0 {
			d = dir[a] / length
		}

		switch {
		case d > 0:
			t.step[a] = 1
			t.tDelta[a] = 1 / d
			t.tMax[a] = (float64(t.cell[a]) + 1 - origin[a]) / d
		case d < 0:
			t.step[a] = -1
			t.tDelta[a] = -1 / d
			t.tMax[a] = (origin[a] - float64(t.cell[a])) / -d
		default:
			t.tDelta[a] = math.Inf(1)
			t.tMax[a] = math.Inf(1)
		}
	}
	return t
}

// next возвращает false, когда следующая клетка лежит не ближе limit.
// Первый вызов сообщает исходную клетку на расстоянии 0.
func (t *traversal) next() bool {
	if t.done {
		return false
	}
	if !t.primed {
		t.primed = true
		if t.limit <= 0 {
			t.done = true
			return false
		}
		return true
	}

	axis := 0
	for a := 1; a < t.axes; a++ {
		if t.tMax[a] < t.tMax[axis] {
			axis = a
		}
	}

	d := t.tMax[axis]
	if math.IsInf(d, 1) || d >= t.limit {
		t.done = true
		return false
	}

	t.cell[axis] += t.step[axis]
	t.tMax[axis] += t.tDelta[axis]
	t.dist = d
	t.axis = axis
	return true
}

// DDA3D обходит воксели, пересекаемые лучом в трехмерной решетке
type DDA3D struct {
	t *traversal
}

// NewDDA3D создаёт обход от origin в направлении dir (нормализуется) до расстояния limit
func NewDDA3D(origin, dir mgl32.Vec3, limit float32) *DDA3D {
	return &DDA3D{t: newTraversal(3,
		[3]float64{float64(origin.X()), float64(origin.Y()), float64(origin.Z())},
		[3]float64{float64(dir.X()), float64(dir.Y()), float64(dir.Z())},
		float64(limit),
	)}
}

// Next переходит к следующей клетке. Первый вызов возвращает клетку origin.
// Возвращает false, когда расстояние до следующей клетки достигло предела.
func (d *DDA3D) Next() bool {
	return d.t.next()
}

// Cell возвращает текущую клетку
func (d *DDA3D) Cell() vec.Vec3 {
	return vec.Vec3{X: d.t.cell[0], Y: d.t.cell[1], Z: d.t.cell[2]}
}

// Distance возвращает расстояние вдоль луча до входа в текущую клетку
func (d *DDA3D) Distance() float32 {
	return float32(d.t.dist)
}

// Normal возвращает нормаль грани, через которую луч вошел в текущую клетку.
// Для исходной клетки нормаль нулевая.
func (d *DDA3D) Normal() vec.Vec3 {
	var n [3]int
	if d.t.axis >= 0 {
		n[d.t.axis] = -d.t.step[d.t.axis]
	}
	return vec.Vec3{X: n[0], Y: n[1], Z: n[2]}
}
