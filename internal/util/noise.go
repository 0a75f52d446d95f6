package util

import (
	"fmt"
	"math"
	"sync"

	"github.com/aquilax/go-perlin"
)

// HeightSource - детерминированный оракул высоты: одинаковые (seed, x, z)
// дают одинаковый результат на любом узле.
type HeightSource interface {
	Height(seed int64, x, z int) (int, error)
}

// HeightFunc адаптирует функцию к интерфейсу HeightSource
type HeightFunc func(seed int64, x, z int) (int, error)

// Height вызывает f(seed, x, z)
func (f HeightFunc) Height(seed int64, x, z int) (int, error) {
	return f(seed, x, z)
}

// PerlinHeight строит высоту поверхности по шуму Перлина:
// H = MinHeight + (MaxHeight-MinHeight) * (noise(x/Scale, z/Scale) + 1) / 2.
type PerlinHeight struct {
	Alpha     float64 // Сглаживание шума
	Beta      float64 // Частота шума
	Octaves   int32   // Количество октав
	Scale     float64 // Масштаб мировых координат
	MinHeight int
	MaxHeight int

	// Генераторы по сиду. После построения *perlin.Perlin только читается,
	// поэтому его можно разделять между горутинами генерации.
	noises sync.Map
}

// NewPerlinHeight создаёт оракул с высотами в диапазоне [1, maxHeight]
func NewPerlinHeight(maxHeight int) *PerlinHeight {
	return &PerlinHeight{
		Alpha:     2.0,
		Beta:      2.0,
		Octaves:   16,
		Scale:     128.0,
		MinHeight: 1,
		MaxHeight: maxHeight,
	}
}

func (p *PerlinHeight) noise(seed int64) *perlin.Perlin {
	if n, ok := p.noises.Load(seed); ok {
		return n.(*perlin.Perlin)
	}
	n, _ := p.noises.LoadOrStore(seed, perlin.NewPerlin(p.Alpha, p.Beta, p.Octaves, seed))
	return n.(*perlin.Perlin)
}

// Height возвращает целую высоту поверхности для мировой колонки (x, z)
func (p *PerlinHeight) Height(seed int64, x, z int) (int, error) {
	if p.Scale <= 0 {
		return 0, fmt.Errorf("некорректный масштаб шума: %v", p.Scale)
	}

	v := p.noise(seed).Noise2D(float64(x)/p.Scale, float64(z)/p.Scale)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("шум вернул %v для колонки (%d, %d)", v, x, z)
	}

	h := p.MinHeight + int(float64(p.MaxHeight-p.MinHeight)*(v+1.0)/2.0)
	if h < p.MinHeight {
		h = p.MinHeight
	}
	if h > p.MaxHeight {
		h = p.MaxHeight
	}
	return h, nil
}

// FlatHeight возвращает оракул постоянной высоты (для тестов и плоских миров)
func FlatHeight(h int) HeightSource {
	return HeightFunc(func(int64, int, int) (int, error) { return h, nil })
}
