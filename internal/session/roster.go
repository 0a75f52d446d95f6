package session

import (
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Roster - потокобезопасный реестр игроков (ID -> Player).
// Не связан блокировкой с хранилищем чанков: каждая структура согласована сама по себе.
type Roster struct {
	mu      sync.RWMutex
	players map[uint16]*Player
	now     func() time.Time
}

// NewRoster создаёт пустой реестр
func NewRoster() *Roster {
	return &Roster{
		players: make(map[uint16]*Player),
		now:     time.Now,
	}
}

// Spawn регистрирует игрока с начальной позицией; существующая запись сохраняется.
// Возвращает true, если игрок был создан.
func (r *Roster) Spawn(id uint16, pos mgl32.Vec3) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[id]; ok {
		return false
	}
	r.players[id] = &Player{
		ID:       id,
		Position: pos,
		Color:    ColorFor(id),
		LastSeen: r.now(),
	}
	rosterSize.Set(float64(len(r.players)))
	return true
}

// Upsert обновляет позицию и ориентацию игрока, создавая запись при первом упоминании.
// Возвращает true, если игрок был создан.
func (r *Roster) Upsert(id uint16, pos mgl32.Vec3, yaw, pitch float32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		p = &Player{ID: id, Color: ColorFor(id)}
		r.players[id] = p
		rosterSize.Set(float64(len(r.players)))
	}
	p.Position = pos
	p.Yaw = yaw
	p.Pitch = pitch
	p.LastSeen = r.now()
	return !ok
}

// Remove удаляет игрока. Возвращает false, если его не было.
func (r *Roster) Remove(id uint16) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	rosterSize.Set(float64(len(r.players)))
	return true
}

// Get возвращает копию состояния игрока
func (r *Roster) Get(id uint16) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// All возвращает снимок всех игроков, отсортированный по ID
func (r *Roster) All() []Player {
	r.mu.RLock()
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len возвращает число игроков
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Clear удаляет всех игроков
func (r *Roster) Clear() {
	r.mu.Lock()
	r.players = make(map[uint16]*Player)
	r.mu.Unlock()

	rosterSize.Set(0)
}
