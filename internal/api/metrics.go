package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats собирает сведения о процессе узла для /api/server
type ProcessStats struct {
	StartTime time.Time
	proc      *process.Process
}

// NewProcessStats фиксирует момент старта и открывает текущий процесс
func NewProcessStats() *ProcessStats {
	ps := &ProcessStats{StartTime: time.Now()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		ps.proc = proc
	}
	return ps
}

// Uptime возвращает время работы узла
func (ps *ProcessStats) Uptime() time.Duration {
	return time.Since(ps.StartTime)
}

// FormatUptime форматирует длительность в виде "1д 2ч 3м 4с"
func FormatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// MemoryUsage возвращает занятую кучу в MB
func (ps *ProcessStats) MemoryUsage() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Alloc) / 1024 / 1024
}

// CPUUsage возвращает загрузку CPU процессом в процентах
func (ps *ProcessStats) CPUUsage() (float64, error) {
	if ps.proc != nil {
		if cpuPercent, err := ps.proc.CPUPercent(); err == nil {
			return cpuPercent, nil
		}
	}

	// Если не удалось получить метрику процесса, попробуем системную
	cpuPercents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(cpuPercents) == 0 {
		return 0, fmt.Errorf("cpu: нет данных")
	}
	return cpuPercents[0], nil
}

// MemoryDetails возвращает детальную статистику памяти
func (ps *ProcessStats) MemoryDetails() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"alloc_mb":      float64(m.Alloc) / 1024 / 1024,
		"sys_mb":        float64(m.Sys) / 1024 / 1024,
		"heap_alloc_mb": float64(m.HeapAlloc) / 1024 / 1024,
		"num_gc":        m.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}
}
