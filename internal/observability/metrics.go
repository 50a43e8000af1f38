package observability

import (
	"sort"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for shell commands.
type Metrics struct {
	mu       sync.Mutex
	commands map[string]*CommandStats
}

// CommandStats aggregates the outcomes of one command.
type CommandStats struct {
	Command  string
	Count    int64
	Errors   int64
	ErrCodes map[string]int64
	Total    time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{commands: make(map[string]*CommandStats)}
}

// RecordCommand counts one execution. errCode is empty on success.
func (m *Metrics) RecordCommand(command, errCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, ok := m.commands[command]
	if !ok {
		stats = &CommandStats{Command: command, ErrCodes: make(map[string]int64)}
		m.commands[command] = stats
	}
	stats.Count++
	stats.Total += duration
	if errCode != "" {
		stats.Errors++
		stats.ErrCodes[errCode]++
	}
}

// Snapshot returns a copy of the counters ordered by command name.
func (m *Metrics) Snapshot() []CommandStats {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CommandStats, 0, len(m.commands))
	for _, stats := range m.commands {
		codes := make(map[string]int64, len(stats.ErrCodes))
		for code, n := range stats.ErrCodes {
			codes[code] = n
		}
		cp := *stats
		cp.ErrCodes = codes
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}
