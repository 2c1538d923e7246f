package prompt

import (
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/logfields"
)

// LogProgress reports merge steps through slog.
type LogProgress struct {
	mu      sync.Mutex
	task    string
	steps   int
	current int
	started time.Time
}

func (p *LogProgress) Begin(task string, steps int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.task, p.steps, p.current, p.started = task, steps, 0, time.Now()
	slog.Info(task, slog.Int("steps", steps))
}

func (p *LogProgress) Step(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	slog.Info(name, slog.String("task", p.task), slog.Int("step", p.current), slog.Int("steps", p.steps))
}

func (p *LogProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.IsZero() {
		return
	}
	slog.Info("Finished", slog.String("task", p.task), logfields.Duration(time.Since(p.started)))
}
