package maintenance

import (
	"context"
	"log"
	"time"
)

// Task is one idempotent cleanup pass. Run reports how many rows it affected.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Sweeper drives the periodic cleanup passes (idle sessions, expired refresh
// tokens, old login attempts) from a single ticker goroutine, off the
// request-handling path.
type Sweeper struct {
	interval time.Duration
	tasks    []Task
}

func NewSweeper(interval time.Duration, tasks ...Task) *Sweeper {
	return &Sweeper{
		interval: interval,
		tasks:    tasks,
	}
}

// Start launches the sweep loop and returns immediately. The loop stops when
// ctx is cancelled. A failing task is logged and never stops the loop or the
// other tasks.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	for _, task := range s.tasks {
		affected, err := task.Run(ctx)
		if err != nil {
			log.Printf("warn: sweep %s failed: %v", task.Name, err)
			continue
		}
		if affected > 0 {
			log.Printf("sweep %s: %d rows", task.Name, affected)
		}
	}
}
