package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"playpoints/internal/logging"
	"playpoints/internal/metrics"
)

// Task is one periodic background job with its own interval
type Task struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs tasks independently; a failing or panicking run of one task
// neither stops its later runs nor affects the other tasks.
type Scheduler struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
	tasks   []Task
}

// New creates a new scheduler for tasks
func New(logger *logging.Logger, m *metrics.Metrics, tasks ...Task) *Scheduler {
	return &Scheduler{logger: logger, metrics: m, tasks: tasks}
}

// Run blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range s.tasks {
		task := task
		g.Go(func() error {
			s.loop(ctx, task)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	log := s.logger.With("task", task.Name)
	log.Info("task_started", "interval", task.Interval.String())

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	if task.RunOnStart {
		s.runOnce(ctx, task, log)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("task_stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx, task, log)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, task Task, log *logging.Logger) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task_panicked", "panic", fmt.Sprint(r))
		}
		s.metrics.ObserveTask(task.Name, time.Since(start))
	}()

	if err := task.Run(ctx); err != nil {
		log.Warn("task_failed", "error", err)
	}
}
