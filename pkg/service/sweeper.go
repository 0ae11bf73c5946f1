package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/fx"
)

// SweepTask is a periodic maintenance job. Run must be safe to call on
// every tick; a failing cycle is logged and retried on the next one.
type SweepTask struct {
	Name     string
	Interval time.Duration
	Run      func() error
}

type SweepTaskSource interface {
	SweepTasks() []SweepTask
}

const sweepTaskTag = `group:"sweep.task"`

func AsSweepTaskSource(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(SweepTaskSource)),
		fx.ResultTags(sweepTaskTag),
	)
}

// Sweeper owns the process background timers. It starts one goroutine
// per task on lifecycle start and stops all of them on shutdown.
type Sweeper struct {
	logger *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (s *Sweeper) start(tasks []SweepTask) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, task := range tasks {
		task := task
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			ticker := time.NewTicker(task.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := task.Run(); err != nil {
						s.logger.Error("sweep cycle failed",
							slog.String("task", task.Name),
							slog.String("err", err.Error()),
						)
					}
				}
			}
		}()
	}
}

func (s *Sweeper) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

type sweeper_Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *slog.Logger
	Sources   []SweepTaskSource `group:"sweep.task"`
}

func sweeper(params sweeper_Params) *Sweeper {
	s := &Sweeper{logger: params.Logger}

	var tasks []SweepTask
	for _, source := range params.Sources {
		tasks = append(tasks, source.SweepTasks()...)
	}

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.start(tasks)
			return nil
		},
		OnStop: func(context.Context) error {
			s.stop()
			return nil
		},
	})
	return s
}

var SweeperModule = fx.Module("sweeper", fx.Provide(sweeper), fx.Invoke(func(*Sweeper) {}))
