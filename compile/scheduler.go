package compile

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runner compiles a single job. *Compiler is the production implementation.
type Runner interface {
	Compile(ctx context.Context, job Job) Result
}

// Scheduler runs jobs with at most Workers of them in flight.
type Scheduler struct {
	runner   Runner
	workers  int
	onResult func(Result)
	logger   *slog.Logger

	mu sync.Mutex // serializes onResult
}

type SchedulerOption func(*Scheduler)

// WithWorkers sets the concurrency budget. Values below 1 select
// runtime.NumCPU().
func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		s.workers = n
	}
}

// WithResultFunc registers a callback invoked once per finished job.
// Calls never overlap.
func WithResultFunc(f func(Result)) SchedulerOption {
	return func(s *Scheduler) { s.onResult = f }
}

func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

func NewScheduler(runner Runner, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:  runner,
		workers: runtime.NumCPU(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Workers() int {
	return s.workers
}

// Run executes all jobs and returns once every one of them is terminal.
// results[i] belongs to jobs[i]. After ctx is cancelled no new job starts;
// the remaining ones are reported as failed with the context error.
func (s *Scheduler) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			results[i] = Result{Job: job, Status: StatusFailed, Err: err}
			s.report(results[i])
			continue
		}
		g.Go(func() error {
			results[i] = s.runJob(ctx, job)
			s.report(results[i])
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(results)
	s.logger.Info("minimaps: run finished",
		"jobs", len(jobs),
		"done", summary.Done,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return results
}

func (s *Scheduler) runJob(ctx context.Context, job Job) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("minimaps: compile panicked", "map_id", job.MapID, "panic", r)
			result = Result{Job: job, Status: StatusFailed, Err: fmt.Errorf("minimaps: compile panicked: %v", r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return Result{Job: job, Status: StatusFailed, Err: err}
	}
	return s.runner.Compile(ctx, job)
}

func (s *Scheduler) report(r Result) {
	logResult(s.logger, r)
	if s.onResult == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult(r)
}

func logResult(logger *slog.Logger, r Result) {
	attrs := []any{
		"map_id", r.Job.MapID,
		"map", r.Job.Name,
		"status", r.Status,
		"placed", r.Placed,
		"omitted", r.Omitted,
		"elapsed", r.Elapsed,
	}
	if r.Status == StatusFailed {
		logger.Warn("minimaps: map failed", append(attrs, "error", r.Err)...)
		return
	}
	logger.Info("minimaps: map finished", attrs...)
}
