// Package flow wires one generation run: it resolves the session, calls
// the generation service, checks every returned path and writes the files.
package flow

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/simonhull/hatch/internal/generator"
	"github.com/simonhull/hatch/internal/lock"
	"github.com/simonhull/hatch/internal/metrics"
	"github.com/simonhull/hatch/internal/pathguard"
	"github.com/simonhull/hatch/internal/report"
	"github.com/simonhull/hatch/internal/scaffold"
	"github.com/simonhull/hatch/internal/session"
	"github.com/simonhull/hatch/pkg/logger"
)

// Generator produces a scaffold descriptor for a request.
type Generator interface {
	Generate(ctx context.Context, req scaffold.Request) (*scaffold.Descriptor, error)
}

// Trigger is what the host supplies for one run.
type Trigger struct {
	Prompt string
	Root   string
}

// Options controls how the returned files are written.
type Options struct {
	// Protect replaces the default protected patterns when non-nil.
	Protect []string
	DryRun  bool
	Preview bool
	Writer  io.Writer
	Pager   func(path, diff string) error
}

// Runner executes runs. The zero value is not usable; use New.
type Runner struct {
	gen     Generator
	locker  lock.Locker
	opts    Options
	logger  logger.Logger
	metrics *metrics.Metrics
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

func WithLocker(l lock.Locker) RunnerOption {
	return func(r *Runner) { r.locker = l }
}

func WithLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// New returns a Runner. Without WithLocker, runs on the same root in this
// process are rejected while one is in flight.
func New(gen Generator, opts Options, ropts ...RunnerOption) *Runner {
	r := &Runner{
		gen:    gen,
		locker: lock.NewLocal(lock.Reject),
		opts:   opts,
		logger: logger.NewSilentLogger(),
	}
	for _, o := range ropts {
		o(r)
	}
	return r
}

// Run performs one generate and materialize cycle and returns its verdict.
//
// An empty prompt or unusable root aborts before the service is called or
// the workspace touched. Service and protocol errors abort the run with no
// writes. Path and IO problems are per-entry failures that never stop the
// other entries.
func (r *Runner) Run(ctx context.Context, t Trigger) report.Outcome {
	start := time.Now()
	out := r.run(ctx, t)
	out.DryRun = r.opts.DryRun
	r.metrics.Observe(out, time.Since(start))
	return out
}

func (r *Runner) run(ctx context.Context, t Trigger) report.Outcome {
	prompt := strings.TrimSpace(t.Prompt)
	if prompt == "" {
		return report.Abort(&scaffold.InputError{Reason: "prompt is empty"})
	}

	var guardOpts []pathguard.Option
	if r.opts.Protect != nil {
		guardOpts = append(guardOpts, pathguard.WithProtected(r.opts.Protect...))
	}
	resolver, err := pathguard.New(t.Root, guardOpts...)
	if err != nil {
		return report.Abort(err)
	}

	key := resolver.RealRoot()
	unlock, err := r.locker.Lock(ctx, key)
	if err != nil {
		r.logger.Warn("workspace lock not acquired", logger.F("root", key), logger.F("error", err))
		return report.Abort(fmt.Errorf("lock %s: %w", key, err))
	}
	defer func() {
		if err := unlock(); err != nil {
			r.logger.Warn("failed to release workspace lock", logger.F("root", key), logger.F("error", err))
		}
	}()

	req := scaffold.Request{SessionID: session.Resolve(resolver.Root()), Prompt: prompt}
	log := r.logger.WithFields(logger.F("session", req.SessionID), logger.F("root", resolver.Root()))
	log.Info("requesting scaffold")

	desc, err := r.gen.Generate(ctx, req)
	if err != nil {
		log.Error("generation failed", logger.F("error", err))
		return report.Abort(err)
	}
	log.Info("scaffold received", logger.F("files", len(desc.Files)))

	res := scaffold.NewResult()
	writes := make([]scaffold.ResolvedWrite, 0, len(desc.Files))
	for _, entry := range desc.Files {
		w, err := resolver.Resolve(entry)
		if err != nil {
			log.Warn("rejected path", logger.F("path", entry.Path), logger.F("error", err))
			res.RecordFailure(pathguard.Key(entry.Path), err)
			continue
		}
		writes = append(writes, w)
	}

	generator.MaterializeInto(ctx, writes, generator.ExecuteOptions{
		DryRun:  r.opts.DryRun,
		Preview: r.opts.Preview,
		Writer:  r.opts.Writer,
		Pager:   r.opts.Pager,
	}, res)

	out := report.Summarize(res)
	log.Info("run finished",
		logger.F("outcome", out.Kind.String()),
		logger.F("succeeded", len(out.Succeeded)),
		logger.F("failed", len(out.Failed)))
	return out
}
