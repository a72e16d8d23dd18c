// Package scenario declares the portal smoke cases and runs them step by
// step against a browsing context owned by the caller.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kuitang/portal-smoke/internal/artifacts"
	"github.com/kuitang/portal-smoke/internal/config"
	"github.com/kuitang/portal-smoke/internal/errs"
	"github.com/kuitang/portal-smoke/internal/obs"
)

// DefaultStepTimeout applies to steps that declare no timeout.
const DefaultStepTimeout = 5 * time.Second

const artifactSaveTimeout = 30 * time.Second

// Throttler paces navigations. *throttle.Throttle satisfies it.
type Throttler interface {
	Wait(ctx context.Context, rawURL string) error
}

// Runner executes test cases. The zero value is usable.
type Runner struct {
	DefaultTimeout time.Duration // Zero means DefaultStepTimeout
	CaseTimeout    time.Duration // Overrides TestCase.Timeout when non-zero
	Throttle       Throttler
	Artifacts      artifacts.Store
	ArtifactPrefix string
}

// NewRunner builds a runner from configuration. th and store may be nil.
func NewRunner(cfg *config.Config, th Throttler, store artifacts.Store) *Runner {
	r := &Runner{Throttle: th, Artifacts: store}
	if cfg != nil {
		r.DefaultTimeout = cfg.DefaultTimeout
		r.CaseTimeout = cfg.CaseTimeout
		r.ArtifactPrefix = cfg.ArtifactPrefix
	}
	return r
}

// Result is the outcome of one case.
type Result struct {
	Case      string
	Err       error
	Duration  time.Duration
	Completed int      // Steps that finished before the case ended
	Skipped   []string // Optional steps that found nothing to do
	Artifact  string   // Screenshot location, set on failure when a store is configured
}

func (r Result) Passed() bool {
	return r.Err == nil
}

// Code returns the failure code, or "" when the case passed.
func (r Result) Code() errs.Code {
	if r.Err == nil {
		return ""
	}
	return errs.CodeOf(r.Err)
}

func (r *Runner) ceiling(tc TestCase) time.Duration {
	switch {
	case r.CaseTimeout > 0:
		return r.CaseTimeout
	case tc.Timeout > 0:
		return tc.Timeout
	default:
		return CaseTimeout
	}
}

func (r *Runner) defaultTimeout() time.Duration {
	if r.DefaultTimeout > 0 {
		return r.DefaultTimeout
	}
	return DefaultStepTimeout
}

// Run executes tc on page, in order, stopping at the first failing step.
// The page belongs to the caller and is left open.
func (r *Runner) Run(ctx context.Context, tc TestCase, page Page) Result {
	start := time.Now()
	ceiling := r.ceiling(tc)

	ctx = obs.WithCase(ctx, tc.Name)
	ctx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()
	deadline, _ := ctx.Deadline()

	logger := obs.From(ctx).With("pkg", "scenario")
	env := &stepEnv{
		ctx:            ctx,
		page:           page,
		deadline:       deadline,
		defaultTimeout: r.defaultTimeout(),
		throttle:       r.Throttle,
	}

	res := Result{Case: tc.Name}
	for i, step := range tc.Steps {
		if ctx.Err() != nil || env.expired() {
			res.Err = r.interrupted(ctx, tc.Name, ceiling, i, step)
			break
		}
		env.clamped = false

		logger.Debug("step_start", "step", i, "kind", step.Kind(), "desc", step.Describe())
		stepStart := time.Now()
		err := step.run(env)
		elapsed := time.Since(stepStart)

		if err != nil {
			if env.expired() || (env.clamped && errs.IsTimeout(errs.CodeOf(err))) {
				err = errs.Wrap(errs.SuiteTimeout, fmt.Sprintf("%s exceeded its %s ceiling during step %d (%s)", tc.Name, ceiling, i, step.Kind()), err)
			}
			res.Err = err
			logger.Warn("step_failed",
				"step", i,
				"kind", step.Kind(),
				"code", errs.CodeOf(err),
				"duration_ms", elapsed.Milliseconds(),
				"error", err,
			)
			break
		}
		res.Completed++
		logger.Debug("step_done", "step", i, "kind", step.Kind(), "duration_ms", elapsed.Milliseconds())
	}

	res.Skipped = env.skipped
	if res.Err != nil {
		res.Artifact = r.capture(ctx, logger, tc.Name, page)
	}
	res.Duration = time.Since(start)

	attrs := []any{
		"passed", res.Passed(),
		"completed", res.Completed,
		"steps", len(tc.Steps),
		"duration_ms", res.Duration.Milliseconds(),
	}
	if len(res.Skipped) > 0 {
		attrs = append(attrs, "skipped", res.Skipped)
	}
	if res.Err != nil {
		attrs = append(attrs, "code", res.Code(), "message", errs.MessageOf(res.Err), "error", res.Err)
	}
	if res.Artifact != "" {
		attrs = append(attrs, "artifact", res.Artifact)
	}
	logger.Info("case_done", attrs...)

	return res
}

func (r *Runner) interrupted(ctx context.Context, name string, ceiling time.Duration, i int, step Step) error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.DeadlineExceeded
	}
	if errors.Is(cause, context.Canceled) {
		return errs.Wrap(errs.Internal, fmt.Sprintf("%s cancelled before step %d (%s)", name, i, step.Kind()), cause)
	}
	return errs.Wrap(errs.SuiteTimeout, fmt.Sprintf("%s exceeded its %s ceiling before step %d (%s)", name, ceiling, i, step.Kind()), cause)
}

// capture stores a screenshot of the failing page. Failures here are logged
// and never replace the case error.
func (r *Runner) capture(ctx context.Context, logger *slog.Logger, name string, page Page) string {
	if r.Artifacts == nil || page == nil {
		return ""
	}
	shot, err := page.Screenshot()
	if err != nil {
		logger.Warn("screenshot_failed", "error", err)
		return ""
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactSaveTimeout)
	defer cancel()

	key := artifacts.Key(r.ArtifactPrefix, obs.CorrelationFromContext(ctx).RunID, name, time.Now())
	location, err := r.Artifacts.Save(saveCtx, key, shot, "image/png")
	if err != nil {
		logger.Warn("artifact_save_failed", "key", key, "error", err)
		return ""
	}
	return location
}
