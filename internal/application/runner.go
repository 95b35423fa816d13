package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-sureal/infrastructure/middleware"
	"github.com/ahrav/go-sureal/internal/config"
	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/logging"
)

// ErrNilMatrix is returned when a batch is started without a matrix.
var ErrNilMatrix = errors.New("matrix cannot be nil")

// Outcome is the result of one model within a batch. Exactly one of Result
// and Err is set.
type Outcome[R any] struct {
	Model   domain.ModelKind
	Result  R
	Err     error
	Elapsed time.Duration
}

// Batch is the ordered set of outcomes of one run, in the order the models
// were requested.
type Batch[R any] struct {
	// RunID identifies the run in logs and spans.
	RunID    string
	Outcomes []Outcome[R]
}

// Err joins the errors of every failed model, or returns nil.
func (b *Batch[R]) Err() error {
	var errs []error
	for _, o := range b.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Model, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Runner evaluates several models on the same read-only matrix in parallel.
// A failing model never aborts the others; its error is kept on its own
// outcome. Runner is safe for concurrent use.
type Runner struct {
	registry    *ModelRegistry
	observer    *middleware.ModelObserver
	concurrency int
	timeout     time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrency caps how many models recover at once. Values below one
// are ignored.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 1 {
			r.concurrency = n
		}
	}
}

// WithTimeout bounds a whole batch. Zero disables the bound.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithObserver reports each model run to o.
func WithObserver(o *middleware.ModelObserver) RunnerOption {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithRunnerConfig applies the runner section of the configuration.
func WithRunnerConfig(cfg config.RunnerConfig) RunnerOption {
	return func(r *Runner) {
		WithConcurrency(cfg.Concurrency)(r)
		WithTimeout(cfg.Timeout)(r)
	}
}

// NewRunner creates a Runner drawing models from registry.
func NewRunner(registry *ModelRegistry, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry:    registry,
		observer:    middleware.NewModelObserver(nil, nil),
		concurrency: config.Default().Runner.Concurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunRating recovers qualities from om with every model in kinds.
func (r *Runner) RunRating(
	ctx context.Context, om *domain.OpinionMatrix, kinds []domain.ModelKind,
) (*Batch[*domain.RecoveryResult], error) {
	if om == nil {
		return nil, ErrNilMatrix
	}
	return runBatch(ctx, r, kinds,
		func(ctx context.Context, kind domain.ModelKind) (*domain.RecoveryResult, error) {
			m, err := r.registry.Rating(kind)
			if err != nil {
				return nil, err
			}
			return m.Recover(ctx, om)
		},
		(*middleware.ModelRun).Rating,
	)
}

// RunPaired recovers merits from pm with every model in kinds.
func (r *Runner) RunPaired(
	ctx context.Context, pm *domain.PairwiseMatrix, kinds []domain.ModelKind,
) (*Batch[*domain.MeritResult], error) {
	if pm == nil {
		return nil, ErrNilMatrix
	}
	return runBatch(ctx, r, kinds,
		func(ctx context.Context, kind domain.ModelKind) (*domain.MeritResult, error) {
			m, err := r.registry.Paired(kind)
			if err != nil {
				return nil, err
			}
			return m.Recover(ctx, pm)
		},
		(*middleware.ModelRun).Paired,
	)
}

func runBatch[R any](
	ctx context.Context,
	r *Runner,
	kinds []domain.ModelKind,
	recoverFn func(context.Context, domain.ModelKind) (R, error),
	finish func(*middleware.ModelRun, R, error),
) (*Batch[R], error) {
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: no models selected", domain.ErrInvalidConfiguration)
	}

	runID := logging.NewRunID()
	ctx = logging.WithRun(ctx, runID)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Int("models", len(kinds)).
		Int("concurrency", r.concurrency).
		Msg("starting recovery batch")

	batch := &Batch[R]{RunID: runID, Outcomes: make([]Outcome[R], len(kinds))}

	// Goroutines never return errors, so one failing model cannot cancel
	// the others.
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, kind := range kinds {
		g.Go(func() error {
			mctx, run := r.observer.Start(ctx, runID, kind)
			start := time.Now()
			res, err := recoverFn(mctx, kind)
			finish(run, res, err)

			out := Outcome[R]{Model: kind, Elapsed: time.Since(start)}
			if err != nil {
				out.Err = err
				logger.Error().Err(err).Str("model", kind.String()).Msg("model failed")
			} else {
				out.Result = res
				logger.Debug().
					Str("model", kind.String()).
					Dur("elapsed", out.Elapsed).
					Msg("model finished")
			}
			batch.Outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range batch.Outcomes {
		if o.Err != nil {
			failed++
		}
	}
	logger.Info().Int("failed", failed).Msg("recovery batch finished")
	return batch, nil
}
